package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/util"
)

func printResponse(resp *models.Response) {
	fmt.Println(color.GreenString(resp.Action))
	for _, attr := range resp.Attributes {
		if attr.Key == "action" {
			continue
		}
		fmt.Printf("  %s: %s\n", attr.Key, attr.Value)
	}
	for _, t := range resp.Transfers {
		fmt.Printf("  #%d %s %s%s -> %s\n", t.Id, color.YellowString(string(t.Kind)), t.Coin.Amount, t.Coin.Denom, gateway.Checksum(t.ToAddress))
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func providerState(p *models.Provider) string {
	if p.Active {
		return "active"
	}
	return "inactive"
}

func printProviders(providers []*models.Provider) {
	table := util.NewTable("ADDRESS", "NAME", "STATE", "JOBS", "COMPLETED", "FAILED", "REPUTATION", "LAST HEARTBEAT")
	for _, p := range providers {
		state := providerState(p)
		row := table.Append(
			gateway.Checksum(p.Address),
			p.Name,
			state,
			fmt.Sprintf("%d/%d", p.ActiveJobs, p.Capacity),
			strconv.FormatUint(p.TotalCompleted, 10),
			strconv.FormatUint(p.TotalFailed, 10),
			p.Reputation.String(),
			p.LastHeartbeat.Local().Format(time.DateTime),
		)
		table.Color(row, 2, util.StatusColor(state))
	}
	table.Render(os.Stdout)
}

func printJobs(jobs []*models.Job) {
	table := util.NewTable("ID", "TYPE", "STATUS", "PAYMENT", "CLIENT", "PROVIDER", "DEADLINE")
	for _, job := range jobs {
		row := table.Append(
			strconv.FormatUint(job.Id, 10),
			job.JobType,
			string(job.Status),
			job.PaymentAmount.String(),
			gateway.Checksum(job.Client),
			gateway.Checksum(job.Provider),
			job.Deadline.Local().Format(time.DateTime),
		)
		table.Color(row, 2, util.StatusColor(string(job.Status)))
	}
	table.Render(os.Stdout)
}

func printPage(page *util.PageInfo) {
	if page == nil {
		return
	}
	fmt.Printf("\n%d shown, limit %d\n", page.Count, page.Limit)
}
