package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/lagrangedao/go-computing-market/conf"
	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/market"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "Verify ledger invariants and report the escrowed total (the node must be stopped)",
	Action: func(cctx *cli.Context) error {
		repo, err := repoPath(cctx)
		if err != nil {
			return err
		}
		cfg, err := conf.LoadConfig(repo)
		if err != nil {
			return err
		}
		st, err := store.OpenOrInit(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := market.NewMarket(st, gateway.HexAddresses{}).CheckInvariants()
		if err != nil {
			return err
		}

		table := util.NewTable("KEY", "VALUE")
		table.Append("Open jobs", fmt.Sprint(report.OpenJobs))
		table.Append("Escrowed", report.Escrowed.String()+report.Denom)
		table.Append("Deposit balances", report.Balances.String()+report.Denom)
		table.Append("Deposited", report.Deposited.String()+report.Denom)
		table.Append("Released", report.Released.String()+report.Denom)
		pending := table.Append("Pending settlements", fmt.Sprintf("%d (%s%s)", report.PendingCount, report.Pending, report.Denom))
		if report.PendingCount > 0 {
			table.Color(pending, 1, tablewriter.Colors{tablewriter.Bold, tablewriter.FgYellowColor})
		}
		row := table.Append("Violations", fmt.Sprint(len(report.Violations)))
		if len(report.Violations) > 0 {
			table.Color(row, 1, tablewriter.Colors{tablewriter.Bold, tablewriter.FgRedColor})
		}
		table.Render(os.Stdout)

		if len(report.Violations) == 0 {
			color.Green("ledger is consistent")
			return nil
		}
		for _, v := range report.Violations {
			color.Red("  %s", v)
		}
		return fmt.Errorf("%d invariant violations", len(report.Violations))
	},
}
