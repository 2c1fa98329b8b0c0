package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/lagrangedao/go-computing-market/internal/initializer"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/urfave/cli/v2"
)

var sweepCmd = &cli.Command{
	Name:  "sweep",
	Usage: "Run a sweep against the local ledger (the node must be stopped)",
	Subcommands: []*cli.Command{
		sweepTimeouts,
		sweepProviders,
		sweepSettlements,
	},
}

var sweepTimeouts = &cli.Command{
	Name:  "timeouts",
	Usage: "Fail and refund submitted jobs past their deadline",
	Action: func(cctx *cli.Context) error {
		return runSweep(cctx, func(node *initializer.Node, now time.Time) (*models.Response, error) {
			return node.Market.SweepTimeouts(now)
		})
	},
}

var sweepProviders = &cli.Command{
	Name:  "providers",
	Usage: "Deactivate providers whose heartbeat is stale",
	Action: func(cctx *cli.Context) error {
		return runSweep(cctx, func(node *initializer.Node, now time.Time) (*models.Response, error) {
			return node.Market.SweepInactive(now)
		})
	},
}

var sweepSettlements = &cli.Command{
	Name:  "settlements",
	Usage: "Dispatch transfers still pending from earlier operations",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of transfers to dispatch",
			Value: 100,
		},
	},
	Action: func(cctx *cli.Context) error {
		repo, err := repoPath(cctx)
		if err != nil {
			return err
		}
		node, err := initializer.ProjectInit(repo)
		if err != nil {
			return err
		}
		defer node.Close()

		n, err := node.Market.RetrySettlements(node.Settler, cctx.Int("limit"))
		fmt.Printf("dispatched: %s\n", color.YellowString("%d", n))
		return err
	},
}

func runSweep(cctx *cli.Context, sweep func(node *initializer.Node, now time.Time) (*models.Response, error)) error {
	repo, err := repoPath(cctx)
	if err != nil {
		return err
	}
	node, err := initializer.ProjectInit(repo)
	if err != nil {
		return err
	}
	defer node.Close()

	resp, err := sweep(node, time.Now())
	if err != nil {
		return err
	}
	if len(resp.Transfers) > 0 {
		if _, err = node.Market.SettleTransfers(node.Settler, resp.Transfers); err != nil {
			color.Red("settlement incomplete, left pending: %v", err)
		}
	}

	result := resp.Data.(*models.SweepResult)
	fmt.Printf("%s: %s\n", resp.Action, color.YellowString("%d", result.Count))
	if len(result.JobIds) > 0 {
		ids := make([]string, 0, len(result.JobIds))
		for _, id := range result.JobIds {
			ids = append(ids, fmt.Sprint(id))
		}
		fmt.Printf("jobs: %s\n", strings.Join(ids, ", "))
	}
	if len(result.Providers) > 0 {
		fmt.Printf("providers: %s\n", strings.Join(result.Providers, ", "))
	}
	return nil
}
