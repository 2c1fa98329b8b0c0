package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/urfave/cli/v2"
)

var adminCmd = &cli.Command{
	Name:  "admin",
	Usage: "Inspect and administer the market",
	Subcommands: []*cli.Command{
		adminConfig,
		adminPause,
		adminUnpause,
		adminSweep,
		adminEscrow,
	},
}

var adminConfig = &cli.Command{
	Name:  "config",
	Usage: "Show the market config, or update timeouts when flags are given",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "job-timeout", Usage: "default job timeout in seconds"},
		&cli.Uint64Flag{Name: "heartbeat-timeout", Usage: "provider heartbeat timeout in seconds"},
	},
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}

		if cctx.IsSet("job-timeout") || cctx.IsSet("heartbeat-timeout") {
			var req models.UpdateConfigReq
			if cctx.IsSet("job-timeout") {
				v := cctx.Uint64("job-timeout")
				req.DefaultJobTimeout = &v
			}
			if cctx.IsSet("heartbeat-timeout") {
				v := cctx.Uint64("heartbeat-timeout")
				req.HeartbeatTimeout = &v
			}
			resp, err := mc.UpdateConfig(cctx.Context, req)
			if err != nil {
				return err
			}
			printResponse(resp)
			return nil
		}

		cfg, err := mc.GetConfig(cctx.Context)
		if err != nil {
			return err
		}
		table := util.NewTable("KEY", "VALUE")
		table.Append("Admin", gateway.Checksum(cfg.Admin))
		table.Append("Community pool", gateway.Checksum(cfg.CommunityPool))
		table.Append("Community fee", fmt.Sprintf("%d%%", cfg.CommunityFeePercent))
		table.Append("Job timeout", strconv.FormatUint(cfg.DefaultJobTimeout, 10)+"s")
		table.Append("Heartbeat timeout", strconv.FormatUint(cfg.HeartbeatTimeout, 10)+"s")
		table.Append("Denom", cfg.Denom)
		row := table.Append("Paused", strconv.FormatBool(cfg.Paused))
		if cfg.Paused {
			table.Color(row, 1, util.StatusColor(constants.JobFailed))
		}
		table.Render(os.Stdout)
		return nil
	},
}

var adminPause = &cli.Command{
	Name:  "pause",
	Usage: "Reject every mutation until unpaused",
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.Pause(cctx.Context)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var adminUnpause = &cli.Command{
	Name:  "unpause",
	Usage: "Resume accepting mutations",
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.Unpause(cctx.Context)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var adminSweep = &cli.Command{
	Name:  "sweep",
	Usage: "Ask the node to sweep timed out jobs and stale providers now",
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.SweepTimeouts(cctx.Context)
		if err != nil {
			return err
		}
		printResponse(resp)
		resp, err = mc.SweepProviders(cctx.Context)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var adminEscrow = &cli.Command{
	Name:  "escrow",
	Usage: "Show escrowed funds and ledger consistency",
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		report, err := mc.Escrow(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Printf("open jobs: %d, escrowed: %s%s\n", report.OpenJobs, report.Escrowed, report.Denom)
		fmt.Printf("deposited: %s%s, unspent: %s%s, released: %s%s\n",
			report.Deposited, report.Denom, report.Balances, report.Denom, report.Released, report.Denom)
		if report.PendingCount > 0 {
			color.Yellow("pending settlements: %d (%s%s)", report.PendingCount, report.Pending, report.Denom)
		}
		for _, v := range report.Violations {
			color.Red("  %s", v)
		}
		return nil
	},
}
