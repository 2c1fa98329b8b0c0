package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/lagrangedao/go-computing-market/conf"
	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/urfave/cli/v2"
)

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "Write a config.toml template into the repo",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Usage: "API port",
			Value: 8085,
		},
		&cli.StringFlag{
			Name:     "admin",
			Usage:    "address allowed to pause the market and change timeouts",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "community-pool",
			Usage:    "address receiving the community share of every payment",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "fee",
			Usage: "community fee percent, 0 to 100",
			Value: 15,
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "redis url of the transfer broker, leave empty to only log transfers",
		},
	},
	Action: func(cctx *cli.Context) error {
		repo, err := repoPath(cctx)
		if err != nil {
			return err
		}

		path, err := conf.WriteDefaultConfig(repo, conf.MarketNode{
			API: conf.API{
				Port:      cctx.Int("port"),
				RateLimit: 20,
				RateBurst: 40,
			},
			DB: conf.DB{Path: "ledger"},
			Redis: conf.Redis{
				Url: cctx.String("redis"),
			},
			Market: conf.Market{
				Admin:               cctx.String("admin"),
				CommunityPool:       cctx.String("community-pool"),
				CommunityFeePercent: cctx.Uint64("fee"),
				DefaultJobTimeout:   constants.DEFAULT_JOB_TIMEOUT,
				HeartbeatTimeout:    constants.DEFAULT_HEARTBEAT_TIMEOUT,
				Denom:               constants.DEFAULT_DENOM,
			},
			Sweep: conf.Sweep{Schedule: "@every 30s"},
		})
		if err != nil {
			return err
		}
		fmt.Printf("config written to %s\n", color.GreenString(path))
		return nil
	},
}
