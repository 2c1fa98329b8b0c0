package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/itsjamie/gin-cors"
	"github.com/lagrangedao/go-computing-market/build"
	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/api"
	"github.com/lagrangedao/go-computing-market/internal/initializer"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/urfave/cli/v2"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Start a market node",
	Action: func(cctx *cli.Context) error {
		logs.GetLogger().Info("Start in computing market mode.")

		repo, err := repoPath(cctx)
		if err != nil {
			return err
		}
		os.Setenv("CM_PATH", repo)

		node, err := initializer.ProjectInit(repo)
		if err != nil {
			return err
		}
		cfg := node.Config

		events := api.NewEventHub()
		server := api.NewServer(node.Market, node.Settler, events,
			api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
			api.WithVersion(build.UserVersion()),
		)

		r := gin.Default()
		r.Use(cors.Middleware(cors.Config{
			Origins:         "*",
			Methods:         "GET, PUT, POST, DELETE",
			RequestHeaders:  "Origin, Authorization, Content-Type, " + constants.HEADER_ADDRESS + ", " + constants.HEADER_TIMESTAMP + ", " + constants.HEADER_SIGNATURE + ", " + constants.HEADER_REQUEST_ID,
			ExposedHeaders:  constants.HEADER_REQUEST_ID,
			MaxAge:          50 * time.Second,
			ValidateHeaders: false,
		}))
		pprof.Register(r)
		api.RegisterMetrics(r)

		v1 := r.Group("/api/v1")
		server.Register(v1.Group("/market"))

		handlers := []util.ShutdownHandler{}
		if cfg.Sweep.Schedule != "" {
			sweeper, err := initializer.NewSweeper(node, cfg.Sweep.Schedule)
			if err != nil {
				node.Close()
				return err
			}
			sweeper.Start()
			logs.GetLogger().Infof("sweeps scheduled: %s", cfg.Sweep.Schedule)
			handlers = append(handlers, util.ShutdownHandler{Component: "sweeper", StopFunc: sweeper.Stop})
		}

		shutdownChan := make(chan struct{})
		httpStopper, err := util.ServeHttp(r, "market-api", ":"+strconv.Itoa(cfg.API.Port), cfg.API.CrtFile, cfg.API.KeyFile)
		if err != nil {
			node.Close()
			return err
		}

		// the listener stops first so nothing writes to the ledger while it closes
		handlers = append([]util.ShutdownHandler{{Component: "market-api", StopFunc: httpStopper}}, handlers...)
		handlers = append(handlers,
			util.ShutdownHandler{Component: "events", StopFunc: func(context.Context) error {
				events.Close()
				return nil
			}},
			util.ShutdownHandler{Component: "ledger", StopFunc: func(context.Context) error {
				return node.Close()
			}},
		)

		finishCh := util.MonitorShutdown(shutdownChan, handlers...)
		<-finishCh

		return nil
	},
}
