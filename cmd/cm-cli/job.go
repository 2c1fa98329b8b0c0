package main

import (
	"fmt"
	"strconv"

	"cosmossdk.io/math"
	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/urfave/cli/v2"
)

var jobCmd = &cli.Command{
	Name:  "job",
	Usage: "Submit and settle jobs",
	Subcommands: []*cli.Command{
		jobSubmit,
		jobComplete,
		jobFail,
		jobCancel,
		jobInfo,
		jobList,
	},
}

func jobID(cctx *cli.Context) (uint64, error) {
	if cctx.NArg() < 1 {
		return 0, fmt.Errorf("must specify job id")
	}
	return strconv.ParseUint(cctx.Args().First(), 10, 64)
}

var jobSubmit = &cli.Command{
	Name:      "submit",
	Usage:     "Submit a job, escrowing the payment",
	ArgsUsage: "<provider> <amount>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "job type", Required: true},
		&cli.StringFlag{Name: "params", Usage: "job parameters, passed through verbatim"},
		&cli.StringFlag{Name: "denom", Value: constants.DEFAULT_DENOM},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("need two params: the provider address and amount")
		}
		amount, ok := math.NewIntFromString(cctx.Args().Get(1))
		if !ok {
			return fmt.Errorf("invalid amount: %s", cctx.Args().Get(1))
		}

		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.SubmitJob(cctx.Context, models.SubmitJobReq{
			Provider:   cctx.Args().First(),
			JobType:    cctx.String("type"),
			Parameters: cctx.String("params"),
		}, []models.Coin{{Denom: cctx.String("denom"), Amount: amount}})
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var jobComplete = &cli.Command{
	Name:      "complete",
	Usage:     "Deliver a job result and release the payment",
	ArgsUsage: "<job id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "hash", Usage: "result hash", Required: true},
		&cli.StringFlag{Name: "url", Usage: "result url"},
	},
	Action: func(cctx *cli.Context) error {
		id, err := jobID(cctx)
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.CompleteJob(cctx.Context, id, models.CompleteJobReq{
			ResultHash: cctx.String("hash"),
			ResultUrl:  cctx.String("url"),
		})
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var jobFail = &cli.Command{
	Name:      "fail",
	Usage:     "Give up on a job and refund the client",
	ArgsUsage: "<job id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "reason", Required: true},
	},
	Action: func(cctx *cli.Context) error {
		id, err := jobID(cctx)
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.FailJob(cctx.Context, id, models.FailJobReq{Reason: cctx.String("reason")})
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var jobCancel = &cli.Command{
	Name:      "cancel",
	Usage:     "Cancel a job within five minutes of submitting it",
	ArgsUsage: "<job id>",
	Action: func(cctx *cli.Context) error {
		id, err := jobID(cctx)
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.CancelJob(cctx.Context, id)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var jobInfo = &cli.Command{
	Name:      "info",
	Usage:     "Show a job",
	ArgsUsage: "<job id>",
	Action: func(cctx *cli.Context) error {
		id, err := jobID(cctx)
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		job, err := mc.GetJob(cctx.Context, id)
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobList = &cli.Command{
	Name:  "list",
	Usage: "List the jobs of a provider or a client",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "provider"},
		&cli.StringFlag{Name: "client"},
		&cli.Uint64Flag{Name: "start-after", Usage: "job id to resume after"},
		&cli.UintFlag{Name: "limit", Usage: "page size, at most 50"},
	},
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}

		startAfter, limit := cctx.Uint64("start-after"), uint32(cctx.Uint("limit"))
		list := mc.ListJobsByClient
		address := cctx.String("client")
		if cctx.IsSet("provider") {
			list, address = mc.ListJobsByProvider, cctx.String("provider")
		}
		if address == "" {
			return fmt.Errorf("must specify --provider or --client")
		}

		jobs, page, err := list(cctx.Context, address, startAfter, limit)
		if err != nil {
			return err
		}
		printJobs(jobs)
		printPage(page)
		return nil
	},
}
