package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/lagrangedao/go-computing-market/yaml"
	"github.com/urfave/cli/v2"
)

var providerCmd = &cli.Command{
	Name:  "provider",
	Usage: "Register and manage computing providers",
	Subcommands: []*cli.Command{
		providerRegister,
		providerHeartbeat,
		providerUpdate,
		providerStatus,
		providerInfo,
		providerList,
		providerActive,
		providerStats,
	},
}

var providerRegister = &cli.Command{
	Name:  "register",
	Usage: "Register the --from address as a provider",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Usage:    "provider manifest (yaml)",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		req, err := yaml.LoadProviderManifest(cctx.String("file"))
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.RegisterProvider(cctx.Context, req)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var providerHeartbeat = &cli.Command{
	Name:  "heartbeat",
	Usage: "Report liveness, reactivating the provider if it was swept",
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.Heartbeat(cctx.Context)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var providerUpdate = &cli.Command{
	Name:  "update",
	Usage: "Update provider details; omitted flags keep their value",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "endpoint"},
		&cli.UintFlag{Name: "capacity"},
		&cli.StringFlag{
			Name:  "pricing",
			Usage: "provider manifest whose pricing replaces the current one",
		},
	},
	Action: func(cctx *cli.Context) error {
		var req models.UpdateProviderReq
		if cctx.IsSet("name") {
			name := cctx.String("name")
			req.Name = &name
		}
		if cctx.IsSet("endpoint") {
			endpoint := cctx.String("endpoint")
			req.Endpoint = &endpoint
		}
		if cctx.IsSet("capacity") {
			capacity := uint32(cctx.Uint("capacity"))
			req.Capacity = &capacity
		}
		if cctx.IsSet("pricing") {
			manifest, err := yaml.LoadProviderManifest(cctx.String("pricing"))
			if err != nil {
				return err
			}
			req.Pricing = manifest.Pricing
		}

		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.UpdateProvider(cctx.Context, req)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var providerStatus = &cli.Command{
	Name:      "status",
	Usage:     "Set whether the provider accepts jobs",
	ArgsUsage: "<true|false>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify true or false")
		}
		active, err := strconv.ParseBool(cctx.Args().First())
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.UpdateProviderStatus(cctx.Context, active)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var providerInfo = &cli.Command{
	Name:      "info",
	Usage:     "Show a provider",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify provider address")
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		provider, err := mc.GetProvider(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		return printJSON(provider)
	},
}

var providerList = &cli.Command{
	Name:  "list",
	Usage: "List providers by address",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "start-after", Usage: "address to resume after"},
		&cli.UintFlag{Name: "limit", Usage: "page size, at most 100"},
	},
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		providers, page, err := mc.ListProviders(cctx.Context, cctx.String("start-after"), uint32(cctx.Uint("limit")))
		if err != nil {
			return err
		}
		printProviders(providers)
		printPage(page)
		return nil
	},
}

var providerActive = &cli.Command{
	Name:  "active",
	Usage: "List active providers",
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		providers, err := mc.ListActiveProviders(cctx.Context)
		if err != nil {
			return err
		}
		printProviders(providers)
		return nil
	},
}

var providerStats = &cli.Command{
	Name:      "stats",
	Usage:     "Show job counters and reputation of a provider",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify provider address")
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		stats, err := mc.GetProviderStats(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}

		table := util.NewTable("KEY", "VALUE")
		table.Append("Active", strconv.FormatBool(stats.Active))
		table.Append("Active jobs", fmt.Sprintf("%d/%d", stats.ActiveJobs, stats.Capacity))
		table.Append("Completed", strconv.FormatUint(stats.TotalCompleted, 10))
		table.Append("Failed", strconv.FormatUint(stats.TotalFailed, 10))
		table.Append("Reputation", stats.Reputation.String())
		table.Render(os.Stdout)
		return nil
	},
}
