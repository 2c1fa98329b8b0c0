package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/lagrangedao/go-computing-market/build"
	"github.com/lagrangedao/go-computing-market/internal/client"
	"github.com/lagrangedao/go-computing-market/wallet"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
)

const (
	FlagRepo   = "repo"
	FlagServer = "server"
	FlagFrom   = "from"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:                 "cm-cli",
		Usage:                "A computing market cli is a client tool for providers and clients of a market node.",
		EnableBashCompletion: true,
		Version:              build.UserVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagRepo,
				EnvVars: []string{"CM_PATH"},
				Usage:   "market repo path holding the keystore",
				Value:   "~/.swan/market",
			},
			&cli.StringFlag{
				Name:    FlagServer,
				EnvVars: []string{"CM_SERVER"},
				Usage:   "market node url",
				Value:   "http://127.0.0.1:8085",
			},
			&cli.StringFlag{
				Name:    FlagFrom,
				EnvVars: []string{"CM_FROM"},
				Usage:   "wallet address that signs mutations",
			},
		},
		Commands: []*cli.Command{
			providerCmd,
			jobCmd,
			fundsCmd,
			adminCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// marketClient builds a client; with --from set it signs through the local keystore.
func marketClient(cctx *cli.Context) (*client.Client, error) {
	from := cctx.String(FlagFrom)
	if from == "" {
		return client.New(cctx.String(FlagServer), nil), nil
	}

	repo, err := homedir.Expand(cctx.String(FlagRepo))
	if err != nil {
		return nil, err
	}
	localWallet, err := wallet.SetupWallet(repo, wallet.WalletRepo)
	if err != nil {
		return nil, err
	}
	return client.New(cctx.String(FlagServer), client.NewWalletSigner(localWallet, from)), nil
}
