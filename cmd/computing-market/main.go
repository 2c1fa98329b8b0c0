package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/lagrangedao/go-computing-market/build"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"
)

const (
	FlagRepo = "repo"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:                 "computing-market",
		Usage:                "A computing market matches clients with registered computing providers, holds job payments in escrow and settles them once the provider delivers, fails or times out.",
		EnableBashCompletion: true,
		Version:              build.UserVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagRepo,
				EnvVars: []string{"CM_PATH"},
				Usage:   "market repo path",
				Value:   "~/.swan/market",
			},
		},
		Commands: []*cli.Command{
			initCmd,
			runCmd,
			sweepCmd,
			checkCmd,
			walletCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func repoPath(cctx *cli.Context) (string, error) {
	return homedir.Expand(cctx.String(FlagRepo))
}
