package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/lagrangedao/go-computing-market/wallet"
	"github.com/urfave/cli/v2"
)

var walletCmd = &cli.Command{
	Name:  "wallet",
	Usage: "Manage the keys used to sign market requests",
	Subcommands: []*cli.Command{
		walletNew,
		walletList,
		walletExport,
		walletImport,
		walletDelete,
		walletSign,
		walletVerify,
	},
}

func openWallet(cctx *cli.Context) (*wallet.LocalWallet, context.Context, context.CancelFunc, error) {
	repo, err := repoPath(cctx)
	if err != nil {
		return nil, nil, nil, err
	}
	localWallet, err := wallet.SetupWallet(repo, wallet.WalletRepo)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := util.ReqContext(cctx.Context)
	return localWallet, ctx, cancel, nil
}

var walletNew = &cli.Command{
	Name:  "new",
	Usage: "Generate a new key",
	Action: func(cctx *cli.Context) error {
		localWallet, ctx, cancel, err := openWallet(cctx)
		if err != nil {
			return err
		}
		defer cancel()

		addr, err := localWallet.WalletNew(ctx)
		if err != nil {
			return err
		}
		fmt.Println(addr)
		return nil
	},
}

var walletList = &cli.Command{
	Name:  "list",
	Usage: "List wallet addresses",
	Action: func(cctx *cli.Context) error {
		localWallet, ctx, cancel, err := openWallet(cctx)
		if err != nil {
			return err
		}
		defer cancel()

		addrs, err := localWallet.WalletList(ctx)
		if err != nil {
			return err
		}
		table := util.NewTable("ADDRESS")
		for _, addr := range addrs {
			table.Append(addr)
		}
		table.Render(os.Stdout)
		return nil
	},
}

var walletExport = &cli.Command{
	Name:      "export",
	Usage:     "Export a private key",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if !cctx.Args().Present() {
			return fmt.Errorf("must specify key to export")
		}
		localWallet, ctx, cancel, err := openWallet(cctx)
		if err != nil {
			return err
		}
		defer cancel()

		ki, err := localWallet.WalletExport(ctx, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(ki.PrivateKey)
		return nil
	},
}

var walletImport = &cli.Command{
	Name:      "import",
	Usage:     "Import a private key",
	ArgsUsage: "[<path> (optional, will read from stdin if omitted)]",
	Action: func(cctx *cli.Context) error {
		localWallet, ctx, cancel, err := openWallet(cctx)
		if err != nil {
			return err
		}
		defer cancel()

		var inpdata []byte
		if !cctx.Args().Present() || cctx.Args().First() == "-" {
			reader := bufio.NewReader(os.Stdin)
			fmt.Print("Enter private key: ")
			inpdata, err = reader.ReadBytes('\n')
			if err != nil {
				return err
			}
		} else {
			inpdata, err = os.ReadFile(cctx.Args().First())
			if err != nil {
				return err
			}
		}

		addr, err := localWallet.WalletImport(ctx, &wallet.KeyInfo{
			PrivateKey: strings.TrimSpace(string(inpdata)),
		})
		if err != nil {
			return err
		}
		fmt.Printf("imported key %s successfully!\n", addr)
		return nil
	},
}

var walletDelete = &cli.Command{
	Name:      "delete",
	Usage:     "Delete a key from the wallet",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify address to delete")
		}
		localWallet, ctx, cancel, err := openWallet(cctx)
		if err != nil {
			return err
		}
		defer cancel()

		return localWallet.WalletDelete(ctx, cctx.Args().First())
	},
}

var walletSign = &cli.Command{
	Name:      "sign",
	Usage:     "Sign a message",
	ArgsUsage: "<signing address> <message>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("must specify signing address and message to sign")
		}
		addr := cctx.Args().First()
		msg := cctx.Args().Get(1)
		if strings.TrimSpace(msg) == "" {
			return fmt.Errorf("failed to parse message")
		}

		localWallet, ctx, cancel, err := openWallet(cctx)
		if err != nil {
			return err
		}
		defer cancel()

		sig, err := localWallet.WalletSign(ctx, addr, []byte(msg))
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil
	},
}

var walletVerify = &cli.Command{
	Name:      "verify",
	Usage:     "Verify the signature of a message",
	ArgsUsage: "<signing address> <signature> <message>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 3 {
			return fmt.Errorf("incorrect number of arguments, requires 3 parameters")
		}
		sigBytes, err := hexutil.Decode(cctx.Args().Get(1))
		if err != nil {
			return err
		}

		localWallet, ctx, cancel, err := openWallet(cctx)
		if err != nil {
			return err
		}
		defer cancel()

		pass, err := localWallet.WalletVerify(ctx, cctx.Args().First(), sigBytes, []byte(cctx.Args().Get(2)))
		if err != nil {
			return err
		}
		fmt.Println(pass)
		return nil
	},
}
