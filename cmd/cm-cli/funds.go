package main

import (
	"fmt"
	"os"
	"strconv"

	"cosmossdk.io/math"
	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/urfave/cli/v2"
)

var fundsCmd = &cli.Command{
	Name:  "funds",
	Usage: "Manage deposit balances and settlements",
	Subcommands: []*cli.Command{
		fundsCredit,
		fundsWithdraw,
		fundsBalance,
		fundsPending,
	},
}

func amountArg(cctx *cli.Context, i int) (math.Int, error) {
	amount, ok := math.NewIntFromString(cctx.Args().Get(i))
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount: %s", cctx.Args().Get(i))
	}
	return amount, nil
}

var fundsCredit = &cli.Command{
	Name:      "credit",
	Usage:     "Credit a confirmed inbound transfer to an address (admin only)",
	ArgsUsage: "<address> <amount>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "ref", Usage: "gateway reference of the inbound transfer", Required: true},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("need two params: the address and amount")
		}
		amount, err := amountArg(cctx, 1)
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.Deposit(cctx.Context, models.DepositReq{
			Address:   cctx.Args().First(),
			Amount:    amount,
			Reference: cctx.String("ref"),
		})
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var fundsWithdraw = &cli.Command{
	Name:      "withdraw",
	Usage:     "Pay unspent deposit back to the signing address",
	ArgsUsage: "<amount>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify the amount")
		}
		amount, err := amountArg(cctx, 0)
		if err != nil {
			return err
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		resp, err := mc.Withdraw(cctx.Context, amount)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

var fundsBalance = &cli.Command{
	Name:      "balance",
	Usage:     "Show the unspent deposit of an address",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify the address")
		}
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		balance, err := mc.GetBalance(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s%s\n", gateway.Checksum(balance.Address), balance.Amount, balance.Denom)
		return nil
	},
}

var fundsPending = &cli.Command{
	Name:  "pending",
	Usage: "List transfers the gateway has not yet accepted",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "limit", Value: 50},
	},
	Action: func(cctx *cli.Context) error {
		mc, err := marketClient(cctx)
		if err != nil {
			return err
		}
		pending, err := mc.PendingSettlements(cctx.Context, uint32(cctx.Uint("limit")))
		if err != nil {
			return err
		}
		table := util.NewTable("ID", "JOB", "KIND", "AMOUNT", "TO")
		for _, t := range pending {
			table.Append(
				strconv.FormatUint(t.Id, 10),
				strconv.FormatUint(t.JobId, 10),
				string(t.Kind),
				t.Coin.Amount.String()+t.Coin.Denom,
				gateway.Checksum(t.ToAddress),
			)
		}
		table.Render(os.Stdout)
		return nil
	},
}
