package market

import (
	"strings"
	"time"

	"cosmossdk.io/math"

	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// Deposit credits an inbound transfer to an address. Only the admin, acting for
// the funds gateway that received it, may credit deposits, and each gateway
// reference is credited at most once.
func (m *Market) Deposit(now time.Time, info MsgInfo, req models.DepositReq) (*models.Response, error) {
	return m.execute("deposit", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		if err := m.requireAdmin(cfg, info.Sender); err != nil {
			return nil, err
		}
		addr, err := m.canonical(req.Address)
		if err != nil {
			return nil, err
		}
		if req.Amount.IsNil() || !req.Amount.IsPositive() {
			return nil, xerrors.Errorf("deposit amount must be positive: %w", ErrInvalidDeposit)
		}
		ref := strings.TrimSpace(req.Reference)
		if ref == "" {
			return nil, xerrors.Errorf("deposit reference is required: %w", ErrInvalidDeposit)
		}

		seen, err := w.Has(DepositRefKey(ref))
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, xerrors.Errorf("reference %s: %w", ref, ErrDuplicateDeposit)
		}
		if err = w.Save(DepositRefKey(ref), blockTime(now)); err != nil {
			return nil, err
		}

		balance, err := getBalance(w, addr)
		if err != nil {
			return nil, err
		}
		balance = balance.Add(req.Amount)
		if err = w.Save(BalanceKey(addr), balance); err != nil {
			return nil, err
		}

		totals, err := loadTotals(w)
		if err != nil {
			return nil, err
		}
		totals.Deposited = totals.Deposited.Add(req.Amount)
		if err = w.Save(TotalsKey, totals); err != nil {
			return nil, err
		}

		return models.NewResponse("deposit").
			AddAttribute("address", addr).
			AddAttribute("amount", req.Amount.String()).
			AddAttribute("reference", ref).
			WithData(&models.Balance{Address: addr, Denom: cfg.Denom, Amount: balance}), nil
	})
}

// Withdraw pays unspent deposit back to its owner.
func (m *Market) Withdraw(info MsgInfo, req models.WithdrawReq) (*models.Response, error) {
	return m.execute("withdraw", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		owner, err := m.canonical(info.Sender)
		if err != nil {
			return nil, err
		}
		if req.Amount.IsNil() || !req.Amount.IsPositive() {
			return nil, xerrors.Errorf("withdrawal amount must be positive: %w", ErrInvalidDeposit)
		}

		balance, err := debitBalance(w, owner, req.Amount, ErrInsufficientBalance)
		if err != nil {
			return nil, err
		}

		return models.NewResponse("withdraw").
			AddAttribute("address", owner).
			AddAttribute("amount", req.Amount.String()).
			AddTransfer(models.Transfer{
				Kind:      models.TransferWithdrawal,
				ToAddress: owner,
				Coin:      models.Coin{Denom: cfg.Denom, Amount: req.Amount},
			}).
			WithData(&models.Balance{Address: owner, Denom: cfg.Denom, Amount: balance}), nil
	})
}

func (m *Market) GetBalance(address string) (*models.Balance, error) {
	addr, err := m.canonical(address)
	if err != nil {
		return nil, err
	}
	out := &models.Balance{Address: addr}
	err = m.view(func(r store.Reader) error {
		cfg, err := loadConfig(r)
		if err != nil {
			return err
		}
		out.Denom = cfg.Denom
		out.Amount, err = getBalance(r, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getBalance(r store.Reader, addr string) (math.Int, error) {
	var balance math.Int
	if err := r.Load(BalanceKey(addr), &balance); err != nil {
		if isNotFound(err) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, xerrors.Errorf("loading balance of %s: %w", addr, err)
	}
	return balance, nil
}

// debitBalance takes amount from addr's deposit, failing with short when the
// balance does not cover it. An emptied balance is removed.
func debitBalance(w store.Writer, addr string, amount math.Int, short error) (math.Int, error) {
	balance, err := getBalance(w, addr)
	if err != nil {
		return math.Int{}, err
	}
	if balance.LT(amount) {
		return math.Int{}, xerrors.Errorf("balance of %s is %s, needs %s: %w", addr, balance, amount, short)
	}
	balance = balance.Sub(amount)
	if balance.IsZero() {
		err = w.Delete(BalanceKey(addr))
	} else {
		err = w.Save(BalanceKey(addr), balance)
	}
	if err != nil {
		return math.Int{}, err
	}
	return balance, nil
}

func loadTotals(r store.Reader) (*models.Totals, error) {
	totals := &models.Totals{Deposited: math.ZeroInt(), Released: math.ZeroInt()}
	if err := r.Load(TotalsKey, totals); err != nil && !isNotFound(err) {
		return nil, xerrors.Errorf("loading totals: %w", err)
	}
	return totals, nil
}
