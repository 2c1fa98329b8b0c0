package market

import (
	"errors"
	"strings"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// AddressValidator turns an external identifier into its canonical address.
type AddressValidator interface {
	ValidateAddress(addr string) (string, error)
}

// MsgInfo describes who sent a request and which funds came attached to it.
type MsgInfo struct {
	Sender string
	Funds  []models.Coin
}

// Market owns the provider registry, the job ledger, deposit balances and the
// market config. Every mutating operation runs as one ledger transaction: it
// either commits all of its writes together with its declared transfers as
// pending settlements, or fails without touching state.
// The caller supplies the current time; nothing here reads the clock.
type Market struct {
	store     *store.Store
	addresses AddressValidator
}

func NewMarket(st *store.Store, addresses AddressValidator) *Market {
	return &Market{
		store:     st,
		addresses: addresses,
	}
}

type operation func(w store.Writer, cfg *models.Config) (*models.Response, error)

func (m *Market) execute(action string, allowPaused bool, op operation) (*models.Response, error) {
	var resp *models.Response
	err := m.store.Update(func(w store.Writer) error {
		cfg, err := loadConfig(w)
		if err != nil {
			return err
		}
		if cfg.Paused && !allowPaused {
			return ErrContractPaused
		}
		if resp, err = op(w, cfg); err != nil {
			return err
		}
		return recordSettlements(w, resp)
	})
	if err != nil {
		logs.GetLogger().Debugf("market %s rejected, error: %+v", action, err)
		return nil, err
	}

	logs.GetLogger().Infof("market %s committed, transfers: %d", action, len(resp.Transfers))
	return resp, nil
}

func (m *Market) view(fn func(r store.Reader) error) error {
	return m.store.View(fn)
}

func (m *Market) canonical(addr string) (string, error) {
	if strings.TrimSpace(addr) == "" {
		return "", xerrors.Errorf("empty address: %w", ErrInvalidAddress)
	}
	canonical, err := m.addresses.ValidateAddress(addr)
	if err != nil {
		return "", xerrors.Errorf("address %q (%v): %w", addr, err, ErrInvalidAddress)
	}
	return canonical, nil
}

func blockTime(now time.Time) time.Time {
	return now.UTC()
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
