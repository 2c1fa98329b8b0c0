package market

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// Settler dispatches declared transfers to the funds gateway.
type Settler interface {
	Settle(transfers []models.Transfer) error
}

// recordSettlements numbers the transfers an operation declared and stores them
// as pending in the operation's own transaction, so a commit never loses track
// of funds it released.
func recordSettlements(w store.Writer, resp *models.Response) error {
	if len(resp.Transfers) == 0 {
		return nil
	}
	totals, err := loadTotals(w)
	if err != nil {
		return err
	}

	var next uint64
	if err = w.Load(NextSettlementIDKey, &next); err != nil {
		if !isNotFound(err) {
			return xerrors.Errorf("loading settlement sequence: %w", err)
		}
		next = 1
	}
	for i := range resp.Transfers {
		resp.Transfers[i].Id = next
		if err = w.Save(PendingSettlementKey(next), resp.Transfers[i]); err != nil {
			return err
		}
		totals.Released = totals.Released.Add(resp.Transfers[i].Coin.Amount)
		next++
	}
	if err = w.Save(NextSettlementIDKey, next); err != nil {
		return err
	}
	return w.Save(TotalsKey, totals)
}

// SettleTransfers hands each transfer to settler on its own and clears the
// pending record of every one it accepted. The rest stay pending and are
// reported in the returned error. A transfer may be dispatched more than once
// if clearing fails, so settlers key on Transfer.Id.
func (m *Market) SettleTransfers(settler Settler, transfers []models.Transfer) (int, error) {
	var settled []uint64
	var failed []string
	for _, t := range transfers {
		if err := settler.Settle([]models.Transfer{t}); err != nil {
			failed = append(failed, fmt.Sprintf("settlement %d (%v)", t.Id, err))
			continue
		}
		settled = append(settled, t.Id)
	}

	if len(settled) > 0 {
		err := m.store.Update(func(w store.Writer) error {
			for _, id := range settled {
				if err := w.Delete(PendingSettlementKey(id)); err != nil {
					return xerrors.Errorf("clearing settlement %d: %w", id, err)
				}
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	if len(failed) > 0 {
		return len(settled), xerrors.Errorf("%d of %d transfers left pending: %s",
			len(failed), len(transfers), strings.Join(failed, ", "))
	}
	return len(settled), nil
}

// PendingSettlements lists up to limit transfers that were declared but not yet
// dispatched, oldest first.
func (m *Market) PendingSettlements(limit int) ([]models.Transfer, error) {
	var pending []models.Transfer
	err := m.view(func(r store.Reader) error {
		return r.Range(PendingSettlementPrefix, nil, func(key, value []byte) (bool, error) {
			var t models.Transfer
			if err := json.Unmarshal(value, &t); err != nil {
				return false, xerrors.Errorf("decoding settlement %d: %w", decodeID(key), err)
			}
			pending = append(pending, t)
			return limit <= 0 || len(pending) < limit, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// RetrySettlements dispatches up to limit pending transfers again.
func (m *Market) RetrySettlements(settler Settler, limit int) (int, error) {
	pending, err := m.PendingSettlements(limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return m.SettleTransfers(settler, pending)
}
