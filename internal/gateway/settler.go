package gateway

import (
	"fmt"
	"strings"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gocelery/gocelery"
	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/models"
)

// Settler carries out transfers declared by committed market operations. It runs
// strictly after the commit; a settlement error never rolls state back, the
// transfer stays pending in the ledger and is offered again later.
type Settler interface {
	Settle(transfers []models.Transfer) error
}

type TaskDispatcher interface {
	DelayTask(taskName string, params ...interface{}) (*gocelery.AsyncResult, error)
}

// CelerySettler hands each transfer to the celery worker pool that owns the
// funds account. The settlement id leads the task arguments so workers can drop
// a transfer they already paid.
type CelerySettler struct {
	dispatcher TaskDispatcher
}

func NewCelerySettler(dispatcher TaskDispatcher) *CelerySettler {
	return &CelerySettler{dispatcher: dispatcher}
}

func (s *CelerySettler) Settle(transfers []models.Transfer) error {
	var failed []string
	for _, t := range transfers {
		_, err := s.dispatcher.DelayTask(constants.TASK_TRANSFER,
			t.Id, t.JobId, string(t.Kind), t.ToAddress, t.Coin.Denom, t.Coin.Amount.String())
		if err != nil {
			logs.GetLogger().Errorf("Failed dispatch transfer, settlement: %d, job: %d, kind: %s, to: %s, amount: %s%s, error: %+v",
				t.Id, t.JobId, t.Kind, t.ToAddress, t.Coin.Amount, t.Coin.Denom, err)
			failed = append(failed, fmt.Sprintf("settlement %d %s", t.Id, t.Kind))
			continue
		}
		logs.GetLogger().Infof("transfer dispatched, settlement: %d, job: %d, kind: %s, to: %s, amount: %s%s",
			t.Id, t.JobId, t.Kind, t.ToAddress, t.Coin.Amount, t.Coin.Denom)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to dispatch %d of %d transfers: %s", len(failed), len(transfers), strings.Join(failed, ", "))
	}
	return nil
}

// LogSettler only records transfers. Used when no broker is configured.
type LogSettler struct{}

func (LogSettler) Settle(transfers []models.Transfer) error {
	for _, t := range transfers {
		logs.GetLogger().Infof("transfer accepted (no broker), settlement: %d, job: %d, kind: %s, to: %s, amount: %s%s",
			t.Id, t.JobId, t.Kind, t.ToAddress, t.Coin.Amount, t.Coin.Denom)
	}
	return nil
}
