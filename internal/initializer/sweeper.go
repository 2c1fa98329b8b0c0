package initializer

import (
	"context"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/lagrangedao/go-computing-market/internal/metrics"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/robfig/cron/v3"
	"golang.org/x/xerrors"
)

// Sweeper runs both sweeps on a cron schedule, acting as the "any caller" the
// market relies on for timeouts and provider liveness.
type Sweeper struct {
	node *Node
	cron *cron.Cron
	now  func() time.Time
}

func NewSweeper(node *Node, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		node: node,
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:  time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, xerrors.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const retryBatch = 100

// RunOnce retries settlements left pending, sweeps timed out jobs, then stale
// providers, and settles the refunds.
func (s *Sweeper) RunOnce() {
	now := s.now()

	retried, err := s.node.Market.RetrySettlements(s.node.Settler, retryBatch)
	if retried > 0 || err != nil {
		metrics.RecordSettlement(err)
	}
	if err != nil {
		logs.GetLogger().Errorf("settlement retry incomplete, dispatched: %d, error: %+v", retried, err)
	} else if retried > 0 {
		logs.GetLogger().Infof("dispatched %d pending settlements", retried)
	}

	resp, err := s.node.Market.SweepTimeouts(now)
	metrics.RecordOperation("process_timed_out_jobs", resp, err)
	if err != nil {
		logs.GetLogger().Errorf("timeout sweep failed, error: %+v", err)
	} else {
		s.settle(resp)
		logSweep(resp)
	}

	resp, err = s.node.Market.SweepInactive(now)
	metrics.RecordOperation("process_inactive_providers", resp, err)
	if err != nil {
		logs.GetLogger().Errorf("provider sweep failed, error: %+v", err)
		return
	}
	logSweep(resp)
}

func (s *Sweeper) settle(resp *models.Response) {
	if len(resp.Transfers) == 0 {
		return
	}
	_, err := s.node.Market.SettleTransfers(s.node.Settler, resp.Transfers)
	metrics.RecordSettlement(err)
	if err != nil {
		logs.GetLogger().Errorf("settlement of %s incomplete, error: %+v", resp.Action, err)
	}
}

func logSweep(resp *models.Response) {
	result, ok := resp.Data.(*models.SweepResult)
	if !ok || result.Count == 0 {
		return
	}
	logs.GetLogger().Infof("%s: %d affected, jobs: %v, providers: %v",
		resp.Action, result.Count, result.JobIds, result.Providers)
}
