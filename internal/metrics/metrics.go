// Package metrics exposes Prometheus collectors for the market gateway.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lagrangedao/go-computing-market/internal/models"
)

var (
	// OperationsTotal counts market operations by action and result (ok, rejected)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_operations_total",
			Help: "Market operations by action and result",
		},
		[]string{"action", "result"},
	)

	// TransfersTotal counts declared transfers by kind (community_fee, provider_fee, refund, withdrawal)
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_transfers_total",
			Help: "Declared transfers by kind",
		},
		[]string{"kind"},
	)

	// TransferredAmount sums declared transfer amounts by kind, in base denomination
	TransferredAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_transferred_amount_total",
			Help: "Declared transfer amounts by kind (in base denomination)",
		},
		[]string{"kind"},
	)

	SettlementFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_settlement_failures_total",
			Help: "Settlement batches that could not be fully dispatched",
		},
	)

	JobsTimedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_jobs_timed_out_total",
			Help: "Jobs failed by the timeout sweep",
		},
	)

	ProvidersDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_providers_deactivated_total",
			Help: "Providers deactivated by the inactivity sweep",
		},
	)

	// OpenJobs and Escrowed are refreshed by every ledger check
	OpenJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_open_jobs",
			Help: "Jobs currently holding escrow",
		},
	)

	Escrowed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_escrowed_amount",
			Help: "Funds currently held in escrow (in base denomination)",
		},
	)

	DepositBalances = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_deposit_balances_amount",
			Help: "Unspent client deposits (in base denomination)",
		},
	)

	// PendingSettlements counts declared transfers the gateway has not yet accepted
	PendingSettlements = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_pending_settlements",
			Help: "Declared transfers not yet dispatched",
		},
	)

	PendingAmount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_pending_settlement_amount",
			Help: "Funds in declared transfers not yet dispatched (in base denomination)",
		},
	)

	InvariantViolations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_invariant_violations",
			Help: "Violations found by the last ledger check",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_event_subscribers",
			Help: "Connected websocket event subscribers",
		},
	)
)

// RecordOperation accounts for one market operation and the transfers it declared.
func RecordOperation(action string, resp *models.Response, err error) {
	if err != nil {
		OperationsTotal.WithLabelValues(action, "rejected").Inc()
		return
	}
	OperationsTotal.WithLabelValues(action, "ok").Inc()

	for _, t := range resp.Transfers {
		TransfersTotal.WithLabelValues(string(t.Kind)).Inc()
		if amount, ok := amountFloat(t.Coin); ok {
			TransferredAmount.WithLabelValues(string(t.Kind)).Add(amount)
		}
	}

	if result, ok := resp.Data.(*models.SweepResult); ok {
		switch resp.Action {
		case "process_timed_out_jobs":
			JobsTimedOut.Add(float64(result.Count))
		case "process_inactive_providers":
			ProvidersDeactivated.Add(float64(result.Count))
		}
	}
}

// RecordReport publishes the figures of a ledger check.
func RecordReport(report *models.EscrowReport) {
	OpenJobs.Set(float64(report.OpenJobs))
	InvariantViolations.Set(float64(len(report.Violations)))
	PendingSettlements.Set(float64(report.PendingCount))
	if amount, ok := amountFloat(models.Coin{Amount: report.Escrowed}); ok {
		Escrowed.Set(amount)
	}
	if amount, ok := amountFloat(models.Coin{Amount: report.Balances}); ok {
		DepositBalances.Set(amount)
	}
	if amount, ok := amountFloat(models.Coin{Amount: report.Pending}); ok {
		PendingAmount.Set(amount)
	}
}

func RecordSettlement(err error) {
	if err != nil {
		SettlementFailures.Inc()
	}
}

func amountFloat(c models.Coin) (float64, bool) {
	if c.Amount.IsNil() {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.Amount.String(), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}
