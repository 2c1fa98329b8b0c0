package metrics

import (
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-computing-market/internal/models"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(TransferredAmount.WithLabelValues("refund"))
	timedOut := testutil.ToFloat64(JobsTimedOut)

	resp := models.NewResponse("process_timed_out_jobs").
		AddTransfer(models.Transfer{JobId: 1, Kind: models.TransferRefund, Coin: models.Coin{Denom: "umedas", Amount: math.NewInt(250)}}).
		AddTransfer(models.Transfer{JobId: 2, Kind: models.TransferRefund, Coin: models.Coin{Denom: "umedas", Amount: math.NewInt(750)}}).
		WithData(&models.SweepResult{Count: 2, JobIds: []uint64{1, 2}})
	RecordOperation(resp.Action, resp, nil)

	require.Equal(t, before+1000, testutil.ToFloat64(TransferredAmount.WithLabelValues("refund")))
	require.Equal(t, timedOut+2, testutil.ToFloat64(JobsTimedOut))
	require.Equal(t, float64(1), testutil.ToFloat64(OperationsTotal.WithLabelValues("process_timed_out_jobs", "ok")))

	RecordOperation("submit_job", nil, errors.New("no payment"))
	require.Equal(t, float64(1), testutil.ToFloat64(OperationsTotal.WithLabelValues("submit_job", "rejected")))
}

func TestRecordReport(t *testing.T) {
	RecordReport(&models.EscrowReport{
		OpenJobs:     3,
		Escrowed:     math.NewInt(4200),
		Balances:     math.NewInt(800),
		Pending:      math.NewInt(90),
		PendingCount: 2,
		Violations:   []string{"x"},
	})

	require.Equal(t, float64(3), testutil.ToFloat64(OpenJobs))
	require.Equal(t, float64(4200), testutil.ToFloat64(Escrowed))
	require.Equal(t, float64(800), testutil.ToFloat64(DepositBalances))
	require.Equal(t, float64(2), testutil.ToFloat64(PendingSettlements))
	require.Equal(t, float64(90), testutil.ToFloat64(PendingAmount))
	require.Equal(t, float64(1), testutil.ToFloat64(InvariantViolations))
}
