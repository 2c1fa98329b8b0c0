package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
)

func TestSweepTimeouts(t *testing.T) {
	m := newTestMarket(t, 15, 600)
	registerProvider(t, m, provider1, t0)
	id := submitJob(t, m, client1, provider1, 1000, t0)

	// at the deadline the job is not yet expired
	resp, err := m.SweepTimeouts(at(600))
	require.NoError(t, err)
	require.Empty(t, resp.Transfers)
	require.Equal(t, 0, resp.Data.(*models.SweepResult).Count)
	require.Equal(t, models.JobSubmitted, mustJob(t, m, id).Status)

	resp, err = m.SweepTimeouts(at(601))
	require.NoError(t, err)
	result := resp.Data.(*models.SweepResult)
	require.Equal(t, 1, result.Count)
	require.Equal(t, []uint64{id}, result.JobIds)
	count, _ := resp.Attribute("timed_out_count")
	require.Equal(t, "1", count)
	requireTransfers(t, []models.Transfer{
		{JobId: id, Kind: models.TransferRefund, ToAddress: client1, Coin: models.Coin{Denom: "umedas", Amount: mustJob(t, m, id).PaymentAmount}},
	}, resp.Transfers)

	job := mustJob(t, m, id)
	require.Equal(t, models.JobFailed, job.Status)
	require.Equal(t, "Job timed out", job.FailureReason)
	require.True(t, job.CompletedAt.Equal(at(601)))

	p := mustProvider(t, m, provider1)
	require.Equal(t, uint32(0), p.ActiveJobs)
	require.Equal(t, uint64(1), p.TotalFailed)

	// a second sweep finds nothing left
	resp, err = m.SweepTimeouts(at(700))
	require.NoError(t, err)
	require.Equal(t, 0, resp.Data.(*models.SweepResult).Count)
	require.Empty(t, resp.Transfers)
	require.Equal(t, uint64(1), mustProvider(t, m, provider1).TotalFailed)
	requireClean(t, m)
}

func TestSweepTimeoutsSkipsProcessingAndTerminalJobs(t *testing.T) {
	m := newTestMarket(t, 15, 600)
	registerProvider(t, m, provider1, t0)
	processing := submitJob(t, m, client1, provider1, 100, t0)
	completed := submitJob(t, m, client1, provider1, 100, t0)
	expired := submitJob(t, m, client2, provider1, 100, t0)

	err := m.store.Update(func(w store.Writer) error {
		job, err := getJob(w, processing)
		if err != nil {
			return err
		}
		job.Status = models.JobProcessing
		return setJob(w, job)
	})
	require.NoError(t, err)
	_, err = m.CompleteJob(at(10), sender(provider1), completed, models.CompleteJobReq{})
	require.NoError(t, err)

	resp, err := m.SweepTimeouts(at(5000))
	require.NoError(t, err)
	require.Equal(t, []uint64{expired}, resp.Data.(*models.SweepResult).JobIds)
	require.Equal(t, models.JobProcessing, mustJob(t, m, processing).Status)
	require.Equal(t, models.JobCompleted, mustJob(t, m, completed).Status)
	require.Equal(t, uint32(1), mustProvider(t, m, provider1).ActiveJobs)
}

func TestSweepTimeoutsAbortsOnMissingProvider(t *testing.T) {
	m := newTestMarket(t, 15, 600)
	registerProvider(t, m, provider1, t0)
	registerProvider(t, m, provider2, t0)
	first := submitJob(t, m, client1, provider2, 100, t0)
	orphan := submitJob(t, m, client1, provider1, 100, t0)

	err := m.store.Update(func(w store.Writer) error {
		return w.Delete(ProviderKey(provider1))
	})
	require.NoError(t, err)

	_, err = m.SweepTimeouts(at(601))
	require.ErrorIs(t, err, ErrProviderNotFound)

	// the whole sweep rolled back, including the job whose provider exists
	require.Equal(t, models.JobSubmitted, mustJob(t, m, first).Status)
	require.Equal(t, models.JobSubmitted, mustJob(t, m, orphan).Status)
	require.Equal(t, uint32(1), mustProvider(t, m, provider2).ActiveJobs)
}

func TestSweepInactive(t *testing.T) {
	m := newTestMarket(t, 15, 600)
	registerProvider(t, m, provider1, t0)
	registerProvider(t, m, provider2, t0)
	registerProvider(t, m, provider3, t0)

	_, err := m.Heartbeat(at(200), sender(provider2))
	require.NoError(t, err)
	_, err = m.UpdateProviderStatus(at(10), sender(provider3), false)
	require.NoError(t, err)

	// exactly at the timeout nobody is stale
	resp, err := m.SweepInactive(at(300))
	require.NoError(t, err)
	require.Equal(t, 0, resp.Data.(*models.SweepResult).Count)

	resp, err = m.SweepInactive(at(301))
	require.NoError(t, err)
	result := resp.Data.(*models.SweepResult)
	require.Equal(t, []string{provider1}, result.Providers)
	count, _ := resp.Attribute("deactivated_count")
	require.Equal(t, "1", count)
	require.Empty(t, resp.Transfers)

	require.False(t, mustProvider(t, m, provider1).Active)
	require.True(t, mustProvider(t, m, provider2).Active)
	require.False(t, mustProvider(t, m, provider3).Active)

	resp, err = m.SweepInactive(at(301))
	require.NoError(t, err)
	require.Equal(t, 0, resp.Data.(*models.SweepResult).Count)

	resp, err = m.SweepInactive(at(501))
	require.NoError(t, err)
	require.Equal(t, []string{provider2}, resp.Data.(*models.SweepResult).Providers)
}

func TestSweepInactiveKeepsOpenJobs(t *testing.T) {
	m := newTestMarket(t, 15, 3600)
	registerProvider(t, m, provider1, t0)
	id := submitJob(t, m, client1, provider1, 100, t0)

	_, err := m.SweepInactive(at(1000))
	require.NoError(t, err)
	require.False(t, mustProvider(t, m, provider1).Active)

	// the assigned provider can still settle its job
	_, err = m.CompleteJob(at(1001), sender(provider1), id, models.CompleteJobReq{})
	require.NoError(t, err)
	requireClean(t, m)
}
