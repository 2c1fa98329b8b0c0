package market

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// SweepTimeouts fails every submitted job whose deadline has passed and refunds
// its client. Jobs in Processing are left alone. A job that cannot be settled,
// e.g. because its provider record is gone, aborts the whole sweep.
func (m *Market) SweepTimeouts(now time.Time) (*models.Response, error) {
	return m.execute("process_timed_out_jobs", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		ts := blockTime(now)

		var expired []*models.Job
		err := w.Range(JobKeyPrefix, nil, func(key, value []byte) (bool, error) {
			var job models.Job
			if err := json.Unmarshal(value, &job); err != nil {
				return false, xerrors.Errorf("decoding job %d: %w", decodeID(key), err)
			}
			if job.Status == models.JobSubmitted && ts.After(job.Deadline) {
				expired = append(expired, &job)
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}

		resp := models.NewResponse("process_timed_out_jobs")
		result := &models.SweepResult{}
		for _, job := range expired {
			if err = failJob(w, job, constants.TIMEOUT_FAILURE_REASON, now); err != nil {
				return nil, err
			}
			resp.AddTransfer(refundTransfer(job, cfg))
			result.JobIds = append(result.JobIds, job.Id)
		}
		result.Count = len(result.JobIds)

		return resp.AddAttribute("timed_out_count", strconv.Itoa(result.Count)).WithData(result), nil
	})
}

// SweepInactive deactivates every active provider whose last heartbeat is older
// than the heartbeat timeout.
func (m *Market) SweepInactive(now time.Time) (*models.Response, error) {
	return m.execute("process_inactive_providers", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		ts := blockTime(now)
		timeout, err := timeoutDuration(cfg.HeartbeatTimeout)
		if err != nil {
			return nil, xerrors.Errorf("heartbeat timeout: %w", err)
		}

		var stale []*models.Provider
		err = w.Range(ProviderKeyPrefix, nil, func(_, value []byte) (bool, error) {
			var provider models.Provider
			if err := json.Unmarshal(value, &provider); err != nil {
				return false, xerrors.Errorf("decoding provider: %w", err)
			}
			if provider.Active && ts.Sub(provider.LastHeartbeat) > timeout {
				stale = append(stale, &provider)
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}

		result := &models.SweepResult{}
		for _, provider := range stale {
			provider.Active = false
			if err = setProvider(w, provider); err != nil {
				return nil, err
			}
			result.Providers = append(result.Providers, provider.Address)
		}
		result.Count = len(result.Providers)

		return models.NewResponse("process_inactive_providers").
			AddAttribute("deactivated_count", strconv.Itoa(result.Count)).
			WithData(result), nil
	})
}
