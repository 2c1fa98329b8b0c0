package market

import (
	"strconv"
	"time"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// SubmitJob escrows the attached payment in a new job assigned to the chosen
// provider. The payment is taken from the client's deposit balance; an amount the
// balance does not cover is rejected as unpaid.
func (m *Market) SubmitJob(now time.Time, info MsgInfo, req models.SubmitJobReq) (*models.Response, error) {
	return m.execute("submit_job", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		client, err := m.canonical(info.Sender)
		if err != nil {
			return nil, err
		}
		providerAddr, err := m.canonical(req.Provider)
		if err != nil {
			return nil, err
		}

		provider, err := getProvider(w, providerAddr)
		if err != nil {
			return nil, err
		}
		if !provider.Active {
			return nil, xerrors.Errorf("provider %s: %w", providerAddr, ErrProviderNotActive)
		}

		payment, err := findPayment(info.Funds, cfg.Denom)
		if err != nil {
			return nil, err
		}
		if _, err = debitBalance(w, client, payment, ErrNoPayment); err != nil {
			return nil, err
		}
		ts := blockTime(now)
		deadline, err := addSeconds(ts, cfg.DefaultJobTimeout)
		if err != nil {
			return nil, xerrors.Errorf("job deadline: %w", err)
		}

		id, err := nextJobID(w)
		if err != nil {
			return nil, err
		}

		job := &models.Job{
			Id:            id,
			Client:        client,
			Provider:      providerAddr,
			JobType:       req.JobType,
			Parameters:    req.Parameters,
			PaymentAmount: payment,
			Status:        models.JobSubmitted,
			CreatedAt:     ts,
			Deadline:      deadline,
		}
		if err = setJob(w, job); err != nil {
			return nil, err
		}
		if err = w.Save(JobsByProviderKey(providerAddr, id), struct{}{}); err != nil {
			return nil, err
		}
		if err = w.Save(JobsByClientKey(client, id), struct{}{}); err != nil {
			return nil, err
		}

		provider.ActiveJobs++
		if err = setProvider(w, provider); err != nil {
			return nil, err
		}

		return models.NewResponse("submit_job").
			AddAttribute("job_id", strconv.FormatUint(id, 10)).
			AddAttribute("provider", providerAddr).
			AddAttribute("client", client).
			AddAttribute("payment", payment.String()).
			WithData(job), nil
	})
}

// CompleteJob records the result and pays out the escrow, split between the
// community pool and the provider.
func (m *Market) CompleteJob(now time.Time, info MsgInfo, jobID uint64, req models.CompleteJobReq) (*models.Response, error) {
	return m.execute("complete_job", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		job, err := m.providerJob(w, info, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status != models.JobSubmitted && job.Status != models.JobProcessing {
			return nil, xerrors.Errorf("job %d is %s: %w", jobID, job.Status, ErrInvalidJobState)
		}

		transfers, communityFee, providerFee, err := settlementTransfers(job, cfg)
		if err != nil {
			return nil, err
		}

		ts := blockTime(now)
		job.Status = models.JobCompleted
		job.ResultHash = req.ResultHash
		job.ResultUrl = req.ResultUrl
		job.CompletedAt = &ts
		if err = setJob(w, job); err != nil {
			return nil, err
		}

		provider, err := getProvider(w, job.Provider)
		if err != nil {
			return nil, err
		}
		recordCompletion(provider)
		if err = setProvider(w, provider); err != nil {
			return nil, err
		}

		resp := models.NewResponse("complete_job").
			AddAttribute("job_id", strconv.FormatUint(jobID, 10)).
			AddAttribute("provider_payment", providerFee.String()).
			AddAttribute("community_fee", communityFee.String()).
			WithData(job)
		for _, t := range transfers {
			resp.AddTransfer(t)
		}
		return resp, nil
	})
}

// FailJob lets the assigned provider give up on a job it has not finished.
// The client is refunded in full.
func (m *Market) FailJob(now time.Time, info MsgInfo, jobID uint64, req models.FailJobReq) (*models.Response, error) {
	return m.execute("fail_job", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		job, err := m.providerJob(w, info, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status != models.JobSubmitted {
			return nil, xerrors.Errorf("job %d is %s: %w", jobID, job.Status, ErrInvalidJobState)
		}

		if err = failJob(w, job, req.Reason, now); err != nil {
			return nil, err
		}

		return models.NewResponse("fail_job").
			AddAttribute("job_id", strconv.FormatUint(jobID, 10)).
			AddAttribute("reason", req.Reason).
			AddAttribute("refund", job.PaymentAmount.String()).
			AddTransfer(refundTransfer(job, cfg)).
			WithData(job), nil
	})
}

// CancelJob lets the client withdraw a job still waiting on the provider, within
// the cancel window.
func (m *Market) CancelJob(now time.Time, info MsgInfo, jobID uint64) (*models.Response, error) {
	return m.execute("cancel_job", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		caller, err := m.canonical(info.Sender)
		if err != nil {
			return nil, err
		}
		job, err := getJob(w, jobID)
		if err != nil {
			return nil, err
		}
		if job.Client != caller {
			return nil, xerrors.Errorf("job %d belongs to %s: %w", jobID, job.Client, ErrUnauthorized)
		}
		if job.Status != models.JobSubmitted {
			return nil, xerrors.Errorf("job %d is %s: %w", jobID, job.Status, ErrInvalidJobState)
		}

		ts := blockTime(now)
		if ts.Sub(job.CreatedAt) > constants.CANCEL_WINDOW_SECONDS*time.Second {
			return nil, xerrors.Errorf("job %d created at %s: %w", jobID, job.CreatedAt.Format(time.RFC3339), ErrCancelWindowExpired)
		}

		job.Status = models.JobCancelled
		job.CompletedAt = &ts
		if err = setJob(w, job); err != nil {
			return nil, err
		}

		provider, err := getProvider(w, job.Provider)
		if err != nil {
			return nil, err
		}
		releaseSlot(provider)
		if err = setProvider(w, provider); err != nil {
			return nil, err
		}

		return models.NewResponse("cancel_job").
			AddAttribute("job_id", strconv.FormatUint(jobID, 10)).
			AddAttribute("refund", job.PaymentAmount.String()).
			AddTransfer(refundTransfer(job, cfg)).
			WithData(job), nil
	})
}

func (m *Market) GetJob(jobID uint64) (*models.Job, error) {
	var job *models.Job
	err := m.view(func(r store.Reader) error {
		var err error
		job, err = getJob(r, jobID)
		return err
	})
	return job, err
}

func (m *Market) providerJob(r store.Reader, info MsgInfo, jobID uint64) (*models.Job, error) {
	caller, err := m.canonical(info.Sender)
	if err != nil {
		return nil, err
	}
	job, err := getJob(r, jobID)
	if err != nil {
		return nil, err
	}
	if job.Provider != caller {
		return nil, xerrors.Errorf("job %d is assigned to %s: %w", jobID, job.Provider, ErrUnauthorized)
	}
	return job, nil
}

// failJob moves a job to Failed and charges the failure to its provider. Used by
// both provider-initiated failure and the timeout sweep.
func failJob(w store.Writer, job *models.Job, reason string, now time.Time) error {
	ts := blockTime(now)
	job.Status = models.JobFailed
	job.FailureReason = reason
	job.CompletedAt = &ts
	if err := setJob(w, job); err != nil {
		return err
	}

	provider, err := getProvider(w, job.Provider)
	if err != nil {
		return xerrors.Errorf("job %d: %w", job.Id, err)
	}
	recordFailure(provider)
	return setProvider(w, provider)
}

func nextJobID(w store.Writer) (uint64, error) {
	var id uint64
	if err := w.Load(NextJobIDKey, &id); err != nil {
		if !isNotFound(err) {
			return 0, xerrors.Errorf("loading job sequence: %w", err)
		}
		id = 1
	}
	if err := w.Save(NextJobIDKey, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

func getJob(r store.Reader, jobID uint64) (*models.Job, error) {
	var job models.Job
	if err := r.Load(JobKey(jobID), &job); err != nil {
		if isNotFound(err) {
			return nil, xerrors.Errorf("job %d: %w", jobID, ErrJobNotFound)
		}
		return nil, xerrors.Errorf("loading job %d: %w", jobID, err)
	}
	return &job, nil
}

func setJob(w store.Writer, job *models.Job) error {
	return w.Save(JobKey(job.Id), job)
}
