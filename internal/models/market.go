package models

import (
	"time"

	"cosmossdk.io/math"
	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/shopspring/decimal"
)

type Config struct {
	Admin               string `json:"admin"`
	CommunityPool       string `json:"community_pool"`
	CommunityFeePercent uint64 `json:"community_fee_percent"`
	DefaultJobTimeout   uint64 `json:"default_job_timeout"`
	HeartbeatTimeout    uint64 `json:"heartbeat_timeout"`
	Paused              bool   `json:"paused"`
	Denom               string `json:"denom"`
}

type ServiceCapability struct {
	ServiceType       string `json:"service_type" yaml:"service_type"`
	MaxComplexity     uint64 `json:"max_complexity" yaml:"max_complexity"`
	AvgCompletionTime uint64 `json:"avg_completion_time" yaml:"avg_completion_time"` // seconds
}

type PricingTier struct {
	BasePrice decimal.Decimal `json:"base_price" yaml:"base_price"`
	Unit      string          `json:"unit" yaml:"unit"`
}

type Provider struct {
	Address        string                 `json:"address"`
	Name           string                 `json:"name"`
	Capabilities   []ServiceCapability    `json:"capabilities"`
	Pricing        map[string]PricingTier `json:"pricing"`
	Endpoint       string                 `json:"endpoint"`
	Capacity       uint32                 `json:"capacity"`
	ActiveJobs     uint32                 `json:"active_jobs"`
	TotalCompleted uint64                 `json:"total_completed"`
	TotalFailed    uint64                 `json:"total_failed"`
	Reputation     math.LegacyDec         `json:"reputation"`
	Active         bool                   `json:"active"`
	RegisteredAt   time.Time              `json:"registered_at"`
	LastHeartbeat  time.Time              `json:"last_heartbeat"`
}

type ProviderStats struct {
	Address        string         `json:"address"`
	Capacity       uint32         `json:"capacity"`
	ActiveJobs     uint32         `json:"active_jobs"`
	TotalCompleted uint64         `json:"total_completed"`
	TotalFailed    uint64         `json:"total_failed"`
	Reputation     math.LegacyDec `json:"reputation"`
	Active         bool           `json:"active"`
}

type JobStatus string

const (
	JobSubmitted  JobStatus = JobStatus(constants.JobSubmitted)
	JobProcessing JobStatus = JobStatus(constants.JobProcessing)
	JobCompleted  JobStatus = JobStatus(constants.JobCompleted)
	JobFailed     JobStatus = JobStatus(constants.JobFailed)
	JobCancelled  JobStatus = JobStatus(constants.JobCancelled)
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// IsOpen reports whether the job still holds escrowed funds and a provider slot.
func (s JobStatus) IsOpen() bool {
	return s == JobSubmitted || s == JobProcessing
}

type Job struct {
	Id            uint64     `json:"id"`
	Client        string     `json:"client"`
	Provider      string     `json:"provider"`
	JobType       string     `json:"job_type"`
	Parameters    string     `json:"parameters"`
	PaymentAmount math.Int   `json:"payment_amount"`
	Status        JobStatus  `json:"status"`
	ResultHash    string     `json:"result_hash,omitempty"`
	ResultUrl     string     `json:"result_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Deadline      time.Time  `json:"deadline"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}
