package models

import (
	"cosmossdk.io/math"
)

type RegisterProviderReq struct {
	Name         string                 `json:"name" yaml:"name"`
	Capabilities []ServiceCapability    `json:"capabilities" yaml:"capabilities"`
	Pricing      map[string]PricingTier `json:"pricing" yaml:"pricing"`
	Endpoint     string                 `json:"endpoint" yaml:"endpoint"`
}

// UpdateProviderReq carries optional fields; nil leaves the stored value untouched.
type UpdateProviderReq struct {
	Name     *string                `json:"name,omitempty"`
	Endpoint *string                `json:"endpoint,omitempty"`
	Pricing  map[string]PricingTier `json:"pricing,omitempty"`
	Capacity *uint32                `json:"capacity,omitempty"`
}

type ProviderStatusReq struct {
	Active bool `json:"active"`
}

type SubmitJobReq struct {
	Provider   string `json:"provider"`
	JobType    string `json:"job_type"`
	Parameters string `json:"parameters"`
}

type CompleteJobReq struct {
	ResultHash string `json:"result_hash"`
	ResultUrl  string `json:"result_url"`
}

type FailJobReq struct {
	Reason string `json:"reason"`
}

// DepositReq credits an inbound transfer the funds gateway has confirmed.
// Reference identifies that transfer and can be credited only once.
type DepositReq struct {
	Address   string   `json:"address"`
	Amount    math.Int `json:"amount"`
	Reference string   `json:"reference"`
}

type WithdrawReq struct {
	Amount math.Int `json:"amount"`
}

type UpdateConfigReq struct {
	DefaultJobTimeout *uint64 `json:"default_job_timeout,omitempty"`
	HeartbeatTimeout  *uint64 `json:"heartbeat_timeout,omitempty"`
}

type InitMarketReq struct {
	Admin               string
	CommunityPool       string
	CommunityFeePercent uint64
	DefaultJobTimeout   uint64
	HeartbeatTimeout    uint64
	Denom               string
}
