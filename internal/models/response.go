package models

import (
	"cosmossdk.io/math"
)

type Coin struct {
	Denom  string   `json:"denom"`
	Amount math.Int `json:"amount"`
}

type TransferKind string

const (
	TransferCommunityFee TransferKind = "community_fee"
	TransferProviderFee  TransferKind = "provider_fee"
	TransferRefund       TransferKind = "refund"
	TransferWithdrawal   TransferKind = "withdrawal"
)

// Transfer is a funds movement declared by a committed operation. It is recorded
// as a pending settlement under Id in the same commit and cleared once the
// gateway has dispatched it.
type Transfer struct {
	Id        uint64       `json:"id"`
	JobId     uint64       `json:"job_id,omitempty"`
	Kind      TransferKind `json:"kind"`
	ToAddress string       `json:"to_address"`
	Coin      Coin         `json:"coin"`
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Response struct {
	Action     string      `json:"action"`
	Attributes []Attribute `json:"attributes"`
	Transfers  []Transfer  `json:"transfers,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

func NewResponse(action string) *Response {
	return &Response{
		Action:     action,
		Attributes: []Attribute{{Key: "action", Value: action}},
	}
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) AddTransfer(t Transfer) *Response {
	r.Transfers = append(r.Transfers, t)
	return r
}

func (r *Response) WithData(data interface{}) *Response {
	r.Data = data
	return r
}

// Attribute returns the first value stored under key.
func (r *Response) Attribute(key string) (string, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

type SweepResult struct {
	Count     int      `json:"count"`
	JobIds    []uint64 `json:"job_ids,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// Balance is the unspent deposit an address can attach to new jobs.
type Balance struct {
	Address string   `json:"address"`
	Denom   string   `json:"denom"`
	Amount  math.Int `json:"amount"`
}

// Totals are the running sums the ledger keeps for conservation checks.
type Totals struct {
	Deposited math.Int `json:"deposited"`
	Released  math.Int `json:"released"`
}

type EscrowReport struct {
	Denom        string   `json:"denom"`
	OpenJobs     int      `json:"open_jobs"`
	Escrowed     math.Int `json:"escrowed"`
	Balances     math.Int `json:"balances"`
	Deposited    math.Int `json:"deposited"`
	Released     math.Int `json:"released"`
	Pending      math.Int `json:"pending"`
	PendingCount int      `json:"pending_count"`
	Violations   []string `json:"violations,omitempty"`
}
