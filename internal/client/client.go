package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/api"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/lagrangedao/go-computing-market/wallet"
	"golang.org/x/xerrors"
)

const marketPath = "/api/v1/market"

// Signer produces the request signature for one address.
type Signer interface {
	Address() string
	Sign(ctx context.Context, msg []byte) (string, error)
}

// KeySigner signs with a raw private key.
type KeySigner struct {
	address    string
	privateKey string
}

func NewKeySigner(privateKey string) (*KeySigner, error) {
	_, pub, err := wallet.ToPublic(privateKey)
	if err != nil {
		return nil, err
	}
	return &KeySigner{address: crypto.PubkeyToAddress(*pub).Hex(), privateKey: privateKey}, nil
}

func (s *KeySigner) Address() string { return s.address }

func (s *KeySigner) Sign(_ context.Context, msg []byte) (string, error) {
	sig, err := wallet.Sign(s.privateKey, msg)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// WalletSigner signs with a key held in the local keystore.
type WalletSigner struct {
	address string
	wallet  *wallet.LocalWallet
}

func NewWalletSigner(w *wallet.LocalWallet, address string) *WalletSigner {
	return &WalletSigner{address: address, wallet: w}
}

func (s *WalletSigner) Address() string { return s.address }

func (s *WalletSigner) Sign(ctx context.Context, msg []byte) (string, error) {
	return s.wallet.WalletSign(ctx, s.address, msg)
}

// APIError is a non-success envelope returned by the market.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market returned %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Client talks to a market node. Queries are unsigned; mutations require a signer.
type Client struct {
	baseURL string
	http    *http.Client
	signer  Signer
	now     func() time.Time
}

func New(server string, signer Signer) *Client {
	return &Client{
		baseURL: strings.TrimRight(server, "/") + marketPath,
		http:    &http.Client{Timeout: 30 * time.Second},
		signer:  signer,
		now:     time.Now,
	}
}

type envelope struct {
	Status   string          `json:"status"`
	Code     int             `json:"code"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message"`
	PageInfo *util.PageInfo  `json:"page_info"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, signed bool, out interface{}) (*util.PageInfo, error) {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if c.signer == nil {
			return nil, xerrors.New("a signing address is required for this request")
		}
		ts := strconv.FormatInt(c.now().Unix(), 10)
		sig, err := c.signer.Sign(ctx, wallet.RequestMessage(ts, method, req.URL.Path, raw))
		if err != nil {
			return nil, xerrors.Errorf("signing request: %w", err)
		}
		req.Header.Set(constants.HEADER_ADDRESS, c.signer.Address())
		req.Header.Set(constants.HEADER_TIMESTAMP, ts)
		req.Header.Set(constants.HEADER_SIGNATURE, sig)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err = json.Unmarshal(data, &env); err != nil {
		return nil, xerrors.Errorf("decoding %s %s response (http %d): %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != util.SuccessCode {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err = json.Unmarshal(env.Data, out); err != nil {
			return nil, xerrors.Errorf("decoding %s %s data: %w", method, path, err)
		}
	}
	return env.PageInfo, nil
}

func (c *Client) mutate(ctx context.Context, method, path string, body interface{}) (*models.Response, error) {
	var resp models.Response
	if _, err := c.do(ctx, method, path, body, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RegisterProvider(ctx context.Context, req models.RegisterProviderReq) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/providers", req)
}

func (c *Client) Heartbeat(ctx context.Context) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/providers/heartbeat", nil)
}

func (c *Client) UpdateProvider(ctx context.Context, req models.UpdateProviderReq) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPut, "/providers", req)
}

func (c *Client) UpdateProviderStatus(ctx context.Context, active bool) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPut, "/providers/status", models.ProviderStatusReq{Active: active})
}

func (c *Client) SubmitJob(ctx context.Context, req models.SubmitJobReq, funds []models.Coin) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/jobs", api.SubmitJobBody{SubmitJobReq: req, Funds: funds})
}

func (c *Client) Deposit(ctx context.Context, req models.DepositReq) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/deposits", req)
}

func (c *Client) Withdraw(ctx context.Context, amount math.Int) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/withdrawals", models.WithdrawReq{Amount: amount})
}

func (c *Client) CompleteJob(ctx context.Context, id uint64, req models.CompleteJobReq) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/complete", id), req)
}

func (c *Client) FailJob(ctx context.Context, id uint64, req models.FailJobReq) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/fail", id), req)
}

func (c *Client) CancelJob(ctx context.Context, id uint64) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/cancel", id), nil)
}

func (c *Client) SweepTimeouts(ctx context.Context) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/sweep/timeouts", nil)
}

func (c *Client) SweepProviders(ctx context.Context) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/sweep/providers", nil)
}

func (c *Client) UpdateConfig(ctx context.Context, req models.UpdateConfigReq) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPut, "/config", req)
}

func (c *Client) Pause(ctx context.Context) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/pause", nil)
}

func (c *Client) Unpause(ctx context.Context) (*models.Response, error) {
	return c.mutate(ctx, http.MethodPost, "/unpause", nil)
}

func (c *Client) GetProvider(ctx context.Context, address string) (*models.Provider, error) {
	var provider models.Provider
	_, err := c.do(ctx, http.MethodGet, "/providers/"+url.PathEscape(address), nil, false, &provider)
	return &provider, err
}

func (c *Client) GetProviderStats(ctx context.Context, address string) (*models.ProviderStats, error) {
	var stats models.ProviderStats
	_, err := c.do(ctx, http.MethodGet, "/providers/"+url.PathEscape(address)+"/stats", nil, false, &stats)
	return &stats, err
}

func (c *Client) ListProviders(ctx context.Context, startAfter string, limit uint32) ([]*models.Provider, *util.PageInfo, error) {
	var providers []*models.Provider
	page, err := c.do(ctx, http.MethodGet, "/providers"+pageQuery(startAfter, limit), nil, false, &providers)
	return providers, page, err
}

func (c *Client) ListActiveProviders(ctx context.Context) ([]*models.Provider, error) {
	var providers []*models.Provider
	_, err := c.do(ctx, http.MethodGet, "/providers/active", nil, false, &providers)
	return providers, err
}

func (c *Client) ListJobsByProvider(ctx context.Context, address string, startAfter uint64, limit uint32) ([]*models.Job, *util.PageInfo, error) {
	return c.listJobs(ctx, "/providers/"+url.PathEscape(address)+"/jobs", startAfter, limit)
}

func (c *Client) ListJobsByClient(ctx context.Context, address string, startAfter uint64, limit uint32) ([]*models.Job, *util.PageInfo, error) {
	return c.listJobs(ctx, "/clients/"+url.PathEscape(address)+"/jobs", startAfter, limit)
}

func (c *Client) listJobs(ctx context.Context, path string, startAfter uint64, limit uint32) ([]*models.Job, *util.PageInfo, error) {
	var after string
	if startAfter > 0 {
		after = strconv.FormatUint(startAfter, 10)
	}
	var jobs []*models.Job
	page, err := c.do(ctx, http.MethodGet, path+pageQuery(after, limit), nil, false, &jobs)
	return jobs, page, err
}

func (c *Client) GetJob(ctx context.Context, id uint64) (*models.Job, error) {
	var job models.Job
	_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d", id), nil, false, &job)
	return &job, err
}

func (c *Client) GetConfig(ctx context.Context) (*models.Config, error) {
	var cfg models.Config
	_, err := c.do(ctx, http.MethodGet, "/config", nil, false, &cfg)
	return &cfg, err
}

func (c *Client) Escrow(ctx context.Context) (*models.EscrowReport, error) {
	var report models.EscrowReport
	_, err := c.do(ctx, http.MethodGet, "/escrow", nil, false, &report)
	return &report, err
}

func (c *Client) GetBalance(ctx context.Context, address string) (*models.Balance, error) {
	var balance models.Balance
	_, err := c.do(ctx, http.MethodGet, "/balances/"+url.PathEscape(address), nil, false, &balance)
	return &balance, err
}

func (c *Client) PendingSettlements(ctx context.Context, limit uint32) ([]models.Transfer, error) {
	var pending []models.Transfer
	_, err := c.do(ctx, http.MethodGet, "/settlements/pending"+pageQuery("", limit), nil, false, &pending)
	return pending, err
}

func (c *Client) HostInfo(ctx context.Context) (*models.HostInfo, error) {
	var info models.HostInfo
	_, err := c.do(ctx, http.MethodGet, "/host/info", nil, false, &info)
	return &info, err
}

func pageQuery(startAfter string, limit uint32) string {
	q := url.Values{}
	if startAfter != "" {
		q.Set("start_after", startAfter)
	}
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(uint64(limit), 10))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
