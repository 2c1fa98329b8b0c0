package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/market"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/lagrangedao/go-computing-market/wallet"
)

var t0 = time.Unix(1_700_000_000, 0).UTC()

type account struct {
	key  string
	addr string
}

func newAccount(t *testing.T, n int) account {
	key := fmt.Sprintf("%064x", n)
	_, pub, err := wallet.ToPublic(key)
	require.NoError(t, err)
	return account{key: key, addr: crypto.PubkeyToAddress(*pub).Hex()}
}

type recordingSettler struct {
	mu        sync.Mutex
	down      bool
	transfers []models.Transfer
}

func (s *recordingSettler) Settle(transfers []models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errors.New("broker unreachable")
	}
	s.transfers = append(s.transfers, transfers...)
	return nil
}

type harness struct {
	t        *testing.T
	engine   *gin.Engine
	server   *Server
	hub      *EventHub
	settler  *recordingSettler
	clock    time.Time
	refs     int
	admin    account
	provider account
	client   account
}

func newHarness(t *testing.T, opts ...Option) *harness {
	gin.SetMode(gin.TestMode)

	st, err := store.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{
		t:        t,
		settler:  &recordingSettler{},
		hub:      NewEventHub(),
		clock:    t0,
		admin:    newAccount(t, 1),
		provider: newAccount(t, 2),
		client:   newAccount(t, 3),
	}
	t.Cleanup(h.hub.Close)

	m := market.NewMarket(st, gateway.HexAddresses{})
	_, err = m.InitMarket(t0, models.InitMarketReq{
		Admin:               h.admin.addr,
		CommunityPool:       newAccount(t, 9).addr,
		CommunityFeePercent: 15,
		DefaultJobTimeout:   600,
		HeartbeatTimeout:    300,
	})
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return h.clock })}, opts...)
	h.server = NewServer(m, h.settler, h.hub, opts...)
	h.engine = gin.New()
	h.server.Register(h.engine.Group("/api/v1/market"))
	RegisterMetrics(h.engine)
	return h
}

func (h *harness) do(from *account, method, path string, body interface{}) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(h.t, err)
	}

	req := httptest.NewRequest(method, "/api/v1/market"+path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if from != nil {
		ts := strconv.FormatInt(h.clock.Unix(), 10)
		sig, err := wallet.Sign(from.key, wallet.RequestMessage(ts, method, req.URL.Path, raw))
		require.NoError(h.t, err)
		req.Header.Set(constants.HEADER_ADDRESS, from.addr)
		req.Header.Set(constants.HEADER_TIMESTAMP, ts)
		req.Header.Set(constants.HEADER_SIGNATURE, hexutil.Encode(sig))
	}

	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status   string          `json:"status"`
	Code     int             `json:"code"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message"`
	PageInfo *util.PageInfo  `json:"page_info"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func registration() models.RegisterProviderReq {
	return models.RegisterProviderReq{
		Name:         "Test Provider",
		Capabilities: []models.ServiceCapability{{ServiceType: "pi_calculation", MaxComplexity: 100000, AvgCompletionTime: 180}},
		Endpoint:     "https://test.com",
	}
}

func (h *harness) registerProvider() {
	w := h.do(&h.provider, http.MethodPost, "/providers", registration())
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
}

// fund has the admin credit a fresh inbound transfer to acct.
func (h *harness) fund(acct account, amount int64) {
	h.refs++
	w := h.do(&h.admin, http.MethodPost, "/deposits", models.DepositReq{
		Address:   acct.addr,
		Amount:    math.NewInt(amount),
		Reference: fmt.Sprintf("inbound-%d", h.refs),
	})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
}

func (h *harness) submitJob(amount int64) uint64 {
	h.fund(h.client, amount)
	w := h.do(&h.client, http.MethodPost, "/jobs", SubmitJobBody{
		SubmitJobReq: models.SubmitJobReq{Provider: h.provider.addr, JobType: "pi_calculation", Parameters: `{"digits":100}`},
		Funds:        []models.Coin{{Denom: "umedas", Amount: math.NewInt(amount)}},
	})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())

	var resp models.Response
	decode(h.t, w, &resp)
	value, ok := resp.Attribute("job_id")
	require.True(h.t, ok)
	id, err := strconv.ParseUint(value, 10, 64)
	require.NoError(h.t, err)
	return id
}

func TestRegisterProviderUsesRecoveredSigner(t *testing.T) {
	h := newHarness(t)
	h.registerProvider()

	w := h.do(nil, http.MethodGet, "/providers/"+h.provider.addr, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var provider models.Provider
	env := decode(t, w, &provider)
	require.Equal(t, util.SuccessCode, env.Code)
	require.Equal(t, strings.ToLower(h.provider.addr), provider.Address)
	require.Equal(t, uint32(10), provider.Capacity)
	require.True(t, provider.Active)
	require.NotEmpty(t, w.Header().Get(constants.HEADER_REQUEST_ID))
}

func TestSignatureRequired(t *testing.T) {
	h := newHarness(t)

	w := h.do(nil, http.MethodPost, "/providers", registration())
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, util.SignatureError, decode(t, w, nil).Code)

	// claimed address differs from the signer
	impostor := account{key: h.client.key, addr: h.provider.addr}
	w = h.do(&impostor, http.MethodPost, "/providers", registration())
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// signature made long before the server clock
	raw, _ := json.Marshal(registration())
	ts := strconv.FormatInt(t0.Add(-time.Hour).Unix(), 10)
	sig, err := wallet.Sign(h.provider.key, wallet.RequestMessage(ts, http.MethodPost, "/api/v1/market/providers", raw))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/providers", bytes.NewReader(raw))
	req.Header.Set(constants.HEADER_ADDRESS, h.provider.addr)
	req.Header.Set(constants.HEADER_TIMESTAMP, ts)
	req.Header.Set(constants.HEADER_SIGNATURE, hexutil.Encode(sig))
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	w = h.do(nil, http.MethodGet, "/providers/"+h.provider.addr, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, util.ProviderNotFound, decode(t, w, nil).Code)
}

func TestJobLifecycleSettlesTransfers(t *testing.T) {
	h := newHarness(t)
	h.registerProvider()
	id := h.submitJob(1_000_000)

	h.clock = t0.Add(2 * time.Minute)
	w := h.do(&h.provider, http.MethodPost, fmt.Sprintf("/jobs/%d/complete", id), models.CompleteJobReq{ResultHash: "abc", ResultUrl: "https://r"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, h.settler.transfers, 2)
	require.Equal(t, models.TransferCommunityFee, h.settler.transfers[0].Kind)
	require.True(t, h.settler.transfers[0].Coin.Amount.Equal(math.NewInt(150_000)))
	require.Equal(t, strings.ToLower(h.provider.addr), h.settler.transfers[1].ToAddress)
	require.True(t, h.settler.transfers[1].Coin.Amount.Equal(math.NewInt(850_000)))

	var job models.Job
	decode(t, h.do(nil, http.MethodGet, fmt.Sprintf("/jobs/%d", id), nil), &job)
	require.Equal(t, models.JobCompleted, job.Status)
	require.Equal(t, "abc", job.ResultHash)

	var jobs []models.Job
	env := decode(t, h.do(nil, http.MethodGet, "/clients/"+h.client.addr+"/jobs?limit=5", nil), &jobs)
	require.Len(t, jobs, 1)
	require.Equal(t, 1, env.PageInfo.Count)

	var report models.EscrowReport
	decode(t, h.do(nil, http.MethodGet, "/escrow", nil), &report)
	require.Empty(t, report.Violations)
	require.True(t, report.Escrowed.IsZero())
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	h.registerProvider()
	id := h.submitJob(100)

	w := h.do(&h.provider, http.MethodPost, fmt.Sprintf("/jobs/%d/cancel", id), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, util.Unauthorized, decode(t, w, nil).Code)

	h.clock = t0.Add(301 * time.Second)
	w = h.do(&h.client, http.MethodPost, fmt.Sprintf("/jobs/%d/cancel", id), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, util.CancelWindowExpired, decode(t, w, nil).Code)

	w = h.do(&h.client, http.MethodPost, "/jobs", SubmitJobBody{SubmitJobReq: models.SubmitJobReq{Provider: h.provider.addr}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, util.NoPayment, decode(t, w, nil).Code)

	w = h.do(nil, http.MethodGet, "/jobs/abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, util.BadParamError, decode(t, w, nil).Code)

	w = h.do(nil, http.MethodGet, "/jobs/99", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, h.settler.transfers)
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t)

	w := h.do(&h.client, http.MethodPost, "/pause", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(&h.admin, http.MethodPost, "/pause", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(&h.provider, http.MethodPost, "/providers", registration())
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, util.MarketPaused, decode(t, w, nil).Code)

	var cfg models.Config
	decode(t, h.do(nil, http.MethodGet, "/config", nil), &cfg)
	require.True(t, cfg.Paused)

	w = h.do(&h.admin, http.MethodPost, "/unpause", nil)
	require.Equal(t, http.StatusOK, w.Code)

	timeout := uint64(120)
	w = h.do(&h.admin, http.MethodPut, "/config", models.UpdateConfigReq{DefaultJobTimeout: &timeout})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, h.do(nil, http.MethodGet, "/config", nil), &cfg)
	require.False(t, cfg.Paused)
	require.Equal(t, uint64(120), cfg.DefaultJobTimeout)
}

func TestSweepRoutes(t *testing.T) {
	h := newHarness(t)
	h.registerProvider()
	h.submitJob(500)

	h.clock = t0.Add(601 * time.Second)
	w := h.do(&h.client, http.MethodPost, "/sweep/timeouts", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, h.settler.transfers, 1)
	require.Equal(t, models.TransferRefund, h.settler.transfers[0].Kind)

	w = h.do(&h.client, http.MethodPost, "/sweep/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var active []models.Provider
	decode(t, h.do(nil, http.MethodGet, "/providers/active", nil), &active)
	require.Empty(t, active)

	var providers []models.Provider
	env := decode(t, h.do(nil, http.MethodGet, "/providers?limit=2", nil), &providers)
	require.Len(t, providers, 1)
	require.Equal(t, uint32(2), env.PageInfo.Limit)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, WithRateLimit(0.001, 1))

	w := h.do(nil, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(nil, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, util.RateLimitError, decode(t, w, nil).Code)
}

func TestEventsStream(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/market/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.registerProvider()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	require.Equal(t, "register_provider", event.Action)
	require.NotEmpty(t, event.Id)
	require.NotEmpty(t, event.RequestId)
	require.True(t, event.Timestamp.Equal(t0))
}

func TestMetricsAndHostInfo(t *testing.T) {
	h := newHarness(t, WithVersion("v0.1.0"))

	var info models.HostInfo
	decode(t, h.do(nil, http.MethodGet, "/host/info", nil), &info)
	assert.Equal(t, "v0.1.0", info.MarketVersion)
	assert.Equal(t, "umedas", info.Denom)
	assert.False(t, info.Paused)
	assert.Positive(t, info.CPUCores)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "market_http_request_duration_seconds")
}

func TestErrorCodeDefault(t *testing.T) {
	status, code := errorCode(fmt.Errorf("disk on fire"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, util.ServerError, code)

	status, code = errorCode(fmt.Errorf("job 3: %w", market.ErrJobNotFound))
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, util.JobNotFound, code)
}

func TestUnbackedSubmitIsRejected(t *testing.T) {
	h := newHarness(t)
	h.registerProvider()

	body := SubmitJobBody{
		SubmitJobReq: models.SubmitJobReq{Provider: h.provider.addr, JobType: "pi_calculation"},
		Funds:        []models.Coin{{Denom: "umedas", Amount: math.NewInt(1_000_000_000_000)}},
	}
	w := h.do(&h.client, http.MethodPost, "/jobs", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, util.NoPayment, decode(t, w, nil).Code)

	// a deposit smaller than the declared funds does not back them either
	h.fund(h.client, 500)
	h.clock = t0.Add(time.Second)
	w = h.do(&h.client, http.MethodPost, "/jobs", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, util.NoPayment, decode(t, w, nil).Code)

	var balance models.Balance
	decode(t, h.do(nil, http.MethodGet, "/balances/"+h.client.addr, nil), &balance)
	require.True(t, balance.Amount.Equal(math.NewInt(500)))

	var report models.EscrowReport
	decode(t, h.do(nil, http.MethodGet, "/escrow", nil), &report)
	require.Empty(t, report.Violations)
	require.Zero(t, report.OpenJobs)
	require.Empty(t, h.settler.transfers)
}

func TestDepositAndWithdrawRoutes(t *testing.T) {
	h := newHarness(t)
	req := models.DepositReq{Address: h.client.addr, Amount: math.NewInt(1000), Reference: "0xfeed"}

	w := h.do(&h.client, http.MethodPost, "/deposits", req)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(&h.admin, http.MethodPost, "/deposits", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h.clock = t0.Add(time.Second)
	w = h.do(&h.admin, http.MethodPost, "/deposits", req)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, util.DuplicateDeposit, decode(t, w, nil).Code)

	w = h.do(&h.client, http.MethodPost, "/withdrawals", models.WithdrawReq{Amount: math.NewInt(1001)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, util.InsufficientBalance, decode(t, w, nil).Code)

	w = h.do(&h.client, http.MethodPost, "/withdrawals", models.WithdrawReq{Amount: math.NewInt(400)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, h.settler.transfers, 1)
	require.Equal(t, models.TransferWithdrawal, h.settler.transfers[0].Kind)
	require.Equal(t, strings.ToLower(h.client.addr), h.settler.transfers[0].ToAddress)

	var balance models.Balance
	decode(t, h.do(nil, http.MethodGet, "/balances/"+h.client.addr, nil), &balance)
	require.True(t, balance.Amount.Equal(math.NewInt(600)))
}

func TestReplayedRequestIsRejected(t *testing.T) {
	h := newHarness(t)
	h.registerProvider()
	h.fund(h.client, 1000)

	raw, err := json.Marshal(SubmitJobBody{
		SubmitJobReq: models.SubmitJobReq{Provider: h.provider.addr, JobType: "pi_calculation"},
		Funds:        []models.Coin{{Denom: "umedas", Amount: math.NewInt(100)}},
	})
	require.NoError(t, err)
	path := "/api/v1/market/jobs"
	ts := strconv.FormatInt(t0.Unix(), 10)
	sig, err := wallet.Sign(h.client.key, wallet.RequestMessage(ts, http.MethodPost, path, raw))
	require.NoError(t, err)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set(constants.HEADER_ADDRESS, h.client.addr)
		req.Header.Set(constants.HEADER_TIMESTAMP, ts)
		req.Header.Set(constants.HEADER_SIGNATURE, hexutil.Encode(sig))
		w := httptest.NewRecorder()
		h.engine.ServeHTTP(w, req)
		return w
	}

	w := send()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h.clock = t0.Add(2 * time.Minute)
	w = send()
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, util.SignatureError, decode(t, w, nil).Code)

	// the same signature does not carry over to another route
	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/withdrawals", bytes.NewReader(raw))
	req.Header.Set(constants.HEADER_ADDRESS, h.client.addr)
	req.Header.Set(constants.HEADER_TIMESTAMP, ts)
	req.Header.Set(constants.HEADER_SIGNATURE, hexutil.Encode(sig))
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var jobs []models.Job
	decode(t, h.do(nil, http.MethodGet, "/clients/"+h.client.addr+"/jobs", nil), &jobs)
	require.Len(t, jobs, 1)

	var balance models.Balance
	decode(t, h.do(nil, http.MethodGet, "/balances/"+h.client.addr, nil), &balance)
	require.True(t, balance.Amount.Equal(math.NewInt(900)))
}

func TestFailedSettlementIsKeptPending(t *testing.T) {
	h := newHarness(t)
	h.registerProvider()
	id := h.submitJob(1_000_000)

	h.settler.down = true
	h.clock = t0.Add(time.Minute)
	w := h.do(&h.provider, http.MethodPost, fmt.Sprintf("/jobs/%d/complete", id), models.CompleteJobReq{ResultHash: "abc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Empty(t, h.settler.transfers)

	var pending []models.Transfer
	env := decode(t, h.do(nil, http.MethodGet, "/settlements/pending", nil), &pending)
	require.Len(t, pending, 2)
	require.Equal(t, 2, env.PageInfo.Count)

	var report models.EscrowReport
	decode(t, h.do(nil, http.MethodGet, "/escrow", nil), &report)
	require.Empty(t, report.Violations)
	require.Equal(t, 2, report.PendingCount)
	require.True(t, report.Pending.Equal(math.NewInt(1_000_000)))

	h.settler.down = false
	n, err := h.server.market.RetrySettlements(h.settler, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, h.settler.transfers, 2)

	decode(t, h.do(nil, http.MethodGet, "/settlements/pending", nil), &pending)
	require.Empty(t, pending)
}
