package market

import (
	"fmt"
	stdmath "math"
	"strconv"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
)

var (
	t0 = time.Unix(1_700_000_000, 0).UTC()

	adminAddr = testAddr(0xa0)
	poolAddr  = testAddr(0xb0)
	provider1 = testAddr(0x01)
	provider2 = testAddr(0x02)
	provider3 = testAddr(0x03)
	client1   = testAddr(0x11)
	client2   = testAddr(0x12)
)

func testAddr(n byte) string {
	return fmt.Sprintf("0x%040x", n)
}

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func sender(addr string) MsgInfo {
	return MsgInfo{Sender: addr}
}

func paid(addr string, amount int64) MsgInfo {
	return MsgInfo{Sender: addr, Funds: []models.Coin{{Denom: "umedas", Amount: math.NewInt(amount)}}}
}

func newTestMarket(t *testing.T, feePercent, jobTimeout uint64) *Market {
	st, err := store.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := NewMarket(st, gateway.HexAddresses{})
	_, err = m.InitMarket(t0, models.InitMarketReq{
		Admin:               adminAddr,
		CommunityPool:       poolAddr,
		CommunityFeePercent: feePercent,
		DefaultJobTimeout:   jobTimeout,
		HeartbeatTimeout:    300,
		Denom:               "umedas",
	})
	require.NoError(t, err)
	return m
}

func validRegistration(name string) models.RegisterProviderReq {
	return models.RegisterProviderReq{
		Name: name,
		Capabilities: []models.ServiceCapability{
			{ServiceType: "pi_calculation", MaxComplexity: 100000, AvgCompletionTime: 180},
		},
		Pricing: map[string]models.PricingTier{
			"pi_calculation": {BasePrice: decimal.RequireFromString("0.01"), Unit: "digit"},
		},
		Endpoint: "https://test.com",
	}
}

func registerProvider(t *testing.T, m *Market, addr string, now time.Time) {
	_, err := m.RegisterProvider(now, sender(addr), validRegistration("provider "+addr[len(addr)-2:]))
	require.NoError(t, err)
}

var depositRef int

// fund credits a fresh deposit to addr.
func fund(t *testing.T, m *Market, addr string, amount int64) {
	depositRef++
	_, err := m.Deposit(t0, sender(adminAddr), models.DepositReq{
		Address:   addr,
		Amount:    math.NewInt(amount),
		Reference: fmt.Sprintf("tx-%d", depositRef),
	})
	require.NoError(t, err)
}

func submitJob(t *testing.T, m *Market, client, provider string, amount int64, now time.Time) uint64 {
	fund(t, m, client, amount)
	resp, err := m.SubmitJob(now, paid(client, amount), models.SubmitJobReq{
		Provider:   provider,
		JobType:    "pi_calculation",
		Parameters: `{"digits":10000}`,
	})
	require.NoError(t, err)

	value, ok := resp.Attribute("job_id")
	require.True(t, ok)
	id, err := strconv.ParseUint(value, 10, 64)
	require.NoError(t, err)
	return id
}

func mustProvider(t *testing.T, m *Market, addr string) *models.Provider {
	p, err := m.GetProvider(addr)
	require.NoError(t, err)
	return p
}

func mustJob(t *testing.T, m *Market, id uint64) *models.Job {
	job, err := m.GetJob(id)
	require.NoError(t, err)
	return job
}

func requireClean(t *testing.T, m *Market) *models.EscrowReport {
	report, err := m.CheckInvariants()
	require.NoError(t, err)
	require.Empty(t, report.Violations)
	return report
}

func TestInitMarketDefaults(t *testing.T) {
	st, err := store.NewMemStore()
	require.NoError(t, err)
	defer st.Close()
	m := NewMarket(st, gateway.HexAddresses{})

	resp, err := m.InitMarket(t0, models.InitMarketReq{
		Admin:               adminAddr,
		CommunityPool:       poolAddr,
		CommunityFeePercent: 15,
	})
	require.NoError(t, err)
	require.Equal(t, "instantiate", resp.Action)

	cfg, err := m.GetConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(3600), cfg.DefaultJobTimeout)
	require.Equal(t, uint64(300), cfg.HeartbeatTimeout)
	require.Equal(t, "umedas", cfg.Denom)
	require.Equal(t, uint64(15), cfg.CommunityFeePercent)
	require.False(t, cfg.Paused)

	_, err = m.InitMarket(t0, models.InitMarketReq{Admin: adminAddr, CommunityPool: poolAddr})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitMarketValidation(t *testing.T) {
	st, err := store.NewMemStore()
	require.NoError(t, err)
	defer st.Close()
	m := NewMarket(st, gateway.HexAddresses{})

	_, err = m.InitMarket(t0, models.InitMarketReq{Admin: adminAddr, CommunityPool: poolAddr, CommunityFeePercent: 101})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = m.InitMarket(t0, models.InitMarketReq{Admin: "admin", CommunityPool: poolAddr})
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = m.InitMarket(t0, models.InitMarketReq{Admin: adminAddr, CommunityPool: "medas1community..."})
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = m.GetConfig()
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = m.RegisterProvider(t0, sender(provider1), validRegistration("p"))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestUpdateConfigRequiresAdmin(t *testing.T) {
	m := newTestMarket(t, 15, 600)
	timeout := uint64(1200)

	_, err := m.UpdateConfig(sender(client1), models.UpdateConfigReq{DefaultJobTimeout: &timeout})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.UpdateConfig(sender(adminAddr), models.UpdateConfigReq{DefaultJobTimeout: &timeout})
	require.NoError(t, err)

	cfg, err := m.GetConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(1200), cfg.DefaultJobTimeout)
	require.Equal(t, uint64(300), cfg.HeartbeatTimeout, "unsupplied field must stay")

	zero := uint64(0)
	_, err = m.UpdateConfig(sender(adminAddr), models.UpdateConfigReq{HeartbeatTimeout: &zero})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTimeoutsMustFitDuration(t *testing.T) {
	st, err := store.NewMemStore()
	require.NoError(t, err)
	defer st.Close()
	m := NewMarket(st, gateway.HexAddresses{})

	_, err = m.InitMarket(t0, models.InitMarketReq{Admin: adminAddr, CommunityPool: poolAddr, DefaultJobTimeout: MaxTimeoutSeconds + 1})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = m.InitMarket(t0, models.InitMarketReq{Admin: adminAddr, CommunityPool: poolAddr, HeartbeatTimeout: stdmath.MaxUint64})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = m.GetConfig()
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = m.InitMarket(t0, models.InitMarketReq{Admin: adminAddr, CommunityPool: poolAddr, DefaultJobTimeout: MaxTimeoutSeconds})
	require.NoError(t, err)

	huge := uint64(stdmath.MaxUint64 / 1000)
	_, err = m.UpdateConfig(sender(adminAddr), models.UpdateConfigReq{DefaultJobTimeout: &huge})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = m.UpdateConfig(sender(adminAddr), models.UpdateConfigReq{HeartbeatTimeout: &huge})
	require.ErrorIs(t, err, ErrInvalidConfig)

	// the longest accepted timeout still yields a deadline after creation
	registerProvider(t, m, provider1, t0)
	id := submitJob(t, m, client1, provider1, 10, t0)
	job := mustJob(t, m, id)
	require.True(t, job.Deadline.After(job.CreatedAt))

	resp, err := m.SweepTimeouts(at(10_000))
	require.NoError(t, err)
	require.Equal(t, 0, resp.Data.(*models.SweepResult).Count)
}

func TestOversizedStoredTimeoutFailsInsteadOfWrapping(t *testing.T) {
	m := newTestMarket(t, 15, 600)
	registerProvider(t, m, provider1, t0)
	fund(t, m, client1, 100)

	// a config written before timeouts were bounded
	require.NoError(t, m.store.Update(func(w store.Writer) error {
		cfg, err := loadConfig(w)
		if err != nil {
			return err
		}
		cfg.DefaultJobTimeout = stdmath.MaxUint64 / 1000
		cfg.HeartbeatTimeout = stdmath.MaxUint64 / 1000
		return w.Save(ConfigKey, cfg)
	}))

	_, err := m.SubmitJob(at(1), paid(client1, 100), models.SubmitJobReq{Provider: provider1, JobType: "pi_calculation"})
	require.ErrorIs(t, err, ErrArithmetic)
	_, err = m.SweepInactive(at(1))
	require.ErrorIs(t, err, ErrArithmetic)

	require.True(t, mustProvider(t, m, provider1).Active)
	report := requireClean(t, m)
	require.Zero(t, report.OpenJobs)
	require.True(t, report.Balances.Equal(math.NewInt(100)))
}

func TestPauseBlocksMutationsButNotQueries(t *testing.T) {
	m := newTestMarket(t, 15, 600)
	registerProvider(t, m, provider1, t0)
	id := submitJob(t, m, client1, provider1, 1000, t0)

	_, err := m.Pause(sender(client1))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.Pause(sender(adminAddr))
	require.NoError(t, err)

	_, err = m.RegisterProvider(at(1), sender(provider2), validRegistration("p2"))
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.Heartbeat(at(1), sender(provider1))
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.SubmitJob(at(1), paid(client1, 10), models.SubmitJobReq{Provider: provider1})
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.Deposit(at(1), sender(adminAddr), models.DepositReq{Address: client1, Amount: math.NewInt(10), Reference: "paused"})
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.Withdraw(sender(client1), models.WithdrawReq{Amount: math.NewInt(1)})
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.CompleteJob(at(1), sender(provider1), id, models.CompleteJobReq{})
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.CancelJob(at(1), sender(client1), id)
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.SweepTimeouts(at(10_000))
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.SweepInactive(at(10_000))
	require.ErrorIs(t, err, ErrContractPaused)
	_, err = m.Pause(sender(adminAddr))
	require.ErrorIs(t, err, ErrContractPaused)

	// queries stay available
	require.Equal(t, models.JobSubmitted, mustJob(t, m, id).Status)
	providers, err := m.ListProviders("", 0)
	require.NoError(t, err)
	require.Len(t, providers, 1)

	_, err = m.Unpause(sender(client1))
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Unpause(sender(adminAddr))
	require.NoError(t, err)

	_, err = m.CompleteJob(at(2), sender(provider1), id, models.CompleteJobReq{ResultHash: "h", ResultUrl: "u"})
	require.NoError(t, err)
}

func requireTransfers(t *testing.T, want, got []models.Transfer) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].JobId, got[i].JobId)
		require.Equal(t, want[i].Kind, got[i].Kind)
		require.Equal(t, want[i].ToAddress, got[i].ToAddress)
		require.Equal(t, want[i].Coin.Denom, got[i].Coin.Denom)
		require.True(t, want[i].Coin.Amount.Equal(got[i].Coin.Amount), "transfer %d: want %s, got %s", i, want[i].Coin.Amount, got[i].Coin.Amount)
	}
}
