package market

import (
	"math"
	"strconv"
	"time"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// MaxTimeoutSeconds is the longest timeout that still fits a time.Duration.
const MaxTimeoutSeconds = uint64(math.MaxInt64 / int64(time.Second))

func timeoutDuration(seconds uint64) (time.Duration, error) {
	if seconds > MaxTimeoutSeconds {
		return 0, xerrors.Errorf("%d seconds: %w", seconds, ErrArithmetic)
	}
	return time.Duration(seconds) * time.Second, nil
}

// addSeconds is t + seconds, failing instead of wrapping.
func addSeconds(t time.Time, seconds uint64) (time.Time, error) {
	d, err := timeoutDuration(seconds)
	if err != nil {
		return time.Time{}, err
	}
	out := t.Add(d)
	if !out.After(t) && d > 0 {
		return time.Time{}, xerrors.Errorf("%s + %d seconds: %w", t.Format(time.RFC3339), seconds, ErrArithmetic)
	}
	return out, nil
}

func checkTimeout(name string, seconds uint64) error {
	if seconds == 0 {
		return xerrors.Errorf("%s must be positive: %w", name, ErrInvalidConfig)
	}
	if seconds > MaxTimeoutSeconds {
		return xerrors.Errorf("%s %d exceeds %d seconds: %w", name, seconds, MaxTimeoutSeconds, ErrInvalidConfig)
	}
	return nil
}

// InitMarket stores the initial config and starts the job id sequence at 1. It
// refuses to run twice against the same ledger.
func (m *Market) InitMarket(now time.Time, req models.InitMarketReq) (*models.Response, error) {
	admin, err := m.canonical(req.Admin)
	if err != nil {
		return nil, xerrors.Errorf("admin: %w", err)
	}
	pool, err := m.canonical(req.CommunityPool)
	if err != nil {
		return nil, xerrors.Errorf("community pool: %w", err)
	}
	if req.CommunityFeePercent > 100 {
		return nil, xerrors.Errorf("community fee %d%% exceeds 100%%: %w", req.CommunityFeePercent, ErrInvalidConfig)
	}

	cfg := &models.Config{
		Admin:               admin,
		CommunityPool:       pool,
		CommunityFeePercent: req.CommunityFeePercent,
		DefaultJobTimeout:   req.DefaultJobTimeout,
		HeartbeatTimeout:    req.HeartbeatTimeout,
		Denom:               req.Denom,
	}
	if cfg.DefaultJobTimeout == 0 {
		cfg.DefaultJobTimeout = constants.DEFAULT_JOB_TIMEOUT
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = constants.DEFAULT_HEARTBEAT_TIMEOUT
	}
	if cfg.Denom == "" {
		cfg.Denom = constants.DEFAULT_DENOM
	}
	if err = checkTimeout("default job timeout", cfg.DefaultJobTimeout); err != nil {
		return nil, err
	}
	if err = checkTimeout("heartbeat timeout", cfg.HeartbeatTimeout); err != nil {
		return nil, err
	}

	err = m.store.Update(func(w store.Writer) error {
		exists, err := w.Has(ConfigKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized
		}
		if err = w.Save(ConfigKey, cfg); err != nil {
			return err
		}
		return w.Save(NextJobIDKey, uint64(1))
	})
	if err != nil {
		return nil, err
	}

	return models.NewResponse("instantiate").
		AddAttribute("admin", cfg.Admin).
		AddAttribute("community_pool", cfg.CommunityPool).
		AddAttribute("community_fee_percent", strconv.FormatUint(cfg.CommunityFeePercent, 10)).
		AddAttribute("initialized_at", blockTime(now).Format(time.RFC3339)).
		WithData(cfg), nil
}

func (m *Market) GetConfig() (*models.Config, error) {
	var cfg *models.Config
	err := m.view(func(r store.Reader) error {
		var err error
		cfg, err = loadConfig(r)
		return err
	})
	return cfg, err
}

// UpdateConfig overwrites only the supplied timeouts. Deadlines of jobs already
// submitted keep the value they were created with.
func (m *Market) UpdateConfig(info MsgInfo, req models.UpdateConfigReq) (*models.Response, error) {
	return m.execute("update_config", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		if err := m.requireAdmin(cfg, info.Sender); err != nil {
			return nil, err
		}

		resp := models.NewResponse("update_config")
		if req.DefaultJobTimeout != nil {
			if err := checkTimeout("default job timeout", *req.DefaultJobTimeout); err != nil {
				return nil, err
			}
			cfg.DefaultJobTimeout = *req.DefaultJobTimeout
			resp.AddAttribute("default_job_timeout", strconv.FormatUint(cfg.DefaultJobTimeout, 10))
		}
		if req.HeartbeatTimeout != nil {
			if err := checkTimeout("heartbeat timeout", *req.HeartbeatTimeout); err != nil {
				return nil, err
			}
			cfg.HeartbeatTimeout = *req.HeartbeatTimeout
			resp.AddAttribute("heartbeat_timeout", strconv.FormatUint(cfg.HeartbeatTimeout, 10))
		}

		if err := w.Save(ConfigKey, cfg); err != nil {
			return nil, err
		}
		return resp.WithData(cfg), nil
	})
}

func (m *Market) Pause(info MsgInfo) (*models.Response, error) {
	return m.execute("pause", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		return m.setPaused(w, cfg, info, true)
	})
}

// Unpause is the only mutation accepted while the market is paused.
func (m *Market) Unpause(info MsgInfo) (*models.Response, error) {
	return m.execute("unpause", true, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		return m.setPaused(w, cfg, info, false)
	})
}

func (m *Market) setPaused(w store.Writer, cfg *models.Config, info MsgInfo, paused bool) (*models.Response, error) {
	if err := m.requireAdmin(cfg, info.Sender); err != nil {
		return nil, err
	}
	cfg.Paused = paused
	if err := w.Save(ConfigKey, cfg); err != nil {
		return nil, err
	}

	action := "unpause"
	if paused {
		action = "pause"
	}
	return models.NewResponse(action).AddAttribute("paused", strconv.FormatBool(paused)), nil
}

func (m *Market) requireAdmin(cfg *models.Config, sender string) error {
	caller, err := m.canonical(sender)
	if err != nil {
		return err
	}
	if caller != cfg.Admin {
		return xerrors.Errorf("%s is not the market admin: %w", caller, ErrUnauthorized)
	}
	return nil
}

func loadConfig(r store.Reader) (*models.Config, error) {
	var cfg models.Config
	if err := r.Load(ConfigKey, &cfg); err != nil {
		if isNotFound(err) {
			return nil, ErrNotInitialized
		}
		return nil, xerrors.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
