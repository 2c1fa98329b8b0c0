package market

import (
	"strconv"
	"time"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// RegisterProvider creates the provider record of the sender.
func (m *Market) RegisterProvider(now time.Time, info MsgInfo, req models.RegisterProviderReq) (*models.Response, error) {
	return m.execute("register_provider", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		addr, err := m.canonical(info.Sender)
		if err != nil {
			return nil, err
		}

		exists, err := w.Has(ProviderKey(addr))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, xerrors.Errorf("provider %s: %w", addr, ErrProviderAlreadyRegistered)
		}
		if req.Name == "" || len(req.Capabilities) == 0 {
			return nil, ErrInvalidProviderData
		}

		pricing := req.Pricing
		if pricing == nil {
			pricing = map[string]models.PricingTier{}
		}

		ts := blockTime(now)
		provider := &models.Provider{
			Address:        addr,
			Name:           req.Name,
			Capabilities:   req.Capabilities,
			Pricing:        pricing,
			Endpoint:       req.Endpoint,
			Capacity:       constants.DEFAULT_PROVIDER_CAPACITY,
			ActiveJobs:     0,
			TotalCompleted: 0,
			TotalFailed:    0,
			Reputation:     InitialReputation,
			Active:         true,
			RegisteredAt:   ts,
			LastHeartbeat:  ts,
		}
		if err = setProvider(w, provider); err != nil {
			return nil, err
		}

		return models.NewResponse("register_provider").
			AddAttribute("provider", addr).
			AddAttribute("name", provider.Name).
			WithData(provider), nil
	})
}

// Heartbeat refreshes the liveness clock and always re-activates the provider.
func (m *Market) Heartbeat(now time.Time, info MsgInfo) (*models.Response, error) {
	return m.execute("heartbeat", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		provider, err := m.senderProvider(w, info)
		if err != nil {
			return nil, err
		}

		provider.LastHeartbeat = blockTime(now)
		provider.Active = true
		if err = setProvider(w, provider); err != nil {
			return nil, err
		}

		return models.NewResponse("heartbeat").
			AddAttribute("provider", provider.Address).
			AddAttribute("last_heartbeat", provider.LastHeartbeat.Format(time.RFC3339)), nil
	})
}

// UpdateProvider overwrites the supplied fields only.
func (m *Market) UpdateProvider(info MsgInfo, req models.UpdateProviderReq) (*models.Response, error) {
	return m.execute("update_provider", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		provider, err := m.senderProvider(w, info)
		if err != nil {
			return nil, err
		}

		resp := models.NewResponse("update_provider").AddAttribute("provider", provider.Address)
		if req.Name != nil {
			if *req.Name == "" {
				return nil, ErrInvalidProviderData
			}
			provider.Name = *req.Name
			resp.AddAttribute("name", provider.Name)
		}
		if req.Endpoint != nil {
			provider.Endpoint = *req.Endpoint
			resp.AddAttribute("endpoint", provider.Endpoint)
		}
		if req.Pricing != nil {
			provider.Pricing = req.Pricing
			resp.AddAttribute("pricing_tiers", strconv.Itoa(len(provider.Pricing)))
		}
		if req.Capacity != nil {
			provider.Capacity = *req.Capacity
			resp.AddAttribute("capacity", strconv.FormatUint(uint64(provider.Capacity), 10))
		}

		if err = setProvider(w, provider); err != nil {
			return nil, err
		}
		return resp.WithData(provider), nil
	})
}

// UpdateProviderStatus is the operator toggle. Switching an inactive provider on
// also restarts its liveness clock so the next inactivity sweep does not flip it
// straight back.
func (m *Market) UpdateProviderStatus(now time.Time, info MsgInfo, active bool) (*models.Response, error) {
	return m.execute("update_provider_status", false, func(w store.Writer, cfg *models.Config) (*models.Response, error) {
		provider, err := m.senderProvider(w, info)
		if err != nil {
			return nil, err
		}

		if active && !provider.Active {
			provider.LastHeartbeat = blockTime(now)
		}
		provider.Active = active
		if err = setProvider(w, provider); err != nil {
			return nil, err
		}

		return models.NewResponse("update_provider_status").
			AddAttribute("provider", provider.Address).
			AddAttribute("active", strconv.FormatBool(active)), nil
	})
}

func (m *Market) GetProvider(address string) (*models.Provider, error) {
	addr, err := m.canonical(address)
	if err != nil {
		return nil, err
	}

	var provider *models.Provider
	err = m.view(func(r store.Reader) error {
		provider, err = getProvider(r, addr)
		return err
	})
	return provider, err
}

func (m *Market) senderProvider(r store.Reader, info MsgInfo) (*models.Provider, error) {
	addr, err := m.canonical(info.Sender)
	if err != nil {
		return nil, err
	}
	return getProvider(r, addr)
}

func getProvider(r store.Reader, addr string) (*models.Provider, error) {
	var provider models.Provider
	if err := r.Load(ProviderKey(addr), &provider); err != nil {
		if isNotFound(err) {
			return nil, xerrors.Errorf("provider %s: %w", addr, ErrProviderNotFound)
		}
		return nil, xerrors.Errorf("loading provider %s: %w", addr, err)
	}
	return &provider, nil
}

func setProvider(w store.Writer, provider *models.Provider) error {
	return w.Save(ProviderKey(provider.Address), provider)
}
