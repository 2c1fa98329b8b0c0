package market

import (
	"encoding/json"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

func clampLimit(limit, def, max uint32) int {
	if limit == 0 {
		return int(def)
	}
	if limit > max {
		return int(max)
	}
	return int(limit)
}

// ListProviders pages through providers in ascending address order, starting
// strictly after startAfter when it is not empty.
func (m *Market) ListProviders(startAfter string, limit uint32) ([]*models.Provider, error) {
	var start []byte
	if startAfter != "" {
		addr, err := m.canonical(startAfter)
		if err != nil {
			return nil, err
		}
		start = addressBytes(addr)
	}

	n := clampLimit(limit, constants.DEFAULT_PROVIDER_PAGE_LIMIT, constants.MAX_PROVIDER_PAGE_LIMIT)
	return m.collectProviders(start, n, func(*models.Provider) bool { return true })
}

// ListActiveProviders returns up to one full page of active providers.
func (m *Market) ListActiveProviders() ([]*models.Provider, error) {
	return m.collectProviders(nil, constants.MAX_PROVIDER_PAGE_LIMIT, func(p *models.Provider) bool { return p.Active })
}

func (m *Market) collectProviders(start []byte, n int, keep func(*models.Provider) bool) ([]*models.Provider, error) {
	providers := make([]*models.Provider, 0, n)
	err := m.view(func(r store.Reader) error {
		return r.Range(ProviderKeyPrefix, start, func(_, value []byte) (bool, error) {
			var provider models.Provider
			if err := json.Unmarshal(value, &provider); err != nil {
				return false, xerrors.Errorf("decoding provider: %w", err)
			}
			if keep(&provider) {
				providers = append(providers, &provider)
			}
			return len(providers) < n, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (m *Market) GetProviderStats(address string) (*models.ProviderStats, error) {
	provider, err := m.GetProvider(address)
	if err != nil {
		return nil, err
	}
	return &models.ProviderStats{
		Address:        provider.Address,
		Capacity:       provider.Capacity,
		ActiveJobs:     provider.ActiveJobs,
		TotalCompleted: provider.TotalCompleted,
		TotalFailed:    provider.TotalFailed,
		Reputation:     provider.Reputation,
		Active:         provider.Active,
	}, nil
}

func (m *Market) ListJobsByProvider(address string, startAfter uint64, limit uint32) ([]*models.Job, error) {
	addr, err := m.canonical(address)
	if err != nil {
		return nil, err
	}
	return m.listIndexedJobs(JobsByProviderIndexPrefix(addr), startAfter, limit)
}

func (m *Market) ListJobsByClient(address string, startAfter uint64, limit uint32) ([]*models.Job, error) {
	addr, err := m.canonical(address)
	if err != nil {
		return nil, err
	}
	return m.listIndexedJobs(JobsByClientIndexPrefix(addr), startAfter, limit)
}

// listIndexedJobs resolves one page of an index. Ids start at 1, so a zero
// startAfter reads from the beginning.
func (m *Market) listIndexedJobs(prefix []byte, startAfter uint64, limit uint32) ([]*models.Job, error) {
	n := clampLimit(limit, constants.DEFAULT_JOB_PAGE_LIMIT, constants.MAX_JOB_PAGE_LIMIT)
	jobs := make([]*models.Job, 0, n)

	err := m.view(func(r store.Reader) error {
		var ids []uint64
		err := r.Range(prefix, encodeID(startAfter), func(key, _ []byte) (bool, error) {
			ids = append(ids, decodeID(key))
			return len(ids) < n, nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			job, err := getJob(r, id)
			if err != nil {
				return xerrors.Errorf("index references job %d: %w", id, err)
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
