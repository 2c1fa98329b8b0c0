package market

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"

	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

// CheckInvariants walks the whole ledger and reports the escrowed, deposited and
// pending totals together with every broken invariant it finds:
//   - a provider's active_jobs equals its number of open jobs
//   - every job is listed in both indices
//   - every index entry resolves to a job with the matching client or provider
//   - deposited equals unspent balances plus escrow plus released transfers
func (m *Market) CheckInvariants() (*models.EscrowReport, error) {
	report := &models.EscrowReport{
		Escrowed: math.ZeroInt(),
		Balances: math.ZeroInt(),
		Pending:  math.ZeroInt(),
	}

	err := m.view(func(r store.Reader) error {
		cfg, err := loadConfig(r)
		if err != nil {
			return err
		}
		report.Denom = cfg.Denom

		open := map[string]uint32{}
		jobs := map[uint64]*models.Job{}
		err = r.Range(JobKeyPrefix, nil, func(key, value []byte) (bool, error) {
			var job models.Job
			if err := json.Unmarshal(value, &job); err != nil {
				return false, xerrors.Errorf("decoding job %d: %w", decodeID(key), err)
			}
			jobs[job.Id] = &job
			if job.Status.IsOpen() {
				open[job.Provider]++
				report.OpenJobs++
				report.Escrowed = report.Escrowed.Add(job.PaymentAmount)
			}
			return true, nil
		})
		if err != nil {
			return err
		}

		err = r.Range(ProviderKeyPrefix, nil, func(_, value []byte) (bool, error) {
			var provider models.Provider
			if err := json.Unmarshal(value, &provider); err != nil {
				return false, xerrors.Errorf("decoding provider: %w", err)
			}
			if provider.ActiveJobs != open[provider.Address] {
				report.Violations = append(report.Violations, fmt.Sprintf(
					"provider %s: active_jobs %d, open jobs %d", provider.Address, provider.ActiveJobs, open[provider.Address]))
			}
			delete(open, provider.Address)
			return true, nil
		})
		if err != nil {
			return err
		}
		for addr, n := range open {
			report.Violations = append(report.Violations, fmt.Sprintf("%d open jobs reference missing provider %s", n, addr))
		}

		for _, job := range jobs {
			for _, key := range [][]byte{JobsByProviderKey(job.Provider, job.Id), JobsByClientKey(job.Client, job.Id)} {
				has, err := r.Has(key)
				if err != nil {
					return err
				}
				if !has {
					report.Violations = append(report.Violations, fmt.Sprintf("job %d missing index entry %x", job.Id, key))
				}
			}
		}

		check := func(prefix []byte, owner func(*models.Job) string) error {
			return r.Range(prefix, nil, func(key, _ []byte) (bool, error) {
				addr, id, ok := splitIndexKey(key)
				if !ok {
					report.Violations = append(report.Violations, fmt.Sprintf("malformed index key %x", key))
					return true, nil
				}
				job, found := jobs[id]
				if !found {
					report.Violations = append(report.Violations, fmt.Sprintf("index %s references missing job %d", addr, id))
				} else if owner(job) != addr {
					report.Violations = append(report.Violations, fmt.Sprintf("index %s references job %d of %s", addr, id, owner(job)))
				}
				return true, nil
			})
		}
		if err = check(JobsByProviderPrefix, func(j *models.Job) string { return j.Provider }); err != nil {
			return err
		}
		if err = check(JobsByClientPrefix, func(j *models.Job) string { return j.Client }); err != nil {
			return err
		}
		return checkFunds(r, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func checkFunds(r store.Reader, report *models.EscrowReport) error {
	err := r.Range(BalanceKeyPrefix, nil, func(key, value []byte) (bool, error) {
		var balance math.Int
		if err := json.Unmarshal(value, &balance); err != nil {
			return false, xerrors.Errorf("decoding balance %x: %w", key, err)
		}
		if balance.IsNegative() {
			report.Violations = append(report.Violations, fmt.Sprintf("balance %x is negative: %s", key, balance))
		}
		report.Balances = report.Balances.Add(balance)
		return true, nil
	})
	if err != nil {
		return err
	}

	err = r.Range(PendingSettlementPrefix, nil, func(key, value []byte) (bool, error) {
		var t models.Transfer
		if err := json.Unmarshal(value, &t); err != nil {
			return false, xerrors.Errorf("decoding settlement %d: %w", decodeID(key), err)
		}
		report.PendingCount++
		report.Pending = report.Pending.Add(t.Coin.Amount)
		return true, nil
	})
	if err != nil {
		return err
	}

	totals, err := loadTotals(r)
	if err != nil {
		return err
	}
	report.Deposited = totals.Deposited
	report.Released = totals.Released

	held := report.Balances.Add(report.Escrowed).Add(report.Released)
	if !held.Equal(report.Deposited) {
		report.Violations = append(report.Violations, fmt.Sprintf(
			"deposited %s, but balances %s + escrowed %s + released %s = %s",
			report.Deposited, report.Balances, report.Escrowed, report.Released, held))
	}
	if report.Pending.GT(report.Released) {
		report.Violations = append(report.Violations, fmt.Sprintf("pending %s exceeds released %s", report.Pending, report.Released))
	}
	return nil
}

func splitIndexKey(key []byte) (string, uint64, bool) {
	if len(key) < 1 {
		return "", 0, false
	}
	n := int(key[0])
	if len(key) != 1+n+8 {
		return "", 0, false
	}
	return string(key[1 : 1+n]), decodeID(key[1+n:]), true
}
