package market

import (
	"cosmossdk.io/math"

	"github.com/lagrangedao/go-computing-market/internal/models"
)

// InitialReputation is assigned at registration.
var InitialReputation = math.LegacyNewDec(50)

// ComputeReputation returns the completion rate as a percentage, 100 for a
// provider with no finished jobs.
func ComputeReputation(completed, failed uint64) math.LegacyDec {
	total := completed + failed
	if total == 0 {
		return math.LegacyNewDec(100)
	}
	return math.LegacyNewDecFromInt(math.NewIntFromUint64(completed).MulRaw(100)).
		Quo(math.LegacyNewDecFromInt(math.NewIntFromUint64(total)))
}

// recordFailure counts a failed or timed out job and refreshes the reputation.
// Completions only bump the counter (see recordCompletion), so reputation moves
// on failures alone.
func recordFailure(p *models.Provider) {
	releaseSlot(p)
	p.TotalFailed++
	p.Reputation = ComputeReputation(p.TotalCompleted, p.TotalFailed)
}

func recordCompletion(p *models.Provider) {
	releaseSlot(p)
	p.TotalCompleted++
}

func releaseSlot(p *models.Provider) {
	if p.ActiveJobs > 0 {
		p.ActiveJobs--
	}
}
