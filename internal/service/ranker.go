package service

import (
	"sort"

	"caradvisor/internal/model"
)

// RankPolicy selects the fixed sort applied to valid candidates.
// The policy is chosen at construction and never mixed within a run.
type RankPolicy string

const (
	// PolicyReliability sorts by reliability descending, ties broken by
	// lowest total annual cost. The canonical default.
	PolicyReliability RankPolicy = "reliability"
	// PolicyCost sorts by total annual cost ascending, ties broken by
	// highest reliability.
	PolicyCost RankPolicy = "cost"
)

// Ranker selects and orders the recommendation shortlist
type Ranker struct {
	policy RankPolicy
	topN   int
}

// NewRanker creates a ranker for a policy and shortlist size
func NewRanker(policy RankPolicy, topN int) *Ranker {
	return &Ranker{policy: policy, topN: topN}
}

// Rank filters to valid records, orders them under the policy and
// truncates to the shortlist size. An empty result is a normal outcome
// ("no qualifying candidates"), not an error.
func (r *Ranker) Rank(records []model.CandidateRecord) model.AggregationResult {
	valid := make([]model.CandidateRecord, 0, len(records))
	for _, rec := range records {
		if rec.Valid {
			valid = append(valid, rec)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return r.less(valid[i], valid[j])
	})

	if len(valid) > r.topN {
		valid = valid[:r.topN]
	}

	return model.AggregationResult{
		Records: valid,
		Policy:  string(r.policy),
	}
}

func (r *Ranker) less(a, b model.CandidateRecord) bool {
	costA, costB := a.AnnualCost.Total(), b.AnnualCost.Total()

	if r.policy == PolicyCost {
		if costA != costB {
			return costA < costB
		}
		return a.ReliabilityScore > b.ReliabilityScore
	}

	// reliability-primary
	if a.ReliabilityScore != b.ReliabilityScore {
		return a.ReliabilityScore > b.ReliabilityScore
	}
	return costA < costB
}
