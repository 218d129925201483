package service

import (
	"testing"

	"caradvisor/internal/model"
)

func rec(name string, reliability, totalCost int, valid bool) model.CandidateRecord {
	return model.CandidateRecord{
		ModelName:        name,
		Valid:            valid,
		ReliabilityScore: reliability,
		AnnualCost:       model.AnnualCost{Maintenance: totalCost},
	}
}

func names(result model.AggregationResult) []string {
	out := make([]string, len(result.Records))
	for i, r := range result.Records {
		out[i] = r.ModelName
	}
	return out
}

func TestRankReliabilityPolicy(t *testing.T) {
	r := NewRanker(PolicyReliability, 5)

	result := r.Rank([]model.CandidateRecord{
		rec("cheap but fragile", 60, 10000, true),
		rec("solid and cheap", 90, 12000, true),
		rec("solid but pricey", 90, 20000, true),
		rec("ruled out", 99, 5000, false),
	})

	want := []string{"solid and cheap", "solid but pricey", "cheap but fragile"}
	got := names(result)
	if len(got) != len(want) {
		t.Fatalf("Rank() returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Rank()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if result.Policy != "reliability" {
		t.Errorf("Policy = %q, want reliability", result.Policy)
	}
}

func TestRankCostPolicy(t *testing.T) {
	r := NewRanker(PolicyCost, 5)

	result := r.Rank([]model.CandidateRecord{
		rec("pricey", 95, 20000, true),
		rec("cheap", 70, 10000, true),
		rec("same cost higher reliability", 90, 10000, true),
	})

	want := []string{"same cost higher reliability", "cheap", "pricey"}
	got := names(result)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Rank()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRankTruncatesToTopN(t *testing.T) {
	r := NewRanker(PolicyReliability, 5)

	var records []model.CandidateRecord
	for i := 0; i < 8; i++ {
		records = append(records, rec("model", 50+i, 10000, true))
	}

	result := r.Rank(records)
	if len(result.Records) != 5 {
		t.Errorf("len(Records) = %d, want 5", len(result.Records))
	}
	// Highest reliability first after truncation
	if result.Records[0].ReliabilityScore != 57 {
		t.Errorf("top reliability = %d, want 57", result.Records[0].ReliabilityScore)
	}
}

func TestRankAllInvalidIsEmptyNotError(t *testing.T) {
	r := NewRanker(PolicyReliability, 5)

	result := r.Rank([]model.CandidateRecord{
		rec("a", 90, 10000, false),
		rec("b", 80, 12000, false),
	})
	if len(result.Records) != 0 {
		t.Errorf("Records = %v, want empty", result.Records)
	}
}
