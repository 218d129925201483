package service

import (
	"context"
	"sync"
	"testing"

	"caradvisor/internal/model"
)

// stubRetriever hands out one canned response per query, in no particular
// order (queries run concurrently).
type stubRetriever struct {
	mu        sync.Mutex
	responses []string
	enabled   bool
}

func (s *stubRetriever) Query(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return "", context.DeadlineExceeded
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *stubRetriever) IsEnabled() bool { return s.enabled }

func TestEnrichFallbackWhenNothingParses(t *testing.T) {
	retriever := &stubRetriever{
		enabled:   true,
		responses: []string{"no data found", "still nothing", "sorry"},
	}
	e := NewEnricher(retriever, 3)

	record := e.Enrich(context.Background(), "Toyota Corolla", model.Profile{})

	if record.Valid {
		t.Error("fallback record must be invalid")
	}
	if len(record.Issues) != 1 || record.Issues[0] != model.InsufficientDataIssue {
		t.Errorf("Issues = %v, want [%q]", record.Issues, model.InsufficientDataIssue)
	}
	if record.ModelName != "Toyota Corolla" {
		t.Errorf("ModelName = %q", record.ModelName)
	}
}

func TestEnrichDisabledRetrieverFallsBack(t *testing.T) {
	e := NewEnricher(&stubRetriever{enabled: false}, 3)
	record := e.Enrich(context.Background(), "Mazda 3", model.Profile{})
	if record.Valid || len(record.Issues) != 1 || record.Issues[0] != model.InsufficientDataIssue {
		t.Errorf("record = %+v, want insufficient-data fallback", record)
	}
}

func TestEnrichAggregatesMeans(t *testing.T) {
	retriever := &stubRetriever{
		enabled: true,
		responses: []string{
			`{"price": 60000, "reliability_score": 80, "valid": true, "insurance": 7000, "fuel": 8000, "maintenance": 2000, "repairs": 1000, "depreciation": 5000, "issues": ["weak clutch"]}`,
			`{"price": 70000, "reliability_score": 90, "valid": true, "insurance": 9000, "fuel": 10000, "maintenance": 4000, "repairs": 3000, "depreciation": 7000, "issues": ["Weak clutch", "rust on sills"]}`,
		},
	}
	e := NewEnricher(retriever, 2)

	record := e.Enrich(context.Background(), "Toyota Corolla", model.Profile{})

	if !record.Valid {
		t.Fatal("record should be valid")
	}
	if record.Price == nil || *record.Price != 65000 {
		t.Errorf("Price = %v, want 65000", record.Price)
	}
	if record.ReliabilityScore != 85 {
		t.Errorf("ReliabilityScore = %d, want 85", record.ReliabilityScore)
	}
	want := model.AnnualCost{Insurance: 8000, Fuel: 9000, Maintenance: 3000, Repairs: 2000, Depreciation: 6000}
	if record.AnnualCost != want {
		t.Errorf("AnnualCost = %+v, want %+v", record.AnnualCost, want)
	}
	// Issues are deduplicated case-insensitively and sorted
	if len(record.Issues) != 2 || record.Issues[0] != "rust on sills" || record.Issues[1] != "weak clutch" {
		t.Errorf("Issues = %v", record.Issues)
	}
}

func TestEnrichSingleInvalidVetoes(t *testing.T) {
	retriever := &stubRetriever{
		enabled: true,
		responses: []string{
			`{"valid": true, "reliability_score": 90}`,
			`{"valid": false, "issues": ["not sold in Israel"]}`,
			`{"valid": true, "reliability_score": 88}`,
		},
	}
	e := NewEnricher(retriever, 3)

	record := e.Enrich(context.Background(), "Dodge Charger", model.Profile{})
	if record.Valid {
		t.Error("a single invalid response must veto the candidate")
	}
}

func TestEnrichClampsOutOfBandCosts(t *testing.T) {
	retriever := &stubRetriever{
		enabled: true,
		responses: []string{
			`{"valid": true, "insurance": 500000, "fuel": 100, "maintenance": 3000, "reliability_score": 90}`,
		},
	}
	e := NewEnricher(retriever, 1)

	record := e.Enrich(context.Background(), "BMW 320i", model.Profile{})

	if record.AnnualCost.Insurance != 8000 {
		t.Errorf("Insurance = %d, want category default 8000", record.AnnualCost.Insurance)
	}
	if record.AnnualCost.Fuel != 9000 {
		t.Errorf("Fuel = %d, want category default 9000", record.AnnualCost.Fuel)
	}
	if record.AnnualCost.Maintenance != 3000 {
		t.Errorf("Maintenance = %d, in-band value must pass through", record.AnnualCost.Maintenance)
	}
	// Missing depreciation falls back to the premium brand tier
	if record.AnnualCost.Depreciation != 12000 {
		t.Errorf("Depreciation = %d, want premium tier 12000", record.AnnualCost.Depreciation)
	}
	if record.ReliabilityScore != 90 {
		t.Errorf("ReliabilityScore = %d, want 90", record.ReliabilityScore)
	}
}

func TestEnrichDiscardsImplausibleResponses(t *testing.T) {
	retriever := &stubRetriever{
		enabled: true,
		responses: []string{
			`{"valid": true, "reliability_score": 150}`,
			`{"valid": true, "price": -5000}`,
		},
	}
	e := NewEnricher(retriever, 2)

	record := e.Enrich(context.Background(), "Kia Ceed", model.Profile{})
	if record.Valid || len(record.Issues) != 1 || record.Issues[0] != model.InsufficientDataIssue {
		t.Errorf("record = %+v, want fallback after all responses discarded", record)
	}
}

func TestEnrichBudgetRecheckInvalidates(t *testing.T) {
	retriever := &stubRetriever{
		enabled:   true,
		responses: []string{`{"valid": true, "price": 120000, "reliability_score": 95}`},
	}
	e := NewEnricher(retriever, 1)

	profile := model.Profile{"budget_min": 40000, "budget_max": 80000}
	record := e.Enrich(context.Background(), "Lexus IS300h", profile)

	if record.Valid {
		t.Error("price outside the stated budget must invalidate the candidate")
	}
}

func TestEnrichBudgetRecheckSkippedWhenBudgetPartial(t *testing.T) {
	retriever := &stubRetriever{
		enabled:   true,
		responses: []string{`{"valid": true, "price": 120000, "reliability_score": 95}`},
	}
	e := NewEnricher(retriever, 1)

	// Only one budget bound set: the local re-check must not fire
	record := e.Enrich(context.Background(), "Lexus IS300h", model.Profile{"budget_max": 80000})
	if !record.Valid {
		t.Error("partial budget must not trigger the local re-check")
	}
}
