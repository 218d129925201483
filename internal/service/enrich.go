package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"caradvisor/internal/model"
	"caradvisor/internal/utils"
)

// costBand is the plausible range for one annual cost category, in ILS.
// An aggregated value outside its band is replaced by the category default:
// the upstream source is an unverified generator and extreme figures are
// more likely hallucinated than real.
type costBand struct {
	min, max, def int
}

var costBands = map[string]costBand{
	"insurance":    {6000, 12000, 8000},
	"fuel":         {3000, 15000, 9000},
	"maintenance":  {1000, 6000, 3000},
	"repairs":      {500, 5000, 2000},
	"depreciation": {2000, 15000, 8000},
}

// depreciationTiers groups manufacturers by how fast they typically lose
// value; consulted only when the aggregated depreciation figure falls
// outside its band.
var depreciationTiers = map[string]int{
	"toyota": 6000, "honda": 6000, "mazda": 6000, "suzuki": 6000,
	"hyundai": 6000, "kia": 6000, "mitsubishi": 6000, "skoda": 6000,
	"bmw": 12000, "mercedes": 12000, "audi": 12000, "lexus": 12000,
	"volvo": 12000, "jaguar": 12000, "land rover": 12000, "porsche": 12000,
}

// enrichResponse is the strict schema one retrieval response must satisfy.
// Optional fields stay nil when omitted; a response that fails to decode is
// discarded rather than salvaged.
type enrichResponse struct {
	Price        *float64 `json:"price,omitempty"`
	ModelYear    *int     `json:"model_year,omitempty"`
	Valid        *bool    `json:"valid,omitempty"`
	Reliability  *int     `json:"reliability_score,omitempty"`
	Insurance    *int     `json:"insurance,omitempty"`
	Fuel         *int     `json:"fuel,omitempty"`
	Maintenance  *int     `json:"maintenance,omitempty"`
	Repairs      *int     `json:"repairs,omitempty"`
	Depreciation *int     `json:"depreciation,omitempty"`
	Issues       []string `json:"issues,omitempty"`
}

// Enricher cross-checks each candidate against the information-retrieval
// capability and produces one aggregated CandidateRecord per candidate.
type Enricher struct {
	retriever Retriever
	repeats   int // queries per candidate, the retry budget
}

// NewEnricher creates an enricher. repeats must be >= 1 (validated at
// config load).
func NewEnricher(retriever Retriever, repeats int) *Enricher {
	return &Enricher{retriever: retriever, repeats: repeats}
}

// Enrich issues the repeat queries for one candidate and aggregates the
// parsed responses. It never returns an error: all failures collapse into
// the insufficient-data fallback record. Invocations are independent and
// safe to run concurrently.
func (e *Enricher) Enrich(ctx context.Context, modelName string, profile model.Profile) model.CandidateRecord {
	responses := e.collectResponses(ctx, modelName, profile)
	if len(responses) == 0 {
		return fallbackRecord(modelName)
	}
	return e.aggregate(modelName, profile, responses)
}

// collectResponses runs the repeat queries concurrently and keeps only the
// ones that parse. A timed-out or malformed response contributes nothing
// and does not abort its siblings.
func (e *Enricher) collectResponses(ctx context.Context, modelName string, profile model.Profile) []enrichResponse {
	if e.retriever == nil || !e.retriever.IsEnabled() {
		return nil
	}

	prompt := e.prompt(modelName, profile)

	var mu sync.Mutex
	var responses []enrichResponse
	var wg sync.WaitGroup

	for i := 0; i < e.repeats; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			raw, err := e.retriever.Query(ctx, prompt)
			if err != nil {
				log.Printf("Warning: enrichment query failed for %q: %v", modelName, err)
				return
			}

			var parsed enrichResponse
			if err := utils.ParseAIJSON(raw, &parsed); err != nil {
				log.Printf("Warning: discarding unparsable enrichment response for %q: %v", modelName, err)
				return
			}
			if !plausible(parsed) {
				log.Printf("Warning: discarding implausible enrichment response for %q", modelName)
				return
			}

			mu.Lock()
			responses = append(responses, parsed)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return responses
}

// plausible rejects responses whose fields violate basic sanity checks
func plausible(r enrichResponse) bool {
	if r.Reliability != nil && (*r.Reliability < 0 || *r.Reliability > 100) {
		return false
	}
	if r.Price != nil && *r.Price < 0 {
		return false
	}
	if r.ModelYear != nil && (*r.ModelYear < 1980 || *r.ModelYear > 2100) {
		return false
	}
	return true
}

// aggregate reduces the parsed responses into one record: arithmetic mean
// for every numeric field, most-pessimistic validity, deduplicated issues.
func (e *Enricher) aggregate(modelName string, profile model.Profile, responses []enrichResponse) model.CandidateRecord {
	record := model.CandidateRecord{
		ModelName: modelName,
		Valid:     true,
		Issues:    []string{},
	}

	// A single out-of-budget or not-sold-here signal vetoes the
	// candidate; a false positive costs the user more than a false
	// negative.
	for _, r := range responses {
		if r.Valid != nil && !*r.Valid {
			record.Valid = false
		}
	}

	if price, ok := meanFloat(responses, func(r enrichResponse) *float64 { return r.Price }); ok {
		record.Price = &price
	}
	if year, ok := meanInt(responses, func(r enrichResponse) *int { return r.ModelYear }); ok {
		record.ModelYear = &year
	}
	if rel, ok := meanInt(responses, func(r enrichResponse) *int { return r.Reliability }); ok {
		record.ReliabilityScore = clampInt(rel, 0, 100)
	}

	record.AnnualCost = model.AnnualCost{
		Insurance:    e.clampCost("insurance", responses, func(r enrichResponse) *int { return r.Insurance }, modelName),
		Fuel:         e.clampCost("fuel", responses, func(r enrichResponse) *int { return r.Fuel }, modelName),
		Maintenance:  e.clampCost("maintenance", responses, func(r enrichResponse) *int { return r.Maintenance }, modelName),
		Repairs:      e.clampCost("repairs", responses, func(r enrichResponse) *int { return r.Repairs }, modelName),
		Depreciation: e.clampCost("depreciation", responses, func(r enrichResponse) *int { return r.Depreciation }, modelName),
	}

	record.Issues = dedupeIssues(responses)

	// Local budget re-check: a known price strictly outside a fully
	// specified budget invalidates the candidate even when every
	// response claimed validity.
	if record.Price != nil {
		budgetMin, okMin := profile.Int("budget_min")
		budgetMax, okMax := profile.Int("budget_max")
		if okMin && okMax && budgetMin > 0 && budgetMax > 0 {
			if *record.Price < float64(budgetMin) || *record.Price > float64(budgetMax) {
				record.Valid = false
			}
		}
	}

	return record
}

// clampCost averages one cost category and clamps it to the plausible
// band, falling back to the category default (brand-aware for
// depreciation) when the aggregate is out of band or missing.
func (e *Enricher) clampCost(category string, responses []enrichResponse, pick func(enrichResponse) *int, modelName string) int {
	band := costBands[category]

	def := band.def
	if category == "depreciation" {
		if tierDef, ok := brandDepreciationDefault(modelName); ok {
			def = tierDef
		}
	}

	value, ok := meanInt(responses, pick)
	if !ok || value < band.min || value > band.max {
		return def
	}
	return value
}

// brandDepreciationDefault looks up the depreciation tier for the
// candidate's manufacturer
func brandDepreciationDefault(modelName string) (int, bool) {
	norm := utils.NormalizeText(modelName)
	for brand, def := range depreciationTiers {
		if strings.Contains(norm, brand) {
			return def, true
		}
	}
	return 0, false
}

// fallbackRecord is returned when zero responses parsed across all repeats
func fallbackRecord(modelName string) model.CandidateRecord {
	return model.CandidateRecord{
		ModelName: modelName,
		Valid:     false,
		Issues:    []string{model.InsufficientDataIssue},
	}
}

func dedupeIssues(responses []enrichResponse) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range responses {
		for _, issue := range r.Issues {
			issue = strings.TrimSpace(issue)
			if issue == "" {
				continue
			}
			key := utils.NormalizeText(issue)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, issue)
		}
	}
	sort.Strings(out)
	return out
}

func meanFloat(responses []enrichResponse, pick func(enrichResponse) *float64) (float64, bool) {
	var sum float64
	var n int
	for _, r := range responses {
		if v := pick(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func meanInt(responses []enrichResponse, pick func(enrichResponse) *int) (int, bool) {
	var sum int
	var n int
	for _, r := range responses {
		if v := pick(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int(math.Round(float64(sum) / float64(n))), true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Enricher) prompt(modelName string, profile model.Profile) string {
	snapshot, _ := json.Marshal(profile)
	return fmt.Sprintf(`You are researching the Israeli second-hand car market. `+
		`For the candidate model %q and this buyer profile %s, answer ONLY with a JSON object:

{
  "price": typical asking price in ILS (number),
  "model_year": typical model year on the second-hand market (integer),
  "valid": whether the model fits the buyer's budget and is sold in Israel (boolean),
  "reliability_score": reliability from 0 to 100 (integer),
  "insurance": annual insurance cost in ILS (integer),
  "fuel": annual fuel cost in ILS for the buyer's yearly mileage (integer),
  "maintenance": annual scheduled maintenance cost in ILS (integer),
  "repairs": expected annual unscheduled repair cost in ILS (integer),
  "depreciation": expected annual depreciation in ILS (integer),
  "issues": array of known defects or weak points (strings)
}

Omit a field if you cannot estimate it. No markdown, no explanations.`, modelName, string(snapshot))
}
