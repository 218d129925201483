package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"caradvisor/internal/model"
	"caradvisor/internal/utils"
)

// CatalogStore is the reference-dataset capability: a structured table of
// known market models used to pre-filter candidates before spending
// external calls, plus the append-only run log. Implemented by the
// Postgres repository; nil when no catalog is configured.
type CatalogStore interface {
	LookupModel(ctx context.Context, name string) (*model.CarModel, error)
	FilterCatalog(ctx context.Context, filter model.CatalogFilter, limit int) ([]model.CarModel, error)
	SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]model.CarModel, error)
	LogRun(ctx context.Context, run *model.RunRecord) error
}

// CandidateGenerator proposes an initial unranked list of model names
// consistent with a completed profile.
type CandidateGenerator struct {
	gen           TextGenerator
	catalog       CatalogStore // optional
	maxCandidates int

	warnNoCatalog sync.Once
}

// NewCandidateGenerator creates a candidate generator
func NewCandidateGenerator(gen TextGenerator, catalog CatalogStore, maxCandidates int) *CandidateGenerator {
	return &CandidateGenerator{
		gen:           gen,
		catalog:       catalog,
		maxCandidates: maxCandidates,
	}
}

// Generate proposes candidate model names for the profile. Candidates the
// catalog positively rules out are dropped; names unknown to the catalog
// are kept, since the catalog is not assumed complete.
func (g *CandidateGenerator) Generate(ctx context.Context, profile model.Profile) ([]string, error) {
	if g.gen == nil || !g.gen.IsEnabled() {
		return nil, fmt.Errorf("text generation is not enabled")
	}

	raw, err := g.gen.Generate(ctx, GenerateRequest{
		System:      g.systemPrompt(),
		User:        g.userPrompt(profile),
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("candidate generation failed: %w", err)
	}

	names := parseCandidateNames(raw)
	if len(names) == 0 {
		return nil, fmt.Errorf("no candidates parsed from generator output")
	}
	if len(names) > g.maxCandidates {
		names = names[:g.maxCandidates]
	}

	names = g.preFilter(ctx, names, profile)

	// Too few survivors: let the catalog suggest semantically similar
	// models from the profile description.
	if g.catalog != nil && len(names) < 3 {
		names = g.supplementFromCatalog(ctx, names, profile)
	}

	return names, nil
}

// parseCandidateNames decodes a JSON string array from generator output,
// falling back to scanning for array snippets in surrounding prose.
func parseCandidateNames(raw string) []string {
	var names []string
	if err := utils.ParseAIJSON(raw, &names); err != nil {
		for _, snippet := range utils.ExtractJSONSnippets(raw) {
			var fromSnippet []string
			if json.Unmarshal([]byte(snippet), &fromSnippet) == nil && len(fromSnippet) > 0 {
				names = fromSnippet
				break
			}
		}
	}

	// Deduplicate, preserving order
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := utils.NormalizeText(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// preFilter drops candidates the catalog knows and rules out
func (g *CandidateGenerator) preFilter(ctx context.Context, names []string, profile model.Profile) []string {
	if g.catalog == nil {
		g.warnNoCatalog.Do(func() {
			log.Printf("Warning: no reference catalog configured, candidate pre-filter skipped")
		})
		return names
	}

	filter := catalogFilterFromProfile(profile)
	out := make([]string, 0, len(names))
	for _, name := range names {
		row, err := g.catalog.LookupModel(ctx, name)
		if err != nil {
			log.Printf("Warning: catalog lookup failed for %q: %v", name, err)
			out = append(out, name)
			continue
		}
		if row == nil || rowMatchesFilter(row, filter) {
			out = append(out, name)
		}
	}
	return out
}

// supplementFromCatalog adds similar catalog models when the generator
// returned too few usable names: semantic neighbours of the profile text
// when an embedding is available, structured filter matches otherwise.
func (g *CandidateGenerator) supplementFromCatalog(ctx context.Context, names []string, profile model.Profile) []string {
	rows := g.similarCatalogRows(ctx, profile)
	if len(rows) == 0 {
		return names
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[utils.NormalizeText(n)] = true
	}
	for _, row := range rows {
		if len(names) >= g.maxCandidates {
			break
		}
		key := utils.NormalizeText(row.ModelName)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, row.ModelName)
	}
	return names
}

// similarCatalogRows prefers the embedding-based neighbour search and falls
// back to the structured catalog filter when no embedding can be produced
func (g *CandidateGenerator) similarCatalogRows(ctx context.Context, profile model.Profile) []model.CarModel {
	embeddings, err := g.gen.CreateEmbeddings(ctx, []string{profileText(profile)})
	if err == nil && len(embeddings) > 0 {
		rows, err := g.catalog.SemanticSearch(ctx, embeddings[0], g.maxCandidates)
		if err == nil {
			return rows
		}
		log.Printf("Warning: semantic catalog search failed: %v", err)
	}

	rows, err := g.catalog.FilterCatalog(ctx, catalogFilterFromProfile(profile), g.maxCandidates)
	if err != nil {
		log.Printf("Warning: catalog filter query failed: %v", err)
		return nil
	}
	return rows
}

// catalogFilterFromProfile maps the profile's hard constraints to a filter
func catalogFilterFromProfile(profile model.Profile) model.CatalogFilter {
	var f model.CatalogFilter

	if v, ok := profile.Int("year_min"); ok && v > 0 {
		f.YearMin = &v
	}
	if v, ok := profile.Int("budget_min"); ok && v > 0 {
		min := float64(v)
		f.PriceMin = &min
	}
	if v, ok := profile.Int("budget_max"); ok && v > 0 {
		max := float64(v)
		f.PriceMax = &max
	}
	if fuel, ok := profile.String("fuel"); ok && fuel != "" {
		f.FuelType = &fuel
	}
	if gearbox, ok := profile.String("gearbox"); ok {
		switch utils.NormalizeText(gearbox) {
		case "automatic":
			t := true
			f.Automatic = &t
		case "manual":
			fa := false
			f.Automatic = &fa
		}
	}
	if cc, ok := profile.Int("engine_size"); ok && cc > 0 {
		// Hard displacement preferences rarely mean an exact figure
		lo, hi := cc*3/4, cc*5/4
		f.EngineCCMin = &lo
		f.EngineCCMax = &hi
	}

	return f
}

// rowMatchesFilter checks a known catalog row against the profile filter
func rowMatchesFilter(row *model.CarModel, f model.CatalogFilter) bool {
	if f.YearMin != nil && row.Year > 0 && row.Year < *f.YearMin {
		return false
	}
	if f.FuelType != nil && row.FuelType != nil &&
		utils.NormalizeText(*row.FuelType) != utils.NormalizeText(*f.FuelType) {
		return false
	}
	if f.Automatic != nil && row.Automatic != nil && *row.Automatic != *f.Automatic {
		return false
	}
	if row.PriceAvg != nil {
		if f.PriceMin != nil && *row.PriceAvg < *f.PriceMin {
			return false
		}
		if f.PriceMax != nil && *row.PriceAvg > *f.PriceMax {
			return false
		}
	}
	if row.EngineCC != nil {
		if f.EngineCCMin != nil && *row.EngineCC < *f.EngineCCMin {
			return false
		}
		if f.EngineCCMax != nil && *row.EngineCC > *f.EngineCCMax {
			return false
		}
	}
	return true
}

// profileText renders the profile as one line for embedding
func profileText(profile model.Profile) string {
	var parts []string
	for _, key := range []string{"body", "usage", "priority", "fuel", "gearbox", "brand_pref", "turbo", "region"} {
		if v, ok := profile.String(key); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func (g *CandidateGenerator) systemPrompt() string {
	return `You are a used-car purchase expert for the Israeli second-hand market. ` +
		`Given a buyer's requirements, propose concrete car models sold in Israel that fit them.

Rules:
- Respond ONLY with a JSON array of strings
- Each string is "Make Model", optionally with a generation or year range, e.g. "Toyota Corolla 2016-2019"
- Propose models across more than one manufacturer
- Do not include explanations or markdown`
}

func (g *CandidateGenerator) userPrompt(profile model.Profile) string {
	snapshot, _ := json.Marshal(profile)
	return fmt.Sprintf("Buyer requirements: %s\n\nPropose up to %d candidate models.", string(snapshot), g.maxCandidates)
}
