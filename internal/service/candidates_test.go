package service

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"caradvisor/internal/model"
)

// fakeCatalog is an in-memory CatalogStore for candidate tests
type fakeCatalog struct {
	filterRows    []model.CarModel
	semanticRows  []model.CarModel
	filterCalls   int
	semanticCalls int
}

func (c *fakeCatalog) LookupModel(ctx context.Context, name string) (*model.CarModel, error) {
	return nil, nil
}

func (c *fakeCatalog) FilterCatalog(ctx context.Context, filter model.CatalogFilter, limit int) ([]model.CarModel, error) {
	c.filterCalls++
	return c.filterRows, nil
}

func (c *fakeCatalog) SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]model.CarModel, error) {
	c.semanticCalls++
	return c.semanticRows, nil
}

func (c *fakeCatalog) LogRun(ctx context.Context, run *model.RunRecord) error {
	return nil
}

func TestParseCandidateNames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "Clean array",
			input: `["Toyota Corolla", "Mazda 3"]`,
			want:  []string{"Toyota Corolla", "Mazda 3"},
		},
		{
			name:  "Array in prose",
			input: "Here are my picks:\n[\"Kia Ceed\", \"Hyundai i30\"]\nGood luck!",
			want:  []string{"Kia Ceed", "Hyundai i30"},
		},
		{
			name:  "Duplicates collapsed case-insensitively",
			input: `["Toyota Corolla", "toyota corolla", "Mazda 3", ""]`,
			want:  []string{"Toyota Corolla", "Mazda 3"},
		},
		{
			name:  "Markdown fenced",
			input: "```json\n[\"Skoda Octavia\"]\n```",
			want:  []string{"Skoda Octavia"},
		},
		{
			name:  "Nothing usable",
			input: "I cannot answer that.",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCandidateNames(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCandidateNames() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateCapsAtMaxCandidates(t *testing.T) {
	gen := &stubGenerator{Response: `["a1","a2","a3","a4","a5","a6","a7","a8","a9"]`}
	g := NewCandidateGenerator(gen, nil, 7)

	names, err := g.Generate(context.Background(), model.Profile{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(names) != 7 {
		t.Errorf("len(names) = %d, want 7", len(names))
	}
}

func TestGenerateErrorsWithoutUsableOutput(t *testing.T) {
	gen := &stubGenerator{Response: "I really could not think of anything."}
	g := NewCandidateGenerator(gen, nil, 7)

	if _, err := g.Generate(context.Background(), model.Profile{}); err == nil {
		t.Fatal("Generate() must fail when no candidates parse")
	}
}

func TestGenerateSupplementsFromCatalogFilter(t *testing.T) {
	// stubGenerator cannot embed, so the supplement must come from the
	// structured catalog filter
	gen := &stubGenerator{Response: `["Toyota Corolla"]`}
	catalog := &fakeCatalog{filterRows: []model.CarModel{
		{ModelName: "Mazda 3"},
		{ModelName: "Toyota Corolla"}, // already proposed, must not duplicate
		{ModelName: "Kia Ceed"},
	}}
	g := NewCandidateGenerator(gen, catalog, 7)

	names, err := g.Generate(context.Background(), model.Profile{"year_min": 2016})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := []string{"Toyota Corolla", "Mazda 3", "Kia Ceed"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Generate() = %v, want %v", names, want)
	}
	if catalog.filterCalls != 1 {
		t.Errorf("FilterCatalog called %d times, want 1", catalog.filterCalls)
	}
}

func TestGenerateConcurrentWithoutCatalog(t *testing.T) {
	gen := &stubGenerator{Response: `["a1","a2","a3","a4"]`}
	g := NewCandidateGenerator(gen, nil, 7)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Generate(context.Background(), model.Profile{}); err != nil {
				t.Errorf("Generate() error = %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestCatalogFilterFromProfile(t *testing.T) {
	profile := model.Profile{
		"year_min":    2016,
		"budget_min":  40000,
		"budget_max":  80000,
		"fuel":        "hybrid",
		"gearbox":     "automatic",
		"engine_size": 1600,
	}

	f := catalogFilterFromProfile(profile)

	if f.YearMin == nil || *f.YearMin != 2016 {
		t.Errorf("YearMin = %v, want 2016", f.YearMin)
	}
	if f.PriceMin == nil || *f.PriceMin != 40000 {
		t.Errorf("PriceMin = %v, want 40000", f.PriceMin)
	}
	if f.PriceMax == nil || *f.PriceMax != 80000 {
		t.Errorf("PriceMax = %v, want 80000", f.PriceMax)
	}
	if f.FuelType == nil || *f.FuelType != "hybrid" {
		t.Errorf("FuelType = %v, want hybrid", f.FuelType)
	}
	if f.Automatic == nil || !*f.Automatic {
		t.Errorf("Automatic = %v, want true", f.Automatic)
	}
	if f.EngineCCMin == nil || *f.EngineCCMin != 1200 {
		t.Errorf("EngineCCMin = %v, want 1200", f.EngineCCMin)
	}
	if f.EngineCCMax == nil || *f.EngineCCMax != 2000 {
		t.Errorf("EngineCCMax = %v, want 2000", f.EngineCCMax)
	}
}

func TestRowMatchesFilter(t *testing.T) {
	year := 2018
	fuel := "hybrid"
	auto := true
	price := 60000.0

	row := &model.CarModel{
		ModelName: "Toyota Corolla Hybrid",
		Year:      year,
		FuelType:  &fuel,
		Automatic: &auto,
		PriceAvg:  &price,
	}

	yearMin := 2016
	priceMax := 80000.0
	f := model.CatalogFilter{YearMin: &yearMin, FuelType: &fuel, PriceMax: &priceMax}
	if !rowMatchesFilter(row, f) {
		t.Error("matching row rejected")
	}

	badYear := 2020
	f.YearMin = &badYear
	if rowMatchesFilter(row, f) {
		t.Error("row older than year_min accepted")
	}

	f.YearMin = &yearMin
	petrol := "petrol"
	f.FuelType = &petrol
	if rowMatchesFilter(row, f) {
		t.Error("fuel type mismatch accepted")
	}
}
