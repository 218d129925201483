package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"caradvisor/internal/model"
)

// cacheEntry holds a finished run along with the timestamp it was stored.
// Entries are immutable value snapshots, so racing overwrites are harmless.
type cacheEntry struct {
	recommendation *model.Recommendation
	storedAt       time.Time
}

// AdvisorService runs the recommendation pipeline for a completed profile:
// candidate generation, per-candidate enrichment fan-out, ranking and
// rendering. Results are cached per normalized profile.
type AdvisorService struct {
	generator *CandidateGenerator
	enricher  *Enricher
	ranker    *Ranker
	gen       TextGenerator // optional, for the advisory closing note
	catalog   CatalogStore  // optional, for the run log
	workers   int

	cache    *lru.Cache[string, cacheEntry]
	cacheTTL time.Duration
}

// NewAdvisorService creates the advisor pipeline
func NewAdvisorService(
	generator *CandidateGenerator,
	enricher *Enricher,
	ranker *Ranker,
	gen TextGenerator,
	catalog CatalogStore,
	workers int,
	cacheSize int,
	cacheTTL time.Duration,
) (*AdvisorService, error) {
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &AdvisorService{
		generator: generator,
		enricher:  enricher,
		ranker:    ranker,
		gen:       gen,
		catalog:   catalog,
		workers:   workers,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}, nil
}

// Recommend runs the full pipeline. Partial results are preferred over no
// results: candidates whose enrichment collapsed to the fallback record are
// simply excluded by ranking rather than failing the run.
func (s *AdvisorService) Recommend(ctx context.Context, sessionID string, profile model.Profile, emit TurnEmitter) (*model.Recommendation, error) {
	start := time.Now()

	cacheKey := profile.CacheKey()
	if entry, ok := s.cache.Get(cacheKey); ok {
		if time.Since(entry.storedAt) < s.cacheTTL {
			return entry.recommendation, nil
		}
		// Expired: recompute and overwrite unconditionally
	}

	if err := emitEvent(emit, "generating", map[string]any{"status": "Looking for matching models..."}); err != nil {
		return nil, err
	}

	names, err := s.generator.Generate(ctx, profile)
	if err != nil {
		return nil, err
	}

	if err := emitEvent(emit, "enriching", map[string]any{"candidates": names}); err != nil {
		return nil, err
	}

	records := s.enrichAll(ctx, names, profile, emit)
	result := s.ranker.Rank(records)

	rec := &model.Recommendation{
		Result: result,
		Text:   s.renderText(ctx, result, emit),
		Took:   time.Since(start).Milliseconds(),
	}

	s.cache.Add(cacheKey, cacheEntry{recommendation: rec, storedAt: time.Now()})

	// Append the audit record off the request path; a stale in-flight
	// write for an abandoned session is allowed to complete.
	if s.catalog != nil {
		go s.logRun(sessionID, profile, names, records, rec)
	}

	return rec, nil
}

// enrichAll fans enrichment out across candidates with a bounded worker
// pool. Each candidate's record lands in its own slot, so the reduction
// needs no locking.
func (s *AdvisorService) enrichAll(ctx context.Context, names []string, profile model.Profile, emit TurnEmitter) []model.CandidateRecord {
	records := make([]model.CandidateRecord, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			records[i] = s.enricher.Enrich(gctx, name, profile)
			return nil
		})
	}
	// Workers never return errors; Wait only joins them
	_ = g.Wait()

	if emit != nil {
		for _, r := range records {
			_ = emitEvent(emit, "enriched", r)
		}
	}

	return records
}

// renderText renders the shortlist for the chat transcript, optionally
// closing with a model-written advisory note.
func (s *AdvisorService) renderText(ctx context.Context, result model.AggregationResult, emit TurnEmitter) string {
	if len(result.Records) == 0 {
		return "No qualifying candidates were found for your requirements. " +
			"Consider widening the budget range or relaxing the model year."
	}

	var b strings.Builder
	b.WriteString("Here are my top recommendations:\n")
	for i, rec := range result.Records {
		fmt.Fprintf(&b, "%d. %s - reliability %d/100, estimated annual cost %d ILS",
			i+1, rec.ModelName, rec.ReliabilityScore, rec.AnnualCost.Total())
		if rec.Price != nil {
			fmt.Fprintf(&b, ", typical price %.0f ILS", *rec.Price)
		}
		if len(rec.Issues) > 0 {
			limit := len(rec.Issues)
			if limit > 3 {
				limit = 3
			}
			fmt.Fprintf(&b, " (known issues: %s)", strings.Join(rec.Issues[:limit], "; "))
		}
		b.WriteString("\n")
	}

	if note := s.advisoryNote(ctx, result, emit); note != "" {
		b.WriteString("\n")
		b.WriteString(note)
	}

	return strings.TrimRight(b.String(), "\n")
}

// advisoryNote asks the generator for a short closing paragraph, relaying
// tokens over the emitter as the model writes them; failures degrade to no
// note.
func (s *AdvisorService) advisoryNote(ctx context.Context, result model.AggregationResult, emit TurnEmitter) string {
	if s.gen == nil || !s.gen.IsEnabled() {
		return ""
	}

	payload, err := json.Marshal(result.Records)
	if err != nil {
		return ""
	}

	note, err := s.gen.GenerateStream(ctx, GenerateRequest{
		System: "You are a used-car purchase advisor. Write one short, practical closing paragraph " +
			"(2-3 sentences) comparing the ranked models you are given. Plain text, no markdown, no lists.",
		User:        string(payload),
		Temperature: 0.6,
	}, func(chunk *StreamChunk) error {
		if chunk.Content == "" {
			return nil
		}
		return emitEvent(emit, "note", map[string]any{"content": chunk.Content})
	})
	if err != nil {
		log.Printf("Warning: advisory note generation failed: %v", err)
		return ""
	}
	return strings.TrimSpace(note)
}

func (s *AdvisorService) logRun(sessionID string, profile model.Profile, names []string, records []model.CandidateRecord, rec *model.Recommendation) {
	rawRecords, err := json.Marshal(records)
	if err != nil {
		log.Printf("Warning: failed to marshal run records: %v", err)
		return
	}

	run := &model.RunRecord{
		SessionID:      sessionID,
		Profile:        model.JSONMap(profile),
		Candidates:     model.JSONArray(names),
		Records:        rawRecords,
		Recommendation: rec.Text,
		TookMs:         int(rec.Took),
	}

	if err := s.catalog.LogRun(context.Background(), run); err != nil {
		log.Printf("Warning: failed to log advisor run: %v", err)
	}
}
