package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"caradvisor/internal/model"
)

// stubGenerator returns a canned completion, or an error when Response is
// empty. It satisfies TextGenerator for dialogue and candidate tests.
type stubGenerator struct {
	mu       sync.Mutex
	Response string
	Requests []GenerateRequest
}

func (s *stubGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	s.mu.Lock()
	s.Requests = append(s.Requests, req)
	s.mu.Unlock()
	if s.Response == "" {
		return "", context.DeadlineExceeded
	}
	return s.Response, nil
}

func (s *stubGenerator) GenerateStream(ctx context.Context, req GenerateRequest, callback func(chunk *StreamChunk) error) (string, error) {
	return s.Generate(ctx, req)
}

func (s *stubGenerator) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, context.DeadlineExceeded
}

func (s *stubGenerator) IsEnabled() bool { return true }

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	registry, err := model.NewRegistry([]model.Slot{
		{Key: "budget_max", Label: "Maximum budget", Prompt: "What is your maximum budget?", Kind: model.SlotInt, Required: true},
		{Key: "body", Label: "Body type", Prompt: "What body type?", Kind: model.SlotChoice, Required: true, Options: []string{"family", "compact"}},
		{Key: "brand_pref", Label: "Preferred brand", Prompt: "Preferred brand?", Kind: model.SlotText, Required: false},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return registry
}

func newTestSession(t *testing.T, registry *model.Registry) *Session {
	t.Helper()
	return NewSessionManager(registry).GetOrCreate("")
}

func TestHandleTurnAsksFirstMissingRequiredSlot(t *testing.T) {
	registry := testRegistry(t)
	d := NewDialogueManager(registry, nil, nil)
	s := newTestSession(t, registry)

	resp, err := d.HandleTurn(context.Background(), s, "hi there", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.Ask == nil || resp.Ask.SlotKey != "budget_max" {
		t.Fatalf("Ask = %+v, want budget_max", resp.Ask)
	}
	if resp.Done {
		t.Error("turn reported done with required slots missing")
	}
}

func TestHandleTurnBindsPendingSlot(t *testing.T) {
	registry := testRegistry(t)
	d := NewDialogueManager(registry, nil, nil)
	s := newTestSession(t, registry)

	ctx := context.Background()
	if _, err := d.HandleTurn(ctx, s, "hi", nil); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	resp, err := d.HandleTurn(ctx, s, "40 thousand", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if v, _ := s.Profile.Int("budget_max"); v != 40000 {
		t.Errorf("budget_max = %d, want 40000", v)
	}
	if resp.Ask == nil || resp.Ask.SlotKey != "body" {
		t.Errorf("Ask = %+v, want body next", resp.Ask)
	}
}

func TestHandleTurnReasksAfterFailedCoercion(t *testing.T) {
	registry := testRegistry(t)
	d := NewDialogueManager(registry, nil, nil)
	s := newTestSession(t, registry)

	ctx := context.Background()
	if _, err := d.HandleTurn(ctx, s, "hi", nil); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	resp, err := d.HandleTurn(ctx, s, "no idea really", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if s.Profile.IsSet("budget_max") {
		t.Error("unparsable answer must not set the slot")
	}
	if resp.Ask == nil || resp.Ask.SlotKey != "budget_max" {
		t.Errorf("Ask = %+v, want budget_max re-asked", resp.Ask)
	}
}

func TestHandleTurnCompletionEmitsSummaryOnce(t *testing.T) {
	registry := testRegistry(t)
	d := NewDialogueManager(registry, nil, nil)
	s := newTestSession(t, registry)

	ctx := context.Background()
	turns := []string{"hi", "80 thousand", "family"}
	var last *model.ChatResponse
	for _, utterance := range turns {
		var err error
		last, err = d.HandleTurn(ctx, s, utterance, nil)
		if err != nil {
			t.Fatalf("HandleTurn(%q) error = %v", utterance, err)
		}
	}

	if !last.Done {
		t.Fatal("dialogue not done after all required slots answered")
	}
	if last.Ask != nil {
		t.Errorf("Ask = %+v on the completed turn, want nil", last.Ask)
	}

	summaries := 0
	for _, msg := range s.Transcript {
		if strings.Contains(msg.Content, "summary of your requirements") {
			summaries++
		}
	}
	if summaries != 1 {
		t.Errorf("summary emitted %d times, want exactly once", summaries)
	}

	summary := last.Messages[0].Content
	if !strings.Contains(summary, "Maximum budget: 80000") {
		t.Errorf("summary missing budget line: %q", summary)
	}
	if !strings.Contains(summary, "Body type: family") {
		t.Errorf("summary missing body line: %q", summary)
	}
}

func TestHandleTurnAfterDoneIsTerminal(t *testing.T) {
	registry := testRegistry(t)
	d := NewDialogueManager(registry, nil, nil)
	s := newTestSession(t, registry)

	ctx := context.Background()
	for _, utterance := range []string{"hi", "80 thousand", "family"} {
		if _, err := d.HandleTurn(ctx, s, utterance, nil); err != nil {
			t.Fatalf("HandleTurn(%q) error = %v", utterance, err)
		}
	}

	resp, err := d.HandleTurn(ctx, s, "90 thousand actually", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !resp.Done {
		t.Error("completed session must stay done")
	}
	if v, _ := s.Profile.Int("budget_max"); v != 80000 {
		t.Errorf("budget_max = %d, terminal turn mutated the profile", v)
	}
}

func TestHandleTurnInterpreterMergeIsNonDestructive(t *testing.T) {
	registry := testRegistry(t)
	gen := &stubGenerator{Response: `{"budget_max": 99999, "brand_pref": "mazda"}`}
	d := NewDialogueManager(registry, NewInterpreter(gen, registry), nil)
	s := newTestSession(t, registry)

	ctx := context.Background()
	if _, err := d.HandleTurn(ctx, s, "hi", nil); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	// Explicit answer binds budget_max before the interpreter runs
	if _, err := d.HandleTurn(ctx, s, "40 thousand, ideally a mazda", nil); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if v, _ := s.Profile.Int("budget_max"); v != 40000 {
		t.Errorf("budget_max = %d, interpreter overwrote the explicit answer", v)
	}
	if v, _ := s.Profile.String("brand_pref"); v != "mazda" {
		t.Errorf("brand_pref = %q, interpreter extraction not merged", v)
	}
}

func TestHandleTurnInterpreterFailureIsSoft(t *testing.T) {
	registry := testRegistry(t)
	gen := &stubGenerator{} // empty response forces an error
	d := NewDialogueManager(registry, NewInterpreter(gen, registry), nil)
	s := newTestSession(t, registry)

	ctx := context.Background()
	if _, err := d.HandleTurn(ctx, s, "hi", nil); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	resp, err := d.HandleTurn(ctx, s, "60 thousand", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if v, _ := s.Profile.Int("budget_max"); v != 60000 {
		t.Errorf("budget_max = %d, binding must survive interpreter failure", v)
	}
	if resp.Ask == nil || resp.Ask.SlotKey != "body" {
		t.Errorf("Ask = %+v, want body next", resp.Ask)
	}
}

func TestSessionManagerReset(t *testing.T) {
	registry := testRegistry(t)
	m := NewSessionManager(registry)
	d := NewDialogueManager(registry, nil, nil)

	s := m.GetOrCreate("")
	ctx := context.Background()
	for _, utterance := range []string{"hi", "80 thousand", "family"} {
		if _, err := d.HandleTurn(ctx, s, utterance, nil); err != nil {
			t.Fatalf("HandleTurn(%q) error = %v", utterance, err)
		}
	}

	fresh := m.Reset(s.ID)
	if fresh.ID != s.ID {
		t.Errorf("Reset changed the session id: %q vs %q", fresh.ID, s.ID)
	}
	if fresh.Done || len(fresh.Profile) != 0 || fresh.Pending != nil {
		t.Error("Reset did not return to the initial state")
	}
	if len(fresh.Transcript) != 1 || fresh.Transcript[0].Role != "assistant" {
		t.Errorf("fresh session transcript = %+v, want single greeting", fresh.Transcript)
	}

	// Resetting an unknown session just creates it
	unknown := m.Reset("never-seen")
	if unknown == nil || unknown.ID != "never-seen" {
		t.Error("Reset of an unknown session must create it")
	}
}
