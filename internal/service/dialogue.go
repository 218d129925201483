package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caradvisor/internal/model"
)

// TurnEmitter receives progress events during a turn (SSE streaming).
// A nil emitter is valid and skips progress reporting.
type TurnEmitter func(event string, data any) error

// DialogueManager owns the slot-filling state machine: it binds utterances
// to the pending slot, merges free-text interpretations, decides the next
// question and detects completion.
type DialogueManager struct {
	registry    *model.Registry
	interpreter *Interpreter    // optional
	advisor     *AdvisorService // runs on completion
}

// NewDialogueManager creates a dialogue manager
func NewDialogueManager(registry *model.Registry, interpreter *Interpreter, advisor *AdvisorService) *DialogueManager {
	return &DialogueManager{
		registry:    registry,
		interpreter: interpreter,
		advisor:     advisor,
	}
}

// HandleTurn processes one user utterance and returns the assistant's side
// of the turn. One utterance produces exactly one state transition.
func (d *DialogueManager) HandleTurn(ctx context.Context, s *Session, utterance string, emit TurnEmitter) (*model.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.appendMessage("user", utterance)

	resp := &model.ChatResponse{SessionID: s.ID}

	if s.Done {
		msg := "This consultation is complete. Send a reset to start over."
		s.appendMessage("assistant", msg)
		resp.Messages = append(resp.Messages, model.Message{Role: "assistant", Content: msg})
		resp.Profile = s.Profile.Clone()
		resp.Done = true
		resp.Took = time.Since(start).Milliseconds()
		return resp, nil
	}

	// Step 1: bind the utterance to the pending slot. The pointer is
	// cleared even when coercion fails, so a stale ask can never loop;
	// the missing-slot recomputation below re-prompts when still needed.
	if s.Pending != nil {
		if slot, ok := d.registry.Get(s.Pending.SlotKey); ok {
			if value := Coerce(slot, utterance); value != nil {
				s.Profile.Set(slot.Key, value)
			}
		}
		s.Pending = nil
	}

	// Step 2: independently, let the interpreter mine the utterance for
	// additional facts. Failure here degrades to an empty merge.
	if d.interpreter != nil {
		if emitErr := emitEvent(emit, "interpreting", map[string]any{"status": "Reading your message..."}); emitErr != nil {
			return nil, emitErr
		}
		if extracted := d.interpreter.Extract(ctx, utterance, s.Profile.Clone()); extracted != nil {
			s.Profile.Merge(extracted)
		}
	}

	// Step 3: re-ask policy is strictly first-unanswered-required-slot-wins
	if missing := d.missingSlots(s.Profile); len(missing) > 0 {
		next := missing[0]
		s.Pending = &model.PendingAsk{
			SlotKey: next.Key,
			Prompt:  next.Prompt,
			Options: next.Options,
		}
		s.appendMessage("assistant", next.Prompt)
		resp.Messages = append(resp.Messages, model.Message{Role: "assistant", Content: next.Prompt})
		resp.Ask = s.Pending
		resp.Profile = s.Profile.Clone()
		resp.Took = time.Since(start).Milliseconds()
		if emitErr := emitEvent(emit, "ask", resp.Ask); emitErr != nil {
			return nil, emitErr
		}
		return resp, nil
	}

	// Step 4: complete - emit the summary, then run the pipeline
	s.Done = true
	summary := d.renderSummary(s.Profile)
	s.appendMessage("assistant", summary)
	resp.Messages = append(resp.Messages, model.Message{Role: "assistant", Content: summary})
	resp.Done = true
	if emitErr := emitEvent(emit, "summary", map[string]any{"content": summary}); emitErr != nil {
		return nil, emitErr
	}

	if d.advisor != nil {
		rec, err := d.advisor.Recommend(ctx, s.ID, s.Profile.Clone(), emit)
		if err != nil {
			// Soft failure: the summary stands, the shortfall is a
			// visible status rather than a hard error.
			resp.Status = fmt.Sprintf("recommendation unavailable: %v", err)
		} else {
			resp.Recommendation = rec
			s.appendMessage("assistant", rec.Text)
			resp.Messages = append(resp.Messages, model.Message{Role: "assistant", Content: rec.Text})
		}
	}

	resp.Profile = s.Profile.Clone()
	resp.Took = time.Since(start).Milliseconds()
	return resp, nil
}

// missingSlots returns required slots without a set value, in registry order
func (d *DialogueManager) missingSlots(p model.Profile) []model.Slot {
	var missing []model.Slot
	for _, s := range d.registry.Slots() {
		if s.Required && !p.IsSet(s.Key) {
			missing = append(missing, s)
		}
	}
	return missing
}

// renderSummary renders every set slot in registry order as "label: value"
func (d *DialogueManager) renderSummary(p model.Profile) string {
	var b strings.Builder
	b.WriteString("Here is a summary of your requirements:\n")
	for _, slot := range d.registry.Slots() {
		if !p.IsSet(slot.Key) {
			continue
		}
		value, _ := p.String(slot.Key)
		fmt.Fprintf(&b, "- %s: %s\n", slot.Label, value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func emitEvent(emit TurnEmitter, event string, data any) error {
	if emit == nil {
		return nil
	}
	return emit(event, data)
}
