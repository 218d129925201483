package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"caradvisor/internal/model"
	"caradvisor/internal/utils"
)

// Interpreter maps an unstructured utterance to a partial slot-value map
// using the text-generation capability. Any failure degrades silently to
// "no additional slots filled" - it must never block the pending-slot
// binding.
type Interpreter struct {
	gen      TextGenerator
	registry *model.Registry
}

// NewInterpreter creates a free-text interpreter
func NewInterpreter(gen TextGenerator, registry *model.Registry) *Interpreter {
	return &Interpreter{gen: gen, registry: registry}
}

// Extract returns the slot values mentioned in the utterance, coerced to
// their slot types. A nil map means nothing could be extracted.
func (i *Interpreter) Extract(ctx context.Context, utterance string, profile model.Profile) map[string]any {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil
	}
	if i.gen == nil || !i.gen.IsEnabled() {
		return nil
	}

	raw, err := i.gen.Generate(ctx, GenerateRequest{
		System:      i.systemPrompt(),
		User:        i.userPrompt(utterance, profile),
		Temperature: 0.1,
		JSONOutput:  true,
	})
	if err != nil {
		log.Printf("Warning: free-text interpretation failed: %v", err)
		return nil
	}

	var extracted map[string]any
	if err := utils.ParseAIJSON(raw, &extracted); err != nil {
		log.Printf("Warning: failed to parse interpreter response: %v", err)
		return nil
	}

	return i.coerceExtracted(extracted)
}

// coerceExtracted keeps only known slot keys and coerces each value to the
// slot's type, dropping anything that does not coerce.
func (i *Interpreter) coerceExtracted(extracted map[string]any) map[string]any {
	out := make(map[string]any, len(extracted))
	for key, value := range extracted {
		slot, ok := i.registry.Get(key)
		if !ok || value == nil {
			continue
		}

		switch v := value.(type) {
		case float64:
			if slot.Kind == model.SlotInt {
				out[key] = int(v)
			} else if coerced := Coerce(slot, RenderValue(v)); coerced != nil {
				out[key] = coerced
			}
		case string:
			if coerced := Coerce(slot, v); coerced != nil {
				out[key] = coerced
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (i *Interpreter) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a used-car purchase advisor. The user answers a structured questionnaire in free text, ")
	b.WriteString("sometimes volunteering several facts in one message. Extract every fact the message states into JSON.\n\n")
	b.WriteString("Known fields:\n")
	for _, s := range i.registry.Slots() {
		switch s.Kind {
		case model.SlotInt:
			fmt.Fprintf(&b, "- %s: integer (%s)\n", s.Key, s.Label)
		case model.SlotChoice:
			fmt.Fprintf(&b, "- %s: one of %s (%s)\n", s.Key, strings.Join(s.Options, ", "), s.Label)
		default:
			fmt.Fprintf(&b, "- %s: short text (%s)\n", s.Key, s.Label)
		}
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Respond ONLY with a valid JSON object\n")
	b.WriteString("- Include only fields the message actually states; omit everything else\n")
	b.WriteString("- Amounts may appear in shorthand: \"80k\" or \"80 thousand\" or \"80 אלף\" all mean 80000\n")
	b.WriteString("- A budget range like \"40-80 thousand\" fills both budget_min and budget_max\n\n")
	b.WriteString("Examples:\n")
	b.WriteString("Message: \"something family-friendly, up to 80 thousand, automatic\"\n")
	b.WriteString("Response: {\"body\": \"family\", \"budget_max\": 80000, \"gearbox\": \"automatic\"}\n")
	b.WriteString("Message: \"I drive about 20k km a year, mostly city\"\n")
	b.WriteString("Response: {\"km_per_year\": 20000, \"usage\": \"city\"}\n")
	return b.String()
}

func (i *Interpreter) userPrompt(utterance string, profile model.Profile) string {
	snapshot, _ := json.Marshal(profile)
	return fmt.Sprintf("Already known answers: %s\n\nUser message: %s", string(snapshot), utterance)
}
