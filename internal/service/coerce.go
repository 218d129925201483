package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"caradvisor/internal/model"
	"caradvisor/internal/utils"
)

var digitGapRe = regexp.MustCompile(`(\d)[ \t]+(\d)`)

// Coerce turns raw user text into a typed value per the slot kind.
// Returns nil when no value can be extracted. Deterministic and
// side-effect free: the same input always yields the same output.
func Coerce(slot model.Slot, raw string) any {
	switch slot.Kind {
	case model.SlotInt:
		if v, ok := CoerceInt(raw); ok {
			return v
		}
		return nil

	case model.SlotChoice:
		norm := utils.NormalizeText(raw)
		if norm == "" {
			return nil
		}
		if opt, ok := utils.MatchOption(raw, slot.Options); ok {
			return opt
		}
		// Permissive policy: keep unlisted values as free-form overrides
		// instead of rejecting the answer.
		return norm

	default: // free text
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil
		}
		return trimmed
	}
}

// CoerceInt extracts the first numeric run from text, stripping thousands
// separators, and applies a x1000 magnitude shorthand at most once
// ("40 thousand", "40k", "20 אלף" all yield 40000/20000).
func CoerceInt(raw string) (int, bool) {
	// Strip common thousands separators so "1,200" parses as one run
	cleaned := strings.NewReplacer(",", "", "׳", "", "'", "").Replace(raw)
	// Join digit groups split by spaces ("40 000" -> "40000"); repeated
	// because matches cannot overlap in a single pass
	for {
		joined := digitGapRe.ReplaceAllString(cleaned, "$1$2")
		if joined == cleaned {
			break
		}
		cleaned = joined
	}

	start := -1
	end := -1
	for i, r := range cleaned {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			end = i + 1
		} else if start >= 0 {
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	value, err := strconv.Atoi(cleaned[start:end])
	if err != nil {
		return 0, false
	}

	if utils.HasThousandWord(raw) {
		value *= 1000
	}

	return value, true
}

// RenderValue renders a coerced value back to text for summaries
func RenderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.Itoa(int(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}
