package utils

import (
	"strings"
	"unicode/utf8"
)

// quote and dash variants unified before matching; user input arrives from
// chat clients that autocorrect punctuation
var punctReplacer = strings.NewReplacer(
	"׳", "'", // hebrew geresh
	"״", "\"", // hebrew gershayim
	"‘", "'",
	"’", "'",
	"“", "\"",
	"”", "\"",
	"–", "-",
	"—", "-",
	"−", "-",
)

// NormalizeText lowercases, unifies quote/dash variants and collapses
// whitespace runs to a single space.
func NormalizeText(s string) string {
	s = punctReplacer.Replace(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// thousandWords are magnitude shorthands meaning x1000, in the languages the
// questionnaire is answered in ("40 thousand", "40k", "40 אלף").
var thousandWords = []string{"thousand", "אלף", "אלפים", "k"}

// HasThousandWord reports whether the text carries a x1000 magnitude shorthand
func HasThousandWord(s string) bool {
	norm := NormalizeText(s)
	for _, w := range thousandWords {
		if w == "k" {
			// bare "k" only counts attached to a digit ("40k"), otherwise
			// it matches ordinary words
			for i := 1; i < len(norm); i++ {
				if norm[i] == 'k' && norm[i-1] >= '0' && norm[i-1] <= '9' {
					if i+1 == len(norm) || norm[i+1] == ' ' {
						return true
					}
				}
			}
			continue
		}
		if strings.Contains(norm, w) {
			return true
		}
	}
	return false
}

// MatchOption matches free-form input against an ordered option list.
// Matching is permissive by design: exact normalized match first, then
// substring containment in either direction, then a first-character match as
// a last resort. Returns the canonical option text on success.
func MatchOption(input string, options []string) (string, bool) {
	norm := NormalizeText(input)
	if norm == "" {
		return "", false
	}

	normalized := make([]string, len(options))
	for i, opt := range options {
		normalized[i] = NormalizeText(opt)
	}

	// Exact match
	for i, opt := range normalized {
		if norm == opt {
			return options[i], true
		}
	}

	// Substring match in either direction
	for i, opt := range normalized {
		if strings.Contains(opt, norm) || strings.Contains(norm, opt) {
			return options[i], true
		}
	}

	// First-character match as a last resort
	first, _ := utf8.DecodeRuneInString(norm)
	for i, opt := range normalized {
		optFirst, _ := utf8.DecodeRuneInString(opt)
		if opt != "" && first == optFirst {
			return options[i], true
		}
	}

	return "", false
}

// TruncateString truncates a string to maxLen bytes for log output
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
