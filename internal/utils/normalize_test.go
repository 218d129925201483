package utils

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Lowercase and trim", "  Toyota Corolla  ", "toyota corolla"},
		{"Collapse whitespace", "family \t  car", "family car"},
		{"Curly quotes unified", "it’s fine", "it's fine"},
		{"Hebrew geresh unified", "ק׳", "ק'"},
		{"Em dash unified", "2016—2019", "2016-2019"},
		{"Empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasThousandWord(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"English word", "40 thousand", true},
		{"Hebrew singular", "20 אלף", true},
		{"Hebrew plural", "חמישה אלפים", true},
		{"Attached k", "40k", true},
		{"Attached k mid-sentence", "about 40k or so", true},
		{"Bare k in a word", "ok, kia", false},
		{"Plain number", "40000", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasThousandWord(tt.input); got != tt.want {
				t.Errorf("HasThousandWord(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatchOption(t *testing.T) {
	options := []string{"family", "compact", "SUV", "sedan", "mini"}

	tests := []struct {
		name      string
		input     string
		want      string
		wantFound bool
	}{
		{"Exact match", "family", "family", true},
		{"Case insensitive", "SUV", "SUV", true},
		{"Input contains option", "a family car please", "family", true},
		{"Option contains input", "fam", "family", true},
		{"Single letter substring", "c", "compact", true},
		{"First character fallback", "s-class", "SUV", true},
		{"No match", "truck", "", false},
		{"Empty input", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := MatchOption(tt.input, options)
			if found != tt.wantFound {
				t.Fatalf("MatchOption(%q) found = %v, want %v", tt.input, found, tt.wantFound)
			}
			if got != tt.want {
				t.Errorf("MatchOption(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
