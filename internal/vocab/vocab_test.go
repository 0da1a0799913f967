package vocab

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCorrect(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		text  string
		want  string
		fixes []string
	}{
		{
			name:  "single word",
			terms: []string{"Parley"},
			text:  "hey parlay what's up",
			want:  "hey Parley what's up",
			fixes: []string{"parlay"},
		},
		{
			name:  "trailing punctuation kept",
			terms: []string{"Parley"},
			text:  "Is that you, Parlay?",
			want:  "Is that you, Parley?",
			fixes: []string{"Parlay?"},
		},
		{
			name:  "multi-word term",
			terms: []string{"Tower of Whispers"},
			text:  "let us go to tower of whisper today",
			want:  "let us go to Tower of Whispers today",
			fixes: []string{"tower of whisper"},
		},
		{
			name:  "no match",
			terms: []string{"Parley", "Tower of Whispers"},
			text:  "good morning everyone",
			want:  "good morning everyone",
		},
		{
			name:  "already correct",
			terms: []string{"Parley"},
			text:  "thanks Parley",
			want:  "thanks Parley",
		},
		{
			name:  "case only",
			terms: []string{"Parley"},
			text:  "thanks parley",
			want:  "thanks Parley",
			fixes: []string{"parley"},
		},
		{
			name: "no terms",
			text: "hey parlay",
			want: "hey parlay",
		},
		{
			name:  "blank text",
			terms: []string{"Parley"},
			text:  "  ",
			want:  "  ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, corrections := New(tt.terms).Correct(tt.text)
			if got != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.text, got, tt.want)
			}
			var fixes []string
			for _, c := range corrections {
				fixes = append(fixes, c.Original)
				if c.Score <= 0 || c.Score > 1 {
					t.Errorf("correction %q has score %v", c.Original, c.Score)
				}
			}
			if diff := cmp.Diff(tt.fixes, fixes); diff != "" {
				t.Errorf("corrections mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew_IgnoresBlankTerms(t *testing.T) {
	c := New([]string{"", "  ", "Parley", "..."})
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestThresholds(t *testing.T) {
	strict := New([]string{"Parley"}, WithPhoneticThreshold(0.99), WithFuzzyThreshold(0.99))
	if got, _ := strict.Correct("hey parlay"); got != "hey parlay" {
		t.Errorf("strict Correct() = %q, want unchanged", got)
	}
	loose := New([]string{"Parley"}, WithPhoneticThreshold(0.5))
	if got, _ := loose.Correct("hey parlay"); got != "hey Parley" {
		t.Errorf("loose Correct() = %q, want corrected", got)
	}
}

func TestSimilarLength(t *testing.T) {
	tests := []struct {
		a, b int
		want bool
	}{
		{6, 6, true},
		{10, 8, true},
		{9, 6, false},
		{12, 6, false},
	}
	for _, tt := range tests {
		if got := similarLength(tt.a, tt.b); got != tt.want {
			t.Errorf("similarLength(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
