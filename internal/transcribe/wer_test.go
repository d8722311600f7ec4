package transcribe

import "testing"

func TestComputeWER(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		wantRate   float64
		wantSubs   int
		wantIns    int
		wantDels   int
		wantRef    int
	}{
		{
			name:       "identical",
			reference:  "the cat sat on the mat",
			hypothesis: "the cat sat on the mat",
			wantRate:   0.0,
			wantRef:    6,
		},
		{
			name:       "one_substitution",
			reference:  "the cat sat on the mat",
			hypothesis: "the cat sit on the mat",
			wantRate:   1.0 / 6.0,
			wantSubs:   1,
			wantRef:    6,
		},
		{
			name:       "one_insertion",
			reference:  "the cat sat",
			hypothesis: "the big cat sat",
			wantRate:   1.0 / 3.0,
			wantIns:    1,
			wantRef:    3,
		},
		{
			name:       "one_deletion",
			reference:  "the cat sat on the mat",
			hypothesis: "the cat on the mat",
			wantRate:   1.0 / 6.0,
			wantDels:   1,
			wantRef:    6,
		},
		{
			name:       "case_insensitive",
			reference:  "The Cat Sat",
			hypothesis: "the cat sat",
			wantRate:   0.0,
			wantRef:    3,
		},
		{
			name:       "punctuation_stripped",
			reference:  "Hello, world!",
			hypothesis: "hello world",
			wantRate:   0.0,
			wantRef:    2,
		},
		{
			name:       "vietnamese_case_folding",
			reference:  "Xin Chào Việt Nam",
			hypothesis: "xin chào việt nam",
			wantRate:   0.0,
			wantRef:    4,
		},
		{
			name:       "vietnamese_tone_mark_is_a_substitution",
			reference:  "xin chào việt nam",
			hypothesis: "xin chao việt nam",
			wantRate:   1.0 / 4.0,
			wantSubs:   1,
			wantRef:    4,
		},
		{
			name:       "empty_reference",
			reference:  "",
			hypothesis: "some words",
			wantRate:   0.0,
			wantRef:    0,
		},
		{
			name:       "empty_hypothesis",
			reference:  "some words",
			hypothesis: "",
			wantRate:   1.0,
			wantDels:   2,
			wantRef:    2,
		},
		{
			name:       "completely_different",
			reference:  "the cat sat",
			hypothesis: "a dog ran",
			wantRate:   1.0,
			wantSubs:   3,
			wantRef:    3,
		},
		{
			name:       "mixed_errors",
			reference:  "the quick brown fox jumps over the lazy dog",
			hypothesis: "a quick brown cat jumps the lazy dog",
			// sub: the->a, fox->cat; del: over
			wantRate: 3.0 / 9.0,
			wantSubs: 2,
			wantDels: 1,
			wantRef:  9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeWER(tt.reference, tt.hypothesis)

			if diff := got.Rate - tt.wantRate; diff > 0.001 || diff < -0.001 {
				t.Errorf("Rate = %f, want %f", got.Rate, tt.wantRate)
			}
			if got.RefUnits != tt.wantRef {
				t.Errorf("RefUnits = %d, want %d", got.RefUnits, tt.wantRef)
			}
			if tt.wantSubs != 0 && got.Substitutions != tt.wantSubs {
				t.Errorf("Substitutions = %d, want %d", got.Substitutions, tt.wantSubs)
			}
			if tt.wantIns != 0 && got.Insertions != tt.wantIns {
				t.Errorf("Insertions = %d, want %d", got.Insertions, tt.wantIns)
			}
			if tt.wantDels != 0 && got.Deletions != tt.wantDels {
				t.Errorf("Deletions = %d, want %d", got.Deletions, tt.wantDels)
			}
		})
	}
}

func TestComputeCER(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		wantRate   float64
		wantRef    int
	}{
		{"identical", "xin chào", "xin chào", 0, 7},
		{"whitespace_ignored", "xin chào", "xinchào", 0, 7},
		{"missing_tone_mark", "chào", "chao", 1.0 / 4.0, 4},
		{"empty_reference", "", "abc", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCER(tt.reference, tt.hypothesis)
			if diff := got.Rate - tt.wantRate; diff > 0.001 || diff < -0.001 {
				t.Errorf("Rate = %f, want %f", got.Rate, tt.wantRate)
			}
			if got.RefUnits != tt.wantRef {
				t.Errorf("RefUnits = %d, want %d", got.RefUnits, tt.wantRef)
			}
		})
	}
}
