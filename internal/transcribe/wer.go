package transcribe

import (
	"strings"
	"unicode"
)

// ErrorRate holds edit-distance statistics between a reference and a
// hypothesis, counted in words (WER) or characters (CER).
type ErrorRate struct {
	Rate          float64 `json:"rate"` // 0.0 = perfect, can exceed 1.0
	Substitutions int     `json:"substitutions"`
	Insertions    int     `json:"insertions"`
	Deletions     int     `json:"deletions"`
	RefUnits      int     `json:"ref_units"` // words or characters in the reference
}

// ComputeWER calculates the word error rate between reference and hypothesis text.
// Both strings are normalized: lowercased, punctuation stripped, whitespace collapsed.
// WER = (Substitutions + Insertions + Deletions) / ReferenceWordCount.
func ComputeWER(reference, hypothesis string) ErrorRate {
	return errorRate(normalizeWords(reference), normalizeWords(hypothesis))
}

// ComputeCER calculates the character error rate over the normalized text
// with whitespace removed. It is more informative than WER for languages
// where a tone mark changes the word, such as Vietnamese.
func ComputeCER(reference, hypothesis string) ErrorRate {
	return errorRate(normalizeChars(reference), normalizeChars(hypothesis))
}

func errorRate(ref, hyp []string) ErrorRate {
	n := len(ref)
	if n == 0 {
		return ErrorRate{}
	}
	subs, ins, dels := editOps(ref, hyp)
	return ErrorRate{
		Rate:          float64(subs+ins+dels) / float64(n),
		Substitutions: subs,
		Insertions:    ins,
		Deletions:     dels,
		RefUnits:      n,
	}
}

// editOps returns the substitution, insertion and deletion counts of a
// minimum edit script turning ref into hyp.
func editOps(ref, hyp []string) (subs, ins, dels int) {
	n, m := len(ref), len(hyp)

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			d[i][j] = 1 + min(d[i-1][j-1], d[i-1][j], d[i][j-1])
		}
	}

	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			subs++
			i--
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			dels++
			i--
		default:
			ins++
			j--
		}
	}
	return subs, ins, dels
}

// normalize lowercases text and strips punctuation.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

func normalizeWords(s string) []string {
	return strings.Fields(normalize(s))
}

func normalizeChars(s string) []string {
	var out []string
	for _, r := range normalize(s) {
		if unicode.IsSpace(r) {
			continue
		}
		out = append(out, string(r))
	}
	return out
}
