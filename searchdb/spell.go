package searchdb

import "strings"

// correctSpelling runs each token through the federated index's title-field
// term dictionary, looking for fuzzy matches, and rebuilds the corrected
// query string from the best candidate per token. It returns "" if no
// token needed correction.
func (m *Manager) correctSpelling(tokens []string) (string, error) {
	if len(tokens) == 0 {
		return "", nil
	}

	corrected := make([]string, len(tokens))
	changed := false

	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		best, found, err := m.bestCorrection(lower)
		if err != nil {
			return "", err
		}
		if found && best != lower {
			corrected[i] = best
			changed = true
		} else {
			corrected[i] = tok
		}
	}

	if !changed {
		return "", nil
	}
	return strings.Join(trimEach(corrected), " ")
}

// bestCorrection enumerates the title-field term dictionary looking for the
// closest term to tok by edit distance. If tok is itself present in the
// dictionary it is returned unchanged (found=true, no correction needed).
func (m *Manager) bestCorrection(tok string) (best string, found bool, err error) {
	if len(m.memberIndices) == 0 {
		return "", false, nil
	}

	bestDistance := -1
	for _, idx := range m.memberIndices {
		dict, err := idx.FieldDict("title")
		if err != nil {
			continue
		}
		for entry, derr := dict.Next(); entry != nil && derr == nil; entry, derr = dict.Next() {
			if entry.Term == tok {
				dict.Close()
				return tok, true, nil
			}
			d := levenshtein(tok, entry.Term)
			if bestDistance == -1 || d < bestDistance {
				bestDistance = d
				best = entry.Term
				found = true
			}
		}
		dict.Close()
	}

	if !found {
		return "", false, nil
	}
	// Only accept a correction that is "close enough" — within half the
	// length of the original token, floored at 1 edit.
	threshold := len(tok) / 2
	if threshold < 1 {
		threshold = 1
	}
	if bestDistance > threshold {
		return tok, true, nil
	}
	return best, true, nil
}

func trimEach(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.TrimSpace(t)
	}
	return out
}

// levenshtein computes the classic edit distance between a and b. No
// corpus-available fuzzy-string library covers exact-distance ranking of
// bleve FieldDict candidates (see DESIGN.md), so this is a small, local,
// standard-library-only helper.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
