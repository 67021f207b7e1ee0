package usecase

import "sort"

// DefaultRRFK is the reciprocal rank fusion constant.
const DefaultRRFK = 60

type fusedCandidate struct {
	text  string
	score float64
}

// fuseRRF merges ranked text lists with reciprocal rank fusion and keeps the
// best limit texts.
func fuseRRF(lists [][]string, k int, limit int) []string {
	acc := fuseRRFScores(lists, k)
	if limit > 0 && len(acc) > limit {
		acc = acc[:limit]
	}
	out := make([]string, 0, len(acc))
	for _, c := range acc {
		out = append(out, c.text)
	}
	return out
}

// fuseRRFScores returns every candidate with its fused score, best first.
// Ranks are 0-based, so the best item of each list contributes 1/(k+0).
// Candidates are keyed by text; equal scores keep first-seen order across
// the lists.
func fuseRRFScores(lists [][]string, k int) []fusedCandidate {
	if k <= 0 {
		k = DefaultRRFK
	}

	pos := make(map[string]int)
	var acc []fusedCandidate
	for _, list := range lists {
		for rank, text := range list {
			i, ok := pos[text]
			if !ok {
				i = len(acc)
				pos[text] = i
				acc = append(acc, fusedCandidate{text: text})
			}
			acc[i].score += 1.0 / float64(rank+k)
		}
	}

	sort.SliceStable(acc, func(i, j int) bool {
		return acc[i].score > acc[j].score
	})
	return acc
}
