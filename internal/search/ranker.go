package search

import (
	"github.com/sahilm/fuzzy"
	"github.com/watariapp/watari/internal/shared"
	"github.com/watariapp/watari/internal/sources"
)

// ExactRanker accepts only a candidate whose normalized title equals the
// normalized query; the first such candidate wins.
type ExactRanker struct{}

func (ExactRanker) Rank(query string, candidates []sources.Candidate) (sources.Candidate, bool) {
	want := shared.NormalizeTitle(query)
	for _, c := range candidates {
		if shared.NormalizeTitle(c.Title) == want {
			return c, true
		}
	}
	return sources.Candidate{}, false
}

// FuzzyRanker scores candidate titles against the query with fuzzy matching
// and returns the top match. Candidates whose titles share no subsequence with
// the query are rejected.
type FuzzyRanker struct {
	// MinScore rejects weak matches; fuzzy scores grow with match quality.
	MinScore int
}

func (r FuzzyRanker) Rank(query string, candidates []sources.Candidate) (sources.Candidate, bool) {
	titles := make([]string, len(candidates))
	for i, c := range candidates {
		titles[i] = shared.NormalizeTitle(c.Title)
	}

	matches := fuzzy.Find(shared.NormalizeTitle(query), titles)
	if len(matches) == 0 {
		return sources.Candidate{}, false
	}

	best := matches[0]
	if best.Score < r.MinScore {
		return sources.Candidate{}, false
	}
	return candidates[best.Index], true
}
