// package search matches library entries against candidate catalogues.
//
// The Searcher wraps one provider call chain: search by title, rank the raw
// results, and fetch the chosen candidate's chapter list. Provider failures
// never escape the searcher as errors; they degrade to "no candidate" so a
// broken catalogue cannot abort a batch.
package search

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/shared"
	"github.com/watariapp/watari/internal/sources"
)

// Ranker selects the best candidate for a query from raw search results, or
// reports that none is good enough. Implementations define their own
// acceptance threshold.
type Ranker interface {
	Rank(query string, candidates []sources.Candidate) (sources.Candidate, bool)
}

// Searcher resolves a title against a single catalogue source.
type Searcher struct {
	ranked Ranker
	exact  Ranker
	logger *log.Logger
}

// NewSearcher creates a Searcher. A nil ranked strategy falls back to
// [FuzzyRanker]; exact matching always uses [ExactRanker].
func NewSearcher(ranked Ranker, logger *log.Logger) *Searcher {
	if ranked == nil {
		ranked = FuzzyRanker{}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Searcher{ranked: ranked, exact: ExactRanker{}, logger: logger}
}

// Search queries one source for a title and returns at most one candidate.
//
// Transport and parsing failures from the source are logged and reported as
// "no candidate"; only context cancellation propagates as an error.
func (s *Searcher) Search(ctx context.Context, src sources.Source, title string, useRanked bool) (*sources.Candidate, error) {
	results, err := src.Search(ctx, title)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("source search failed", "source", src.ID(), "title", title, "err", err)
		return nil, nil
	}
	if len(results) == 0 {
		return nil, nil
	}

	strategy := s.exact
	if useRanked {
		strategy = s.ranked
	}

	candidate, ok := strategy.Rank(title, results)
	if !ok {
		return nil, nil
	}
	return &candidate, nil
}

// FetchChapters retrieves the chapter list for a chosen candidate.
//
// An empty list fails with [shared.ErrNoChaptersFound]: callers must treat it
// as a failed candidate, never as a work with zero chapters.
func (s *Searcher) FetchChapters(ctx context.Context, src sources.Source, candidate sources.Candidate) ([]models.ChapterRecord, error) {
	chapters, err := src.FetchChapterList(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, shared.ErrNoChaptersFound
	}
	return chapters, nil
}
