// package sources defines interface Source for talking to external catalogue providers
package sources

import (
	"context"

	"github.com/watariapp/watari/internal/models"
)

// Source defines the interface for catalogue providers that can search for
// works and retrieve their chapter lists.
//
// All three remote operations may fail; callers above the searcher boundary
// treat any failure from one source as "no candidate from this source".
type Source interface {
	// ID returns the stable identifier of the source used in configuration
	// and stored on library entries.
	ID() string

	// Name returns the human-readable name of the source.
	Name() string

	// Search queries the catalogue by title and returns raw, unranked results.
	Search(ctx context.Context, query string) ([]Candidate, error)

	// FetchDetails retrieves full metadata for a candidate (author,
	// description, status, cover).
	FetchDetails(ctx context.Context, candidate Candidate) (*Metadata, error)

	// FetchChapterList retrieves the candidate's chapters in catalogue order,
	// newest first. Records carry URL and name only; numbering and fetch
	// timestamps are assigned during reconciliation.
	FetchChapterList(ctx context.Context, candidate Candidate) ([]models.ChapterRecord, error)
}

// Candidate is an unconfirmed search result considered as a migration target.
type Candidate struct {
	SourceID     string
	URL          string // catalogue-assigned identifier for the work
	Title        string
	ThumbnailURL string
}

// Metadata holds the details a catalogue reports for one work.
type Metadata struct {
	Author       string
	Description  string
	ThumbnailURL string
	Status       models.PublicationStatus
}
