package recon

import (
	"time"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/shared"
)

// Diff is the outcome of reconciling a stored chapter list against a freshly
// fetched one.
//
// ToAdd/ToRemove/ToUpdate is the full change set the store must apply as one
// atomic unit. NewChapters/RemovedChapters is the user-facing diff: chapters
// that were merely renumbered or reissued under a new URL are suppressed there
// so callers reporting "N new, M removed" do not double-count them.
type Diff struct {
	ToAdd    []models.ChapterRecord
	ToRemove []models.ChapterRecord
	ToUpdate []models.ChapterRecord

	NewChapters     []models.ChapterRecord
	RemovedChapters []models.ChapterRecord
}

// Unchanged reports whether applying the diff would be a no-op. Callers must
// skip the store write entirely in that case.
func (d *Diff) Unchanged() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Reconcile diffs the stored chapters of an entry against the list freshly
// fetched from its catalogue. Equality is by catalogue-assigned URL, never by
// numeric chapter number.
//
// Incoming records are assumed to be in catalogue order, newest first. Each is
// assigned a dense SourceOrder, a recognized chapter number, and, for new
// records, a fetch timestamp decreasing with catalogue position so that
// sorting by DateFetched matches the catalogue's own ordering intent.
//
// Read state carries forward across renumbering: a removed chapter's number is
// remembered, and an added chapter with the same recognized number is marked
// read if the removed one was.
//
// An empty incoming list fails with [shared.ErrNoChaptersFound]; a source
// outage must never be mistaken for an entry with zero chapters.
func Reconcile(entryTitle string, existing, incoming []models.ChapterRecord, now time.Time) (*Diff, error) {
	if len(incoming) == 0 {
		return nil, shared.ErrNoChaptersFound
	}

	existingByURL := make(map[string]models.ChapterRecord, len(existing))
	for _, c := range existing {
		existingByURL[c.URL] = c
	}
	incomingURLs := make(map[string]struct{}, len(incoming))

	diff := &Diff{}

	for i := range incoming {
		c := &incoming[i]
		incomingURLs[c.URL] = struct{}{}
		c.SourceOrder = i
		c.Number = RecognizeChapterNumber(entryTitle, c.Name)

		if prev, ok := existingByURL[c.URL]; ok {
			// Known chapter: keep identity and read state, refresh what the
			// catalogue controls.
			kept := prev
			kept.Name = c.Name
			kept.Scanlator = c.Scanlator
			kept.Number = c.Number
			kept.SourceOrder = c.SourceOrder
			kept.DateUpload = c.DateUpload
			diff.ToUpdate = append(diff.ToUpdate, kept)
			continue
		}

		added := *c
		// The first catalogue entry is the most recent; give it the largest
		// timestamp so chronological sort matches catalogue intent.
		added.DateFetched = now.Add(-time.Duration(i) * time.Millisecond)
		diff.ToAdd = append(diff.ToAdd, added)
	}

	removedRead := make(map[float64]struct{})
	removedAll := make(map[float64]struct{})
	for _, c := range existing {
		if _, ok := incomingURLs[c.URL]; ok {
			continue
		}
		diff.ToRemove = append(diff.ToRemove, c)
		if c.HasNumber() {
			removedAll[c.Number] = struct{}{}
			if c.Read {
				removedRead[c.Number] = struct{}{}
			}
		}
	}

	if diff.Unchanged() {
		return diff, nil
	}

	reAdded := make(map[float64]struct{})
	for i := range diff.ToAdd {
		c := &diff.ToAdd[i]
		if !c.HasNumber() {
			diff.NewChapters = append(diff.NewChapters, *c)
			continue
		}
		if _, ok := removedRead[c.Number]; ok {
			c.Read = true
		}
		if _, ok := removedAll[c.Number]; ok {
			reAdded[c.Number] = struct{}{}
			continue // renumbered reissue, not a new chapter
		}
		diff.NewChapters = append(diff.NewChapters, *c)
	}

	for _, c := range diff.ToRemove {
		if c.HasNumber() {
			if _, ok := reAdded[c.Number]; ok {
				continue
			}
		}
		diff.RemovedChapters = append(diff.RemovedChapters, c)
	}

	return diff, nil
}
