package models

import "time"

// PublicationStatus describes the publication state a catalogue reports for a work.
type PublicationStatus int

const (
	StatusUnknown PublicationStatus = iota
	StatusOngoing
	StatusCompleted
	StatusLicensed
)

func (s PublicationStatus) String() string {
	switch s {
	case StatusOngoing:
		return "ongoing"
	case StatusCompleted:
		return "completed"
	case StatusLicensed:
		return "licensed"
	default:
		return "unknown"
	}
}

// LibraryEntry is a catalogued work bound to one catalogue source.
//
// EntryID is assigned by the library database and never changes. Favorite marks
// library membership; migration flips it between the old and new entry rather
// than deleting rows.
type LibraryEntry struct {
	EntryID      int64
	SourceID     string // catalogue source this entry belongs to
	Title        string
	URL          string // source-assigned identifier for the work
	Author       string
	Description  string
	ThumbnailURL string
	Status       PublicationStatus
	Favorite     bool
	AddedAt      time.Time
}

// HasMetadata reports whether the entry carries the basic details a catalogue
// normally returns alongside search results.
func (e *LibraryEntry) HasMetadata() bool {
	return e.ThumbnailURL != "" && e.Description != ""
}
