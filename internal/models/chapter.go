package models

import "time"

// ChapterNumberUnknown marks a chapter whose number could not be recognized
// from its name. Distinct from 0, which is a valid chapter number (prologues).
const ChapterNumberUnknown float64 = -1

// ChapterRecord is a single chapter belonging to one LibraryEntry.
//
// URL is the catalogue-assigned identifier and is the equality key during
// reconciliation. Number is the recognized numeric chapter number and supports
// sub-chapter values (10.5); SourceOrder is the chapter's position in the most
// recent catalogue listing, a dense 0..n-1 sequence.
type ChapterRecord struct {
	ChapterID    int64
	EntryID      int64
	URL          string
	Name         string
	Scanlator    string
	Number       float64
	Read         bool
	LastPageRead int
	DateFetched  time.Time
	DateUpload   time.Time
	SourceOrder  int
}

// HasNumber reports whether chapter number recognition succeeded for this record.
func (c *ChapterRecord) HasNumber() bool {
	return c.Number != ChapterNumberUnknown
}

// NewChapterRecord returns a record with the number marked unknown; recognition
// fills it in later.
func NewChapterRecord(entryID int64, url, name string) ChapterRecord {
	return ChapterRecord{
		EntryID: entryID,
		URL:     url,
		Name:    name,
		Number:  ChapterNumberUnknown,
	}
}
