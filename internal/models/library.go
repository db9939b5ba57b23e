package models

// Category is a user-defined grouping of library entries.
type Category struct {
	CategoryID int64
	Name       string
	SortOrder  int
}

// TrackRecord binds a library entry to an external tracking service
// (reading-list sync). Migration re-points EntryID at the new entry and keeps
// everything else.
type TrackRecord struct {
	TrackID        int64
	EntryID        int64
	ServiceID      int64
	RemoteID       string
	LastChapterRead float64
	Score          float64
	Status         string
}
