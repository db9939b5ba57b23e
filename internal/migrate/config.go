package migrate

import (
	"fmt"

	"github.com/watariapp/watari/internal/shared"
)

// DefaultMaxConcurrent bounds in-flight provider calls when the configuration
// does not say otherwise. Shared across all units of a batch in best-of-N
// mode to respect catalogue rate limits.
const DefaultMaxConcurrent = 3

// CarryFlags is a bitmask selecting which user state is carried from the old
// entry to the new one during apply.
type CarryFlags uint8

const (
	CarryChapters CarryFlags = 1 << iota // read progress watermark
	CarryCategories
	CarryTracking
)

// CarryAll enables every carry-forward flag.
const CarryAll = CarryChapters | CarryCategories | CarryTracking

// Has reports whether flag is set.
func (f CarryFlags) Has(flag CarryFlags) bool { return f&flag != 0 }

// BatchConfig holds the user-level parameters for one migration run.
type BatchConfig struct {
	EntryIDs           []int64  // library entries to migrate, in order
	TargetSourceIDs    []string // candidate sources to search, in priority order
	PreferMostChapters bool     // best-of-N by chapter count instead of first match
	RankedSearch       bool     // fuzzy ranking instead of exact title match
	Carry              CarryFlags
	MaxConcurrent      int // in-flight provider call bound
}

// Validate checks the configuration before a run starts.
func (c *BatchConfig) Validate() error {
	if len(c.EntryIDs) == 0 {
		return fmt.Errorf("%w: no entries selected", shared.ErrInvalidInput)
	}
	if len(c.TargetSourceIDs) == 0 {
		return fmt.Errorf("%w: no target sources configured", shared.ErrInvalidInput)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("%w: max concurrent must not be negative", shared.ErrInvalidInput)
	}
	return nil
}

// ConfigFromShared maps the persisted migration configuration onto a
// BatchConfig for the given entries.
func ConfigFromShared(mc shared.MigrationConfig, entryIDs []int64) BatchConfig {
	var carry CarryFlags
	if mc.CarryChapters {
		carry |= CarryChapters
	}
	if mc.CarryCategories {
		carry |= CarryCategories
	}
	if mc.CarryTracking {
		carry |= CarryTracking
	}

	maxConcurrent := mc.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	return BatchConfig{
		EntryIDs:           entryIDs,
		TargetSourceIDs:    mc.TargetSources,
		PreferMostChapters: mc.PreferMostChapters,
		RankedSearch:       mc.RankedSearch,
		Carry:              carry,
		MaxConcurrent:      maxConcurrent,
	}
}
