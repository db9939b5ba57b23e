// Package sources provides the catalogue provider abstraction consumed by the
// migration engine.
//
// A [Source] can search a catalogue by title, fetch full metadata for a result,
// and fetch a work's chapter list. [HTTPSource] implements the interface
// against the Watari JSON catalogue API with per-source rate limiting.
// [Registry] maps configured source IDs to live sources and is injected into
// consumers rather than accessed globally.
package sources
