// Package models defines domain entities and persistence interfaces for the Watari catalogue migration engine.
//
// The package contains two categories of types:
//
// 1. Engine records: Lightweight structs passed between the search, reconciliation and apply stages
//   - [LibraryEntry] : A catalogued work bound to one catalogue source
//   - [ChapterRecord] : A chapter with recognized number, read state and catalogue ordering
//   - [Category] : User-defined grouping of library entries
//   - [TrackRecord] : Binding between an entry and an external tracking service
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [MigrationBatch] : One migration run with resolved unit counts for history reporting
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
