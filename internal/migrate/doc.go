// Package migrate implements the catalogue migration engine.
//
// A [Session] holds one batch of per-entry [Unit] state machines. The
// [Orchestrator] schedules candidate searches for every unit across the
// configured catalogue sources, bounded by a shared semaphore, under one of
// two selection policies: best-of-N by chapter count, or first match in
// source order. Found candidates are landed in the library database through
// the [Store] interface, with chapter lists reconciled by the recon package.
//
// Progress flows through a [Broadcaster] with last-value replay so observers
// can attach after a search has started; cancellation is scoped per unit
// under the batch, and a cancelled unit is a distinct terminal state, never a
// failure.
package migrate
