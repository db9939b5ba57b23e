package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/watariapp/watari/internal/apply"
	"github.com/watariapp/watari/internal/formatter"
	"github.com/watariapp/watari/internal/migrate"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/repositories"
	"github.com/watariapp/watari/internal/shared"
)

// MigrateRun searches target sources for candidates and reports the results
// without carrying any user state over.
func (r *Runner) MigrateRun(ctx context.Context, cmd *cli.Command) error {
	return r.runBatch(ctx, cmd, false)
}

// MigrateApply searches target sources and applies every found candidate:
// the new entries join the library with read progress, categories and
// tracking carried over per configuration.
func (r *Runner) MigrateApply(ctx context.Context, cmd *cli.Command) error {
	return r.runBatch(ctx, cmd, true)
}

func (r *Runner) runBatch(ctx context.Context, cmd *cli.Command, applyResults bool) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	library := repositories.NewLibrary(db)
	batchRepo := repositories.NewBatchRepository(db)

	entries, err := r.resolveEntries(ctx, cmd, library)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no library entries to migrate", shared.ErrInvalidInput)
	}

	entryIDs := make([]int64, len(entries))
	for i, e := range entries {
		entryIDs[i] = e.EntryID
	}

	cfg := migrate.ConfigFromShared(r.config.Migration, entryIDs)
	if s := cmd.String("sources"); s != "" {
		cfg.TargetSourceIDs = splitList(s)
	}
	if cmd.Bool("best-of") {
		cfg.PreferMostChapters = true
	}
	if cmd.Bool("first-match") {
		cfg.PreferMostChapters = false
	}
	if cmd.Bool("ranked") {
		cfg.RankedSearch = true
	}
	if n := cmd.Int("max-concurrent"); n > 0 {
		cfg.MaxConcurrent = n
	}

	session := migrate.NewSession(entries)
	defer session.Close()

	batch := models.NewMigrationBatch(0, len(entries), cfg.PreferMostChapters)
	started := time.Now()
	batch.SetStartedAt(&started)
	if err := batchRepo.Create(batch); err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}

	r.logger.Info("starting migration batch",
		"batch", batch.ID(), "entries", len(entries), "sources", cfg.TargetSourceIDs)
	r.writePlain("Searching %d sources for %d entries...\n\n", len(cfg.TargetSourceIDs), len(entries))

	progress, cancelProgress := session.Progress().Subscribe(64)
	defer cancelProgress()

	orch := migrate.NewOrchestrator(r.registry, r.searcher, library, r.logger)
	outcomes, err := orch.Run(ctx, session, cfg)
	if err != nil {
		batch.SetStatus(models.BatchStatusCancelled)
		if uerr := batchRepo.Update(batch); uerr != nil {
			r.logger.Warn("failed to update batch record", "batch", batch.ID(), "error", uerr)
		}
		return err
	}

	for outcomes != nil {
		select {
		case update := <-progress:
			if update.Status == migrate.StatusRunning {
				r.writePlain("🔍 %s\n", update.Message)
			}
		case out, ok := <-outcomes:
			if !ok {
				outcomes = nil
				break
			}
			switch out.Status {
			case migrate.StatusFound:
				r.writePlain("✓ entry %d: found (+%d chapters)\n", out.EntryID, out.NewChapters)
			case migrate.StatusFailed:
				r.writePlain("✗ entry %d: %v\n", out.EntryID, out.Err)
			default:
				r.writePlain("- entry %d: %s\n", out.EntryID, out.Status)
			}
		}
	}

	var applied map[string]apply.Outcome
	if applyResults {
		applier := apply.NewApplier(library, r.logger)
		applied = applier.ApplyAll(ctx, session, cfg.Carry, cmd.Bool("replace"))
	}

	report := formatter.BuildReport(session, applied)

	appliedCount := 0
	for _, out := range applied {
		if out.Kind == apply.Applied {
			appliedCount++
		}
	}

	status := models.BatchStatusCompleted
	if ctx.Err() != nil {
		status = models.BatchStatusCancelled
	}
	batch.SetStatus(status)
	batch.SetCounts(appliedCount, report.Skipped, report.Failed)
	completed := time.Now()
	batch.SetCompletedAt(&completed)
	if err := batchRepo.Update(batch); err != nil {
		r.logger.Warn("failed to update batch record", "batch", batch.ID(), "error", err)
	}

	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	r.writePlain("Found: %d/%d\n", report.Found, report.Total)
	r.writePlain("Skipped: %d\n", report.Skipped)
	r.writePlain("Failed: %d\n", report.Failed)
	if applyResults {
		r.writePlain("Applied: %d\n", appliedCount)
	}

	return r.exportReport(report, cmd.String("format"), cmd.String("output"))
}

// resolveEntries loads either the entries named by --entries or the whole
// library.
func (r *Runner) resolveEntries(ctx context.Context, cmd *cli.Command, library *repositories.Library) ([]models.LibraryEntry, error) {
	raw := cmd.String("entries")
	if raw == "" {
		return library.FavoriteEntries(ctx)
	}

	ids, err := parseIDList(raw)
	if err != nil {
		return nil, err
	}
	return library.EntriesByIDs(ctx, ids)
}

// parseIDList parses a comma-separated list of entry IDs.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid entry ID %q", shared.ErrInvalidFlag, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Runner) exportReport(report *formatter.Report, format, output string) error {
	switch format {
	case "", "text":
		if output != "" {
			path, err := formatter.WriteTextExport(report, output)
			if err != nil {
				return err
			}
			r.writePlain("\nReport written to %s\n", path)
			return nil
		}
		data, err := formatter.ExportToText(report)
		if err != nil {
			return err
		}
		r.writePlain("\n%s", string(data))
		return nil

	case "csv":
		files, err := formatter.WriteCSVExport(report, output)
		if err != nil {
			return err
		}
		r.writePlain("\nReport written to %s\n", strings.Join(files, ", "))
		return nil

	case "json":
		return r.writeJSON(report, true)

	default:
		return fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, format)
	}
}

// batchView is the JSON/display projection of a batch record.
type batchView struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	Status      string     `json:"status"`
	UnitsTotal  int        `json:"units_total"`
	Applied     int        `json:"applied"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newBatchView(b *models.MigrationBatch) batchView {
	return batchView{
		ID:          b.ID(),
		Sequence:    b.Sequence(),
		Status:      b.Status(),
		UnitsTotal:  b.UnitsTotal(),
		Applied:     b.Applied(),
		Skipped:     b.Skipped(),
		Failed:      b.Failed(),
		StartedAt:   b.StartedAt(),
		CompletedAt: b.CompletedAt(),
	}
}

// MigrateStatus shows one batch record, defaulting to the most recent.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewBatchRepository(db)

	var batch *models.MigrationBatch
	if id := cmd.String("id"); id != "" {
		if batch, err = repo.Get(id); err != nil {
			return err
		}
	} else {
		batches, err := repo.List(map[string]any{"limit": 1})
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			r.writePlain("No migration batches recorded yet\n")
			return nil
		}
		batch = batches[0]
	}

	if cmd.Bool("json") {
		return r.writeJSON(newBatchView(batch), true)
	}

	r.writePlainHeader(fmt.Sprintf("Batch #%d (%s)", batch.Sequence(), batch.Status()))
	r.writePlain("ID: %s\n", batch.ID())
	r.writePlain("Entries: %d\n", batch.UnitsTotal())
	r.writePlain("Applied: %d, Skipped: %d, Failed: %d\n", batch.Applied(), batch.Skipped(), batch.Failed())
	if batch.StartedAt() != nil {
		r.writePlain("Started: %s\n", batch.StartedAt().Format(time.RFC3339))
	}
	if batch.CompletedAt() != nil {
		r.writePlain("Completed: %s\n", batch.CompletedAt().Format(time.RFC3339))
	}
	return nil
}

// MigrateHistory lists past batch records, newest first.
func (r *Runner) MigrateHistory(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewBatchRepository(db)

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	batches, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]batchView, len(batches))
		for i, b := range batches {
			views[i] = newBatchView(b)
		}
		return r.writeJSON(views, true)
	}

	if len(batches) == 0 {
		r.writePlain("No migration batches recorded yet\n")
		return nil
	}

	for _, b := range batches {
		when := ""
		if b.StartedAt() != nil {
			when = b.StartedAt().Format("2006-01-02 15:04")
		}
		r.writePlain("#%d  %-10s %3d entries  applied %d, skipped %d, failed %d  %s\n",
			b.Sequence(), b.Status(), b.UnitsTotal(), b.Applied(), b.Skipped(), b.Failed(), when)
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping empty parts.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
