package main

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/watariapp/watari/internal/repositories"
	"github.com/watariapp/watari/internal/tasks"
)

// LibraryExport writes library entries and their chapters to files.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := parseIDList(cmd.String("entries"))
	if err != nil {
		return err
	}

	engine := tasks.NewLibraryEngine(repositories.NewLibrary(db), r.registry, r.searcher, r.logger)

	prog := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := engine.BulkExport(ctx, prog, ids, tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
	})
	close(prog)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("Exported %d/%d entries to %s",
		result.SuccessfulExports, result.TotalEntries, result.OutputDirectory)
	return nil
}

// LibraryUpdate refreshes metadata and chapter lists from each entry's own
// catalogue source.
func (r *Runner) LibraryUpdate(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := parseIDList(cmd.String("entries"))
	if err != nil {
		return err
	}

	engine := tasks.NewLibraryEngine(repositories.NewLibrary(db), r.registry, r.searcher, r.logger)

	prog := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := engine.Refresh(ctx, prog, ids, tasks.RefreshOpts{
		NumWorkers: cmd.Int("workers"),
	})
	close(prog)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("Updated %d/%d entries (+%d chapters, -%d removed, %d failed)",
		result.Updated, result.TotalEntries,
		result.AddedChapters, result.RemovedChapters, result.Failed)
	return nil
}
