package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
	"github.com/watariapp/watari/internal/apply"
	"github.com/watariapp/watari/internal/migrate"
	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/repositories"
	"github.com/watariapp/watari/internal/ui"
)

// runnerEngine adapts the Runner's services to the TUI engine interface. It
// owns the database handle for the lifetime of the program.
type runnerEngine struct {
	library *repositories.Library
	orch    *migrate.Orchestrator
	applier *apply.Applier
	cfg     migrate.BatchConfig
}

func (e *runnerEngine) ListEntries(ctx context.Context) ([]models.LibraryEntry, error) {
	return e.library.FavoriteEntries(ctx)
}

func (e *runnerEngine) StartBatch(ctx context.Context, entries []models.LibraryEntry) (*migrate.Session, <-chan migrate.Outcome, error) {
	cfg := e.cfg
	cfg.EntryIDs = make([]int64, len(entries))
	for i, entry := range entries {
		cfg.EntryIDs[i] = entry.EntryID
	}

	session := migrate.NewSession(entries)
	outcomes, err := e.orch.Run(ctx, session, cfg)
	if err != nil {
		session.Close()
		return nil, nil, err
	}
	return session, outcomes, nil
}

func (e *runnerEngine) ApplyBatch(ctx context.Context, session *migrate.Session) map[string]apply.Outcome {
	return e.applier.ApplyAll(ctx, session, e.cfg.Carry, false)
}

// TUI launches the interactive migration interface.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	library := repositories.NewLibrary(db)
	engine := &runnerEngine{
		library: library,
		orch:    migrate.NewOrchestrator(r.registry, r.searcher, library, r.logger),
		applier: apply.NewApplier(library, r.logger),
		cfg:     migrate.ConfigFromShared(r.config.Migration, nil),
	}

	program := tea.NewProgram(ui.NewModel(ctx, engine), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run interactive interface: %w", err)
	}
	return nil
}
