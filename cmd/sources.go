package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/watariapp/watari/internal/shared"
)

// SourcesList prints the catalogue sources available to migrations.
func (r *Runner) SourcesList(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(r.config.Sources, true)
	}

	all := r.registry.All()
	if len(all) == 0 {
		r.writePlain("No sources configured. Add [[sources]] entries to your config file.\n")
		return nil
	}

	r.writePlainHeader("Configured Sources")
	for _, cfg := range r.config.Sources {
		r.writePlain("%-16s %s\n", cfg.ID, cfg.Name)
		r.writePlain("  %s (%s, %.1f req/s)\n", cfg.BaseURL, cfg.Language, cfg.RateLimit)
	}
	return nil
}

// SourcesSearch queries one catalogue source directly and prints the
// candidates it returns. Useful for checking source connectivity before a
// migration run.
func (r *Runner) SourcesSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrInvalidInput)
	}

	src, err := r.registry.Get(cmd.String("source"))
	if err != nil {
		return err
	}

	r.logger.Debug("searching source", "source", src.ID(), "query", query)
	candidates, err := src.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search against %s failed: %w", src.Name(), err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidates, true)
	}

	if len(candidates) == 0 {
		r.writePlain("No results for %q on %s\n", query, src.Name())
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("%s: %d results for %q", src.Name(), len(candidates), query))
	for i, c := range candidates {
		r.writePlain("%d. %s\n   %s\n", i+1, c.Title, c.URL)
	}
	return nil
}
