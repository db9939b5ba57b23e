package tasks

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/watariapp/watari/internal/models"
	"github.com/watariapp/watari/internal/shared"
)

// BulkExportOpts contains configuration for bulk entry exports.
type BulkExportOpts struct {
	Format     string // Export format: json, csv, txt
	OutputDir  string // Base output directory (default: watari_export_{epoch})
	NumWorkers int    // Concurrent workers (default: 5)
}

// EntryExportJob carries one entry and its chapters to an export worker.
type EntryExportJob struct {
	Entry    models.LibraryEntry
	Chapters []models.ChapterRecord
}

// EntryExportResult records the outcome of exporting one entry.
type EntryExportResult struct {
	EntryID int64    `json:"entry_id"`
	Title   string   `json:"title"`
	Success bool     `json:"success"`
	Files   []string `json:"files,omitempty"`
	Error   error    `json:"-"`
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	TotalEntries      int                 `json:"total_entries"`
	SuccessfulExports int                 `json:"successful_exports"`
	FailedExports     int                 `json:"failed_exports"`
	OutputDirectory   string              `json:"output_directory"`
	ManifestPath      string              `json:"manifest_path,omitempty"`
	Results           []EntryExportResult `json:"results"`
}

// exportPayload is the JSON shape written per entry.
type exportPayload struct {
	Entry    models.LibraryEntry    `json:"entry"`
	Chapters []models.ChapterRecord `json:"chapters"`
}

// BulkExport exports library entries and their chapters concurrently.
//
// This method implements a worker pool pattern to efficiently export multiple
// entries. It handles partial failures gracefully and generates a manifest
// file summarizing the export results.
func (e *LibraryEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []int64,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	entries, err := e.resolveEntries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to export", shared.ErrInvalidInput)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("watari_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalEntries:    len(entries),
		OutputDirectory: opts.OutputDir,
		Results:         make([]EntryExportResult, 0, len(entries)),
	}

	jobs := make(chan EntryExportJob, len(entries))
	results := make(chan EntryExportResult, len(entries))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		e.sendProgress(prog, fetchEntriesUpdate(len(entries)))
		for i, entry := range entries {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
			}

			chapters, err := e.store.ChaptersByEntry(ctx, entry.EntryID)
			if err != nil {
				results <- EntryExportResult{
					EntryID: entry.EntryID,
					Title:   entry.Title,
					Success: false,
					Error:   fmt.Errorf("failed to fetch chapters: %w", err),
				}
				continue
			}

			jobs <- EntryExportJob{Entry: entry, Chapters: chapters}
			e.sendProgress(prog, exportingEntryUpdate(i+1, len(entries), entry.Title))
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(entries), res.Title, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(entries), res.Title, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	manifest, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to build manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, manifest, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports entries from the jobs channel.
func (e *LibraryEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan EntryExportJob,
	results chan<- EntryExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.exportSingleEntry(job, opts)
	}
}

// exportSingleEntry writes one entry to the configured format.
func (e *LibraryEngine) exportSingleEntry(j EntryExportJob, opts BulkExportOpts) EntryExportResult {
	result := EntryExportResult{
		EntryID: j.Entry.EntryID,
		Title:   j.Entry.Title,
		Success: false,
		Files:   []string{},
	}
	base := strconv.FormatInt(j.Entry.EntryID, 10)

	switch opts.Format {
	case "csv":
		csvPath := filepath.Join(opts.OutputDir, base+"_chapters.csv")
		data, err := chaptersToCSV(j.Chapters)
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		if err := os.WriteFile(csvPath, data, 0644); err != nil {
			result.Error = fmt.Errorf("CSV write failed: %w", err)
			return result
		}
		result.Files = []string{csvPath}
		result.Success = true

	case "txt":
		txtPath := filepath.Join(opts.OutputDir, base+"_chapters.txt")
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("%s (%s)\n\n", j.Entry.Title, j.Entry.SourceID))
		for i, ch := range j.Chapters {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, ch.Name))
		}
		if err := os.WriteFile(txtPath, buf.Bytes(), 0644); err != nil {
			result.Error = fmt.Errorf("text write failed: %w", err)
			return result
		}
		result.Files = []string{txtPath}
		result.Success = true

	case "json":
		fallthrough
	default:
		jsonPath := filepath.Join(opts.OutputDir, base+".json")
		data, err := shared.MarshalJSON(exportPayload{Entry: j.Entry, Chapters: j.Chapters}, true)
		if err != nil {
			result.Error = fmt.Errorf("JSON marshal failed: %w", err)
			return result
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			result.Error = fmt.Errorf("JSON write failed: %w", err)
			return result
		}
		result.Files = []string{jsonPath}
		result.Success = true
	}
	return result
}

func chaptersToCSV(chapters []models.ChapterRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Number", "Name", "Scanlator", "Read", "URL"}); err != nil {
		return nil, err
	}
	for _, ch := range chapters {
		number := ""
		if ch.HasNumber() {
			number = strconv.FormatFloat(ch.Number, 'f', -1, 64)
		}
		row := []string{
			number,
			ch.Name,
			ch.Scanlator,
			strconv.FormatBool(ch.Read),
			ch.URL,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
