// package formatter provides functions to export migration batch reports to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/watariapp/watari/internal/apply"
	"github.com/watariapp/watari/internal/migrate"
	"github.com/watariapp/watari/internal/shared"
)

// Row is one entry's line in a batch report.
type Row struct {
	Title           string `json:"title"`
	Status          string `json:"status"`
	NewEntryID      int64  `json:"new_entry_id,omitempty"`
	NewChapters     int    `json:"new_chapters"`
	RemovedChapters int    `json:"removed_chapters"`
	Applied         string `json:"applied,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Report is the renderable summary of one migration batch.
type Report struct {
	BatchID string `json:"batch_id"`
	Total   int    `json:"total"`
	Found   int    `json:"found"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Rows    []Row  `json:"rows"`
}

// BuildReport assembles a report from the session's terminal units and, when
// the batch has been applied, the per-unit apply outcomes.
func BuildReport(session *migrate.Session, applied map[string]apply.Outcome) *Report {
	report := &Report{BatchID: session.ID()}

	for _, unit := range session.Units() {
		report.Total++

		row := Row{
			Title:  unit.Entry().Title,
			Status: unit.Status().String(),
		}

		switch unit.Status() {
		case migrate.StatusFound:
			report.Found++
		case migrate.StatusFailed:
			report.Failed++
		case migrate.StatusNotFound, migrate.StatusCancelled:
			report.Skipped++
		}

		if id, ok := unit.SearchResult().Found(); ok {
			row.NewEntryID = id
		}
		if diff := unit.Diff(); diff != nil {
			row.NewChapters = len(diff.NewChapters)
			row.RemovedChapters = len(diff.RemovedChapters)
		}
		if err := unit.Err(); err != nil {
			row.Reason = err.Error()
		}

		if out, ok := applied[unit.ID()]; ok {
			row.Applied = out.Kind.String()
			if out.Reason != nil {
				row.Reason = out.Reason.Error()
			}
		}

		report.Rows = append(report.Rows, row)
	}

	return report
}

// ExportToCSV converts a Report to CSV format with columns: Title, Status, New Entry, New Chapters, Removed Chapters, Applied, Reason
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Title", "Status", "New Entry", "New Chapters", "Removed Chapters", "Applied", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range report.Rows {
		newEntry := ""
		if row.NewEntryID != 0 {
			newEntry = strconv.FormatInt(row.NewEntryID, 10)
		}
		record := []string{
			row.Title,
			row.Status,
			newEntry,
			strconv.Itoa(row.NewChapters),
			strconv.Itoa(row.RemovedChapters),
			row.Applied,
			row.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown format
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Migration batch %s\n\n", report.BatchID))
	buf.WriteString(fmt.Sprintf("**Entries**: %d (%d found, %d skipped, %d failed)\n\n",
		report.Total, report.Found, report.Skipped, report.Failed))

	buf.WriteString("| Title | Status | New chapters | Removed | Applied |\n")
	buf.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, row := range report.Rows {
		buf.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %s |\n",
			row.Title, row.Status, row.NewChapters, row.RemovedChapters, row.Applied))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Batch: %s\n", report.BatchID))
	buf.WriteString(fmt.Sprintf("Entries: %d (%d found, %d skipped, %d failed)\n\n",
		report.Total, report.Found, report.Skipped, report.Failed))

	for i, row := range report.Rows {
		line := fmt.Sprintf("%d. %s - %s", i+1, row.Title, row.Status)
		if row.Status == migrate.StatusFound.String() {
			line += fmt.Sprintf(" (+%d chapters", row.NewChapters)
			if row.RemovedChapters > 0 {
				line += fmt.Sprintf(", -%d removed", row.RemovedChapters)
			}
			line += ")"
		}
		if row.Applied != "" {
			line += fmt.Sprintf(" [%s]", row.Applied)
		}
		if row.Reason != "" {
			line += fmt.Sprintf(": %s", row.Reason)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ToSummaryJSON generates a JSON representation of the report
func ToSummaryJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// WriteCSVExport exports a report to CSV with an accompanying summary JSON file.
//
// Defaults to the batch ID as the base filename & creates {base}_report.csv and {base}_summary.json
func WriteCSVExport(report *Report, baseFilepath string) ([]string, error) {
	if baseFilepath == "" {
		baseFilepath = report.BatchID
	}

	csvData, err := ExportToCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	reportFile := baseFilepath + "_report.csv"
	if err := os.WriteFile(reportFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	summaryJSON, err := ToSummaryJSON(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary JSON: %w", err)
	}

	summaryFile := baseFilepath + "_summary.json"
	if err := os.WriteFile(summaryFile, summaryJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary file: %w", err)
	}

	return []string{reportFile, summaryFile}, nil
}

// WriteTextExport exports a report to plain text format.
//
// Defaults to {batchID}_report.txt as the filename.
func WriteTextExport(report *Report, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_report.txt", report.BatchID)
	}

	textData, err := ExportToText(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}
