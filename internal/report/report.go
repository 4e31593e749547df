package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"batch-transcriber/internal/domain"
)

const sheetName = "Batch"

var header = []string{
	"File", "Record ID", "Audio Duration", "Model",
	"Transcribe Elapsed", "Enhanced", "Enhancement Model", "Prompt", "Text",
}

// Write renders a workbook summarizing one finished batch and returns
// the written file path.
func Write(dir string, results []domain.FileResult, records []*domain.TranscriptionRecord) (string, error) {
	if len(results) != len(records) {
		return "", fmt.Errorf("results/records length mismatch: %d vs %d", len(results), len(records))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", err
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return "", err
	}

	for i, res := range results {
		rec := records[i]
		enhanced := "no"
		if rec.EnhancedText != "" {
			enhanced = "yes"
		}

		row := []any{
			res.FileName,
			res.RecordID,
			rec.AudioDuration.Round(time.Millisecond).String(),
			rec.ModelName,
			rec.TranscribeElapsed.Round(time.Millisecond).String(),
			enhanced,
			rec.EnhancementModel,
			rec.PromptName,
			recordText(rec),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("batch-%s.xlsx", time.Now().UTC().Format("20060102-150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

// recordText prefers the enhanced text when the enhancement step produced one.
func recordText(rec *domain.TranscriptionRecord) string {
	if rec.EnhancedText != "" {
		return rec.EnhancedText
	}
	return rec.Text
}
