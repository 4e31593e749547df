package report

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"batch-transcriber/internal/domain"
)

// TestWriteRendersBatchRows verifies the workbook content row by row.
func TestWriteRendersBatchRows(t *testing.T) {
	dir := t.TempDir()

	results := []domain.FileResult{
		{FileName: "a.wav", RecordID: 1},
		{FileName: "b.mp3", RecordID: 2},
	}
	records := []*domain.TranscriptionRecord{
		{
			ID:                1,
			Text:              "raw one",
			EnhancedText:      "Enhanced one.",
			AudioDuration:     time.Minute,
			ModelName:         "small",
			TranscribeElapsed: time.Second,
			EnhancementModel:  "gpt-test",
			PromptName:        "default",
		},
		{
			ID:                2,
			Text:              "raw two",
			AudioDuration:     30 * time.Second,
			ModelName:         "small",
			TranscribeElapsed: 2 * time.Second,
		},
	}

	path, err := Write(dir, results, records)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "File" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "a.wav" || rows[1][5] != "yes" || rows[1][8] != "Enhanced one." {
		t.Fatalf("row 1 = %v", rows[1])
	}
	if rows[2][0] != "b.mp3" || rows[2][5] != "no" || rows[2][8] != "raw two" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

// TestWriteRejectsMismatchedInput verifies the length invariant.
func TestWriteRejectsMismatchedInput(t *testing.T) {
	_, err := Write(t.TempDir(), []domain.FileResult{{FileName: "a.wav"}}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched input")
	}
}
