package config

import (
	"os"
	"path/filepath"

	"batch-transcriber/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	base := filepath.Join(homeDir, ".batch-transcriber")
	return domain.Settings{
		ModelPath:    filepath.Join(base, "models"),
		Language:     "auto",
		WorkDir:      filepath.Join(base, "work"),
		DatabasePath: filepath.Join(base, "records.db"),
		ReportDir:    filepath.Join(homeDir, "Documents", "Transcripts"),
		Enhancement: domain.Enhancement{
			PromptName: "default",
			Prompt:     defaultEnhancementPrompt,
		},
	}
}

const defaultEnhancementPrompt = "You are a transcript editor. Fix punctuation, " +
	"casing, and obvious transcription mistakes in the text you receive. " +
	"Do not add, remove, or reorder content. Reply with the corrected text only."
