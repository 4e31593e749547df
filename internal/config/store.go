package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"batch-transcriber/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk or returns defaults when missing.
// Environment overrides are applied last so a .env file can steer a
// deployment without editing the settings file.
func (s *JSONStore) Load() (domain.Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnvOverrides(settings), nil
		}

		return domain.Settings{}, err
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.Settings{}, err
	}

	return applyEnvOverrides(settings), nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// applyEnvOverrides layers environment configuration over file values.
// The API key never lives in the settings file.
func applyEnvOverrides(settings domain.Settings) domain.Settings {
	if v := os.Getenv("TRANSCRIBER_MODEL_PATH"); v != "" {
		settings.ModelPath = v
	}
	if v := os.Getenv("TRANSCRIBER_LANGUAGE"); v != "" {
		settings.Language = v
	}
	if v := os.Getenv("TRANSCRIBER_WORK_DIR"); v != "" {
		settings.WorkDir = v
	}
	if v := os.Getenv("TRANSCRIBER_DB_PATH"); v != "" {
		settings.DatabasePath = v
	}
	if v := os.Getenv("ENHANCER_BASE_URL"); v != "" {
		settings.Enhancement.BaseURL = v
	}
	if v := os.Getenv("ENHANCER_MODEL"); v != "" {
		settings.Enhancement.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		settings.Enhancement.APIKey = v
	}
	return settings
}
