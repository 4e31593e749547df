package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"batch-transcriber/internal/domain"
)

// Checker validates external tools and required filesystem paths before
// a batch is started.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all preflight checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg"),
		c.checkTool("whisper.cpp"),
		c.checkModelPath(settings.ModelPath),
		c.checkWorkDir(settings.WorkDir),
		c.checkEnhancement(settings.Enhancement),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(name string) domain.DiagnosticItem {
	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + name,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    "Install it and ensure the binary is available on PATH before starting a batch.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + name,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModelPath validates the configured model file or model directory.
func (c *Checker) checkModelPath(modelPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_path",
		Name: "Model path",
	}

	if strings.TrimSpace(modelPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model path is empty."
		item.Hint = "Set a model file path or a directory containing whisper models."
		return item
	}

	info, err := c.stat(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot access model path: %s", modelPath)
		return item
	}

	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model file: %s", modelPath)
		return item
	}

	entries, err := c.readDir(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelPath)
		return item
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory: %s", modelPath)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No .bin or .gguf model files found in: %s", modelPath)
	item.Hint = "Download a whisper model into the configured directory."
	return item
}

// checkWorkDir verifies the canonical audio directory is writable.
func (c *Checker) checkWorkDir(workDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "work_dir",
		Name: "Work directory",
	}

	if strings.TrimSpace(workDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Work directory is empty."
		return item
	}

	if err := c.mkdirAll(workDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create work directory: %s", workDir)
		return item
	}

	probe, err := c.createTemp(workDir, "probe-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Work directory is not writable: %s", workDir)
		return item
	}
	name := probe.Name()
	_ = probe.Close()
	_ = c.remove(name)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable: %s", workDir)
	return item
}

// checkEnhancement reports enhancement readiness. An incomplete config
// is a pass with a hint: enhancement is optional and the batch degrades
// gracefully without it.
func (c *Checker) checkEnhancement(cfg domain.Enhancement) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "enhancement",
		Name: "Enhancement",
	}

	switch {
	case !cfg.Enabled:
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Disabled."
	case cfg.IsConfigured():
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Enabled, model %s, prompt %q.", cfg.Model, cfg.PromptName)
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Enabled but not fully configured; batches will skip enhancement."
		item.Hint = "Set an enhancement model and prompt to activate the step."
	}

	return item
}
