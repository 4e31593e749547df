package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrSessionReleased is returned when a released session is used again.
var ErrSessionReleased = errors.New("transcription session already released")

// Service creates per-batch transcription sessions.
type Service interface {
	NewSession(ctx context.Context, modelPath string) (Session, error)
}

// Session is the short-lived model registry held for one batch. It
// must be released exactly once on every batch exit path.
type Session interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	Release() error
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// WhisperService transcribes canonical audio through the whisper.cpp CLI.
type WhisperService struct {
	whisperPath string
	language    string
	runner      commandRunner
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)
	remove      func(name string) error
}

// NewWhisperService constructs the production service with OS dependencies.
func NewWhisperService(language string) *WhisperService {
	return &WhisperService{
		whisperPath: "whisper.cpp",
		language:    language,
		runner:      &execRunner{},
		stat:        os.Stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
		remove:      os.Remove,
	}
}

// NewSession resolves the model once and returns the batch registry.
func (s *WhisperService) NewSession(_ context.Context, modelPath string) (Session, error) {
	resolved, err := s.resolveModelPath(modelPath)
	if err != nil {
		return nil, err
	}

	return &whisperSession{svc: s, modelPath: resolved}, nil
}

// whisperSession runs whisper.cpp against one resolved model file.
type whisperSession struct {
	svc       *WhisperService
	modelPath string

	mu       sync.Mutex
	released bool
}

// Transcribe runs whisper.cpp on the canonical audio file and returns
// the raw transcript text.
func (w *whisperSession) Transcribe(ctx context.Context, audioPath string) (string, error) {
	w.mu.Lock()
	released := w.released
	w.mu.Unlock()
	if released {
		return "", ErrSessionReleased
	}

	textBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := buildWhisperArgs(w.modelPath, audioPath, textBase, w.svc.language)
	if _, err := w.svc.runner.Run(ctx, w.svc.whisperPath, args...); err != nil {
		return "", fmt.Errorf("whisper.cpp transcription failed: %w", err)
	}

	textPath := textBase + ".txt"
	content, err := w.svc.readFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper.cpp completed but transcript file is missing: %w", err)
	}
	_ = w.svc.remove(textPath)

	return string(content), nil
}

// Release frees the session. A second release is an error so callers
// with broken cleanup paths surface in tests.
func (w *whisperSession) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return ErrSessionReleased
	}
	w.released = true
	return nil
}

// resolveModelPath returns a model file path from file or directory input.
func (s *WhisperService) resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", errors.New("model path is required")
	}

	info, err := s.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := s.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildWhisperArgs builds whisper.cpp args for txt transcript export.
func buildWhisperArgs(modelPath, audioPath, textBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

// NewWhisperServiceForTests constructs a service with injectable dependencies.
func NewWhisperServiceForTests(
	whisperPath string,
	runner commandRunner,
	stat func(name string) (os.FileInfo, error),
	readDir func(name string) ([]os.DirEntry, error),
	readFile func(name string) ([]byte, error),
) *WhisperService {
	return &WhisperService{
		whisperPath: whisperPath,
		runner:      runner,
		stat:        stat,
		readDir:     readDir,
		readFile:    readFile,
		remove:      func(string) error { return nil },
	}
}
