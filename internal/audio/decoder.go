package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Canonical audio format consumed by the transcription backend.
const (
	canonicalSampleRate = 16000
	canonicalChannels   = 1
	bytesPerSample      = 2
)

// Buffer holds normalized PCM samples decoded from an input file.
type Buffer struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration derives the audio length from the sample count.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}

	samples := len(b.Data) / bytesPerSample / b.Channels
	return time.Duration(samples) * time.Second / time.Duration(b.SampleRate)
}

// Decoder turns an arbitrary media file into a canonical audio file.
type Decoder interface {
	Decode(ctx context.Context, inputPath string) (*Buffer, error)
	SaveCanonical(buf *Buffer, dest string) error
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, stderr string, err error)
}

// execRunner executes commands via os/exec and captures raw stdout.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// FFmpegDecoder decodes media through the ffmpeg CLI into 16 kHz mono
// signed 16-bit PCM.
type FFmpegDecoder struct {
	ffmpegPath string
	runner     commandRunner
	stat       func(name string) (os.FileInfo, error)
	mkdirAll   func(path string, perm os.FileMode) error
	writeFile  func(name string, data []byte, perm os.FileMode) error
}

// NewFFmpegDecoder constructs the production decoder with OS dependencies.
func NewFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{
		ffmpegPath: "ffmpeg",
		runner:     &execRunner{},
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		writeFile:  os.WriteFile,
	}
}

// Decode converts the input into a normalized sample buffer.
func (d *FFmpegDecoder) Decode(ctx context.Context, inputPath string) (*Buffer, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, errors.New("input media path is required")
	}
	if _, err := d.stat(inputPath); err != nil {
		return nil, fmt.Errorf("cannot access input media %s: %w", inputPath, err)
	}

	args := buildFFmpegArgs(inputPath)
	pcm, stderr, err := d.runner.Run(ctx, d.ffmpegPath, args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed for %s: %w (%s)", filepath.Base(inputPath), err, lastLine(stderr))
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for %s", filepath.Base(inputPath))
	}

	return &Buffer{
		Data:       pcm,
		SampleRate: canonicalSampleRate,
		Channels:   canonicalChannels,
	}, nil
}

// SaveCanonical serializes the buffer as a PCM WAV file at dest.
func (d *FFmpegDecoder) SaveCanonical(buf *Buffer, dest string) error {
	if buf == nil || len(buf.Data) == 0 {
		return errors.New("empty sample buffer")
	}
	if err := d.mkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	return d.writeFile(dest, EncodeWAV(buf), 0o644)
}

// CanonicalName generates a collision-free canonical file path under
// the given work directory.
func CanonicalName(workDir string) string {
	return filepath.Join(workDir, uuid.NewString()+".wav")
}

// buildFFmpegArgs builds decode CLI args emitting raw mono 16k PCM on stdout.
func buildFFmpegArgs(inputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "s16le",
		"-",
	}
}

// lastLine extracts the final non-empty stderr line for error messages.
func lastLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// NewFFmpegDecoderForTests constructs a decoder with injectable dependencies.
func NewFFmpegDecoderForTests(
	ffmpegPath string,
	runner commandRunner,
	stat func(name string) (os.FileInfo, error),
	writeFile func(name string, data []byte, perm os.FileMode) error,
) *FFmpegDecoder {
	return &FFmpegDecoder{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		stat:       stat,
		mkdirAll:   func(string, os.FileMode) error { return nil },
		writeFile:  writeFile,
	}
}
