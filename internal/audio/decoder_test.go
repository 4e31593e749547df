package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner returns canned stdout/stderr for the next invocation.
type fakeRunner struct {
	stdout   []byte
	stderr   string
	err      error
	lastName string
	lastArgs []string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, string, error) {
	r.lastName = name
	r.lastArgs = args
	return r.stdout, r.stderr, r.err
}

func okStat(string) (os.FileInfo, error) {
	return nil, nil
}

// TestDecodeProducesCanonicalBuffer verifies format parameters and
// buffer metadata.
func TestDecodeProducesCanonicalBuffer(t *testing.T) {
	runner := &fakeRunner{stdout: make([]byte, 64000)}
	d := NewFFmpegDecoderForTests("ffmpeg", runner, okStat, nil)

	buf, err := d.Decode(context.Background(), "/media/talk.mp4")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SampleRate != 16000 || buf.Channels != 1 {
		t.Fatalf("buffer format = %d/%d, want 16000/1", buf.SampleRate, buf.Channels)
	}
	if got := buf.Duration(); got != 2*time.Second {
		t.Fatalf("duration = %v, want 2s", got)
	}

	joined := strings.Join(runner.lastArgs, " ")
	for _, want := range []string{"-ac 1", "-ar 16000", "-f s16le"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

// TestDecodeFailurePropagatesStderr verifies error context includes the
// final ffmpeg stderr line.
func TestDecodeFailurePropagatesStderr(t *testing.T) {
	runner := &fakeRunner{
		stderr: "header noise\nInvalid data found when processing input",
		err:    errors.New("exit status 1"),
	}
	d := NewFFmpegDecoderForTests("ffmpeg", runner, okStat, nil)

	_, err := d.Decode(context.Background(), "/media/broken.avi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("error %q lacks stderr context", err)
	}
}

// TestDecodeRejectsMissingInput verifies the stat precheck.
func TestDecodeRejectsMissingInput(t *testing.T) {
	d := NewFFmpegDecoderForTests("ffmpeg", &fakeRunner{}, func(string) (os.FileInfo, error) {
		return nil, os.ErrNotExist
	}, nil)

	if _, err := d.Decode(context.Background(), "/media/gone.wav"); err == nil {
		t.Fatal("expected error for missing input")
	}
}

// TestDecodeRejectsEmptyOutput verifies silent ffmpeg failures surface.
func TestDecodeRejectsEmptyOutput(t *testing.T) {
	d := NewFFmpegDecoderForTests("ffmpeg", &fakeRunner{stdout: nil}, okStat, nil)
	if _, err := d.Decode(context.Background(), "/media/silent.wav"); err == nil {
		t.Fatal("expected error for empty PCM output")
	}
}

// TestSaveCanonicalWritesWAV verifies the serialized header fields.
func TestSaveCanonicalWritesWAV(t *testing.T) {
	var written []byte
	d := NewFFmpegDecoderForTests("ffmpeg", &fakeRunner{}, okStat,
		func(_ string, data []byte, _ os.FileMode) error {
			written = data
			return nil
		})

	buf := &Buffer{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}
	if err := d.SaveCanonical(buf, "/work/out.wav"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(written) != 44+3200 {
		t.Fatalf("wav size = %d, want %d", len(written), 44+3200)
	}
	if string(written[:4]) != "RIFF" || string(written[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(written[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(written[40:44]); dataLen != 3200 {
		t.Fatalf("data length = %d, want 3200", dataLen)
	}
}

// TestCanonicalNameIsUnique verifies generated names do not collide.
func TestCanonicalNameIsUnique(t *testing.T) {
	a := CanonicalName("/work")
	b := CanonicalName("/work")
	if a == b {
		t.Fatalf("names collide: %s", a)
	}
	if filepath.Ext(a) != ".wav" || filepath.Dir(a) != "/work" {
		t.Fatalf("unexpected name: %s", a)
	}
}
