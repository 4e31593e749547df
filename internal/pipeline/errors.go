package pipeline

import "fmt"

// Stage identifies the per-file step that produced a fatal error.
type Stage string

const (
	StageDecode     Stage = "decode"
	StageTranscribe Stage = "transcribe"
	StagePersist    Stage = "persist"
)

// StageError wraps a per-file failure with the stage it occurred in so
// callers can report which step aborted the batch.
type StageError struct {
	Stage Stage
	File  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.File, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
