package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"batch-transcriber/internal/audio"
	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/enhance"
	"batch-transcriber/internal/events"
	"batch-transcriber/internal/textproc"
	"batch-transcriber/internal/transcribe"
)

// ErrNoFiles is returned when Start is called with an empty file list.
var ErrNoFiles = errors.New("no input files")

const noModelMessage = "No transcription model selected"

// RecordStore is the persistence context the manager drives per file.
type RecordStore interface {
	Insert(*domain.TranscriptionRecord) error
	Save() error
}

// ProfileSource exposes the active automation profile, sampled once per
// file at persistence time. Read-only from the manager's point of view.
type ProfileSource interface {
	Active() (name, emoji string)
}

// BatchRequest is the snapshot taken at Start. The running batch never
// re-reads settings, so mid-batch configuration changes cannot produce
// inconsistent per-file behavior.
type BatchRequest struct {
	Files        []string
	Model        string
	Format       bool
	Replacements map[string]string
	Enhancement  domain.Enhancement
	CleanupAudio bool
}

// Deps wires the external capabilities the manager sequences.
type Deps struct {
	Decoder     audio.Decoder
	Transcriber transcribe.Service
	Enhancer    enhance.Service
	Store       RecordStore
	Events      *events.Bus
	Profiles    ProfileSource
	Log         *logrus.Entry
	WorkDir     string
	SettleDelay time.Duration
	RemoveFile  func(string) error
}

// Manager owns the single in-flight batch task and its observable
// state. Phase, progress, results, and the error signal are written
// only by the active batch goroutine; any number of readers may take
// snapshots. A generation counter discards late writes from superseded
// batches so starting a new batch can never be clobbered by the old one.
type Manager struct {
	deps Deps

	mu         sync.Mutex
	phase      domain.Phase
	progress   domain.Progress
	results    []domain.FileResult
	errMsg     string
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewManager creates an idle manager.
func NewManager(deps Deps) *Manager {
	if deps.RemoveFile == nil {
		deps.RemoveFile = os.Remove
	}
	return &Manager{deps: deps, phase: domain.PhaseIdle}
}

// Start launches a new batch. Any running batch is cancelled first; its
// in-flight file is abandoned at the next cancellation checkpoint.
// Progress, results, and the error signal are reset before processing.
func (m *Manager) Start(req BatchRequest) error {
	if len(req.Files) == 0 {
		return ErrNoFiles
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.generation++
	gen := m.generation
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.phase = domain.PhaseLoading
	m.progress = domain.Progress{TotalFileCount: len(req.Files)}
	m.results = nil
	m.errMsg = ""
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	m.deps.Events.Publish(events.Event{
		Type:    events.TypeBatchStarted,
		Phase:   domain.PhaseLoading,
		Message: fmt.Sprintf("%d file(s)", len(req.Files)),
	})

	go m.run(ctx, gen, req, done)
	return nil
}

// Cancel requests cooperative cancellation. Idempotent; cancelling an
// idle manager is a no-op. The file currently in flight finishes and is
// still recorded; only the next file's start is suppressed.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// Phase returns the current batch phase.
func (m *Manager) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Progress returns the current batch counters.
func (m *Manager) Progress() domain.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

// Results returns a copy of completed file results in submission order.
func (m *Manager) Results() []domain.FileResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.FileResult, len(m.results))
	copy(out, m.results)
	return out
}

// ErrorMessage returns the active error signal, empty when none is set.
func (m *Manager) ErrorMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// AcknowledgeError clears the error signal.
func (m *Manager) AcknowledgeError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errMsg = ""
}

// Wait blocks until the current batch goroutine exits. Returns
// immediately when the manager is idle.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// run drives one batch to completion. Fatal failures abort remaining
// files; the per-batch session is released on every exit path.
func (m *Manager) run(ctx context.Context, gen uint64, req BatchRequest, done chan struct{}) {
	defer close(done)
	defer m.clearTask(gen)

	log := m.deps.Log.WithField("files", len(req.Files))

	if strings.TrimSpace(req.Model) == "" {
		log.Error("no transcription model selected")
		m.failBatch(gen, noModelMessage)
		return
	}

	session, err := m.deps.Transcriber.NewSession(ctx, req.Model)
	if err != nil {
		m.failBatch(gen, fmt.Sprintf("start transcription session: %v", err))
		return
	}
	defer func() {
		if err := session.Release(); err != nil {
			log.WithError(err).Warn("release transcription session")
		}
	}()

	for _, file := range req.Files {
		select {
		case <-ctx.Done():
			log.Info("batch cancelled")
			m.resetIdle(gen)
			return
		default:
		}

		m.advanceProgress(gen)
		rec, err := m.processFile(ctx, gen, session, file, req)
		if err != nil {
			// A cancelled context aborts the in-flight stage; that is
			// still cancellation, not a batch failure.
			if ctx.Err() != nil {
				log.Info("batch cancelled")
				m.resetIdle(gen)
				return
			}
			log.WithError(err).Error("batch aborted")
			m.failBatch(gen, err.Error())
			return
		}

		result := domain.FileResult{FileName: filepath.Base(file), RecordID: rec.ID}
		if m.appendResult(gen, result) {
			m.deps.Events.Publish(events.Event{
				Type:     events.TypeFileCompleted,
				FileName: result.FileName,
				RecordID: result.RecordID,
			})
		}
	}

	if m.setPhase(gen, domain.PhaseCompleted) {
		m.deps.Events.Publish(events.Event{Type: events.TypeBatchCompleted, Phase: domain.PhaseCompleted})
		log.Info("batch completed")
	}
	m.settle(ctx)
	m.resetIdle(gen)
}

// processFile runs one file through decode, transcribe, optional
// enhancement, and persistence. Decode, transcription, and persistence
// errors are fatal for the batch; enhancement failures degrade to the
// unenhanced text.
func (m *Manager) processFile(
	ctx context.Context,
	gen uint64,
	session transcribe.Session,
	file string,
	req BatchRequest,
) (*domain.TranscriptionRecord, error) {
	base := filepath.Base(file)
	log := m.deps.Log.WithField("file", base)

	m.setPhase(gen, domain.PhaseProcessingAudio)
	buf, err := m.deps.Decoder.Decode(ctx, file)
	if err != nil {
		return nil, &StageError{Stage: StageDecode, File: base, Err: err}
	}

	canonical := audio.CanonicalName(m.deps.WorkDir)
	if err := m.deps.Decoder.SaveCanonical(buf, canonical); err != nil {
		return nil, &StageError{Stage: StageDecode, File: base, Err: err}
	}

	m.setPhase(gen, domain.PhaseTranscribing)
	start := time.Now()
	raw, err := session.Transcribe(ctx, canonical)
	if err != nil {
		return nil, &StageError{Stage: StageTranscribe, File: base, Err: err}
	}
	text := textproc.Apply(raw, textproc.Options{
		Format:       req.Format,
		Replacements: req.Replacements,
	})

	rec := &domain.TranscriptionRecord{
		Text:              text,
		AudioDuration:     buf.Duration(),
		AudioPath:         canonical,
		ModelName:         req.Model,
		TranscribeElapsed: time.Since(start),
		CreatedAt:         time.Now().UTC(),
	}

	if req.Enhancement.Enabled && req.Enhancement.IsConfigured() && m.deps.Enhancer != nil {
		m.setPhase(gen, domain.PhaseEnhancing)
		res, err := m.deps.Enhancer.Enhance(ctx, text, req.Enhancement)
		if err != nil {
			// Optional step: keep the unenhanced text and move on.
			log.WithError(err).Warn("enhancement failed, keeping unenhanced text")
		} else {
			rec.EnhancedText = res.Text
			rec.EnhanceElapsed = res.Elapsed
			rec.EnhancementModel = res.Model
			rec.PromptName = res.PromptName
			rec.EnhancementRequest = res.RawRequest
			rec.EnhancementResponse = res.RawResponse
		}
	}

	if m.deps.Profiles != nil {
		rec.ProfileName, rec.ProfileEmoji = m.deps.Profiles.Active()
	}

	if err := m.deps.Store.Insert(rec); err != nil {
		return nil, &StageError{Stage: StagePersist, File: base, Err: err}
	}
	if err := m.deps.Store.Save(); err != nil {
		return nil, &StageError{Stage: StagePersist, File: base, Err: err}
	}

	m.deps.Events.Publish(events.Event{
		Type:     events.TypeRecordCreated,
		FileName: base,
		RecordID: rec.ID,
	})

	// The record keeps AudioPath as provenance either way; cleanup only
	// reclaims the intermediate file once the record is durable.
	if req.CleanupAudio {
		if err := m.deps.RemoveFile(canonical); err != nil {
			log.WithError(err).Warn("remove canonical audio")
		}
	}
	return rec, nil
}

// settle keeps the completed phase observable for a short interval so a
// consumer can render the done state before the reset to idle.
func (m *Manager) settle(ctx context.Context) {
	if m.deps.SettleDelay <= 0 {
		return
	}

	t := time.NewTimer(m.deps.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// setPhase applies a phase write for the given generation. Writes from
// superseded batches are discarded.
func (m *Manager) setPhase(gen uint64, phase domain.Phase) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	m.phase = phase
	if phase != domain.PhaseCompleted {
		m.deps.Events.Publish(events.Event{Type: events.TypePhase, Phase: phase})
	}
	return true
}

// advanceProgress increments the file counter exactly once per file at
// the start of its processing.
func (m *Manager) advanceProgress(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return
	}
	if m.progress.CurrentFileIndex < m.progress.TotalFileCount {
		m.progress.CurrentFileIndex++
	}
}

// appendResult records one completed file, preserving submission order.
func (m *Manager) appendResult(gen uint64, result domain.FileResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	m.results = append(m.results, result)
	return true
}

// failBatch sets the error signal and lands the phase back on idle.
// Results of already-completed files are preserved.
func (m *Manager) failBatch(gen uint64, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return
	}
	m.errMsg = message
	m.phase = domain.PhaseIdle
	m.progress = domain.Progress{}
	m.deps.Events.Publish(events.Event{Type: events.TypeBatchFailed, Message: message})
}

// resetIdle zeroes counters and returns to idle without touching the
// error signal or results.
func (m *Manager) resetIdle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return
	}
	m.phase = domain.PhaseIdle
	m.progress = domain.Progress{}
}

// clearTask drops the cancellation handle for the finished generation.
func (m *Manager) clearTask(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
