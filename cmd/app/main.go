package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"batch-transcriber/internal/audio"
	"batch-transcriber/internal/config"
	"batch-transcriber/internal/diagnostics"
	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/enhance"
	"batch-transcriber/internal/events"
	"batch-transcriber/internal/logging"
	"batch-transcriber/internal/pipeline"
	"batch-transcriber/internal/report"
	"batch-transcriber/internal/store"
	"batch-transcriber/internal/transcribe"
)

const settleDelay = 2 * time.Second

var (
	configPath   string
	modelPath    string
	language     string
	noEnhance    bool
	noReport     bool
	cleanupAudio bool

	rootCmd = &cobra.Command{
		Use:   "batch-transcriber [files...]",
		Short: "Batch media transcription with optional AI enhancement",
		Long: `batch-transcriber runs one or more media files through decode,
transcription, optional AI text enhancement, and persistence, producing
one durable transcription record per file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBatch,
	}
)

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "settings file path")
	rootCmd.Flags().StringVar(&modelPath, "model", "", "whisper model file or directory (overrides settings)")
	rootCmd.Flags().StringVar(&language, "language", "", "transcription language (overrides settings)")
	rootCmd.Flags().BoolVar(&noEnhance, "no-enhance", false, "skip the AI enhancement step")
	rootCmd.Flags().BoolVar(&noReport, "no-report", false, "skip the batch summary workbook")
	rootCmd.Flags().BoolVar(&cleanupAudio, "cleanup-audio", false, "remove intermediate audio files after each record is saved")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logging.New()

	settings, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if modelPath != "" {
		settings.ModelPath = modelPath
	}
	if language != "" {
		settings.Language = language
	}
	if noEnhance {
		settings.Enhancement.Enabled = false
	}
	if cleanupAudio {
		settings.CleanupAudio = true
	}

	reportDiagnostics(log, settings)

	recordStore, err := store.Open(settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer func() {
		_ = recordStore.Close()
	}()

	bus := events.NewBus(1000)
	manager := pipeline.NewManager(pipeline.Deps{
		Decoder:     audio.NewFFmpegDecoder(),
		Transcriber: transcribe.NewWhisperService(settings.Language),
		Enhancer:    enhance.NewOpenAIEnhancer(logging.Component(log, "enhance")),
		Store:       recordStore,
		Events:      bus,
		Profiles:    envProfileSource{},
		Log:         logging.Component(log, "pipeline"),
		WorkDir:     settings.WorkDir,
		SettleDelay: settleDelay,
	})

	if err := manager.Start(pipeline.BatchRequest{
		Files:        args,
		Model:        settings.ModelPath,
		Format:       settings.FormatTranscript,
		Replacements: settings.Replacements,
		Enhancement:  settings.Enhancement,
		CleanupAudio: settings.CleanupAudio,
	}); err != nil {
		return err
	}

	forwardSignals(manager)
	streamEvents(log, bus, manager)

	if msg := manager.ErrorMessage(); msg != "" {
		manager.AcknowledgeError()
		return fmt.Errorf("batch failed: %s", msg)
	}

	results := manager.Results()
	log.WithField("files", len(results)).Info("batch finished")

	if !noReport && len(results) > 0 {
		path, err := writeReport(recordStore, settings.ReportDir, results)
		if err != nil {
			log.WithError(err).Warn("write batch report")
		} else {
			log.WithField("path", path).Info("batch report written")
		}
	}
	return nil
}

// loadSettings resolves the settings file location and loads it.
func loadSettings() (domain.Settings, error) {
	path := configPath
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return domain.Settings{}, err
		}
		path = filepath.Join(homeDir, ".batch-transcriber", "settings.json")
	}
	return config.NewJSONStore(path).Load()
}

// reportDiagnostics logs preflight check outcomes without aborting;
// a missing tool will surface as a decode or transcription failure.
func reportDiagnostics(log *logrus.Logger, settings domain.Settings) {
	checker := diagnostics.NewChecker()
	for _, item := range checker.Run(settings).Items {
		entry := log.WithField("check", item.ID)
		if item.Status == domain.DiagnosticStatusFail {
			entry.Warnf("%s %s", item.Message, item.Hint)
			continue
		}
		entry.Debug(item.Message)
	}
}

// forwardSignals maps SIGINT/SIGTERM to cooperative batch cancellation.
func forwardSignals(manager *pipeline.Manager) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		manager.Cancel()
	}()
}

// streamEvents renders batch events until the batch goroutine exits.
func streamEvents(log *logrus.Logger, bus *events.Bus, manager *pipeline.Manager) {
	finished := make(chan struct{})
	go func() {
		manager.Wait()
		close(finished)
	}()

	var seq int64
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, event := range bus.Since(seq) {
			seq = event.Seq
			printEvent(log, event)
		}

		select {
		case <-finished:
			for _, event := range bus.Since(seq) {
				seq = event.Seq
				printEvent(log, event)
			}
			return
		case <-ticker.C:
		}
	}
}

func printEvent(log *logrus.Logger, event events.Event) {
	entry := log.WithField("event", string(event.Type))
	if event.FileName != "" {
		entry = entry.WithField("file", event.FileName)
	}
	if event.RecordID != 0 {
		entry = entry.WithField("record_id", event.RecordID)
	}

	switch event.Type {
	case events.TypeBatchFailed:
		entry.Error(event.Message)
	case events.TypePhase:
		entry.Debugf("phase %s", event.Phase)
	default:
		entry.Info(event.Message)
	}
}

// writeReport fetches persisted records for the batch and renders the
// summary workbook.
func writeReport(recordStore *store.Store, dir string, results []domain.FileResult) (string, error) {
	records := make([]*domain.TranscriptionRecord, 0, len(results))
	for _, res := range results {
		rec, err := recordStore.Get(res.RecordID)
		if err != nil {
			return "", fmt.Errorf("load record %d: %w", res.RecordID, err)
		}
		records = append(records, rec)
	}
	return report.Write(dir, results, records)
}

// envProfileSource samples the active automation profile from the
// environment at persistence time.
type envProfileSource struct{}

func (envProfileSource) Active() (string, string) {
	return os.Getenv("TRANSCRIBER_PROFILE_NAME"), os.Getenv("TRANSCRIBER_PROFILE_EMOJI")
}
