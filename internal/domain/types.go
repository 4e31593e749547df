package domain

import "time"

// Phase tracks the single observable stage of the active batch.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseLoading         Phase = "loading"
	PhaseProcessingAudio Phase = "processingAudio"
	PhaseTranscribing    Phase = "transcribing"
	PhaseEnhancing       Phase = "enhancing"
	PhaseCompleted       Phase = "completed"
)

// Progress holds the per-batch file counters. CurrentFileIndex is
// 1-based and zero while idle; it only increases within a batch.
type Progress struct {
	CurrentFileIndex int `json:"currentFileIndex"`
	TotalFileCount   int `json:"totalFileCount"`
}

// FileResult pairs an input file with its persisted record identity.
type FileResult struct {
	FileName string `json:"fileName"`
	RecordID int64  `json:"recordId"`
}

// TranscriptionRecord is the persisted outcome for one processed file.
// Enhancement fields stay empty when the enhancement step was skipped
// or degraded to the unenhanced text.
type TranscriptionRecord struct {
	ID                  int64         `json:"id"`
	Text                string        `json:"text"`
	EnhancedText        string        `json:"enhancedText,omitempty"`
	AudioDuration       time.Duration `json:"audioDuration"`
	AudioPath           string        `json:"audioPath"`
	ModelName           string        `json:"modelName"`
	EnhancementModel    string        `json:"enhancementModel,omitempty"`
	PromptName          string        `json:"promptName,omitempty"`
	TranscribeElapsed   time.Duration `json:"transcribeElapsed"`
	EnhanceElapsed      time.Duration `json:"enhanceElapsed,omitempty"`
	ProfileName         string        `json:"profileName,omitempty"`
	ProfileEmoji        string        `json:"profileEmoji,omitempty"`
	EnhancementRequest  string        `json:"enhancementRequest,omitempty"`
	EnhancementResponse string        `json:"enhancementResponse,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
}

// Settings contains user-selectable runtime configuration. The batch
// manager never reads these directly; a snapshot is taken at start.
type Settings struct {
	ModelPath        string            `json:"modelPath"`
	Language         string            `json:"language"`
	WorkDir          string            `json:"workDir"`
	DatabasePath     string            `json:"databasePath"`
	ReportDir        string            `json:"reportDir"`
	FormatTranscript bool              `json:"formatTranscript"`
	CleanupAudio     bool              `json:"cleanupAudio"`
	Replacements     map[string]string `json:"replacements,omitempty"`
	Enhancement      Enhancement       `json:"enhancement"`
}

// Enhancement configures the optional AI refinement step.
type Enhancement struct {
	Enabled    bool   `json:"enabled"`
	BaseURL    string `json:"baseUrl,omitempty"`
	APIKey     string `json:"-"`
	Model      string `json:"model,omitempty"`
	PromptName string `json:"promptName,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

// IsConfigured reports whether the enhancement service can be called.
// Enabled alone is not enough; a model and prompt are required.
func (e Enhancement) IsConfigured() bool {
	return e.Model != "" && e.Prompt != ""
}
