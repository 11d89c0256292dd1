// Package config resolves, parses, validates, and defaults tasmi configuration.
package config

// Config is the fully materialized runtime configuration used by tasmi.
type Config struct {
	Recognizer RecognizerConfig
	Voice      VoiceConfig
	Audio      AudioConfig
	Recitation RecitationConfig
	Library    LibraryConfig
	Indicator  IndicatorConfig
	ReportCmd  CommandConfig
	Metrics    MetricsConfig
	Debug      DebugConfig
}

// RecognizerConfig selects the streaming speech recognizer.
type RecognizerConfig struct {
	Provider  string
	APIKeyEnv string
	Model     string
	Language  string
	Endpoint  string
	// Keyterms are extra vocabulary hints sent alongside the hadith's own words.
	Keyterms []string
}

// VoiceConfig controls the synthesized reference reading.
type VoiceConfig struct {
	Enable    bool
	APIKeyEnv string
	VoiceID   string
	Model     string
	Speed     float64
	Endpoint  string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// RecitationConfig tunes matching and session timing.
type RecitationConfig struct {
	Diacritics         bool
	Sensitivity        string
	Difficulty         string
	FuzzyThreshold     float64
	CompletionGraceMS  int
	RestartBackoffMS   int
	MaxRestartFailures int
}

// LibraryConfig points at an optional user hadith collection.
type LibraryConfig struct {
	Path string
}

// IndicatorConfig controls terminal progress output and audio cues.
type IndicatorConfig struct {
	Enable      bool
	SoundEnable bool
	Locale      string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Listen string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
