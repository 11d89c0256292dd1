package config

import (
	"fmt"
	"strings"

	"github.com/rbright/tasmi/internal/recite"
)

var supportedLocales = map[string]bool{"": true, "en": true, "ar": true}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Recognizer.Provider != "deepgram" {
		return nil, fmt.Errorf("recognizer.provider must be one of: deepgram")
	}
	if strings.TrimSpace(cfg.Recognizer.APIKeyEnv) == "" {
		return nil, fmt.Errorf("recognizer.api_key_env must not be empty")
	}
	if strings.TrimSpace(cfg.Recognizer.Language) == "" {
		return nil, fmt.Errorf("recognizer.language must not be empty")
	}
	if !strings.HasPrefix(strings.ToLower(cfg.Recognizer.Language), "ar") {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("recognizer.language %q is not Arabic; recitations will rarely match", cfg.Recognizer.Language)})
	}
	if len(cfg.Recognizer.Keyterms) > 50 {
		return nil, fmt.Errorf("recognizer.keyterms has %d entries; at most 50 are allowed", len(cfg.Recognizer.Keyterms))
	}

	if cfg.Voice.Enable {
		if strings.TrimSpace(cfg.Voice.APIKeyEnv) == "" {
			return nil, fmt.Errorf("voice.api_key_env must not be empty when voice.enable=true")
		}
		if cfg.Voice.Speed < 0.7 || cfg.Voice.Speed > 1.2 {
			return nil, fmt.Errorf("voice.speed must be between 0.7 and 1.2")
		}
		if strings.TrimSpace(cfg.Voice.VoiceID) == "" {
			warnings = append(warnings, Warning{Message: "voice.voice_id is empty; listen mode will be unavailable"})
		}
	}

	if _, err := recite.ParseSensitivity(cfg.Recitation.Sensitivity); err != nil {
		return nil, fmt.Errorf("recitation.sensitivity: %w", err)
	}
	if _, err := recite.ParseDifficulty(cfg.Recitation.Difficulty); err != nil {
		return nil, fmt.Errorf("recitation.difficulty: %w", err)
	}
	if cfg.Recitation.FuzzyThreshold <= 0 || cfg.Recitation.FuzzyThreshold > 1 {
		return nil, fmt.Errorf("recitation.fuzzy_threshold must be in (0, 1]")
	}
	if cfg.Recitation.CompletionGraceMS < 0 {
		return nil, fmt.Errorf("recitation.completion_grace_ms must be >= 0")
	}
	if cfg.Recitation.RestartBackoffMS < 0 {
		return nil, fmt.Errorf("recitation.restart_backoff_ms must be >= 0")
	}
	if cfg.Recitation.MaxRestartFailures <= 0 {
		return nil, fmt.Errorf("recitation.max_restart_failures must be > 0")
	}

	if !supportedLocales[strings.ToLower(cfg.Indicator.Locale)] {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("indicator.locale %q is not supported; using English", cfg.Indicator.Locale)})
	}

	if cfg.ReportCmd.Raw != "" && !strings.HasPrefix(strings.TrimSpace(cfg.ReportCmd.Raw), "#") && len(cfg.ReportCmd.Argv) == 0 {
		return nil, fmt.Errorf("report_cmd is configured but empty")
	}

	return warnings, nil
}
