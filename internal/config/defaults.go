package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Recognizer: RecognizerConfig{
			Provider:  "deepgram",
			APIKeyEnv: "DEEPGRAM_API_KEY",
			Model:     "nova-3",
			Language:  "ar",
		},
		Voice: VoiceConfig{
			Enable:    true,
			APIKeyEnv: "ELEVENLABS_API_KEY",
			Model:     "eleven_multilingual_v2",
			Speed:     0.8,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Recitation: RecitationConfig{
			Diacritics:         true,
			Sensitivity:        "low",
			Difficulty:         "intermediate",
			FuzzyThreshold:     0.88,
			CompletionGraceMS:  500,
			RestartBackoffMS:   250,
			MaxRestartFailures: 5,
		},
		Indicator: IndicatorConfig{
			Enable:      true,
			SoundEnable: true,
		},
		Debug: DebugConfig{},
	}
}
