package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	input := `
{
  // recognizer
  "recognizer": {
    "api_key_env": "DG_KEY",
    "keyterms": ["النية", "الهجرة"],
  },
  "voice": {
    "voice_id": "voice-1",
    "speed": 0.75,
  },
  "audio": {"input": "Elgato"},
  "recitation": {
    "diacritics": false,
    "sensitivity": "medium",
    "completion_grace_ms": 800,
    "max_restart_failures": 3,
  },
  "library": {"path": "~/hadiths.yaml"},
  "indicator": {"sound_enable": false, "locale": "ar"},
  "report_cmd": "tee -a '/tmp/tasmi results.jsonl'",
  "metrics": {"listen": "127.0.0.1:9464"},
  "debug": {"audio_dump": true},
}
`

	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, "DG_KEY", cfg.Recognizer.APIKeyEnv)
	require.Equal(t, "nova-3", cfg.Recognizer.Model)
	require.Equal(t, []string{"النية", "الهجرة"}, cfg.Recognizer.Keyterms)
	require.Equal(t, "voice-1", cfg.Voice.VoiceID)
	require.InDelta(t, 0.75, cfg.Voice.Speed, 1e-9)
	require.Equal(t, "Elgato", cfg.Audio.Input)
	require.Equal(t, "default", cfg.Audio.Fallback)
	require.False(t, cfg.Recitation.Diacritics)
	require.Equal(t, "medium", cfg.Recitation.Sensitivity)
	require.Equal(t, 800, cfg.Recitation.CompletionGraceMS)
	require.Equal(t, 250, cfg.Recitation.RestartBackoffMS)
	require.Equal(t, 3, cfg.Recitation.MaxRestartFailures)
	require.Equal(t, "~/hadiths.yaml", cfg.Library.Path)
	require.True(t, cfg.Indicator.Enable)
	require.False(t, cfg.Indicator.SoundEnable)
	require.Equal(t, []string{"tee", "-a", "/tmp/tasmi results.jsonl"}, cfg.ReportCmd.Argv)
	require.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
	require.True(t, cfg.Debug.EnableAudioDump)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Len(t, warnings, 1)
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse(`{"recitation": {"sensitvity": "low"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseValidationFailureIsReturned(t *testing.T) {
	_, _, err := Parse(`{"recitation": {"sensitivity": "extreme"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "recitation.sensitivity")
}
