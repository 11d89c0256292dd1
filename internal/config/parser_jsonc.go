package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Recognizer *jsoncRecognizer `json:"recognizer"`
	Voice      *jsoncVoice      `json:"voice"`
	Audio      *jsoncAudio      `json:"audio"`
	Recitation *jsoncRecitation `json:"recitation"`
	Library    *jsoncLibrary    `json:"library"`
	Indicator  *jsoncIndicator  `json:"indicator"`
	ReportCmd  *string          `json:"report_cmd"`
	Metrics    *jsoncMetrics    `json:"metrics"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncRecognizer struct {
	Provider  *string          `json:"provider"`
	APIKeyEnv *string          `json:"api_key_env"`
	Model     *string          `json:"model"`
	Language  *string          `json:"language"`
	Endpoint  *string          `json:"endpoint"`
	Keyterms  *jsoncStringList `json:"keyterms"`
}

type jsoncVoice struct {
	Enable    *bool    `json:"enable"`
	APIKeyEnv *string  `json:"api_key_env"`
	VoiceID   *string  `json:"voice_id"`
	Model     *string  `json:"model"`
	Speed     *float64 `json:"speed"`
	Endpoint  *string  `json:"endpoint"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncRecitation struct {
	Diacritics         *bool    `json:"diacritics"`
	Sensitivity        *string  `json:"sensitivity"`
	Difficulty         *string  `json:"difficulty"`
	FuzzyThreshold     *float64 `json:"fuzzy_threshold"`
	CompletionGraceMS  *int     `json:"completion_grace_ms"`
	RestartBackoffMS   *int     `json:"restart_backoff_ms"`
	MaxRestartFailures *int     `json:"max_restart_failures"`
}

type jsoncLibrary struct {
	Path *string `json:"path"`
}

type jsoncIndicator struct {
	Enable      *bool   `json:"enable"`
	SoundEnable *bool   `json:"sound_enable"`
	Locale      *string `json:"locale"`
}

type jsoncMetrics struct {
	Listen *string `json:"listen"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if r := payload.Recognizer; r != nil {
		if r.Provider != nil {
			cfg.Recognizer.Provider = strings.ToLower(strings.TrimSpace(*r.Provider))
		}
		if r.APIKeyEnv != nil {
			cfg.Recognizer.APIKeyEnv = strings.TrimSpace(*r.APIKeyEnv)
		}
		if r.Model != nil {
			cfg.Recognizer.Model = strings.TrimSpace(*r.Model)
		}
		if r.Language != nil {
			cfg.Recognizer.Language = strings.TrimSpace(*r.Language)
		}
		if r.Endpoint != nil {
			cfg.Recognizer.Endpoint = strings.TrimSpace(*r.Endpoint)
		}
		if r.Keyterms != nil {
			cfg.Recognizer.Keyterms = cfg.Recognizer.Keyterms[:0]
			for _, term := range *r.Keyterms {
				term = strings.TrimSpace(term)
				if term == "" {
					continue
				}
				cfg.Recognizer.Keyterms = append(cfg.Recognizer.Keyterms, term)
			}
		}
	}

	if v := payload.Voice; v != nil {
		if v.Enable != nil {
			cfg.Voice.Enable = *v.Enable
		}
		if v.APIKeyEnv != nil {
			cfg.Voice.APIKeyEnv = strings.TrimSpace(*v.APIKeyEnv)
		}
		if v.VoiceID != nil {
			cfg.Voice.VoiceID = strings.TrimSpace(*v.VoiceID)
		}
		if v.Model != nil {
			cfg.Voice.Model = strings.TrimSpace(*v.Model)
		}
		if v.Speed != nil {
			cfg.Voice.Speed = *v.Speed
		}
		if v.Endpoint != nil {
			cfg.Voice.Endpoint = strings.TrimSpace(*v.Endpoint)
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
	}

	if r := payload.Recitation; r != nil {
		if r.Diacritics != nil {
			cfg.Recitation.Diacritics = *r.Diacritics
		}
		if r.Sensitivity != nil {
			cfg.Recitation.Sensitivity = strings.ToLower(strings.TrimSpace(*r.Sensitivity))
		}
		if r.Difficulty != nil {
			cfg.Recitation.Difficulty = strings.ToLower(strings.TrimSpace(*r.Difficulty))
		}
		if r.FuzzyThreshold != nil {
			cfg.Recitation.FuzzyThreshold = *r.FuzzyThreshold
		}
		if r.CompletionGraceMS != nil {
			cfg.Recitation.CompletionGraceMS = *r.CompletionGraceMS
		}
		if r.RestartBackoffMS != nil {
			cfg.Recitation.RestartBackoffMS = *r.RestartBackoffMS
		}
		if r.MaxRestartFailures != nil {
			cfg.Recitation.MaxRestartFailures = *r.MaxRestartFailures
		}
	}

	if payload.Library != nil && payload.Library.Path != nil {
		cfg.Library.Path = strings.TrimSpace(*payload.Library.Path)
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		if payload.Indicator.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *payload.Indicator.SoundEnable
		}
		if payload.Indicator.Locale != nil {
			cfg.Indicator.Locale = strings.TrimSpace(*payload.Indicator.Locale)
		}
	}

	if payload.ReportCmd != nil {
		raw := *payload.ReportCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid report_cmd: %w", err)
		}
		cfg.ReportCmd = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Metrics != nil && payload.Metrics.Listen != nil {
		cfg.Metrics.Listen = strings.TrimSpace(*payload.Metrics.Listen)
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
