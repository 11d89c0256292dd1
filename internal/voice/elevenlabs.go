// Package voice reads reference texts aloud through ElevenLabs' streaming
// text-to-speech WebSocket API.
package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/rbright/tasmi/internal/audio"
)

const (
	DefaultEndpoint = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input"
	DefaultModel    = "eleven_multilingual_v2"
	DefaultSpeed    = 0.8

	outputFormat = "pcm_16000"
	outputRate   = 16000
)

// Option configures an ElevenLabs synthesizer.
type Option func(*ElevenLabs)

func WithModel(model string) Option {
	return func(e *ElevenLabs) { e.model = model }
}

// WithSpeed sets the speaking rate. ElevenLabs accepts 0.7 to 1.2.
func WithSpeed(speed float64) Option {
	return func(e *ElevenLabs) { e.speed = speed }
}

// WithEndpoint overrides the URL format; %s receives the voice ID.
func WithEndpoint(format string) Option {
	return func(e *ElevenLabs) { e.endpoint = format }
}

// ElevenLabs synthesizes a full text into one clip.
type ElevenLabs struct {
	apiKey   string
	voiceID  string
	model    string
	endpoint string
	speed    float64
}

// NewElevenLabs validates credentials and applies options.
func NewElevenLabs(apiKey string, voiceID string, opts ...Option) (*ElevenLabs, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voice id must not be empty")
	}
	e := &ElevenLabs{
		apiKey:   apiKey,
		voiceID:  voiceID,
		model:    DefaultModel,
		endpoint: DefaultEndpoint,
		speed:    DefaultSpeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.speed < 0.7 || e.speed > 1.2 {
		return nil, fmt.Errorf("elevenlabs: speed %.2f outside 0.7..1.2", e.speed)
	}
	return e, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

type initMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

type textMessage struct {
	Text string `json:"text"`
}

type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e *ElevenLabs) buildURL() (string, error) {
	u, err := url.Parse(fmt.Sprintf(e.endpoint, url.PathEscape(e.voiceID)))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model_id", e.model)
	q.Set("output_format", outputFormat)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Synthesize sends text, flushes, and collects PCM until ElevenLabs marks the
// stream final or closes it.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Clip{}, errors.New("elevenlabs: text must not be empty")
	}

	wsURL, err := e.buildURL()
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: build URL: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(4 << 20)

	messages := []any{
		initMessage{
			Text:          " ",
			VoiceSettings: &voiceSettings{Stability: 0.6, SimilarityBoost: 0.75, Speed: e.speed},
			XiAPIKey:      e.apiKey,
		},
		textMessage{Text: text + " "},
		textMessage{Text: ""},
	}
	for _, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return audio.Clip{}, err
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return audio.Clip{}, fmt.Errorf("elevenlabs: send: %w", err)
		}
	}

	var pcm []byte
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && len(pcm) > 0 {
				break
			}
			return audio.Clip{}, fmt.Errorf("elevenlabs: read: %w", err)
		}

		var msg audioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return audio.Clip{}, fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return audio.Clip{}, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if msg.IsFinal {
			break
		}
	}

	_ = conn.Close(websocket.StatusNormalClosure, "done")
	if len(pcm) == 0 {
		return audio.Clip{}, errors.New("elevenlabs: no audio returned")
	}
	return audio.ClipFromPCM16LE(pcm, outputRate), nil
}
