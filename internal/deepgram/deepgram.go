// Package deepgram streams microphone PCM to Deepgram's live transcription
// WebSocket API and surfaces interim and final transcripts.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	DefaultEndpoint = "wss://api.deepgram.com/v1/listen"
	DefaultModel    = "nova-3"
	DefaultLanguage = "ar"

	defaultSampleRate = 16000
	closeGrace        = 2 * time.Second
	maxKeyterms       = 100
)

// ErrClosed is returned by SendAudio after Close.
var ErrClosed = errors.New("deepgram: stream is closed")

// Option configures a Client.
type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithLanguage(language string) Option {
	return func(c *Client) { c.language = language }
}

func WithSampleRate(rate int) Option {
	return func(c *Client) { c.sampleRate = rate }
}

// WithEndpoint overrides the listen URL. Tests point it at a local server.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// Client opens Deepgram streaming sessions.
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	sampleRate int
}

// New creates a client. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		model:      DefaultModel,
		language:   DefaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.language == "" {
		c.language = DefaultLanguage
	}
	if c.sampleRate <= 0 {
		c.sampleRate = defaultSampleRate
	}
	return c, nil
}

// Transcript is one recognition result.
type Transcript struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Open dials a live session. Keyterms bias recognition toward the given
// words; duplicates are dropped and the list is capped.
func (c *Client) Open(ctx context.Context, keyterms []string) (*Stream, error) {
	wsURL, err := c.buildURL(keyterms)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	s := &Stream{
		conn:        conn,
		transcripts: make(chan Transcript, 64),
		audio:       make(chan []byte, 256),
		done:        make(chan struct{}),
		abort:       make(chan struct{}),
		writeDone:   make(chan struct{}),
		readDone:    make(chan struct{}),
	}
	go s.readLoop(ctx)
	go s.writeLoop(ctx)
	return s, nil
}

func (c *Client) buildURL(keyterms []string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("sample_rate", strconv.Itoa(c.sampleRate))
	q.Set("punctuate", "false")
	q.Set("interim_results", "true")
	q.Set("smart_format", "false")

	seen := make(map[string]struct{}, len(keyterms))
	for _, term := range keyterms {
		if term == "" || len(seen) >= maxKeyterms {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		q.Add("keyterm", term)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// response is the subset of a Deepgram "Results" message tasmi reads.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Stream is a live transcription session.
type Stream struct {
	conn        *websocket.Conn
	transcripts chan Transcript
	audio       chan []byte

	done      chan struct{}
	abort     chan struct{}
	writeDone chan struct{}
	readDone  chan struct{}
	once      sync.Once

	mu  sync.Mutex
	err error
}

// SendAudio queues one PCM chunk.
func (s *Stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Transcripts yields results until the connection ends, then closes.
func (s *Stream) Transcripts() <-chan Transcript {
	return s.transcripts
}

// Err reports why the read side ended, if it ended abnormally.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes queued audio, asks Deepgram to finish, and waits briefly for
// the final results before dropping the connection.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		<-s.writeDone

		ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
		defer cancel()
		_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))

		select {
		case <-s.readDone:
		case <-ctx.Done():
		}
		close(s.abort)
		_ = s.conn.Close(websocket.StatusNormalClosure, "stream closed")
		<-s.readDone
	})
	return nil
}

func (s *Stream) writeLoop(ctx context.Context) {
	defer close(s.writeDone)
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				s.setErr(fmt.Errorf("deepgram: write audio: %w", err))
				return
			}
		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.readDone)
	defer close(s.transcripts)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			if !isNormalClose(err) && ctx.Err() == nil {
				select {
				case <-s.abort:
				default:
					s.setErr(fmt.Errorf("deepgram: read: %w", err))
				}
			}
			return
		}

		t, ok := parseResponse(msg)
		if !ok {
			continue
		}
		select {
		case s.transcripts <- t:
		case <-s.abort:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func isNormalClose(err error) bool {
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure
}

// parseResponse decodes a Results message. Other message types and empty
// transcripts are ignored.
func parseResponse(data []byte) (Transcript, bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Transcript{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return Transcript{}, false
	}
	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return Transcript{}, false
	}
	return Transcript{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
	}, true
}
