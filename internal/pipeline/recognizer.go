// Package pipeline wires microphone capture to the streaming recognizer.
package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/config"
	"github.com/rbright/tasmi/internal/deepgram"
	"github.com/rbright/tasmi/internal/session"
)

type speechStream interface {
	SendAudio(chunk []byte) error
	Transcripts() <-chan deepgram.Transcript
	Err() error
	Close() error
}

type captureClient interface {
	Chunks() <-chan []byte
	Stop() error
	BytesCaptured() int64
	RawPCM() []byte
}

// Recognizer opens one capture -> Deepgram pipeline per Start.
type Recognizer struct {
	cfg      config.Config
	logger   *slog.Logger
	keyterms []string

	selectDevice func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	dialStream   func(ctx context.Context, keyterms []string) (speechStream, error)
	startCapture func(ctx context.Context, device audio.Device) (captureClient, error)
}

// NewRecognizer builds a recognizer biased toward keyterms, usually the
// words of the hadith being recited.
func NewRecognizer(cfg config.Config, logger *slog.Logger, keyterms []string) *Recognizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Recognizer{
		cfg:      cfg,
		logger:   logger,
		keyterms: mergeKeyterms(keyterms, cfg.Recognizer.Keyterms),
	}
	r.selectDevice = audio.SelectDevice
	r.dialStream = r.dialDeepgram
	r.startCapture = func(ctx context.Context, device audio.Device) (captureClient, error) {
		var opts []audio.CaptureOption
		if cfg.Debug.EnableAudioDump {
			opts = append(opts, audio.WithRawPCM())
		}
		return audio.StartCapture(ctx, device, opts...)
	}
	return r
}

// Start selects a microphone, dials the recognizer and begins streaming.
func (r *Recognizer) Start(ctx context.Context) (session.Stream, error) {
	selection, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		r.logger.Warn(selection.Warning)
	}

	speech, err := r.dialStream(ctx, r.keyterms)
	if err != nil {
		return nil, err
	}

	capture, err := r.startCapture(ctx, selection.Device)
	if err != nil {
		_ = speech.Close()
		return nil, err
	}

	s := &Stream{
		logger:      r.logger,
		device:      describeDevice(selection.Device),
		dumpAudio:   r.cfg.Debug.EnableAudioDump,
		capture:     capture,
		speech:      speech,
		out:         make(chan string, 16),
		closing:     make(chan struct{}),
		sendDone:    make(chan struct{}),
		forwardDone: make(chan struct{}),
	}
	go s.sendLoop()
	go s.forward()

	r.logger.Info("recognizer started", "device", s.device, "keyterms", len(r.keyterms))
	return s, nil
}

func (r *Recognizer) dialDeepgram(ctx context.Context, keyterms []string) (speechStream, error) {
	env := r.cfg.Recognizer.APIKeyEnv
	key := strings.TrimSpace(os.Getenv(env))
	if key == "" {
		return nil, fmt.Errorf("%s is not set", env)
	}

	opts := []deepgram.Option{
		deepgram.WithModel(r.cfg.Recognizer.Model),
		deepgram.WithLanguage(r.cfg.Recognizer.Language),
		deepgram.WithSampleRate(audio.SampleRate),
	}
	if r.cfg.Recognizer.Endpoint != "" {
		opts = append(opts, deepgram.WithEndpoint(r.cfg.Recognizer.Endpoint))
	}
	client, err := deepgram.New(key, opts...)
	if err != nil {
		return nil, err
	}
	return client.Open(ctx, keyterms)
}

// Stream is one live recognition pass. Interim and final transcripts arrive
// on the same channel in the order the recognizer produced them.
type Stream struct {
	logger    *slog.Logger
	device    string
	dumpAudio bool

	capture captureClient
	speech  speechStream

	out         chan string
	closing     chan struct{}
	sendDone    chan struct{}
	forwardDone chan struct{}

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	sendErr error
}

// Transcripts closes when the recognizer connection ends.
func (s *Stream) Transcripts() <-chan string {
	return s.out
}

// Close stops capture, lets the recognizer flush, and waits for both pumps.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		stopErr := s.capture.Stop()
		<-s.sendDone
		closeErr := s.speech.Close()
		<-s.forwardDone

		s.writeDebugAudio(s.capture.RawPCM())
		s.logger.Info("recognizer stopped",
			"device", s.device,
			"bytes_captured", s.capture.BytesCaptured(),
		)
		s.closeErr = errors.Join(stopErr, closeErr)
	})
	return s.closeErr
}

// SendErr reports the first failure to hand audio to the recognizer.
func (s *Stream) SendErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendErr
}

// sendLoop forwards capture chunks and stops capture on the first send failure.
func (s *Stream) sendLoop() {
	defer close(s.sendDone)

	for chunk := range s.capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := s.speech.SendAudio(chunk); err != nil {
			s.mu.Lock()
			s.sendErr = fmt.Errorf("send audio stream: %w", err)
			s.mu.Unlock()
			_ = s.capture.Stop()
			for range s.capture.Chunks() {
			}
			return
		}
	}
}

// forward relays recognizer text until the connection ends. When the end was
// not requested it also stops capture so the owner sees a closed channel.
func (s *Stream) forward() {
	defer close(s.forwardDone)
	defer close(s.out)

	for t := range s.speech.Transcripts() {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		select {
		case s.out <- text:
		case <-s.closing:
		}
	}

	select {
	case <-s.closing:
		return
	default:
	}
	_ = s.capture.Stop()
	_ = s.speech.Close()
	if err := s.speech.Err(); err != nil {
		s.logger.Warn("recognizer stream ended", "device", s.device, "error", err.Error())
	}
}

// describeDevice formats device metadata for logs.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

func mergeKeyterms(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, term := range list {
			term = strings.TrimSpace(term)
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			out = append(out, term)
		}
	}
	return out
}

// createDebugFile creates timestamped debug artifacts under state/tasmi/debug.
func createDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "tasmi", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

// resolveStateDir returns XDG_STATE_HOME fallback path for debug artifacts.
func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}

// writeDebugAudio writes raw PCM to WAV when debug.audio_dump is enabled.
func (s *Stream) writeDebugAudio(rawPCM []byte) {
	if !s.dumpAudio || len(rawPCM) == 0 {
		return
	}

	file, err := createDebugFile("audio", "wav")
	if err != nil {
		s.logger.Warn(fmt.Sprintf("unable to create debug audio dump: %v", err))
		return
	}
	defer file.Close()

	if err := writePCM16WAV(file, rawPCM, audio.SampleRate, 1); err != nil {
		s.logger.Warn(fmt.Sprintf("unable to write debug audio dump: %v", err))
		return
	}
	s.logger.Debug("debug audio written", "path", file.Name())
}

// writePCM16WAV writes raw little-endian PCM bytes with a minimal WAV header.
func writePCM16WAV(w io.Writer, pcm []byte, sampleRate int, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
