package session

import (
	"context"
	"errors"

	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/recite"
)

var (
	// ErrRecognitionUnavailable wraps any failure to start speech recognition.
	ErrRecognitionUnavailable = errors.New("speech recognition unavailable")
	// ErrAudioUnavailable wraps any failure to prepare or play the reading.
	ErrAudioUnavailable = errors.New("audio unavailable")
)

// Stream is one live recognition session. Transcripts closes when the
// recognizer stops on its own or after Close.
type Stream interface {
	Transcripts() <-chan string
	Close() error
}

// Recognizer opens recognition streams.
type Recognizer interface {
	Start(context.Context) (Stream, error)
}

// Synthesizer prepares the spoken reading of a text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio.Clip, error)
}

// Player plays a clip. Cancelling ctx stops playback; returning means ended.
type Player interface {
	Play(ctx context.Context, clip audio.Clip) error
}

// Indicator is the session-facing subset of user feedback.
type Indicator interface {
	ShowListening(context.Context)
	ShowReciting(context.Context)
	ShowProgress(context.Context, recite.Progress)
	ShowError(context.Context, string)
	CueSkip(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

// Reporter receives the result of a completed pass.
type Reporter interface {
	Report(context.Context, Result) error
}

// ReportFunc adapts a function to the Reporter interface.
type ReportFunc func(context.Context, Result) error

func (f ReportFunc) Report(ctx context.Context, result Result) error {
	return f(ctx, result)
}

type noopIndicator struct{}

func (noopIndicator) ShowListening(context.Context)                 {}
func (noopIndicator) ShowReciting(context.Context)                  {}
func (noopIndicator) ShowProgress(context.Context, recite.Progress) {}
func (noopIndicator) ShowError(context.Context, string)             {}
func (noopIndicator) CueSkip(context.Context)                       {}
func (noopIndicator) CueComplete(context.Context)                   {}
func (noopIndicator) CueCancel(context.Context)                     {}
func (noopIndicator) Hide(context.Context)                          {}

type unavailableRecognizer struct{}

func (unavailableRecognizer) Start(context.Context) (Stream, error) {
	return nil, errors.New("no recognizer configured")
}

type unavailableSynthesizer struct{}

func (unavailableSynthesizer) Synthesize(context.Context, string) (audio.Clip, error) {
	return audio.Clip{}, errors.New("voice disabled")
}

type silentPlayer struct{}

func (silentPlayer) Play(context.Context, audio.Clip) error { return nil }
