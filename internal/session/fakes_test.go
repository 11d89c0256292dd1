package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/fsm"
	"github.com/rbright/tasmi/internal/library"
	"github.com/rbright/tasmi/internal/observe"
	"github.com/rbright/tasmi/internal/recite"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var testHadith = library.Hadith{
	ID:            "test-1",
	TextPlain:     "الحمد لله رب العالمين",
	TextDiacritic: "الْحَمْدُ لِلَّهِ رَبِّ الْعَالَمِينَ",
}

type fakeStream struct {
	ch     chan string
	closed atomic.Bool
	ended  sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan string, 32)}
}

func (s *fakeStream) Transcripts() <-chan string { return s.ch }

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

// End simulates the recognizer stopping by itself.
func (s *fakeStream) End() {
	s.ended.Do(func() { close(s.ch) })
}

type fakeRecognizer struct {
	mu      sync.Mutex
	streams []*fakeStream
	// failures are returned by consecutive Start calls before any success.
	failures []error
	failAll  error
	starts   atomic.Int32
	// overlaps counts Start calls made while an earlier stream was still open.
	overlaps atomic.Int32
}

func (r *fakeRecognizer) Start(context.Context) (Stream, error) {
	r.starts.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.streams {
		if !s.closed.Load() {
			r.overlaps.Add(1)
			break
		}
	}
	if r.failAll != nil {
		return nil, r.failAll
	}
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return nil, err
	}
	s := newFakeStream()
	r.streams = append(r.streams, s)
	return s, nil
}

func (r *fakeRecognizer) setFailAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAll = err
}

func (r *fakeRecognizer) stream(t *testing.T, i int) *fakeStream {
	t.Helper()
	var s *fakeStream
	waitFor(t, "recognizer stream", func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if len(r.streams) > i {
			s = r.streams[i]
			return true
		}
		return false
	})
	return s
}

type fakeSynthesizer struct {
	err   error
	calls atomic.Int32
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, text string) (audio.Clip, error) {
	s.calls.Add(1)
	if s.err != nil {
		return audio.Clip{}, s.err
	}
	return audio.Clip{Samples: make([]int16, len([]rune(text))), SampleRate: 16000}, nil
}

// fakePlayer plays until cancelled.
type fakePlayer struct {
	plays     atomic.Int32
	cancelled atomic.Int32
	playing   atomic.Bool
}

func (p *fakePlayer) Play(ctx context.Context, _ audio.Clip) error {
	p.plays.Add(1)
	p.playing.Store(true)
	defer p.playing.Store(false)
	<-ctx.Done()
	p.cancelled.Add(1)
	return ctx.Err()
}

type fakeIndicator struct {
	listening    atomic.Int32
	reciting     atomic.Int32
	progress     atomic.Int32
	errors       atomic.Int32
	skipCues     atomic.Int32
	completeCues atomic.Int32
	cancelCues   atomic.Int32
}

func (f *fakeIndicator) ShowListening(context.Context)                 { f.listening.Add(1) }
func (f *fakeIndicator) ShowReciting(context.Context)                  { f.reciting.Add(1) }
func (f *fakeIndicator) ShowProgress(context.Context, recite.Progress) { f.progress.Add(1) }
func (f *fakeIndicator) ShowError(context.Context, string)             { f.errors.Add(1) }
func (f *fakeIndicator) CueSkip(context.Context)                       { f.skipCues.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context)                   { f.completeCues.Add(1) }
func (f *fakeIndicator) CueCancel(context.Context)                     { f.cancelCues.Add(1) }
func (*fakeIndicator) Hide(context.Context)                            {}

type harness struct {
	ctrl       *Controller
	recognizer *fakeRecognizer
	synth      *fakeSynthesizer
	player     *fakePlayer
	indicator  *fakeIndicator
	reports    chan Result
	results    chan Result
	cancel     context.CancelFunc
	ctx        context.Context
}

type harnessOption func(*Config, *Deps)

func withGrace(d time.Duration) harnessOption {
	return func(cfg *Config, _ *Deps) { cfg.GraceDelay = d }
}

func withRestarts(backoff time.Duration, maxFailures int) harnessOption {
	return func(cfg *Config, _ *Deps) {
		cfg.RestartBackoff = backoff
		cfg.MaxRestartFailures = maxFailures
	}
}

func withDiacritics(on bool) harnessOption {
	return func(cfg *Config, _ *Deps) { cfg.Diacritics = on }
}

func withReporter(r Reporter) harnessOption {
	return func(_ *Config, deps *Deps) { deps.Reporter = r }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		recognizer: &fakeRecognizer{},
		synth:      &fakeSynthesizer{},
		player:     &fakePlayer{},
		indicator:  &fakeIndicator{},
		reports:    make(chan Result, 1),
		results:    make(chan Result, 1),
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	cfg := Config{
		Hadith:         testHadith,
		GraceDelay:     10 * time.Millisecond,
		RestartBackoff: 5 * time.Millisecond,
	}
	deps := Deps{
		Recognizer:  h.recognizer,
		Synthesizer: h.synth,
		Player:      h.player,
		Indicator:   h.indicator,
		Reporter: ReportFunc(func(_ context.Context, r Result) error {
			h.reports <- r
			return nil
		}),
		Metrics: metrics,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	ctrl, err := NewController(nil, cfg, deps)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.ctrl = ctrl
	h.ctx, h.cancel = context.WithCancel(context.Background())
	t.Cleanup(h.cancel)
	return h
}

func (h *harness) run(initial string) {
	go func() {
		h.results <- h.ctrl.Run(h.ctx, initial)
	}()
}

func (h *harness) result(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-h.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for Run to return (state=%s)", h.ctrl.State())
		return Result{}
	}
}

func waitForState(t *testing.T, ctrl *Controller, desired fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == desired {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", desired, ctrl.State())
}

func waitForCursor(t *testing.T, ctrl *Controller, cursor int) {
	t.Helper()
	waitFor(t, "cursor", func() bool { return ctrl.Progress().Cursor == cursor })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
