// Package session runs one recitation end to end. The Controller owns the
// word sequence, the recognizer stream, reading playback and the state
// machine, and serializes every input through a single loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/fsm"
	"github.com/rbright/tasmi/internal/ipc"
	"github.com/rbright/tasmi/internal/library"
	"github.com/rbright/tasmi/internal/observe"
	"github.com/rbright/tasmi/internal/recite"
)

const (
	DefaultGraceDelay         = 500 * time.Millisecond
	DefaultRestartBackoff     = 250 * time.Millisecond
	DefaultMaxRestartFailures = 5
)

// Config selects the text and timing of a session.
type Config struct {
	Hadith     library.Hadith
	Diacritics bool
	Difficulty recite.Difficulty

	// GraceDelay separates the final word from completion.
	GraceDelay time.Duration
	// RestartBackoff is the pause before restarting a recognizer that
	// stopped by itself.
	RestartBackoff time.Duration
	// MaxRestartFailures bounds consecutive failed restarts.
	MaxRestartFailures int
}

// Deps are the collaborators of a Controller. Nil members get inert defaults.
type Deps struct {
	Matcher     *recite.Matcher
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Player      Player
	Indicator   Indicator
	Reporter    Reporter
	Metrics     *observe.Metrics
}

// Result describes how Run ended.
type Result struct {
	HadithID    string
	State       fsm.State
	Score       int
	Total       int
	Tally       recite.Tally
	Words       []recite.Word
	Sensitivity recite.Sensitivity
	Difficulty  recite.Difficulty
	Diacritics  bool
	Restarts    int
	Cancelled   bool
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Completed reports whether the pass reached the end of the text.
func (r Result) Completed() bool {
	return r.State == fsm.StateCompleted
}

type request struct {
	req   ipc.Request
	reply chan ipc.Response
}

// Controller coordinates one recitation. Run drives it; Handle feeds it
// commands from IPC clients.
type Controller struct {
	logger      *slog.Logger
	cfg         Config
	recitation  *recite.Session
	recognizer  Recognizer
	synthesizer Synthesizer
	player      Player
	indicator   Indicator
	reporter    Reporter
	metrics     *observe.Metrics

	requests chan request
	done     chan struct{}

	mu       sync.RWMutex
	state    fsm.State
	progress ipc.Progress
}

// NewController builds the word sequence for cfg.Hadith. A text without
// words fails with recite.ErrEmptyReference.
func NewController(logger *slog.Logger, cfg Config, deps Deps) (*Controller, error) {
	recitation, err := recite.NewSession(cfg.Hadith.Text(cfg.Diacritics), deps.Matcher)
	if err != nil {
		return nil, fmt.Errorf("hadith %q: %w", cfg.Hadith.ID, err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = DefaultRestartBackoff
	}
	if cfg.MaxRestartFailures <= 0 {
		cfg.MaxRestartFailures = DefaultMaxRestartFailures
	}
	if deps.Recognizer == nil {
		deps.Recognizer = unavailableRecognizer{}
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = unavailableSynthesizer{}
	}
	if deps.Player == nil {
		deps.Player = silentPlayer{}
	}
	if deps.Indicator == nil {
		deps.Indicator = noopIndicator{}
	}
	if deps.Reporter == nil {
		deps.Reporter = ReportFunc(func(context.Context, Result) error { return nil })
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}

	c := &Controller{
		logger:      logger,
		cfg:         cfg,
		recitation:  recitation,
		recognizer:  deps.Recognizer,
		synthesizer: deps.Synthesizer,
		player:      deps.Player,
		indicator:   deps.Indicator,
		reporter:    deps.Reporter,
		metrics:     deps.Metrics,
		requests:    make(chan request),
		done:        make(chan struct{}),
		state:       fsm.StateIdle,
	}
	c.progress = snapshot(cfg.Hadith.ID, cfg.Diacritics, recitation)
	return c, nil
}

// State returns the current state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Progress returns the latest progress snapshot.
func (c *Controller) Progress() ipc.Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := c.progress
	p.Words = append([]ipc.Word(nil), c.progress.Words...)
	return p
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Handle serves one IPC command. Status and progress are answered from the
// latest snapshot; everything else is queued to Run.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	case ipc.CommandProgress:
		progress := c.Progress()
		return ipc.Response{OK: true, State: string(c.State()), Message: "progress", Progress: &progress}
	}

	rq := request{req: req, reply: make(chan ipc.Response, 1)}
	select {
	case c.requests <- rq:
	case <-c.done:
		return ipc.Response{OK: false, State: string(c.State()), Error: "session has ended"}
	case <-ctx.Done():
		return ipc.Response{OK: false, State: string(c.State()), Error: ctx.Err().Error()}
	}

	select {
	case resp := <-rq.reply:
		return resp
	case <-ctx.Done():
		return ipc.Response{OK: false, State: string(c.State()), Error: ctx.Err().Error()}
	}
}

// Run applies initial (usually recite or listen) and then serves events
// until the pass completes, a cancel arrives, or ctx ends. Run must be
// called at most once.
func (c *Controller) Run(ctx context.Context, initial string) Result {
	defer close(c.done)

	r := &runner{
		Controller: c,
		ctx:        ctx,
		diacritics: c.cfg.Diacritics,
		startedAt:  time.Now(),
	}
	defer r.closers.Wait()

	if initial != "" {
		if _, err := r.dispatch(ipc.Request{Command: initial}); err != nil {
			r.teardown()
			return r.result(err)
		}
		c.publish(r)
	}

	for {
		select {
		case <-ctx.Done():
			r.teardown()
			c.indicator.CueCancel(context.Background())
			return r.result(ctx.Err())
		case rq := <-c.requests:
			msg, err := r.dispatch(rq.req)
			c.publish(r)
			rq.reply <- c.response(msg, err)
			if r.cancelled {
				return r.result(nil)
			}
		case text, ok := <-r.transcripts:
			if !ok {
				r.onStreamEnded()
			} else {
				r.onTranscript(text)
			}
		case <-r.restartC:
			r.onRestart()
		case <-r.graceC:
			r.complete()
			return r.final
		case res := <-r.synthDone:
			r.onSynthesized(res)
		case err := <-r.playDone:
			r.onPlaybackEnded(err)
		}
		c.publish(r)
	}
}

func (c *Controller) setState(next fsm.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = next
}

func (c *Controller) publish(r *runner) {
	progress := snapshot(c.cfg.Hadith.ID, r.diacritics, c.recitation)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = progress
}

func (c *Controller) response(msg string, err error) ipc.Response {
	state := string(c.State())
	if err != nil {
		return ipc.Response{OK: false, State: state, Error: err.Error()}
	}
	return ipc.Response{OK: true, State: state, Message: msg}
}

// runner holds state owned by the Run goroutine.
type runner struct {
	*Controller
	ctx context.Context

	diacritics bool
	startedAt  time.Time
	restarts   int
	cancelled  bool
	final      Result

	// active gates automatic recognizer restarts.
	active          bool
	stream          Stream
	transcripts     <-chan string
	restartTimer    *time.Timer
	restartC        <-chan time.Time
	restartFailures int
	closers         sync.WaitGroup

	graceTimer *time.Timer
	graceC     <-chan time.Time

	clip          audio.Clip
	clipText      string
	synthDone     chan synthResult
	playWhenReady bool
	playCancel    context.CancelFunc
	playDone      chan error
}

type synthResult struct {
	text    string
	clip    audio.Clip
	err     error
	elapsed time.Duration
}

func (r *runner) text() string {
	return r.cfg.Hadith.Text(r.diacritics)
}

func (r *runner) dispatch(req ipc.Request) (string, error) {
	switch req.Command {
	case ipc.CommandRecite:
		return r.recite()
	case ipc.CommandListen:
		return r.listen()
	case ipc.CommandPlay:
		return r.play()
	case ipc.CommandSkip:
		return r.skip()
	case ipc.CommandStop:
		return r.stop()
	case ipc.CommandDiacritics:
		return r.setDiacritics(req.Value)
	case ipc.CommandCancel:
		r.teardown()
		r.cancelled = true
		r.indicator.CueCancel(r.ctx)
		r.metrics.RecordRecitation(r.ctx, "cancelled", "", 0)
		return "cancelled", nil
	case ipc.CommandStatus, ipc.CommandProgress:
		return req.Command, nil
	default:
		return "", fmt.Errorf("unknown command: %s", req.Command)
	}
}

// recite starts the recognizer before touching any word, so a failure
// leaves the words and cursor exactly as they were. A running stream is
// closed first so two captures never overlap; if the new one cannot start,
// the restart loop takes over the current pass.
func (r *runner) recite() (string, error) {
	state := r.State()
	next, err := fsm.Transition(state, fsm.EventRecite)
	if err != nil {
		return "", err
	}

	if state == fsm.StateReciting {
		r.cancelRestart()
		r.closeStreamNow()
	}

	stream, err := r.recognizer.Start(r.ctx)
	if err != nil {
		r.logger.Error("recognizer start failed", "error", err.Error())
		r.indicator.ShowError(r.ctx, "recognition")
		if state == fsm.StateReciting && r.active {
			r.scheduleRestart()
		}
		return "", fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
	}

	r.closeStream()
	r.cancelRestart()
	r.stopPlayback()
	r.attach(stream)
	r.restartFailures = 0
	r.active = true
	r.recitation.StartRecitation()
	r.setState(next)

	r.logger.Info("recitation started", "hadith", r.cfg.Hadith.ID, "words", r.recitation.Len())
	r.indicator.ShowReciting(r.ctx)
	r.indicator.ShowProgress(r.ctx, r.recitation.Progress())
	return "reciting", nil
}

func (r *runner) listen() (string, error) {
	next, err := fsm.Transition(r.State(), fsm.EventListen)
	if err != nil {
		return "", err
	}

	r.active = false
	r.closeStream()
	r.cancelRestart()
	r.recitation.Stop()
	r.setState(next)
	r.indicator.ShowListening(r.ctx)

	r.playWhenReady = true
	r.prepareAudio()
	if r.playDone != nil {
		return "playing", nil
	}
	return "preparing audio", nil
}

func (r *runner) play() (string, error) {
	state := r.State()
	if state != fsm.StateListening {
		return "", fmt.Errorf("cannot play from state %s", state)
	}

	r.stopPlayback()
	r.playWhenReady = true
	r.prepareAudio()
	if r.playDone != nil {
		return "playing", nil
	}
	return "preparing audio", nil
}

func (r *runner) skip() (string, error) {
	state := r.State()
	if state != fsm.StateReciting {
		return "", fmt.Errorf("cannot skip from state %s", state)
	}

	index, completed := r.recitation.SkipWord()
	if index < 0 {
		return "", errors.New("no word to skip")
	}
	r.metrics.RecordWords(r.ctx, "manual", 0, 1)
	r.indicator.CueSkip(r.ctx)
	r.indicator.ShowProgress(r.ctx, r.recitation.Progress())
	if completed {
		r.beginCompletion()
	}
	return fmt.Sprintf("skipped word %d", index+1), nil
}

func (r *runner) stop() (string, error) {
	state := r.State()
	next, err := fsm.Transition(state, fsm.EventStop)
	if err != nil {
		return "", err
	}

	r.active = false
	r.closeStream()
	r.cancelRestart()
	r.stopPlayback()
	r.recitation.Stop()
	r.setState(next)

	if state == fsm.StateReciting {
		r.metrics.RecordRecitation(r.ctx, "stopped", "", 0)
	}
	r.indicator.ShowProgress(r.ctx, r.recitation.Progress())
	return "stopped", nil
}

func (r *runner) setDiacritics(value string) (string, error) {
	enabled, err := parseToggle(value)
	if err != nil {
		return "", err
	}
	next, err := fsm.Transition(r.State(), fsm.EventRebuild)
	if err != nil {
		return "", err
	}
	if err := r.recitation.Rebuild(r.cfg.Hadith.Text(enabled)); err != nil {
		return "", err
	}

	r.active = false
	r.closeStream()
	r.cancelRestart()
	r.stopPlayback()
	r.diacritics = enabled
	r.setState(next)
	r.indicator.ShowProgress(r.ctx, r.recitation.Progress())

	if enabled {
		return "diacritics on", nil
	}
	return "diacritics off", nil
}

func parseToggle(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "on", "true", "1", "show":
		return true, nil
	case "off", "false", "0", "plain", "hide":
		return false, nil
	default:
		return false, fmt.Errorf("invalid diacritics value %q", value)
	}
}

func (r *runner) onTranscript(text string) {
	if r.State() != fsm.StateReciting || !r.active {
		return
	}

	result, completed := r.recitation.Feed(text)
	r.metrics.RecordTranscript(r.ctx, result.Advanced)
	if result.Advanced {
		r.metrics.RecordWords(r.ctx, "matcher", 1, len(result.Skipped))
		r.logger.Debug("words advanced", "matched", result.MatchedIndex, "skipped", len(result.Skipped))
	}
	r.indicator.ShowProgress(r.ctx, r.recitation.Progress())
	if completed {
		r.beginCompletion()
	}
}

func (r *runner) onStreamEnded() {
	r.transcripts = nil
	r.closeStream()
	if r.State() != fsm.StateReciting || !r.active {
		return
	}
	r.logger.Warn("recognizer ended unexpectedly; restarting", "backoff", r.cfg.RestartBackoff.String())
	r.scheduleRestart()
}

func (r *runner) onRestart() {
	r.restartC = nil
	r.restartTimer = nil
	if r.State() != fsm.StateReciting || !r.active {
		return
	}

	stream, err := r.recognizer.Start(r.ctx)
	r.metrics.RecordRestart(r.ctx, err)
	if err == nil {
		r.restarts++
		r.restartFailures = 0
		r.attach(stream)
		return
	}

	r.restartFailures++
	r.logger.Warn("recognizer restart failed", "error", err.Error(), "failures", r.restartFailures)
	if r.restartFailures < r.cfg.MaxRestartFailures {
		r.scheduleRestart()
		return
	}

	r.logger.Error("recognizer gave up after repeated failures", "failures", r.restartFailures)
	r.indicator.ShowError(r.ctx, "recognition")
	r.active = false
	r.recitation.Stop()
	if next, err := fsm.Transition(fsm.StateReciting, fsm.EventStop); err == nil {
		r.setState(next)
	}
}

func (r *runner) beginCompletion() {
	r.active = false
	r.closeStream()
	r.cancelRestart()

	next, err := fsm.Transition(r.State(), fsm.EventFinish)
	if err != nil {
		r.logger.Error("finish transition rejected", "error", err.Error())
		return
	}
	r.setState(next)
	r.graceTimer = time.NewTimer(r.cfg.GraceDelay)
	r.graceC = r.graceTimer.C
}

func (r *runner) complete() {
	r.graceC = nil
	r.graceTimer = nil

	next, err := fsm.Transition(r.State(), fsm.EventComplete)
	if err != nil {
		r.final = r.result(err)
		return
	}
	r.setState(next)
	r.Controller.publish(r)

	result := r.result(nil)
	score, err := r.recitation.Score()
	if err != nil {
		result.Err = err
	}
	result.Score = score

	r.indicator.CueComplete(r.ctx)
	r.metrics.RecordRecitation(r.ctx, "completed", string(r.recitation.Matcher().Sensitivity()), score)
	r.logger.Info("recitation completed",
		"hadith", r.cfg.Hadith.ID,
		"score", score,
		"matched", result.Tally.Matched,
		"skipped", result.Tally.Skipped,
	)

	if err := r.reporter.Report(r.ctx, result); err != nil {
		r.logger.Error("report failed", "error", err.Error())
		result.Err = errors.Join(result.Err, fmt.Errorf("report result: %w", err))
	}
	result.FinishedAt = time.Now()
	r.final = result
}

func (r *runner) attach(stream Stream) {
	r.stream = stream
	r.transcripts = stream.Transcripts()
}

// closeStream detaches the stream first so later events are never read,
// then closes it without blocking the loop.
func (r *runner) closeStream() {
	if r.stream == nil {
		r.transcripts = nil
		return
	}
	stream := r.stream
	r.stream = nil
	r.transcripts = nil

	r.closers.Add(1)
	go func() {
		defer r.closers.Done()
		if err := stream.Close(); err != nil {
			r.logger.Debug("close recognizer stream", "error", err.Error())
		}
	}()
}

// closeStreamNow detaches and closes the stream before returning.
func (r *runner) closeStreamNow() {
	stream := r.stream
	r.stream = nil
	r.transcripts = nil
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		r.logger.Debug("close recognizer stream", "error", err.Error())
	}
}

func (r *runner) scheduleRestart() {
	r.cancelRestart()
	r.restartTimer = time.NewTimer(r.cfg.RestartBackoff)
	r.restartC = r.restartTimer.C
}

func (r *runner) cancelRestart() {
	if r.restartTimer != nil {
		r.restartTimer.Stop()
	}
	r.restartTimer = nil
	r.restartC = nil
}

func (r *runner) cancelGrace() {
	if r.graceTimer != nil {
		r.graceTimer.Stop()
	}
	r.graceTimer = nil
	r.graceC = nil
}

// prepareAudio starts synthesis unless a clip for the current text exists or
// is already being prepared. A ready clip plays at once when requested.
func (r *runner) prepareAudio() {
	text := r.text()
	if r.clipText == text && !r.clip.Empty() {
		if r.playWhenReady {
			r.startPlayback()
		}
		return
	}
	if r.synthDone != nil {
		return
	}

	done := make(chan synthResult, 1)
	r.synthDone = done
	go func() {
		started := time.Now()
		clip, err := r.synthesizer.Synthesize(r.ctx, text)
		done <- synthResult{text: text, clip: clip, err: err, elapsed: time.Since(started)}
	}()
}

func (r *runner) onSynthesized(res synthResult) {
	r.synthDone = nil
	r.metrics.RecordSynthesis(r.ctx, res.elapsed, res.err)

	if res.text != r.text() {
		// text changed while preparing
		if r.State() == fsm.StateListening && r.playWhenReady {
			r.prepareAudio()
		}
		return
	}
	if res.err != nil {
		err := fmt.Errorf("%w: %w", ErrAudioUnavailable, res.err)
		r.logger.Warn("reading unavailable", "error", err.Error())
		r.indicator.ShowError(r.ctx, "audio")
		r.playWhenReady = false
		return
	}

	r.clip = res.clip
	r.clipText = res.text
	if r.State() == fsm.StateListening && r.playWhenReady {
		r.startPlayback()
	}
}

func (r *runner) startPlayback() {
	r.playWhenReady = false
	if r.clip.Empty() {
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	done := make(chan error, 1)
	r.playCancel = cancel
	r.playDone = done

	clip := r.clip
	go func() {
		done <- r.player.Play(ctx, clip)
	}()
}

// stopPlayback cancels playback and waits for the player to return.
func (r *runner) stopPlayback() {
	r.playWhenReady = false
	if r.playDone == nil {
		return
	}
	r.playCancel()
	<-r.playDone
	r.playDone = nil
	r.playCancel = nil
}

func (r *runner) onPlaybackEnded(err error) {
	r.playDone = nil
	if r.playCancel != nil {
		r.playCancel()
		r.playCancel = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("playback failed", "error", err.Error())
		r.indicator.ShowError(r.ctx, "audio")
	}
}

func (r *runner) teardown() {
	r.active = false
	r.closeStream()
	r.cancelRestart()
	r.cancelGrace()
	r.stopPlayback()
	r.indicator.Hide(context.Background())
}

func (r *runner) result(err error) Result {
	tally := recite.Count(r.recitation.Words())
	return Result{
		HadithID:    r.cfg.Hadith.ID,
		State:       r.State(),
		Total:       r.recitation.Len(),
		Tally:       tally,
		Words:       r.recitation.Words(),
		Sensitivity: r.recitation.Matcher().Sensitivity(),
		Difficulty:  r.cfg.Difficulty,
		Diacritics:  r.diacritics,
		Restarts:    r.restarts,
		Cancelled:   r.cancelled,
		Err:         err,
		StartedAt:   r.startedAt,
		FinishedAt:  time.Now(),
	}
}
