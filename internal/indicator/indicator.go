// Package indicator renders recitation progress to the terminal and plays
// short audio cues on session transitions.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/config"
	"github.com/rbright/tasmi/internal/recite"
	"golang.org/x/term"
)

const (
	markMatched = "✓"
	markSkipped = "✗"
	markCursor  = "▸"

	clearLine = "\r\033[K"
)

// Terminal is the concrete indicator used by the owner process. On a TTY,
// progress is redrawn in place on a single line cut to the terminal width;
// any other writer gets one line per update.
type Terminal struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	player   clipPlayer

	mu      sync.Mutex
	out     io.Writer
	tty     bool
	width   func() int
	inLine  bool
	soundMu sync.Mutex
	cues    sync.WaitGroup
}

// NewTerminal creates an indicator writing to out.
func NewTerminal(cfg config.IndicatorConfig, logger *slog.Logger, out io.Writer) *Terminal {
	if out == nil {
		out = io.Discard
	}
	t := &Terminal{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFor(cfg.Locale),
		player:   audio.NewPlayer("tasmi cue"),
		out:      out,
		width:    func() int { return 0 },
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.tty = true
		t.width = func() int {
			w, _, err := term.GetSize(int(f.Fd()))
			if err != nil {
				return 0
			}
			return w
		}
	}
	return t
}

// ShowListening announces the reference reading.
func (t *Terminal) ShowListening(context.Context) {
	t.println(t.messages.listening)
}

// ShowReciting announces the start of a pass and emits the start cue.
func (t *Terminal) ShowReciting(ctx context.Context) {
	t.playCue(ctx, cueStart)
	t.println(t.messages.reciting)
}

// ShowProgress redraws the progress line.
func (t *Terminal) ShowProgress(_ context.Context, progress recite.Progress) {
	t.redraw(formatProgress(progress, t.messages.heard))
}

// ShowError prints text, or the default error message when text is empty.
func (t *Terminal) ShowError(_ context.Context, text string) {
	if text == "" {
		text = t.messages.errorText
	}
	t.println("! " + text)
}

func (t *Terminal) CueSkip(ctx context.Context) {
	t.playCue(ctx, cueSkip)
}

// CueComplete emits the completion cue and message.
func (t *Terminal) CueComplete(ctx context.Context) {
	t.playCue(ctx, cueComplete)
	t.println(t.messages.completed)
}

// CueCancel emits the cancel cue and message.
func (t *Terminal) CueCancel(ctx context.Context) {
	t.playCue(ctx, cueCancel)
	t.println(t.messages.cancelled)
}

// Hide ends the progress line and waits for queued cues.
func (t *Terminal) Hide(context.Context) {
	t.mu.Lock()
	if t.inLine {
		t.write("\n")
		t.inLine = false
	}
	t.mu.Unlock()
	t.cues.Wait()
}

func formatProgress(p recite.Progress, heard string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d/%d  %s %d  %s %d", markCursor, p.Cursor, p.Total, markMatched, p.Tally.Matched, markSkipped, p.Tally.Skipped)
	if preview := strings.TrimSpace(p.Preview); preview != "" {
		fmt.Fprintf(&b, "  %s: %s", heard, preview)
	}
	return b.String()
}

func (t *Terminal) redraw(line string) {
	if !t.cfg.Enable {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tty {
		t.write(line + "\n")
		return
	}
	// a wrapped line cannot be cleared with \r
	if w := t.width(); w > 1 {
		line = runewidth.Truncate(line, w-1, "…")
	}
	t.write(clearLine + line)
	t.inLine = true
}

func (t *Terminal) println(line string) {
	if !t.cfg.Enable {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inLine {
		t.write("\n")
		t.inLine = false
	}
	t.write(line + "\n")
}

func (t *Terminal) write(s string) {
	if _, err := io.WriteString(t.out, s); err != nil {
		t.log("indicator write failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (t *Terminal) playCue(ctx context.Context, kind cueKind) {
	if !t.cfg.SoundEnable {
		return
	}
	ctx = context.WithoutCancel(ctx)
	t.cues.Add(1)
	go func() {
		defer t.cues.Done()
		t.soundMu.Lock()
		defer t.soundMu.Unlock()
		if err := emitCue(ctx, t.player, kind); err != nil {
			t.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (t *Terminal) log(message string, err error) {
	if t.logger == nil || err == nil {
		return
	}
	t.logger.Debug(message, "error", err.Error())
}
