package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/cli"
	"github.com/rbright/tasmi/internal/config"
	"github.com/rbright/tasmi/internal/doctor"
	"github.com/rbright/tasmi/internal/ipc"
	"github.com/rbright/tasmi/internal/library"
	"github.com/rbright/tasmi/internal/logging"
	"github.com/rbright/tasmi/internal/session"
	"github.com/rbright/tasmi/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("tasmi"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("tasmi"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Debug.EnableAudioDump)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandList:
		return r.commandList(cfgLoaded.Config, parsed)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandProgress:
		return r.commandProgress(ctx)
	case cli.CommandPlay, cli.CommandSkip, cli.CommandStop, cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.Request{Command: string(parsed.Command)})
	case cli.CommandDiacritics:
		value := "on"
		if parsed.Plain {
			value = "off"
		}
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandDiacritics, Value: value})
	case cli.CommandRecite, cli.CommandListen:
		return r.commandSession(ctx, parsed, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandList(cfg config.Config, parsed cli.Parsed) int {
	lib, err := library.Load(cfg.Library.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	hadiths := lib.Search(parsed.Query)
	if len(hadiths) == 0 {
		fmt.Fprintf(r.Stdout, "no hadiths match %q\n", parsed.Query)
		return 1
	}

	diacritics := cfg.Recitation.Diacritics && !parsed.Plain
	for _, h := range hadiths {
		fmt.Fprintf(r.Stdout, "%s\t%d\t%s\t%s\n", h.ID, h.Number, h.Narrator, excerpt(h.Text(diacritics), 8))
	}
	return 0
}

// excerpt keeps the first n words of text.
func excerpt(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ") + " …"
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) commandProgress(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandProgress})
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active tasmi session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Progress == nil {
		fmt.Fprintln(r.Stderr, "error: owner returned no progress")
		return 1
	}
	fmt.Fprintln(r.Stdout, formatProgress(resp.State, *resp.Progress))
	return 0
}

// formatProgress renders a progress snapshot: a header line, the last heard
// phrase when present, and the words with matched (✓), skipped (✗) and
// pending (·) marks.
func formatProgress(state string, p ipc.Progress) string {
	var b strings.Builder
	diacritics := "plain"
	if p.Diacritics {
		diacritics = "diacritics"
	}
	fmt.Fprintf(&b, "%s %s %d/%d matched=%d skipped=%d %s", p.Hadith, state, p.Cursor, p.Total, p.Matched, p.Skipped, diacritics)
	if p.Preview != "" {
		fmt.Fprintf(&b, "\nheard: %s", p.Preview)
	}

	if len(p.Words) > 0 {
		marked := make([]string, 0, len(p.Words))
		for _, w := range p.Words {
			switch w.Status {
			case "matched":
				marked = append(marked, "✓"+w.Text)
			case "skipped":
				marked = append(marked, "✗"+w.Text)
			default:
				marked = append(marked, "·"+w.Text)
			}
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(marked, " "))
	}
	return b.String()
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active tasmi session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"hadith", result.HadithID,
		"state", result.State,
		"cancelled", result.Cancelled,
		"score", result.Score,
		"total", result.Total,
		"matched", result.Tally.Matched,
		"skipped", result.Tally.Skipped,
		"sensitivity", result.Sensitivity,
		"difficulty", result.Difficulty,
		"diacritics", result.Diacritics,
		"restarts", result.Restarts,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session finished", fields...)
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
