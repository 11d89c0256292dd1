package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/cli"
	"github.com/rbright/tasmi/internal/config"
	"github.com/rbright/tasmi/internal/indicator"
	"github.com/rbright/tasmi/internal/ipc"
	"github.com/rbright/tasmi/internal/library"
	"github.com/rbright/tasmi/internal/observe"
	"github.com/rbright/tasmi/internal/output"
	"github.com/rbright/tasmi/internal/pipeline"
	"github.com/rbright/tasmi/internal/recite"
	"github.com/rbright/tasmi/internal/session"
	"github.com/rbright/tasmi/internal/version"
	"github.com/rbright/tasmi/internal/voice"
	"golang.org/x/sync/errgroup"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	maxHadithKeyterms   = 40
	shutdownTimeout     = 2 * time.Second
)

// commandSession forwards recite/listen to a running owner, or becomes the
// owner and runs the recitation in this process.
func (r Runner) commandSession(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	req := ipc.Request{Command: string(parsed.Command)}
	resp, handled, err := tryForward(ctx, socketPath, req)
	if handled {
		return r.printForwarded(resp, err, parsed)
	}

	sess, err := r.buildOwner(ctx, parsed, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("session setup failed", "error", err.Error())
		return 1
	}
	defer sess.shutdown(logger)

	listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries, func(path string) {
		logger.Warn("removed stale session socket", "path", path)
	})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, req)
			return r.printForwarded(resp, forwardErr, parsed)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, serverCancel := context.WithCancel(gctx)
	defer serverCancel()

	g.Go(func() error {
		return ipc.Serve(serverCtx, listener, sess.controller)
	})
	if sess.provider != nil {
		g.Go(func() error {
			return sess.provider.Serve(serverCtx, cfg.Metrics.Listen, logger)
		})
	}

	var result session.Result
	g.Go(func() error {
		defer serverCancel()
		result = sess.controller.Run(gctx, string(parsed.Command))
		return nil
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(r.Stderr, "error: server failed: %v\n", err)
		logger.Error("owner server failed", "error", err.Error())
		return 1
	}

	logSessionResult(logger, result)

	if result.Cancelled || errors.Is(result.Err, context.Canceled) {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	// the reporter prints completed results
	if !result.Completed() {
		fmt.Fprintln(r.Stdout, output.Summary(result))
	}
	return 0
}

func (r Runner) printForwarded(resp ipc.Response, err error, parsed cli.Parsed) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if parsed.HadithID != "" || parsed.Plain {
		fmt.Fprintln(r.Stderr, "warning: a session is already running; --hadith and --plain were ignored")
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

type owner struct {
	controller *session.Controller
	provider   *observe.Provider
}

func (o owner) shutdown(logger *slog.Logger) {
	if o.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := o.provider.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown failed", "error", err.Error())
	}
}

// buildOwner resolves the hadith and wires the recognizer, voice, playback,
// indicator, reporter and metrics into a session controller.
func (r Runner) buildOwner(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) (owner, error) {
	lib, err := library.Load(cfg.Library.Path)
	if err != nil {
		return owner{}, err
	}
	hadith, err := lib.Find(parsed.HadithID)
	if err != nil {
		return owner{}, err
	}

	sensitivity, err := recite.ParseSensitivity(cfg.Recitation.Sensitivity)
	if err != nil {
		return owner{}, err
	}
	difficulty, err := recite.ParseDifficulty(cfg.Recitation.Difficulty)
	if err != nil {
		return owner{}, err
	}
	matcher := recite.NewMatcher(
		recite.WithSensitivity(sensitivity),
		recite.WithFuzzyThreshold(cfg.Recitation.FuzzyThreshold),
	)

	var o owner
	metrics := observe.DefaultMetrics()
	if strings.TrimSpace(cfg.Metrics.Listen) != "" {
		o.provider, err = observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version.Short()})
		if err != nil {
			return owner{}, fmt.Errorf("init metrics: %w", err)
		}
		if metrics, err = observe.NewMetrics(o.provider.MeterProvider()); err != nil {
			o.shutdown(logger)
			return owner{}, fmt.Errorf("init metrics: %w", err)
		}
	}

	deps := session.Deps{
		Matcher:    matcher,
		Recognizer: pipeline.NewRecognizer(cfg, logger, hadithKeyterms(hadith)),
		Player:     audio.NewPlayer("tasmi reading"),
		Reporter:   output.NewReporter(cfg, logger, r.Stdout),
		Metrics:    metrics,
	}
	if synth := newSynthesizer(cfg.Voice, logger); synth != nil {
		deps.Synthesizer = synth
	}
	if cfg.Indicator.Enable {
		deps.Indicator = indicator.NewTerminal(cfg.Indicator, logger, r.Stderr)
	}

	controller, err := session.NewController(logger, session.Config{
		Hadith:             hadith,
		Diacritics:         cfg.Recitation.Diacritics && !parsed.Plain,
		Difficulty:         difficulty,
		GraceDelay:         time.Duration(cfg.Recitation.CompletionGraceMS) * time.Millisecond,
		RestartBackoff:     time.Duration(cfg.Recitation.RestartBackoffMS) * time.Millisecond,
		MaxRestartFailures: cfg.Recitation.MaxRestartFailures,
	}, deps)
	if err != nil {
		o.shutdown(logger)
		return owner{}, err
	}
	o.controller = controller

	logger.Info("session ready",
		"hadith", hadith.ID,
		"sensitivity", sensitivity,
		"difficulty", difficulty,
		"voice", deps.Synthesizer != nil,
		"metrics", cfg.Metrics.Listen,
	)
	return o, nil
}

// newSynthesizer returns nil when voice is disabled or not configured; the
// session then rejects listen and play.
func newSynthesizer(cfg config.VoiceConfig, logger *slog.Logger) *voice.ElevenLabs {
	if !cfg.Enable {
		return nil
	}

	opts := []voice.Option{voice.WithSpeed(cfg.Speed)}
	if cfg.Model != "" {
		opts = append(opts, voice.WithModel(cfg.Model))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, voice.WithEndpoint(cfg.Endpoint))
	}

	synth, err := voice.NewElevenLabs(strings.TrimSpace(os.Getenv(cfg.APIKeyEnv)), cfg.VoiceID, opts...)
	if err != nil {
		logger.Warn("voice unavailable", "error", err.Error())
		return nil
	}
	return synth
}

// hadithKeyterms lists the distinct plain words of h in order, for
// recognizer biasing.
func hadithKeyterms(h library.Hadith) []string {
	words, err := recite.BuildSequence(h.Text(false))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool, len(words))
	out := make([]string, 0, min(len(words), maxHadithKeyterms))
	for _, w := range words {
		if seen[w.Display] {
			continue
		}
		seen[w.Display] = true
		out = append(out, w.Display)
		if len(out) == maxHadithKeyterms {
			break
		}
	}
	return out
}
