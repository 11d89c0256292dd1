// Package output applies result side effects: a printed summary and the
// optional report command.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rbright/tasmi/internal/config"
	"github.com/rbright/tasmi/internal/session"
)

const reportTimeout = 5 * time.Second

// Reporter prints completed results and hands them to report_cmd.
type Reporter struct {
	config config.Config
	logger *slog.Logger
	out    io.Writer
}

// NewReporter constructs a result reporter from runtime config.
func NewReporter(cfg config.Config, logger *slog.Logger, out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{config: cfg, logger: logger, out: out}
}

// Report prints the summary, then pipes the JSON payload to report_cmd when
// one is configured.
func (r *Reporter) Report(ctx context.Context, result session.Result) error {
	fmt.Fprintln(r.out, Summary(result))

	argv := r.config.ReportCmd.Argv
	if len(argv) == 0 {
		return nil
	}

	payload, err := json.Marshal(NewPayload(result))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	reportCtx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	env := []string{
		"TASMI_SCORE=" + strconv.Itoa(result.Score),
		"TASMI_HADITH=" + result.HadithID,
	}
	if err := runCommandWithInput(reportCtx, argv, env, string(payload)+"\n"); err != nil {
		return fmt.Errorf("run report_cmd: %w", err)
	}
	if r.logger != nil {
		r.logger.Info("report command finished", "command", argv[0], "score", result.Score)
	}
	return nil
}

// Summary is the one-line human rendering of a result.
func Summary(result session.Result) string {
	switch {
	case result.Completed():
		return fmt.Sprintf("%s: %d%% (%d matched, %d skipped of %d)",
			result.HadithID, result.Score, result.Tally.Matched, result.Tally.Skipped, result.Total)
	case result.Cancelled:
		return fmt.Sprintf("%s: cancelled", result.HadithID)
	default:
		return fmt.Sprintf("%s: %s (%d/%d words)", result.HadithID, result.State, result.Tally.Matched+result.Tally.Skipped, result.Total)
	}
}

// Payload is the JSON document written to report_cmd.
type Payload struct {
	Hadith      string        `json:"hadith"`
	State       string        `json:"state"`
	Score       int           `json:"score"`
	Total       int           `json:"total"`
	Matched     int           `json:"matched"`
	Skipped     int           `json:"skipped"`
	Sensitivity string        `json:"sensitivity"`
	Difficulty  string        `json:"difficulty"`
	Diacritics  bool          `json:"diacritics"`
	Restarts    int           `json:"restarts"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	DurationMS  int64         `json:"duration_ms"`
	Words       []PayloadWord `json:"words"`
}

// PayloadWord is one reference word with its final status.
type PayloadWord struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

// NewPayload flattens result for serialization.
func NewPayload(result session.Result) Payload {
	words := make([]PayloadWord, 0, len(result.Words))
	for _, w := range result.Words {
		words = append(words, PayloadWord{Text: w.Display, Status: string(w.Status)})
	}
	return Payload{
		Hadith:      result.HadithID,
		State:       string(result.State),
		Score:       result.Score,
		Total:       result.Total,
		Matched:     result.Tally.Matched,
		Skipped:     result.Tally.Skipped,
		Sensitivity: string(result.Sensitivity),
		Difficulty:  string(result.Difficulty),
		Diacritics:  result.Diacritics,
		Restarts:    result.Restarts,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		DurationMS:  result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		Words:       words,
	}
}

// runCommandWithInput executes argv with extra environment and writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, env []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
