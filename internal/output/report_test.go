package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/tasmi/internal/config"
	"github.com/rbright/tasmi/internal/fsm"
	"github.com/rbright/tasmi/internal/recite"
	"github.com/rbright/tasmi/internal/session"
	"github.com/stretchr/testify/require"
)

func completedResult() session.Result {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return session.Result{
		HadithID:    "nawawi-7",
		State:       fsm.StateCompleted,
		Score:       67,
		Total:       3,
		Tally:       recite.Tally{Matched: 2, Skipped: 1},
		Words:       []recite.Word{{Display: "الدين", Status: recite.StatusMatched}, {Display: "النصيحة", Status: recite.StatusSkipped}, {Display: "قلنا", Status: recite.StatusMatched}},
		Sensitivity: recite.SensitivityLow,
		Difficulty:  recite.DifficultyIntermediate,
		Diacritics:  true,
		StartedAt:   started,
		FinishedAt:  started.Add(4500 * time.Millisecond),
	}
}

func TestRunCommandWithInputWritesStdinAndEnv(t *testing.T) {
	scriptPath := writeCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, []string{"TASMI_SCORE=91"}, "hello from tasmi")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "91\nhello from tasmi", string(data))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestReporterPrintsSummaryWithoutCommand(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(config.Default(), nil, &out)

	require.NoError(t, reporter.Report(context.Background(), completedResult()))
	require.Equal(t, "nawawi-7: 67% (2 matched, 1 skipped of 3)\n", out.String())
}

func TestReporterPipesPayloadToReportCommand(t *testing.T) {
	scriptPath := writeCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "report.txt")

	cfg := config.Default()
	cfg.ReportCmd = config.CommandConfig{Argv: []string{scriptPath, outputPath}}

	reporter := NewReporter(cfg, nil, nil)
	require.NoError(t, reporter.Report(context.Background(), completedResult()))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	score, body, found := bytes.Cut(data, []byte("\n"))
	require.True(t, found)
	require.Equal(t, "67", string(score))

	var payload Payload
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Equal(t, "nawawi-7", payload.Hadith)
	require.Equal(t, "completed", payload.State)
	require.Equal(t, 67, payload.Score)
	require.Equal(t, 2, payload.Matched)
	require.Equal(t, 1, payload.Skipped)
	require.Equal(t, "low", payload.Sensitivity)
	require.Equal(t, int64(4500), payload.DurationMS)
	require.Equal(t, PayloadWord{Text: "النصيحة", Status: "skipped"}, payload.Words[1])
}

func TestReporterReturnsErrorWhenReportCommandFails(t *testing.T) {
	cfg := config.Default()
	cfg.ReportCmd = config.CommandConfig{Argv: []string{writeFailScript(t, "report failed")}}

	var out bytes.Buffer
	err := NewReporter(cfg, nil, &out).Report(context.Background(), completedResult())
	require.Error(t, err)
	require.Contains(t, err.Error(), "run report_cmd")
	require.NotEmpty(t, out.String())
}

func TestSummaryForUnfinishedResults(t *testing.T) {
	result := session.Result{HadithID: "nawawi-1", State: fsm.StateIdle, Total: 4, Tally: recite.Tally{Matched: 1, Pending: 3}}
	require.Equal(t, "nawawi-1: idle (1/4 words)", Summary(result))

	result.Cancelled = true
	require.Equal(t, "nawawi-1: cancelled", Summary(result))
}

func writeCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
{
  if [[ -n "${TASMI_SCORE:-}" ]]; then echo "${TASMI_SCORE}"; fi
  cat
} > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho " + "\"" + message + "\"" + " >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
