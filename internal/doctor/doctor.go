// Package doctor runs runtime readiness diagnostics for config, credentials,
// the hadith library, and audio input.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/tasmi/internal/audio"
	"github.com/rbright/tasmi/internal/config"
	"github.com/rbright/tasmi/internal/deepgram"
	"github.com/rbright/tasmi/internal/library"
	"github.com/rbright/tasmi/internal/voice"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
// Credential checks only reach the network when the key is present.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	rec := cfg.Config.Recognizer
	recKey := checkEnv(rec.APIKeyEnv, nonEmpty, "recognizer key is set", rec.APIKeyEnv+" is empty")
	checks = append(checks, recKey)
	if recKey.Pass {
		endpoint := firstNonEmpty(rec.Endpoint, deepgram.DefaultEndpoint)
		checks = append(checks, checkCredential("deepgram.auth", endpoint, "/v1/projects", http.Header{
			"Authorization": []string{"Token " + strings.TrimSpace(os.Getenv(rec.APIKeyEnv))},
		}))
	}

	if v := cfg.Config.Voice; v.Enable {
		voiceKey := checkEnv(v.APIKeyEnv, nonEmpty, "voice key is set", v.APIKeyEnv+" is empty")
		checks = append(checks, voiceKey)
		if strings.TrimSpace(v.VoiceID) == "" {
			checks = append(checks, Check{Name: "voice.voice_id", Pass: false, Message: "voice.voice_id is empty"})
		} else if voiceKey.Pass {
			endpoint := firstNonEmpty(v.Endpoint, voice.DefaultEndpoint)
			checks = append(checks, checkCredential("elevenlabs.voice", endpoint, "/v1/voices/"+v.VoiceID, http.Header{
				"xi-api-key": []string{strings.TrimSpace(os.Getenv(v.APIKeyEnv))},
			}))
		}
	}

	if len(cfg.Config.ReportCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.ReportCmd.Argv, "report_cmd"))
	}

	checks = append(checks, checkLibrary(cfg.Config.Library.Path))
	checks = append(checks, checkAudioSelection(cfg.Config))

	return Report{Checks: checks}
}

func nonEmpty(v string) bool {
	return strings.TrimSpace(v) != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkLibrary loads the configured or embedded hadith collection.
func checkLibrary(path string) Check {
	lib, err := library.Load(path)
	if err != nil {
		return Check{Name: "library", Pass: false, Message: err.Error()}
	}
	source := "embedded collection"
	if strings.TrimSpace(path) != "" {
		source = fmt.Sprintf("%q", path)
	}
	return Check{Name: "library", Pass: true, Message: fmt.Sprintf("%d hadiths from %s", len(lib.All()), source)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkCredential issues an authenticated GET against the REST API that
// serves the streaming endpoint.
func checkCredential(name string, streamEndpoint string, path string, header http.Header) Check {
	origin, err := httpOrigin(streamEndpoint)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}

	url := origin + path
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	for key, values := range header {
		req.Header[key] = values
	}

	client := http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("credentials rejected (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("accepted by %s", origin)}
}

// httpOrigin maps a ws(s) endpoint, possibly holding a format verb in its
// path, to the http(s) origin of the same host.
func httpOrigin(endpoint string) (string, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(endpoint), "://")
	if !ok || rest == "" {
		return "", fmt.Errorf("invalid endpoint %q", endpoint)
	}
	host, _, _ := strings.Cut(rest, "/")
	if host == "" {
		return "", fmt.Errorf("invalid endpoint %q", endpoint)
	}

	switch strings.ToLower(scheme) {
	case "wss", "https":
		return "https://" + host, nil
	case "ws", "http":
		return "http://" + host, nil
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", scheme)
	}
}
