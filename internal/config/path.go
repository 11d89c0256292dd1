package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "tasmi", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "tasmi", "config.jsonc"), nil
}

// resolveLibraryPath expands a leading "~/" and anchors relative paths at
// configDir. An empty path stays empty and selects the embedded library.
func resolveLibraryPath(path string, configDir string) (string, error) {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return "", nil
	case path == "~" || strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("unable to resolve user home")
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	case filepath.IsAbs(path):
		return filepath.Clean(path), nil
	default:
		return filepath.Join(configDir, path), nil
	}
}
