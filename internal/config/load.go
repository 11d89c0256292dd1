package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Loaded is the effective tasmi configuration together with where it came from.
// Exists is false when the file is absent and built-in defaults apply.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads the config file (explicitPath, or the XDG default) over the
// built-in defaults. A relative library.path is anchored at the config
// file's directory so the owner finds the same library from any cwd.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using built-in defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	libraryPath, err := resolveLibraryPath(cfg.Library.Path, filepath.Dir(resolvedPath))
	if err != nil {
		return Loaded{}, fmt.Errorf("library.path: %w", err)
	}
	cfg.Library.Path = libraryPath

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}
