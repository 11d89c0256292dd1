package config

import "strings"

// Parse reads JSONC configuration content on top of base and validates the result.
// Empty content yields base unchanged.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}
	return parseJSONC(content, base)
}
