package config

import (
	"fmt"
	"strings"
	"unicode"
)

// parseArgv splits a report_cmd string into argv the way a POSIX shell would
// for plain words, quotes and backslashes. No expansion or globbing happens;
// the report runs without a shell. A leading # disables the hook.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		argv   []string
		word   strings.Builder
		quote  rune
		escape bool
	)

	endWord := func() {
		if word.Len() > 0 {
			argv = append(argv, word.String())
			word.Reset()
		}
	}

	for _, r := range input {
		switch {
		case escape:
			word.WriteRune(r)
			escape = false
		case r == '\\':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			word.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
		case unicode.IsSpace(r):
			endWord()
		default:
			word.WriteRune(r)
		}
	}

	if escape {
		return nil, fmt.Errorf("unterminated escape in %q", input)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote (%c) in %q", quote, input)
	}

	endWord()
	return argv, nil
}
