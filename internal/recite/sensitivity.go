package recite

import (
	"fmt"
	"strings"
)

// Sensitivity selects how strictly a recognized phrase must agree with a word.
type Sensitivity string

const (
	// SensitivityLow accepts containment or a close fuzzy match.
	SensitivityLow Sensitivity = "low"
	// SensitivityMedium accepts normalized substring containment.
	SensitivityMedium Sensitivity = "medium"
	// SensitivityHigh requires a whole-token match without letter-variant folding.
	SensitivityHigh Sensitivity = "high"
)

// ParseSensitivity maps a config value to a Sensitivity.
func ParseSensitivity(raw string) (Sensitivity, error) {
	switch s := Sensitivity(strings.ToLower(strings.TrimSpace(raw))); s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return s, nil
	case "":
		return SensitivityMedium, nil
	default:
		return "", fmt.Errorf("unknown sensitivity %q (want low, medium, or high)", raw)
	}
}

// Difficulty is accepted from configuration and reported with results.
// Matching does not vary with it.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty maps a config value to a Difficulty.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return d, nil
	case "":
		return DifficultyIntermediate, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q (want beginner, intermediate, or advanced)", raw)
	}
}
