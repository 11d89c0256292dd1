package recite

import "math"

// Score returns round(100 * matched / len(words)).
func Score(words []Word) (int, error) {
	if len(words) == 0 {
		return 0, ErrDivisionUndefined
	}
	matched := 0
	for _, w := range words {
		if w.Status == StatusMatched {
			matched++
		}
	}
	return int(math.Round(100 * float64(matched) / float64(len(words)))), nil
}

// Tally counts words per status.
type Tally struct {
	Pending int
	Matched int
	Skipped int
}

// Count tallies word statuses.
func Count(words []Word) Tally {
	var t Tally
	for _, w := range words {
		switch w.Status {
		case StatusMatched:
			t.Matched++
		case StatusSkipped:
			t.Skipped++
		default:
			t.Pending++
		}
	}
	return t
}
