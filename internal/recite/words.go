// Package recite implements the recitation-matching engine: reference word
// sequences, bounded lookahead matching, the synchronous session core, and scoring.
package recite

import (
	"errors"
	"strings"

	"github.com/rbright/tasmi/internal/transcript"
)

var (
	// ErrEmptyReference indicates a reference text produced no words.
	ErrEmptyReference = errors.New("reference text contains no words")
	// ErrDivisionUndefined indicates a score was requested for an empty sequence.
	ErrDivisionUndefined = errors.New("score undefined for empty word sequence")
)

// Status is the match outcome of one reference word.
type Status string

const (
	StatusPending Status = "pending"
	StatusMatched Status = "matched"
	StatusSkipped Status = "skipped"
)

// Word is one comparison unit of a reference text.
type Word struct {
	Display    string
	Normalized string
	Status     Status

	strict string
}

// NewWord derives the comparison forms for one display token.
func NewWord(display string) Word {
	return Word{
		Display:    display,
		Normalized: transcript.Normalize(display),
		Status:     StatusPending,
		strict:     transcript.Strict(display),
	}
}

// BuildSequence splits text on whitespace runs into pending words in recitation order.
func BuildSequence(text string) ([]Word, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyReference
	}

	words := make([]Word, 0, len(tokens))
	for _, token := range tokens {
		words = append(words, NewWord(token))
	}
	return words, nil
}

// resetWords returns every word to pending.
func resetWords(words []Word) {
	for i := range words {
		words[i].Status = StatusPending
	}
}

// copyWords returns a snapshot safe to hand to readers.
func copyWords(words []Word) []Word {
	out := make([]Word, len(words))
	copy(out, words)
	return out
}
