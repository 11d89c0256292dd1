package recite

// Mode is the learner-facing mode of a session.
type Mode string

const (
	ModeReview Mode = "review"
	ModeRecite Mode = "recite"
)

// Progress is a read-only view of a session.
type Progress struct {
	Mode    Mode
	Cursor  int
	Total   int
	Tally   Tally
	Preview string
	Done    bool
}

// Session owns one word sequence and its cursor. It is synchronous and not
// safe for concurrent use; one controller goroutine drives it.
type Session struct {
	matcher *Matcher

	words   []Word
	cursor  int
	mode    Mode
	preview string
	done    bool
}

// NewSession builds a review-mode session for text.
func NewSession(text string, matcher *Matcher) (*Session, error) {
	if matcher == nil {
		matcher = NewMatcher()
	}
	s := &Session{matcher: matcher, mode: ModeReview}
	if err := s.Rebuild(text); err != nil {
		return nil, err
	}
	return s, nil
}

// Rebuild replaces the word sequence, for example after the display form
// changes. The session returns to review mode with a zero cursor. On error the
// previous sequence is kept.
func (s *Session) Rebuild(text string) error {
	words, err := BuildSequence(text)
	if err != nil {
		return err
	}
	s.words = words
	s.cursor = 0
	s.mode = ModeReview
	s.preview = ""
	s.done = false
	return nil
}

// StartRecitation begins a fresh pass: every word pending, cursor at zero.
func (s *Session) StartRecitation() {
	resetWords(s.words)
	s.cursor = 0
	s.preview = ""
	s.done = false
	s.mode = ModeRecite
}

// Stop leaves recite mode. Word states stay until the next StartRecitation.
func (s *Session) Stop() {
	s.mode = ModeReview
}

// Feed matches one recognized phrase. completed is true only for the call that
// moved the cursor onto the end of the sequence. Outside recite mode, or once
// done, Feed is a no-op.
func (s *Session) Feed(phrase string) (result MatchResult, completed bool) {
	if s.mode != ModeRecite || s.done {
		return NoMatch(), false
	}
	s.preview = phrase

	result = s.matcher.Match(phrase, s.words, s.cursor)
	s.cursor = Apply(s.words, s.cursor, result)
	return result, s.finish()
}

// SkipWord marks the word at the cursor skipped and advances. It returns the
// skipped index, or -1 when nothing could be skipped.
func (s *Session) SkipWord() (index int, completed bool) {
	if s.mode != ModeRecite || s.done || s.cursor >= len(s.words) {
		return -1, false
	}
	index = s.cursor
	s.words[index].Status = StatusSkipped
	s.cursor++
	return index, s.finish()
}

// finish latches completion the first time the cursor reaches the end.
func (s *Session) finish() bool {
	if s.done || s.cursor < len(s.words) {
		return false
	}
	s.done = true
	return true
}

// Score scores the current word states.
func (s *Session) Score() (int, error) {
	return Score(s.words)
}

// Words returns a copy of the word sequence.
func (s *Session) Words() []Word {
	return copyWords(s.words)
}

func (s *Session) Matcher() *Matcher { return s.matcher }

func (s *Session) Cursor() int { return s.cursor }

func (s *Session) Len() int { return len(s.words) }

func (s *Session) Mode() Mode { return s.mode }

// Done reports whether the current pass reached the end of the sequence.
func (s *Session) Done() bool { return s.done }

// Preview returns the last raw phrase fed in recite mode, for display only.
func (s *Session) Preview() string { return s.preview }

// Progress returns a snapshot of the session.
func (s *Session) Progress() Progress {
	return Progress{
		Mode:    s.mode,
		Cursor:  s.cursor,
		Total:   len(s.words),
		Tally:   Count(s.words),
		Preview: s.preview,
		Done:    s.done,
	}
}
