package recite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const fatiha = "بِسْمِ اللَّهِ الرَّحْمَنِ الرَّحِيمِ"

func newRecitingSession(t *testing.T, text string) *Session {
	t.Helper()
	s, err := NewSession(text, nil)
	require.NoError(t, err)
	s.StartRecitation()
	return s
}

func TestNewSessionStartsInReview(t *testing.T) {
	s, err := NewSession(fatiha, nil)
	require.NoError(t, err)
	require.Equal(t, ModeReview, s.Mode())
	require.Equal(t, 0, s.Cursor())
	require.Equal(t, 4, s.Len())
	require.False(t, s.Done())

	_, err = NewSession("  ", nil)
	require.ErrorIs(t, err, ErrEmptyReference)
}

func TestFeedOutsideReciteModeIsIgnored(t *testing.T) {
	s, err := NewSession(fatiha, nil)
	require.NoError(t, err)

	result, completed := s.Feed("بسم")
	require.False(t, result.Advanced)
	require.False(t, completed)
	require.Equal(t, 0, s.Cursor())
	require.Empty(t, s.Preview())
}

func TestFeedTracksPreviewAndProgress(t *testing.T) {
	s := newRecitingSession(t, fatiha)

	result, completed := s.Feed("بسم الله")
	require.True(t, result.Advanced)
	require.False(t, completed)
	require.Equal(t, 1, s.Cursor())
	require.Equal(t, "بسم الله", s.Preview())

	// overlapping interim transcript restating a passed word
	_, _ = s.Feed("بسم الله")
	require.Equal(t, 2, s.Cursor())

	progress := s.Progress()
	require.Equal(t, ModeRecite, progress.Mode)
	require.Equal(t, 2, progress.Cursor)
	require.Equal(t, 4, progress.Total)
	require.Equal(t, Tally{Pending: 2, Matched: 2}, progress.Tally)
}

func TestCompletionHappensExactlyOnce(t *testing.T) {
	s := newRecitingSession(t, "الحمد لله")

	_, completed := s.Feed("الحمد")
	require.False(t, completed)

	_, completed = s.Feed("لله")
	require.True(t, completed)
	require.True(t, s.Done())

	for _, phrase := range []string{"لله", "الحمد لله"} {
		result, completed := s.Feed(phrase)
		require.False(t, result.Advanced)
		require.False(t, completed)
	}

	index, completed := s.SkipWord()
	require.Equal(t, -1, index)
	require.False(t, completed)
	require.Equal(t, 2, s.Cursor())
}

func TestSkipWordAdvancesAndCompletes(t *testing.T) {
	s := newRecitingSession(t, "الحمد لله")

	index, completed := s.SkipWord()
	require.Equal(t, 0, index)
	require.False(t, completed)

	_, completed = s.Feed("لله")
	require.True(t, completed)

	words := s.Words()
	require.Equal(t, StatusSkipped, words[0].Status)
	require.Equal(t, StatusMatched, words[1].Status)

	score, err := s.Score()
	require.NoError(t, err)
	require.Equal(t, 50, score)
}

func TestSkipWordCompletesOnLastWord(t *testing.T) {
	s := newRecitingSession(t, "الحمد")
	index, completed := s.SkipWord()
	require.Equal(t, 0, index)
	require.True(t, completed)
}

func TestSkipWordRequiresReciteMode(t *testing.T) {
	s, err := NewSession(fatiha, nil)
	require.NoError(t, err)
	index, _ := s.SkipWord()
	require.Equal(t, -1, index)
}

func TestStartRecitationResetsEveryTime(t *testing.T) {
	s := newRecitingSession(t, fatiha)
	_, _ = s.Feed("الرحمن")
	require.Equal(t, 3, s.Cursor())

	for i := 0; i < 2; i++ {
		s.StartRecitation()
		require.Equal(t, 0, s.Cursor())
		require.False(t, s.Done())
		require.Empty(t, s.Preview())
		for _, w := range s.Words() {
			require.Equal(t, StatusPending, w.Status)
		}
		_, _ = s.Feed("بسم")
		require.Equal(t, 1, s.Cursor())
	}
}

func TestStopKeepsWordStates(t *testing.T) {
	s := newRecitingSession(t, fatiha)
	_, _ = s.Feed("بسم")
	s.Stop()

	require.Equal(t, ModeReview, s.Mode())
	require.Equal(t, 1, s.Cursor())
	require.Equal(t, StatusMatched, s.Words()[0].Status)

	result, _ := s.Feed("الله")
	require.False(t, result.Advanced)
}

func TestRebuildReplacesSequence(t *testing.T) {
	s := newRecitingSession(t, fatiha)
	_, _ = s.Feed("بسم")

	require.NoError(t, s.Rebuild("بسم الله الرحمن الرحيم"))
	require.Equal(t, ModeReview, s.Mode())
	require.Equal(t, 0, s.Cursor())
	require.Equal(t, "بسم", s.Words()[0].Display)

	require.ErrorIs(t, s.Rebuild(""), ErrEmptyReference)
	require.Equal(t, 4, s.Len())
}

func TestWordsReturnsCopy(t *testing.T) {
	s := newRecitingSession(t, fatiha)
	words := s.Words()
	words[0].Status = StatusMatched
	require.Equal(t, StatusPending, s.Words()[0].Status)
}

func TestScore(t *testing.T) {
	words := make([]Word, 10)
	for i := range words {
		words[i] = NewWord("كلمة")
		words[i].Status = StatusMatched
	}
	words[3].Status = StatusSkipped
	words[7].Status = StatusSkipped

	score, err := Score(words)
	require.NoError(t, err)
	require.Equal(t, 80, score)

	_, err = Score(nil)
	require.ErrorIs(t, err, ErrDivisionUndefined)
}

func TestScoreRoundsHalfUp(t *testing.T) {
	words := mustBuild(t, "ا ب ج")
	words[0].Status = StatusMatched
	score, err := Score(words)
	require.NoError(t, err)
	require.Equal(t, 33, score)

	words[1].Status = StatusMatched
	score, err = Score(words)
	require.NoError(t, err)
	require.Equal(t, 67, score)

	eight := mustBuild(t, "ا ب ج د ه و ز ح")
	eight[0].Status = StatusMatched
	score, err = Score(eight)
	require.NoError(t, err)
	require.Equal(t, 13, score) // 12.5
}

func TestRepeatedInterimPhraseDoesNotCreditUnsaidWord(t *testing.T) {
	s, err := NewSession(fatiha, NewMatcher(WithSensitivity(SensitivityLow)))
	require.NoError(t, err)
	s.StartRecitation()

	for range 4 {
		_, completed := s.Feed("بسم الله الرحمن")
		require.False(t, completed)
	}
	require.Equal(t, 3, s.Cursor())
	require.False(t, s.Done())
	require.Equal(t, StatusPending, s.Words()[3].Status)
}
