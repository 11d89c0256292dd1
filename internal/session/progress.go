package session

import (
	"github.com/rbright/tasmi/internal/ipc"
	"github.com/rbright/tasmi/internal/recite"
)

func snapshot(hadithID string, diacritics bool, s *recite.Session) ipc.Progress {
	progress := s.Progress()
	words := s.Words()

	out := ipc.Progress{
		Hadith:     hadithID,
		Mode:       string(progress.Mode),
		Diacritics: diacritics,
		Cursor:     progress.Cursor,
		Total:      progress.Total,
		Matched:    progress.Tally.Matched,
		Skipped:    progress.Tally.Skipped,
		Preview:    progress.Preview,
		Words:      make([]ipc.Word, len(words)),
	}
	for i, w := range words {
		out.Words[i] = ipc.Word{Text: w.Display, Status: string(w.Status)}
	}
	return out
}
