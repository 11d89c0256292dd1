// Package ipc carries commands from short-lived tasmi invocations to the
// process that owns the running recitation, over a unix socket speaking one
// JSON object per line.
package ipc

// Commands understood by the owner process.
const (
	CommandStatus     = "status"
	CommandProgress   = "progress"
	CommandRecite     = "recite"
	CommandListen     = "listen"
	CommandPlay       = "play"
	CommandSkip       = "skip"
	CommandStop       = "stop"
	CommandCancel     = "cancel"
	CommandDiacritics = "diacritics"
)

type Request struct {
	Command string `json:"command"`
	Value   string `json:"value,omitempty"`
}

type Response struct {
	OK       bool      `json:"ok"`
	State    string    `json:"state,omitempty"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// Progress is a snapshot of the current pass.
type Progress struct {
	Hadith     string `json:"hadith,omitempty"`
	Mode       string `json:"mode"`
	Diacritics bool   `json:"diacritics"`
	Cursor     int    `json:"cursor"`
	Total      int    `json:"total"`
	Matched    int    `json:"matched"`
	Skipped    int    `json:"skipped"`
	Preview    string `json:"preview,omitempty"`
	Words      []Word `json:"words,omitempty"`
}

// Word is one reference word and its status.
type Word struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}
