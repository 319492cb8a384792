package chat

import (
	"html/template"
	"time"

	"github.com/orthovision/portal/internal/platform/session"
)

// Message senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// MaxTranscript is how many messages a session keeps. Older ones are dropped
// first.
const MaxTranscript = 100

// MaxMessageLength bounds a single user message, in bytes.
const MaxMessageLength = 4000

// Message is one rendered line of the transcript.
type Message struct {
	Sender string
	Text   string
	HTML   template.HTML
	At     time.Time
}

func (m Message) FromUser() bool { return m.Sender == SenderUser }

// ReportRef names the radiograph a conversation is about. The zero value
// means a general conversation.
type ReportRef struct {
	PatientID    string
	RadiographID string
}

func (r ReportRef) IsZero() bool { return r.PatientID == "" || r.RadiographID == "" }

func entry(sender, text string, at time.Time) session.ChatEntry {
	return session.ChatEntry{Sender: sender, Text: text, At: at}
}

// trim keeps the newest MaxTranscript entries.
func trim(t []session.ChatEntry) []session.ChatEntry {
	if len(t) <= MaxTranscript {
		return t
	}
	return append([]session.ChatEntry(nil), t[len(t)-MaxTranscript:]...)
}
