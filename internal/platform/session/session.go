// Package session keeps per-browser portal state on the server: the clinic
// API token and identity of the signed-in user, the chat transcript, the
// tooth selected in the report overlay, and one-shot flash messages. The
// browser only holds an opaque cookie with the session id.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Roles the clinic API assigns.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// ChatEntry is one line of the assistant transcript.
type ChatEntry struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// OverlaySelection remembers the selected tooth for the report being viewed.
// Tooth 0 means nothing is selected.
type OverlaySelection struct {
	ReportID string `json:"report_id"`
	Tooth    int    `json:"tooth"`
}

type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Session struct {
	ID        string           `json:"id"`
	Token     string           `json:"token,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	Role      string           `json:"role,omitempty"`
	PatientID string           `json:"patient_id,omitempty"`
	FullName  string           `json:"full_name,omitempty"`
	Chat      []ChatEntry      `json:"chat,omitempty"`
	Overlay   OverlaySelection `json:"overlay"`
	Flashes   []Flash          `json:"flashes,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// SignIn records the identity returned by the clinic API.
func (s *Session) SignIn(token, userID, role, patientID string) {
	s.Token = token
	s.UserID = userID
	s.Role = role
	s.PatientID = patientID
}

// Clear forgets everything the user did in this session, including the chat
// transcript and overlay selection.
func (s *Session) Clear() {
	id, created := s.ID, s.CreatedAt
	*s = Session{ID: id, CreatedAt: created}
}

func (s *Session) IsDoctor() bool  { return s.Role == RoleDoctor }
func (s *Session) IsPatient() bool { return s.Role == RolePatient }

func (s *Session) AddFlash(kind, message string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Message: message})
}

// PopFlashes returns and removes all pending flash messages.
func (s *Session) PopFlashes() []Flash {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy safe to hand across goroutines.
func (s *Session) Clone() *Session {
	out := *s
	if s.Chat != nil {
		out.Chat = append([]ChatEntry(nil), s.Chat...)
	}
	if s.Flashes != nil {
		out.Flashes = append([]Flash(nil), s.Flashes...)
	}
	return &out
}

// Store persists sessions by id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Purge removes sessions that expired before now and returns the count.
	Purge(ctx context.Context, now time.Time) (int, error)
}
