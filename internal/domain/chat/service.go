package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/session"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = fmt.Errorf("message is longer than %d characters", MaxMessageLength)
)

type Service struct {
	assistant Assistant
	reports   ReportSource
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(assistant Assistant, reports ReportSource, logger zerolog.Logger) *Service {
	return &Service{
		assistant: assistant,
		reports:   reports,
		logger:    logger.With().Str("component", "chat").Logger(),
		now:       time.Now,
	}
}

// Send adds text to the transcript and asks the assistant for a reply. The
// returned transcript always holds the user's message; when the assistant
// fails it is returned together with the error and without a reply.
func (s *Service) Send(ctx context.Context, transcript []session.ChatEntry, text string, ref ReportRef) ([]session.ChatEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return transcript, ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return transcript, ErrMessageTooLong
	}

	history := transcript
	out := append(append([]session.ChatEntry(nil), transcript...), entry(SenderUser, text, s.now()))

	report, err := s.report(ctx, ref)
	if err != nil {
		return trim(out), err
	}

	reply, err := s.assistant.Reply(ctx, text, history, report)
	if err != nil {
		s.logger.Error().Err(err).Int("history", len(history)).Msg("assistant reply failed")
		return trim(out), err
	}
	out = append(out, entry(SenderAI, reply, s.now()))
	return trim(out), nil
}

// report loads the report under discussion. A report that cannot be found
// leaves the conversation general.
func (s *Service) report(ctx context.Context, ref ReportRef) (json.RawMessage, error) {
	if ref.IsZero() || s.reports == nil {
		return nil, nil
	}
	raw, err := s.reports.ReportFor(ctx, ref.PatientID, ref.RadiographID)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return nil, err
		}
		s.logger.Warn().Err(err).
			Str("patient_id", ref.PatientID).
			Str("radiograph_id", ref.RadiographID).
			Msg("report for chat unavailable")
		return nil, nil
	}
	return raw, nil
}

// Transcript renders stored entries for display.
func (s *Service) Transcript(entries []session.ChatEntry) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, Message{
			Sender: e.Sender,
			Text:   e.Text,
			HTML:   Markdown(e.Text),
			At:     e.At,
		})
	}
	return out
}
