package chat

import (
	"context"
	"encoding/json"

	"github.com/orthovision/portal/internal/platform/session"
)

// Assistant answers a message given the earlier transcript and, optionally,
// the report under discussion.
type Assistant interface {
	Reply(ctx context.Context, message string, history []session.ChatEntry, report json.RawMessage) (string, error)
}

// ReportSource looks up the report a conversation refers to.
type ReportSource interface {
	ReportFor(ctx context.Context, patientID, radiographID string) (json.RawMessage, error)
}
