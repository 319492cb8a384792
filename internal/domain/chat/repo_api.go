package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/session"
)

type apiAssistant struct {
	api *apiclient.Client
}

// NewAPIAssistant returns an Assistant backed by the clinic API's chat
// endpoint.
func NewAPIAssistant(api *apiclient.Client) Assistant {
	return &apiAssistant{api: api}
}

func (a *apiAssistant) Reply(ctx context.Context, message string, history []session.ChatEntry, report json.RawMessage) (string, error) {
	req := apiclient.ChatRequest{
		Message: message,
		History: make([]apiclient.ChatMessage, 0, len(history)),
		Report:  report,
	}
	for _, h := range history {
		req.History = append(req.History, apiclient.ChatMessage{Sender: h.Sender, Text: h.Text})
	}
	reply, err := a.api.Chat(ctx, auth.TokenFromContext(ctx), req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}
