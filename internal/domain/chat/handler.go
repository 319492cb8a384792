package chat

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/session"
)

type Handler struct {
	svc      *Service
	sessions *session.Manager
}

func NewHandler(svc *Service, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	chat := g.Group("/chat", auth.RequireRole(session.RoleDoctor, session.RolePatient))
	chat.GET("", h.Show)
	chat.POST("", h.Send)
	chat.POST("/clear", h.Clear)
}

type Page struct {
	Messages  []Message
	Ref       ReportRef
	Back      string
	Action    string
	ClearURL  string
	MaxLength int
}

func refFrom(patientID, radiographID string) ReportRef {
	return ReportRef{PatientID: patientID, RadiographID: radiographID}
}

func (r ReportRef) query() string {
	if r.IsZero() {
		return ""
	}
	return "?" + url.Values{"patient": {r.PatientID}, "radiograph": {r.RadiographID}}.Encode()
}

// chatPath is the chat page for ref.
func chatPath(ref ReportRef) string { return "/chat" + ref.query() }

func (h *Handler) authorize(c echo.Context, ref ReportRef) error {
	if !ref.IsZero() && !auth.CanViewPatient(c.Request().Context(), ref.PatientID) {
		return echo.NewHTTPError(http.StatusForbidden, "you can only discuss your own reports")
	}
	return nil
}

// Show renders the transcript. With patient and radiograph in the query the
// conversation is about that report.
func (h *Handler) Show(c echo.Context) error {
	ref := refFrom(c.QueryParam("patient"), c.QueryParam("radiograph"))
	if err := h.authorize(c, ref); err != nil {
		return err
	}
	page := Page{
		Messages:  h.svc.Transcript(session.From(c).Chat),
		Ref:       ref,
		Action:    chatPath(ref),
		ClearURL:  "/chat/clear" + ref.query(),
		MaxLength: MaxMessageLength,
	}
	if !ref.IsZero() {
		page.Back = "/patients/" + url.PathEscape(ref.PatientID) + "/radiographs/" + url.PathEscape(ref.RadiographID)
	}
	return c.Render(http.StatusOK, "chat", page)
}

func (h *Handler) Send(c echo.Context) error {
	ref := refFrom(c.FormValue("patient"), c.FormValue("radiograph"))
	if err := h.authorize(c, ref); err != nil {
		return err
	}

	s := session.From(c)
	transcript, err := h.svc.Send(c.Request().Context(), s.Chat, c.FormValue("message"), ref)
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return c.Redirect(http.StatusSeeOther, chatPath(ref))
	case errors.Is(err, ErrMessageTooLong):
		if err := h.sessions.Flash(c, "error", "Your message is too long."); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, chatPath(ref))
	case apiclient.IsUnauthorized(err):
		return err
	}

	s.Chat = transcript
	if err != nil {
		s.AddFlash("error", "The assistant could not answer right now. Please try again.")
	}
	if err := h.sessions.Save(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, chatPath(ref)+"#latest")
}

func (h *Handler) Clear(c echo.Context) error {
	ref := refFrom(c.QueryParam("patient"), c.QueryParam("radiograph"))
	session.From(c).Chat = nil
	if err := h.sessions.Save(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, chatPath(ref))
}
