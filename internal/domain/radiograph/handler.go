package radiograph

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/domain/dentition"
	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/overlayimg"
	"github.com/orthovision/portal/internal/platform/session"
)

type Handler struct {
	svc       *Service
	sessions  *session.Manager
	maxUpload int64
	logger    zerolog.Logger
}

func NewHandler(svc *Service, sessions *session.Manager, maxUpload int64, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		sessions:  sessions,
		maxUpload: maxUpload,
		logger:    logger.With().Str("component", "radiograph").Logger(),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Clinicians and the patient themself
	read := g.Group("", auth.RequireRole(session.RoleDoctor, session.RolePatient))
	read.GET("/patients/:id/radiographs", h.History)
	read.GET("/patients/:id/radiographs/:rid", h.Details)
	read.GET("/patients/:id/radiographs/:rid/overlay.png", h.OverlayPNG)
	read.GET("/diagram.png", h.Diagram)

	// Clinician pages
	doctors := g.Group("", auth.RequireRole(session.RoleDoctor))
	doctors.GET("/patients/:id/upload", h.UploadForm)
	doctors.POST("/patients/:id/radiographs", h.Upload)
}

type HistoryPage struct {
	PatientID   string
	Radiographs []*Radiograph
	CanUpload   bool
}

type UploadPage struct {
	PatientID string
	Error     string
	Formats   []string
	MaxSize   string
}

// FlaggedTooth is one row of the findings summary.
type FlaggedTooth struct {
	ID        dentition.ToothID
	Label     string
	Anomalies []string
	Link      string
}

type DetailsPage struct {
	PatientID  string
	Radiograph *Radiograph
	Overlay    template.HTML
	Detail     *dentition.Detail
	Flagged    []FlaggedTooth
	OverlayPNG string
	SaveURL    string
	ChatURL    string
}

func patientPath(patientID string) string {
	return "/patients/" + url.PathEscape(patientID)
}

func detailsPath(patientID, id string) string {
	return patientPath(patientID) + "/radiographs/" + url.PathEscape(id)
}

func (h *Handler) authorize(c echo.Context) (string, error) {
	pid := c.Param("id")
	if !auth.CanViewPatient(c.Request().Context(), pid) {
		return "", echo.NewHTTPError(http.StatusForbidden, "you can only view your own radiographs")
	}
	return pid, nil
}

func (h *Handler) History(c echo.Context) error {
	pid, err := h.authorize(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	list, err := h.svc.History(ctx, pid)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "radiographs/history", HistoryPage{
		PatientID:   pid,
		Radiographs: list,
		CanUpload:   auth.HasRole(ctx, session.RoleDoctor),
	})
}

func (h *Handler) lookup(c echo.Context) (string, *Radiograph, error) {
	pid, err := h.authorize(c)
	if err != nil {
		return "", nil, err
	}
	rec, err := h.svc.Get(c.Request().Context(), pid, c.Param("rid"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, echo.NewHTTPError(http.StatusNotFound, "radiograph not found")
		}
		return "", nil, err
	}
	return pid, rec, nil
}

// Details shows the annotated image and the tooth overlay. The selected
// tooth lives in the session and follows the overlay's links.
func (h *Handler) Details(c echo.Context) error {
	pid, rec, err := h.lookup(c)
	if err != nil {
		return err
	}

	s := session.From(c)
	st := restoreOverlay(rec, &s.Overlay)
	st.apply(c.QueryParams())
	if st.dirty {
		if err := h.sessions.Save(c); err != nil {
			return err
		}
	}

	base := detailsPath(pid, rec.ID)
	view := st.View()
	fragment, err := dentition.HTML(view, dentition.RenderOptions{
		ImageURL:  "/diagram.png",
		SelectURL: func(id dentition.ToothID) string { return base + "?tooth=" + id.String() },
		CloseURL:  base + "?close=1",
	})
	if err != nil {
		return fmt.Errorf("render overlay: %w", err)
	}

	var flagged []FlaggedTooth
	for _, id := range view.Flagged() {
		region, _ := dentition.RegionFor(id)
		flagged = append(flagged, FlaggedTooth{
			ID:        id,
			Label:     region.Label,
			Anomalies: rec.Report.Anomalies(id),
			Link:      base + "?tooth=" + id.String(),
		})
	}

	png := base + "/overlay.png"
	if id, ok := st.Selection().Tooth(); ok {
		png += "?tooth=" + id.String()
	}

	return c.Render(http.StatusOK, "radiographs/details", DetailsPage{
		PatientID:  pid,
		Radiograph: rec,
		Overlay:    fragment,
		Detail:     view.Detail,
		Flagged:    flagged,
		OverlayPNG: png,
		SaveURL:    h.svc.DownloadURL(rec),
		ChatURL:    "/chat?" + url.Values{"patient": {pid}, "radiograph": {rec.ID}}.Encode(),
	})
}

// OverlayPNG rasterizes the overlay. Query: width (pixels), tooth (selected
// tooth), base=radiograph to draw over the annotated X-ray, labels=0 to hide
// tooth numbers.
func (h *Handler) OverlayPNG(c echo.Context) error {
	_, rec, err := h.lookup(c)
	if err != nil {
		return err
	}

	var opts []dentition.Option
	if id, ok := dentition.ParseToothID(c.QueryParam("tooth")); ok {
		opts = append(opts, dentition.WithSelected(id))
	}
	view := dentition.NewOverlay(rec.Report, opts...).View()

	width, _ := strconv.Atoi(c.QueryParam("width"))
	ro := overlayimg.Options{Width: width, Labels: c.QueryParam("labels") != "0"}
	if c.QueryParam("base") == "radiograph" {
		img, err := h.svc.BaseImage(c.Request().Context(), rec)
		if err != nil {
			h.logger.Warn().Err(err).Str("radiograph_id", rec.ID).Msg("load base image")
		}
		ro.Base = img
	}

	var buf bytes.Buffer
	if err := overlayimg.EncodePNG(&buf, overlayimg.Render(view, ro)); err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	c.Response().Header().Set("Cache-Control", "private, no-cache")
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// Diagram serves the plain tooth diagram the HTML overlay is drawn on.
func (h *Handler) Diagram(c echo.Context) error {
	width, _ := strconv.Atoi(c.QueryParam("width"))
	var buf bytes.Buffer
	if err := overlayimg.EncodePNG(&buf, overlayimg.Diagram(overlayimg.ClampWidth(width))); err != nil {
		return fmt.Errorf("encode diagram: %w", err)
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) uploadPage(pid, msg string) UploadPage {
	return UploadPage{
		PatientID: pid,
		Error:     msg,
		Formats:   overlayimg.Formats,
		MaxSize:   humanBytes(h.maxUpload),
	}
}

func (h *Handler) UploadForm(c echo.Context) error {
	return c.Render(http.StatusOK, "radiographs/upload", h.uploadPage(c.Param("id"), ""))
}

// Upload runs the analysis on the submitted X-ray and opens the new report.
func (h *Handler) Upload(c echo.Context) error {
	pid := c.Param("id")
	ctx := c.Request().Context()

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Render(http.StatusUnprocessableEntity, "radiographs/upload", h.uploadPage(pid, "Choose an X-ray image to upload."))
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		return c.Render(http.StatusRequestEntityTooLarge, "radiographs/upload",
			h.uploadPage(pid, "The image is larger than "+humanBytes(h.maxUpload)+"."))
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	rec, err := h.svc.Analyze(ctx, Upload{
		PatientID:   pid,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
		UploadedBy:  auth.UserIDFromContext(ctx),
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyUpload), errors.Is(err, ErrInvalidImage):
		return c.Render(http.StatusUnprocessableEntity, "radiographs/upload", h.uploadPage(pid, err.Error()))
	case apiclient.IsUnauthorized(err):
		return err
	default:
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) {
			h.logger.Error().Err(err).Str("patient_id", pid).Msg("analysis failed")
			return c.Render(http.StatusBadGateway, "radiographs/upload",
				h.uploadPage(pid, "The analysis service could not process this image. Please try again."))
		}
		return err
	}

	msg := "Analysis complete: no anomalies detected."
	if n := rec.Findings(); n > 0 {
		msg = fmt.Sprintf("Analysis complete: %d findings on %d teeth.", n, len(rec.Affected()))
	}
	if err := h.sessions.Flash(c, "info", msg); err != nil {
		return err
	}
	if rec.ID == "" {
		return c.Redirect(http.StatusSeeOther, patientPath(pid)+"/radiographs")
	}
	return c.Redirect(http.StatusSeeOther, detailsPath(pid, rec.ID))
}

func humanBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return strconv.FormatInt(n/mb, 10) + " MB"
	}
	return strconv.FormatInt(n/1024, 10) + " KB"
}
