package patient

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/session"
	"github.com/orthovision/portal/pkg/pagination"
)

type Handler struct {
	svc      *Service
	sessions *session.Manager
}

func NewHandler(svc *Service, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Clinician pages
	doctors := g.Group("", auth.RequireRole(session.RoleDoctor))
	doctors.GET("/patients", h.ListPatients)
	doctors.GET("/patients/new", h.NewPatientForm)
	doctors.POST("/patients", h.CreatePatient)
	doctors.GET("/patients/:id/edit", h.EditPatientForm)
	doctors.POST("/patients/:id/edit", h.UpdatePatient)
	doctors.POST("/patients/:id/delete", h.DeletePatient)

	// Clinicians and the patient themself
	read := g.Group("", auth.RequireRole(session.RoleDoctor, session.RolePatient))
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/overview", h.Overview)
}

// ListPage is the data of the patients list page.
type ListPage struct {
	Patients []*Patient
	Query    string
	Total    int
	Offset   int
	Links    pagination.Links
}

// DetailPage is the data of a patient details page.
type DetailPage struct {
	Patient *Patient
	Age     int
	HasAge  bool
	CanEdit bool
}

// FormPage is the data of the add and edit forms.
type FormPage struct {
	Patient *Patient
	Errors  map[string]string
	Action  string
	Editing bool
	Genders []string
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	query := c.QueryParam("q")
	ctx := c.Request().Context()

	patients, total, err := h.svc.ListPatients(ctx, auth.UserIDFromContext(ctx), query, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "patients/list", ListPage{
		Patients: patients,
		Query:    query,
		Total:    total,
		Offset:   pg.Offset,
		Links:    pg.PageLinks("/patients", total, url.Values{"q": {query}}),
	})
}

func (h *Handler) GetPatient(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()
	if !auth.CanViewPatient(ctx, id) {
		return echo.NewHTTPError(http.StatusForbidden, "you can only view your own record")
	}

	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return err
	}
	age, hasAge := p.Age(time.Now())
	return c.Render(http.StatusOK, "patients/detail", DetailPage{
		Patient: p,
		Age:     age,
		HasAge:  hasAge,
		CanEdit: auth.HasRole(ctx, session.RoleDoctor),
	})
}

// Overview sends a signed-in patient to their own record and a clinician to
// the patient list.
func (h *Handler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	if auth.HasRole(ctx, session.RoleDoctor) {
		return c.Redirect(http.StatusSeeOther, "/patients")
	}
	pid := auth.PatientIDFromContext(ctx)
	if pid == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no patient record is linked to this account")
	}
	return c.Redirect(http.StatusSeeOther, "/patients/"+url.PathEscape(pid))
}

func (h *Handler) NewPatientForm(c echo.Context) error {
	return c.Render(http.StatusOK, "patients/form", FormPage{
		Patient: &Patient{},
		Action:  "/patients",
		Genders: Genders,
	})
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p.UserID = auth.UserIDFromContext(ctx)

	if err := h.svc.CreatePatient(ctx, &p); err != nil {
		return h.formError(c, &p, "/patients", false, err)
	}
	if err := h.sessions.Flash(c, "info", "Patient "+p.FullName()+" added."); err != nil {
		return err
	}
	if p.ID == "" {
		return c.Redirect(http.StatusSeeOther, "/patients")
	}
	return c.Redirect(http.StatusSeeOther, "/patients/"+url.PathEscape(p.ID))
}

func (h *Handler) EditPatientForm(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return err
	}
	return c.Render(http.StatusOK, "patients/form", FormPage{
		Patient: p,
		Action:  "/patients/" + url.PathEscape(p.ID) + "/edit",
		Editing: true,
		Genders: Genders,
	})
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p.ID = c.Param("id")
	p.UserID = auth.UserIDFromContext(ctx)

	if err := h.svc.UpdatePatient(ctx, &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return h.formError(c, &p, "/patients/"+url.PathEscape(p.ID)+"/edit", true, err)
	}
	if err := h.sessions.Flash(c, "info", "Patient details saved."); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/patients/"+url.PathEscape(p.ID))
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.DeletePatient(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return err
	}
	if err := h.sessions.Flash(c, "info", "Patient deleted."); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/patients")
}

// formError re-renders the form with field messages for validation
// failures; any other error propagates.
func (h *Handler) formError(c echo.Context, p *Patient, action string, editing bool, err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	return c.Render(http.StatusUnprocessableEntity, "patients/form", FormPage{
		Patient: p,
		Errors:  verr.Fields,
		Action:  action,
		Editing: editing,
		Genders: Genders,
	})
}
