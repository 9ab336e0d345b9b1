package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/patient"
)

type patientHandler struct {
	registry RegistryAPI
	loc      *time.Location
}

func (h *patientHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/patients", h.register)
	g.GET("/patients", h.list)
	g.GET("/patients/:id", h.get)
	g.DELETE("/patients/:id", h.deactivate)
	g.GET("/patients/:id/surgeries", h.listSurgeries)
	g.POST("/patients/:id/surgeries", h.addSurgery)
	g.GET("/patients/:id/followups", h.listFollowUps)
}

type surgeryRequest struct {
	Type  string `json:"type"`
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

type registerPatientRequest struct {
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	BirthDate     string         `json:"birthDate"`
	Comorbidities []string       `json:"comorbidities"`
	Surgery       surgeryRequest `json:"surgery"`
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func (h *patientHandler) parseDate(field, raw string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, raw, h.loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+field+": expected YYYY-MM-DD")
}

func (h *patientHandler) surgeryInput(req surgeryRequest) (app.SurgeryInput, error) {
	in := app.SurgeryInput{Type: req.Type, Notes: req.Notes}
	if req.Date == "" {
		return in, nil
	}
	date, err := h.parseDate("surgery date", req.Date)
	if err != nil {
		return in, err
	}
	in.Date = date
	return in, nil
}

func (h *patientHandler) register(c echo.Context) error {
	var req registerPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	surgery, err := h.surgeryInput(req.Surgery)
	if err != nil {
		return err
	}
	in := app.PatientInput{
		Name:          req.Name,
		Phone:         req.Phone,
		Comorbidities: req.Comorbidities,
		Surgery:       surgery,
	}
	if req.BirthDate != "" {
		bd, err := h.parseDate("birth date", req.BirthDate)
		if err != nil {
			return err
		}
		in.BirthDate = &bd
	}

	reg, err := h.registry.RegisterPatient(c.Request().Context(), doctorID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, h.registrationView(reg))
}

func (h *patientHandler) registrationView(reg *app.Registration) registrationView {
	return registrationView{
		Patient:            toPatientView(reg.Patient),
		Surgery:            toSurgeryView(reg.Surgery, h.loc),
		FollowUpsScheduled: reg.FollowUpsScheduled,
	}
}

func (h *patientHandler) list(c echo.Context) error {
	activeOnly := true
	if raw := c.QueryParam("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid active flag")
		}
		activeOnly = v
	}
	list, err := h.registry.ListPatients(c.Request().Context(), doctorID(c), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lo.Map(list, func(p *patient.Patient, _ int) patientView { return toPatientView(p) }))
}

func (h *patientHandler) get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.registry.GetPatient(c.Request().Context(), doctorID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPatientView(p))
}

func (h *patientHandler) deactivate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.registry.DeactivatePatient(c.Request().Context(), doctorID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPatientView(p))
}

func (h *patientHandler) listSurgeries(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.registry.ListSurgeries(c.Request().Context(), doctorID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lo.Map(list, func(s *patient.Surgery, _ int) surgeryView { return toSurgeryView(s, h.loc) }))
}

func (h *patientHandler) addSurgery(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req surgeryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := h.surgeryInput(req)
	if err != nil {
		return err
	}
	reg, err := h.registry.AddSurgery(c.Request().Context(), doctorID(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, h.registrationView(reg))
}

func (h *patientHandler) listFollowUps(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.registry.ListFollowUps(c.Request().Context(), doctorID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lo.Map(list, func(f *followup.FollowUp, _ int) followUpView { return toFollowUpView(f) }))
}
