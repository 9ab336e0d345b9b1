package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type doctorHandler struct {
	doctors DoctorAPI
}

func (h *doctorHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/doctors", h.create)
	g.GET("/doctors/:id", h.get)
	g.PUT("/doctors/:id/telegram", h.linkTelegram)
	g.DELETE("/doctors/:id", h.deactivate)
}

type createDoctorRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
}

func (h *doctorHandler) create(c echo.Context) error {
	var req createDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.doctors.AddDoctor(c.Request().Context(), req.FullName, req.Email, req.WhatsApp)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toDoctorView(d))
}

func (h *doctorHandler) get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.doctors.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDoctorView(d))
}

type linkTelegramRequest struct {
	ChatID int64 `json:"chatId"`
}

func (h *doctorHandler) linkTelegram(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req linkTelegramRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.doctors.LinkTelegram(c.Request().Context(), id, req.ChatID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDoctorView(d))
}

func (h *doctorHandler) deactivate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.doctors.DeactivateDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDoctorView(d))
}
