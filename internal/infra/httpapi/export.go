package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type exportHandler struct {
	export ExportAPI
}

func (h *exportHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/export/research", h.research)
}

func (h *exportHandler) research(c echo.Context) error {
	res, err := h.export.ExportResearch(c.Request().Context(), doctorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}
