package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type followUpHandler struct {
	registry RegistryAPI
	analyzer AnalyzerAPI
}

func (h *followUpHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/followups/:id", h.get)
	g.POST("/followups/:id/analyze", h.analyze)
}

func (h *followUpHandler) get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.registry.GetFollowUp(c.Request().Context(), doctorID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toFollowUpDetailView(detail))
}

// analyze runs the analyzer on demand. It recovers responses whose background
// analysis was dropped and, with force=true, re-analyzes an analyzed one.
func (h *followUpHandler) analyze(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	detail, err := h.registry.GetFollowUp(ctx, doctorID(c), id)
	if err != nil {
		return err
	}
	if detail.Response == nil {
		return echo.NewHTTPError(http.StatusConflict, "follow-up has no response yet")
	}
	analysis, err := h.analyzer.Analyze(ctx, id, c.QueryParam("force") == "true")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAnalysisView(analysis))
}
