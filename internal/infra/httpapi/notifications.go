package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"postop_followup/internal/domain/notification"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type notificationHandler struct {
	notifications NotificationAPI
	stream        StreamServer
}

func (h *notificationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.list)
	g.POST("/notifications/:id/read", h.markRead)
	if h.stream != nil {
		g.GET("/notifications/stream", h.streamUpdates)
	}
}

func (h *notificationHandler) list(c echo.Context) error {
	limit := defaultNotificationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = min(n, maxNotificationLimit)
	}
	unreadOnly := c.QueryParam("unread") == "true"

	list, err := h.notifications.List(c.Request().Context(), doctorID(c), unreadOnly, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lo.Map(list, func(n *notification.Notification, _ int) notification.Payload { return n.ToPayload() }))
}

func (h *notificationHandler) markRead(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.notifications.MarkRead(c.Request().Context(), id, doctorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n.ToPayload())
}

func (h *notificationHandler) streamUpdates(c echo.Context) error {
	return h.stream.Serve(c.Response(), c.Request(), doctorID(c).String())
}
