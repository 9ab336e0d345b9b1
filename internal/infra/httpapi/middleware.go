package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/infra/metrics"
)

// DoctorHeader identifies the calling doctor. It is set by the upstream auth layer.
const DoctorHeader = "X-Doctor-ID"

const doctorKey = "doctor_id"

// requestLogger logs every request and records its duration. Errors are rendered
// here so the logged status is the one the client got.
func requestLogger(logger *logrus.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestDuration.WithLabelValues(req.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())

			entry := logger.WithFields(logrus.Fields{
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     status,
				"latency":    time.Since(start).String(),
				"remote_ip":  c.RealIP(),
			})
			if err != nil && status >= http.StatusInternalServerError {
				entry.WithError(err).Error("request")
			} else {
				entry.Info("request")
			}
			return nil
		}
	}
}

// cronAuth accepts "Authorization: Bearer <secret>".
func cronAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, cronResponse{Success: false, Error: "unauthorized"})
			}
			return next(c)
		}
	}
}

// requireDoctor reads the doctor id from the header, or from the doctor_id query
// parameter since browsers cannot set headers on a websocket handshake.
func requireDoctor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Request().Header.Get(DoctorHeader)
		if raw == "" {
			raw = c.QueryParam("doctor_id")
		}
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid "+DoctorHeader)
		}
		c.Set(doctorKey, id)
		return next(c)
	}
}

func doctorID(c echo.Context) uuid.UUID {
	id, _ := c.Get(doctorKey).(uuid.UUID)
	return id
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
