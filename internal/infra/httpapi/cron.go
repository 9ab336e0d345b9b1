package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type cronResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Results any    `json:"results,omitempty"`
}

const jobFailedMessage = "job failed"

// runJob runs the job synchronously under the request context. Per-item failures
// are reported in the results; only a failure of the run itself is a 500, and its
// cause is logged, not returned.
func runJob(job JobFunc, logger *logrus.Entry) echo.HandlerFunc {
	return func(c echo.Context) error {
		results, err := job(c.Request().Context())
		if err != nil {
			logger.WithError(err).WithField("route", c.Path()).Error("Cron job failed")
			return c.JSON(http.StatusInternalServerError, cronResponse{Success: false, Error: jobFailedMessage, Results: results})
		}
		return c.JSON(http.StatusOK, cronResponse{Success: true, Results: results})
	}
}
