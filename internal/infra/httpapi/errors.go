package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/app"
	"postop_followup/internal/domain/doctor"
	"postop_followup/internal/domain/followup"
	"postop_followup/internal/domain/notification"
	"postop_followup/internal/domain/patient"
)

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps service errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, patient.ErrNotFound),
		errors.Is(err, patient.ErrSurgeryNotFound),
		errors.Is(err, doctor.ErrNotFound),
		errors.Is(err, followup.ErrNotFound),
		errors.Is(err, followup.ErrResponseNotFound),
		errors.Is(err, notification.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrDoctorAlreadyExists),
		errors.Is(err, app.ErrDoctorAlreadyInactive),
		errors.Is(err, app.ErrPatientAlreadyInactive):
		return http.StatusConflict
	case errors.Is(err, app.ErrExportDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(logger *logrus.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := http.StatusInternalServerError, "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		} else if status = statusFor(err); status != http.StatusInternalServerError {
			msg = err.Error()
		} else {
			logger.WithError(err).WithField("path", c.Request().URL.Path).Error("Unhandled request error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, errorBody{Error: msg})
		}
		if err != nil {
			logger.WithError(err).Warn("Failed to write error response")
		}
	}
}
