package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/interface/middleware"
	"github.com/oksasatya/account-service/pkg/response"
)

// statusOf maps domain errors to HTTP statuses. ErrInvalidState wraps
// ErrDomainRule and lands on 422 with it.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "email already in use"
	case errors.Is(err, errs.ErrConcurrencyConflict):
		return http.StatusConflict, "account was modified concurrently, retry"
	case errors.Is(err, errs.ErrDomainRule):
		return http.StatusUnprocessableEntity, "operation not allowed in the account's current state"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errs.ErrInvalidToken):
		return http.StatusBadRequest, "invalid or expired token"
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	status, msg := statusOf(err)
	var detail any
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	if logger != nil {
		entry := logger.WithError(err).WithFields(logrus.Fields{
			"status":     status,
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		})
		switch {
		case status == http.StatusInternalServerError:
			entry.Error("request failed")
		case status == http.StatusForbidden:
			entry.WithField("requester_id", c.GetString(middleware.CtxAccountIDKey)).Warn("request forbidden")
		default:
			entry.Debug("request rejected")
		}
	}
	response.Error[any](c, status, msg, detail)
}
