// Package handlers provides the HTTP handlers of the widget backend.
package handlers

import (
	"errors"
	"net/http"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto response codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrWidgetNotFound),
		errors.Is(err, services.ErrThreadNotFound),
		errors.Is(err, services.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidHash),
		errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, services.ErrSessionRequired),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrEmptyMessage),
		widgeterr.IsConfiguration(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}
