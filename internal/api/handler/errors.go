package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wallfeed/internal/cache"
	"github.com/timmy/wallfeed/internal/service"
	"github.com/timmy/wallfeed/internal/settings"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownCollection), errors.Is(err, settings.ErrInvalidSetting):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, service.ErrDisposed):
		return http.StatusServiceUnavailable
	case errors.Is(err, cache.ErrNotImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cache.ErrDownload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, prefix string, err error) {
	c.JSON(statusFor(err), gin.H{"error": prefix + err.Error()})
}
