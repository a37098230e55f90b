package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"betledger/internal/service"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// ServiceError maps the core's rejection kinds to HTTP statuses; anything
// unrecognized is a 500.
func ServiceError(c *gin.Context, err error) {
	var (
		validation   *service.ValidationError
		notFound     *service.NotFoundError
		authz        *service.AuthorizationError
		invalidState *service.InvalidStateError
	)
	switch {
	case errors.As(err, &validation):
		Error(c, http.StatusBadRequest, validation.Reason, nil)
	case errors.As(err, &notFound):
		Error(c, http.StatusNotFound, notFound.Reason, nil)
	case errors.As(err, &authz):
		Error(c, http.StatusForbidden, authz.Reason, nil)
	case errors.As(err, &invalidState):
		Error(c, http.StatusConflict, invalidState.Reason, nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
