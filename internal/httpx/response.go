package httpx

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

const HeaderUserID = "X-User-ID"

// ErrorResponse is the body of every failed JSON request.
// swagger:model ErrorResponse
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message" example:"address_id is required"`
}

// WriteError answers with the status and code mapped from err. Internal
// errors are logged and their text is not sent to the client.
func WriteError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= 500 && !errors.Is(err, apperr.ErrGateway) {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: apperr.Code(err), Message: msg})
}

// UserID returns the authenticated caller. Authentication happens in front
// of this service, which forwards the user in X-User-ID.
func UserID(c *gin.Context) (string, error) {
	uid := c.GetHeader(HeaderUserID)
	if uid == "" {
		return "", fmt.Errorf("%w: missing %s header", apperr.ErrValidation, HeaderUserID)
	}
	return uid, nil
}
