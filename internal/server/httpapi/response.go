package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/vidauth/internal/common"
)

// envelope is the JSON body of every /users response.
type envelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Data       any      `json:"data"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{
		StatusCode: status,
		Message:    message,
		Data:       data,
		Success:    status < http.StatusBadRequest,
	})
}

var errorKinds = []struct {
	kind   error
	status int
}{
	{common.ErrValidation, http.StatusBadRequest},
	{common.ErrConflict, http.StatusConflict},
	{common.ErrNotFound, http.StatusNotFound},
	{common.ErrUnauthorized, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrUnavailable, http.StatusServiceUnavailable},
}

// statusFor maps an error kind to its HTTP status and the client-facing
// message. Unknown errors become an opaque 500.
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			if k.status == http.StatusServiceUnavailable {
				return k.status, "service temporarily unavailable"
			}
			return k.status, clientMessage(err, k.kind)
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func clientMessage(err, kind error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, kind.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}

// fail writes the error envelope and aborts the chain.
func fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, envelope{
		StatusCode: status,
		Message:    msg,
		Data:       nil,
		Success:    false,
		Errors:     []string{msg},
	})
}

// asUnauthorized hides account existence on login and refresh.
func asUnauthorized(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: invalid user credentials", common.ErrUnauthorized)
	}
	return err
}
