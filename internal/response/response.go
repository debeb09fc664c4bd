package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/monocle-dev/taskhub/internal/apierr"
)

// Envelope is the body of every API response.
type Envelope struct {
	StatusCode int                 `json:"statusCode"`
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       any                 `json:"data,omitempty"`
	Errors     []apierr.FieldError `json:"errors,omitempty"`
	Stack      string              `json:"stack,omitempty"`
}

var exposeStack = true

// SetProduction hides stack traces from error responses.
func SetProduction(production bool) {
	exposeStack = !production
}

func JSON(ctx *gin.Context, status int, data any, message string) {
	ctx.JSON(status, Envelope{
		StatusCode: status,
		Success:    status < http.StatusBadRequest,
		Message:    message,
		Data:       data,
	})
}

func OK(ctx *gin.Context, data any, message string) {
	JSON(ctx, http.StatusOK, data, message)
}

func Created(ctx *gin.Context, data any, message string) {
	JSON(ctx, http.StatusCreated, data, message)
}

// Error writes err as an envelope and aborts the handler chain.
func Error(ctx *gin.Context, err error) {
	apiErr := apierr.From(err)
	status := apiErr.Status()

	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":  ctx.FullPath(),
			"error": apiErr.Error(),
		}).Error("request failed")
	}

	body := Envelope{
		StatusCode: status,
		Success:    false,
		Message:    apiErr.Message,
		Errors:     apiErr.Fields,
	}
	if exposeStack {
		body.Stack = apiErr.Stack
	}

	ctx.AbortWithStatusJSON(status, body)
}

// Recovery converts panics into Internal envelopes.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(ctx *gin.Context, recovered any) {
		log.WithField("panic", recovered).Error("recovered from panic")
		Error(ctx, apierr.Internal("Internal server error", nil))
	})
}
