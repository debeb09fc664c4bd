package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/events"
	"github.com/monocle-dev/taskhub/internal/services"
	"github.com/monocle-dev/taskhub/internal/validation"
)

const RefreshTokenCookie = "refreshToken"

type Config struct {
	DB       *gorm.DB
	Accounts *services.AccountService
	Projects *services.ProjectService
	Tasks    *services.TaskService
	Hub      *events.Hub

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// CookieDomain is left empty to scope cookies to the serving host.
	CookieDomain string
}

type Handler struct {
	Config
}

func New(cfg Config) *Handler {
	return &Handler{Config: cfg}
}

// bindJSON decodes the body into T and runs the validation rules on it.
func bindJSON[T any](ctx *gin.Context) (T, error) {
	var body T

	if err := ctx.ShouldBindJSON(&body); err != nil {
		return body, apierr.BadRequest("Invalid request body")
	}

	result := validation.Validate(body)
	return result.Data, result.Err()
}

// bind is bindJSON for routes that also accept multipart forms.
func bind[T any](ctx *gin.Context) (T, error) {
	var body T

	if err := ctx.ShouldBind(&body); err != nil {
		return body, apierr.BadRequest("Invalid request body")
	}

	result := validation.Validate(body)
	return result.Data, result.Err()
}

func (h *Handler) setCookie(ctx *gin.Context, name, value string, maxAge time.Duration) {
	age := int(maxAge.Seconds())
	if value == "" {
		age = -1
	}

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   age,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
