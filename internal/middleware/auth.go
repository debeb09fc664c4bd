package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/auth"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/types"
	"github.com/monocle-dev/taskhub/internal/utils"
)

const AccessTokenCookie = "accessToken"

type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// Authenticator turns an access token into the request's EffectiveIdentity.
type Authenticator struct {
	tokens *auth.TokenService
	users  UserFinder
}

func NewAuthenticator(tokens *auth.TokenService, users UserFinder) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// bearerToken prefers the access cookie and falls back to the
// Authorization header.
func bearerToken(ctx *gin.Context) (string, error) {
	if cookie, err := ctx.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, nil
	}

	authHeader := ctx.GetHeader("Authorization")

	if authHeader == "" {
		return "", apierr.Unauthorized("Unauthorized request")
	}

	parts := strings.SplitN(authHeader, " ", 2)

	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apierr.Unauthorized("Authorization header format must be Bearer {token}")
	}

	return parts[1], nil
}

func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := bearerToken(ctx)

		if err != nil {
			response.Error(ctx, err)
			return
		}

		claims, err := a.tokens.VerifyAccessToken(tokenString)

		if err != nil {
			response.Error(ctx, apierr.Unauthorized("Invalid access token"))
			return
		}

		user, err := a.users.FindByID(ctx.Request.Context(), claims.UserID)

		if err != nil {
			if apierr.Is(err, apierr.KindNotFound) {
				response.Error(ctx, apierr.Unauthorized("Invalid access token"))
				return
			}
			response.Error(ctx, err)
			return
		}

		utils.SetIdentity(ctx, &types.EffectiveIdentity{
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
			Global:   user.Role,
		})
		ctx.Next()
	}
}
