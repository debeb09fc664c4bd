package utils

import (
	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/types"
)

func SetIdentity(ctx *gin.Context, identity *types.EffectiveIdentity) {
	ctx.Set(types.ContextIdentityKey, identity)
}

// GetIdentity returns the caller attached by the authentication middleware.
func GetIdentity(ctx *gin.Context) (*types.EffectiveIdentity, error) {
	value, exists := ctx.Get(types.ContextIdentityKey)

	if !exists {
		return nil, apierr.Unauthorized("User not authenticated")
	}

	identity, ok := value.(*types.EffectiveIdentity)

	if !ok || identity == nil {
		return nil, apierr.Internal("Invalid identity type in context", nil)
	}

	return identity, nil
}

func GetCurrentUserID(ctx *gin.Context) (uint, error) {
	identity, err := GetIdentity(ctx)

	if err != nil {
		return 0, err
	}

	return identity.UserID, nil
}
