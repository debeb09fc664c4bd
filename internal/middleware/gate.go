package middleware

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/store"
	"github.com/monocle-dev/taskhub/internal/types"
	"github.com/monocle-dev/taskhub/internal/utils"
)

type ProjectLookup interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

// ProjectGate authorizes access to routes scoped by :projectId.
type ProjectGate struct {
	roles    store.RoleResolver
	projects ProjectLookup
}

func NewProjectGate(roles store.RoleResolver, projects ProjectLookup) *ProjectGate {
	return &ProjectGate{roles: roles, projects: projects}
}

// Authorize lets global admins through unconditionally. Everyone else needs
// a membership of the routed project whose role is in allowed; the identity
// then carries that project role for the rest of the request.
func (g *ProjectGate) Authorize(allowed ...types.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, err := utils.GetIdentity(ctx)

		if err != nil {
			response.Error(ctx, err)
			return
		}

		projectID, err := utils.GetProjectID(ctx)

		if err != nil {
			response.Error(ctx, err)
			return
		}

		identity.ProjectID = projectID

		if identity.IsGlobalAdmin() {
			ctx.Next()
			return
		}

		reqCtx := ctx.Request.Context()
		role, ok, err := g.roles.GetRole(reqCtx, projectID, identity.UserID)

		if err != nil {
			response.Error(ctx, err)
			return
		}

		if !ok {
			response.Error(ctx, g.missingMembership(reqCtx, projectID))
			return
		}

		if !slices.Contains(allowed, role) {
			response.Error(ctx, apierr.Forbidden("You do not have permission to perform this action"))
			return
		}

		identity.ProjectRole = role
		ctx.Next()
	}
}

// missingMembership distinguishes a project that is gone from one the
// caller is not part of.
func (g *ProjectGate) missingMembership(ctx context.Context, projectID uint) error {
	if g.projects == nil {
		return apierr.Forbidden("You are not a member of this project")
	}

	exists, err := g.projects.Exists(ctx, projectID)

	if err != nil {
		return err
	}

	if !exists {
		return apierr.NotFound("Project not found")
	}

	return apierr.Forbidden("You are not a member of this project")
}

func RequireGlobalAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, err := utils.GetIdentity(ctx)

		if err != nil {
			response.Error(ctx, err)
			return
		}

		if !identity.IsGlobalAdmin() {
			response.Error(ctx, apierr.Forbidden("Admin access required"))
			return
		}

		ctx.Next()
	}
}
