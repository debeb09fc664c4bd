package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/types"
	"github.com/monocle-dev/taskhub/internal/utils"
	"github.com/monocle-dev/taskhub/internal/validation"
)

func (h *Handler) CreateProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.ProjectDetails](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	created, err := h.Projects.CreateProject(ctx.Request.Context(), userID, body.Name, body.Description)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.Created(ctx, projectView(created.Project, created.Membership.Role, 1), "Project created successfully")
}

func (h *Handler) ListProjects(ctx *gin.Context) {
	identity, err := utils.GetIdentity(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	rows, err := h.Projects.ListProjects(ctx.Request.Context(), identity)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, projectRowsView(rows), "Projects fetched successfully")
}

func (h *Handler) GetProject(ctx *gin.Context) {
	identity, err := utils.GetIdentity(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	project, count, err := h.Projects.GetProject(ctx.Request.Context(), identity.ProjectID)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, projectView(project, identity.Role(), count), "Project fetched successfully")
}

func (h *Handler) UpdateProject(ctx *gin.Context) {
	identity, err := utils.GetIdentity(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.ProjectDetails](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	project, err := h.Projects.UpdateProject(ctx.Request.Context(), identity.ProjectID, body.Name, body.Description)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, projectView(project, identity.Role(), 0), "Project updated successfully")
}

func (h *Handler) DeleteProject(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Projects.DeleteProject(ctx.Request.Context(), projectID); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{"id": projectID}, "Project deleted successfully")
}

func (h *Handler) ListMembers(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	rows, err := h.Projects.ListMembers(ctx.Request.Context(), projectID)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, membersView(rows), "Project members fetched")
}

func (h *Handler) AddMember(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.AddMember](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	membership, err := h.Projects.AddMember(ctx.Request.Context(), projectID, body.Email, types.Role(body.Role))

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.Created(ctx, membership, "Project member added successfully")
}

func (h *Handler) UpdateMemberRole(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	userID, err := utils.ParseID(ctx, utils.UserIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	role, err := h.Projects.ToggleMemberRole(ctx.Request.Context(), projectID, userID)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{"projectId": projectID, "userId": userID, "role": role}, "Project member role updated successfully")
}

func (h *Handler) RemoveMember(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	userID, err := utils.ParseID(ctx, utils.UserIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Projects.RemoveMember(ctx.Request.Context(), projectID, userID); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{"projectId": projectID, "userId": userID}, "Project member deleted successfully")
}
