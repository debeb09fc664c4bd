package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/utils"
	"github.com/monocle-dev/taskhub/internal/validation"
)

func (h *Handler) ListNotes(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	notes, err := h.Tasks.ListNotes(ctx.Request.Context(), projectID)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, notes, "Notes fetched successfully")
}

func (h *Handler) GetNote(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	noteID, err := utils.ParseID(ctx, utils.NoteIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	note, err := h.Tasks.GetNote(ctx.Request.Context(), projectID, noteID)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, note, "Note fetched successfully")
}

func (h *Handler) CreateNote(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.NoteDetails](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	note, err := h.Tasks.CreateNote(ctx.Request.Context(), projectID, userID, body.Title, body.Content)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.Created(ctx, note, "Note created successfully")
}

func (h *Handler) UpdateNote(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	noteID, err := utils.ParseID(ctx, utils.NoteIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.NoteDetails](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	note, err := h.Tasks.UpdateNote(ctx.Request.Context(), projectID, noteID, body.Title, body.Content)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, note, "Note updated successfully")
}

func (h *Handler) DeleteNote(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	noteID, err := utils.ParseID(ctx, utils.NoteIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Tasks.DeleteNote(ctx.Request.Context(), projectID, noteID); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{"id": noteID}, "Note deleted successfully")
}
