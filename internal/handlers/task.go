package handlers

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/attachments"
	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/services"
	"github.com/monocle-dev/taskhub/internal/types"
	"github.com/monocle-dev/taskhub/internal/utils"
	"github.com/monocle-dev/taskhub/internal/validation"
)

const attachmentsField = "attachments"

// taskFiles collects the "attachments" parts of a multipart request. Other
// content types carry no files.
func taskFiles(ctx *gin.Context) ([]attachments.File, error) {
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		return nil, nil
	}

	form, err := ctx.MultipartForm()

	if err != nil {
		return nil, apierr.BadRequest("Invalid multipart form")
	}

	headers := form.File[attachmentsField]
	files := make([]attachments.File, 0, len(headers))

	for _, fh := range headers {
		files = append(files, attachments.File{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	return files, nil
}

func (h *Handler) ListTasks(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	tasks, err := h.Tasks.ListTasks(ctx.Request.Context(), projectID, types.TaskStatus(ctx.Query("status")))

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, tasks, "Tasks fetched successfully")
}

func (h *Handler) GetTask(ctx *gin.Context) {
	projectID, taskID, err := utils.GetProjectTaskID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	task, err := h.Tasks.GetTask(ctx.Request.Context(), projectID, taskID)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, taskDetailView(task), "Task fetched successfully")
}

func (h *Handler) CreateTask(ctx *gin.Context) {
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

	body, err := bind[validation.TaskDetails](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	files, err := taskFiles(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	task, err := h.Tasks.CreateTask(ctx.Request.Context(), services.CreateTaskInput{
		ProjectID:   projectID,
		CreatorID:   userID,
		Title:       body.Title,
		Description: body.Description,
		AssignedTo:  body.AssignedTo,
		Status:      types.TaskStatus(body.Status),
		Files:       files,
	})

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.Created(ctx, task, "Task created successfully")
}

func (h *Handler) UpdateTask(ctx *gin.Context) {
	projectID, taskID, err := utils.GetProjectTaskID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bind[validation.TaskUpdate](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	files, err := taskFiles(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	in := services.UpdateTaskInput{
		ProjectID:   projectID,
		TaskID:      taskID,
		Title:       body.Title,
		Description: body.Description,
		AssignedTo:  body.AssignedTo,
		Files:       files,
	}
	if body.Status != nil {
		status := types.TaskStatus(*body.Status)
		in.Status = &status
	}

	task, err := h.Tasks.UpdateTask(ctx.Request.Context(), in)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, task, "Task updated successfully")
}

func (h *Handler) DeleteTask(ctx *gin.Context) {
	projectID, taskID, err := utils.GetProjectTaskID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Tasks.DeleteTask(ctx.Request.Context(), projectID, taskID); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{"id": taskID}, "Task deleted successfully")
}

func (h *Handler) CreateSubtask(ctx *gin.Context) {
	projectID, taskID, err := utils.GetProjectTaskID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.SubtaskDetails](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	subtask, err := h.Tasks.CreateSubtask(ctx.Request.Context(), projectID, taskID, userID, body.Title, body.Description)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.Created(ctx, subtask, "Subtask created successfully")
}

func (h *Handler) UpdateSubtask(ctx *gin.Context) {
	projectID, taskID, err := utils.GetProjectTaskID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	subtaskID, err := utils.ParseID(ctx, utils.SubtaskIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	identity, err := utils.GetIdentity(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	body, err := bindJSON[validation.SubtaskUpdate](ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	canEdit := identity.IsGlobalAdmin() || identity.ProjectRole == types.RoleProjectAdmin
	subtask, err := h.Tasks.UpdateSubtask(ctx.Request.Context(), projectID, taskID, subtaskID, services.SubtaskChanges{
		Title:       body.Title,
		Description: body.Description,
		Completed:   body.Completed,
	}, canEdit)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, subtask, "Subtask updated successfully")
}

func (h *Handler) DeleteSubtask(ctx *gin.Context) {
	projectID, taskID, err := utils.GetProjectTaskID(ctx)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	subtaskID, err := utils.ParseID(ctx, utils.SubtaskIDParam)

	if err != nil {
		response.Error(ctx, err)
		return
	}

	if err := h.Tasks.DeleteSubtask(ctx.Request.Context(), projectID, taskID, subtaskID); err != nil {
		response.Error(ctx, err)
		return
	}

	response.OK(ctx, gin.H{"id": subtaskID}, "Subtask deleted successfully")
}
