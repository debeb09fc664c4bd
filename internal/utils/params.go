package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/apierr"
)

const (
	ProjectIDParam = "projectId"
	TaskIDParam    = "taskId"
	SubtaskIDParam = "subtaskId"
	NoteIDParam    = "noteId"
	UserIDParam    = "userId"
)

var paramLabels = map[string]string{
	ProjectIDParam: "Project ID",
	TaskIDParam:    "Task ID",
	SubtaskIDParam: "Subtask ID",
	NoteIDParam:    "Note ID",
	UserIDParam:    "User ID",
}

// ParseID reads a positive numeric path parameter. Anything else is a
// BadRequest.
func ParseID(ctx *gin.Context, name string) (uint, error) {
	label, ok := paramLabels[name]
	if !ok {
		label = name
	}

	raw := ctx.Param(name)

	if raw == "" {
		return 0, apierr.BadRequest(label + " not found")
	}

	id, err := strconv.ParseUint(raw, 10, 32)

	if err != nil || id == 0 {
		return 0, apierr.BadRequest("Invalid " + label)
	}

	return uint(id), nil
}

func GetProjectID(ctx *gin.Context) (uint, error) {
	return ParseID(ctx, ProjectIDParam)
}

// GetProjectTaskID parses the project and task ids of a nested task route.
func GetProjectTaskID(ctx *gin.Context) (uint, uint, error) {
	projectID, err := GetProjectID(ctx)

	if err != nil {
		return 0, 0, err
	}

	taskID, err := ParseID(ctx, TaskIDParam)

	if err != nil {
		return 0, 0, err
	}

	return projectID, taskID, nil
}
