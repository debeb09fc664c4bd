package handlers

import (
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/store"
	"github.com/monocle-dev/taskhub/internal/types"
)

func projectView(p *models.Project, role types.Role, memberCount int64) types.ProjectResponse {
	view := types.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Role:        role,
		MemberCount: memberCount,
		CreatedAt:   p.CreatedAt,
	}
	if p.CreatedBy.ID != 0 {
		creator := p.CreatedBy.Summary()
		view.CreatedBy = &creator
	}
	return view
}

func projectRowsView(rows []store.ProjectRow) []types.ProjectResponse {
	out := make([]types.ProjectResponse, 0, len(rows))
	for i := range rows {
		out = append(out, projectView(&rows[i].Project, rows[i].Role, rows[i].MemberCount))
	}
	return out
}

func membersView(rows []store.MemberRow) []types.MemberResponse {
	out := make([]types.MemberResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.MemberResponse{
			ID:        row.ID,
			ProjectID: row.ProjectID,
			User:      types.UserSummary{ID: row.UserID, Username: row.Username, Email: row.Email},
			Role:      row.Role,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}

func taskDetailView(task *models.Task) types.TaskDetailResponse {
	view := types.TaskDetailResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		ProjectID:   task.ProjectID,
		Status:      task.Status,
		AssignedBy:  task.AssignedByID,
		Attachments: task.Attachments,
		Subtasks:    make([]types.SubtaskResponse, 0, len(task.Subtasks)),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.AssignedTo != nil {
		assignee := task.AssignedTo.Summary()
		view.AssignedTo = &assignee
	}
	for _, s := range task.Subtasks {
		sub := types.SubtaskResponse{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			TaskID:      s.TaskID,
			IsCompleted: s.IsCompleted,
		}
		if s.CreatedBy != nil {
			creator := s.CreatedBy.Summary()
			sub.CreatedBy = &creator
		}
		view.Subtasks = append(view.Subtasks, sub)
	}
	return view
}
