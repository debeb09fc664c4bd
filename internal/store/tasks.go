package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/types"
)

// TaskStore holds tasks and their subtasks. Every lookup is compound on the
// owning project so a task id from another project never resolves.
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) WithTx(tx *gorm.DB) *TaskStore {
	return &TaskStore{db: tx}
}

func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	if task.Status == "" {
		task.Status = types.TaskTodo
	}
	return translate(s.db.WithContext(ctx).Create(task).Error, "Project not found")
}

func (s *TaskStore) Find(ctx context.Context, projectID, taskID uint) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", taskID, projectID).
		First(&task).Error
	if err != nil {
		return nil, translate(err, "Task not found")
	}
	return &task, nil
}

// FindDetailed loads the assignee and subtasks with their creators.
func (s *TaskStore) FindDetailed(ctx context.Context, projectID, taskID uint) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("AssignedTo").
		Preload("Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("subtasks.id") }).
		Preload("Subtasks.CreatedBy").
		Where("id = ? AND project_id = ?", taskID, projectID).
		First(&task).Error
	if err != nil {
		return nil, translate(err, "Task not found")
	}
	return &task, nil
}

func (s *TaskStore) List(ctx context.Context, projectID uint, status types.TaskStatus) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := q.Order("id").Find(&tasks).Error; err != nil {
		return nil, translate(err, "")
	}
	return tasks, nil
}

// Save writes every column of an existing task.
func (s *TaskStore) Save(ctx context.Context, task *models.Task) error {
	res := s.db.WithContext(ctx).
		Model(task).
		Where("project_id = ?", task.ProjectID).
		Select("title", "description", "assigned_to_id", "status", "attachments").
		Updates(task)
	if res.Error != nil {
		return translate(res.Error, "Task not found")
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("Task not found")
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, projectID, taskID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", taskID, projectID).
		Delete(&models.Task{})
	if res.Error != nil {
		return 0, translate(res.Error, "")
	}
	return res.RowsAffected, nil
}

// DeleteByProject removes every task and subtask of a project and returns
// the attachments those tasks referenced.
func (s *TaskStore) DeleteByProject(ctx context.Context, projectID uint) ([]models.Attachment, error) {
	db := s.db.WithContext(ctx)

	var tasks []models.Task
	if err := db.Select("id", "attachments").Where("project_id = ?", projectID).Find(&tasks).Error; err != nil {
		return nil, translate(err, "")
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(tasks))
	var attachments []models.Attachment
	for _, t := range tasks {
		ids = append(ids, t.ID)
		attachments = append(attachments, t.Attachments...)
	}

	if err := db.Where("task_id IN ?", ids).Delete(&models.Subtask{}).Error; err != nil {
		return nil, translate(err, "")
	}
	if err := db.Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
		return nil, translate(err, "")
	}
	return attachments, nil
}

func (s *TaskStore) CreateSubtask(ctx context.Context, subtask *models.Subtask) error {
	return translate(s.db.WithContext(ctx).Create(subtask).Error, "Task not found")
}

// FindSubtask resolves a subtask only through its task and project.
func (s *TaskStore) FindSubtask(ctx context.Context, projectID, taskID, subtaskID uint) (*models.Subtask, error) {
	var subtask models.Subtask
	err := s.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = subtasks.task_id").
		Where("subtasks.id = ? AND subtasks.task_id = ? AND tasks.project_id = ?", subtaskID, taskID, projectID).
		First(&subtask).Error
	if err != nil {
		return nil, translate(err, "Subtask not found")
	}
	return &subtask, nil
}

func (s *TaskStore) UpdateSubtask(ctx context.Context, subtaskID uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Subtask{}).Where("id = ?", subtaskID).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "Subtask not found")
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("Subtask not found")
	}
	return nil
}

func (s *TaskStore) DeleteSubtask(ctx context.Context, taskID, subtaskID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND task_id = ?", subtaskID, taskID).
		Delete(&models.Subtask{})
	if res.Error != nil {
		return 0, translate(res.Error, "")
	}
	return res.RowsAffected, nil
}

func (s *TaskStore) DeleteSubtasksByTask(ctx context.Context, taskID uint) (int64, error) {
	res := s.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.Subtask{})
	if res.Error != nil {
		return 0, translate(res.Error, "")
	}
	return res.RowsAffected, nil
}
