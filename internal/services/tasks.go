package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/attachments"
	"github.com/monocle-dev/taskhub/internal/events"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/types"
)

type TaskService struct {
	db      *gorm.DB
	stores  Stores
	storage attachments.Storage
	events  events.Publisher
}

func NewTaskService(db *gorm.DB, stores Stores, storage attachments.Storage, publisher events.Publisher) *TaskService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TaskService{db: db, stores: stores, storage: storage, events: publisher}
}

type CreateTaskInput struct {
	ProjectID   uint
	CreatorID   uint
	Title       string
	Description string
	AssignedTo  *uint
	Status      types.TaskStatus
	Files       []attachments.File
}

type UpdateTaskInput struct {
	ProjectID   uint
	TaskID      uint
	Title       *string
	Description *string
	AssignedTo  *uint
	Status      *types.TaskStatus
	Files       []attachments.File
}

func (s *TaskService) publish(projectID uint, kind, resource string, id uint) {
	s.events.Publish(projectID, newEvent(projectID, kind, resource, id))
}

// checkFiles rejects the whole batch before anything is uploaded.
func checkFiles(files []attachments.File) error {
	if len(files) > types.MaxAttachmentsPerRequest {
		return apierr.BadRequest(fmt.Sprintf("At most %d attachments are allowed per request", types.MaxAttachmentsPerRequest))
	}
	for _, f := range files {
		if !attachments.IsMarkdown(f.MimeType) {
			return apierr.BadRequest(fmt.Sprintf("Attachment %q has unsupported type %q, only markdown is accepted", f.Name, f.MimeType))
		}
	}
	return nil
}

func (s *TaskService) checkAssignee(ctx context.Context, projectID uint, assignee *uint) error {
	if assignee == nil {
		return nil
	}
	_, ok, err := s.stores.Memberships.GetRole(ctx, projectID, *assignee)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.BadRequest("Assignee is not a member of this project")
	}
	return nil
}

// upload stores files one at a time. Blobs already stored are not rolled
// back when a later upload fails.
func (s *TaskService) upload(ctx context.Context, files []attachments.File) ([]models.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.storage == nil {
		return nil, apierr.Internal("Attachment storage is not configured", nil)
	}

	uploaded := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		res, err := s.storage.Upload(ctx, f)
		if err != nil {
			return nil, apierr.Internal("Failed to upload attachment", err)
		}
		uploaded = append(uploaded, models.Attachment{URL: res.URL, MimeType: f.MimeType, Size: f.Size})
	}
	return uploaded, nil
}

func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (task *models.Task, err error) {
	ctx, span := startSpan(ctx, "tasks.create", idAttr("project.id", in.ProjectID))
	defer func() { endSpan(span, err) }()

	if err = checkFiles(in.Files); err != nil {
		return nil, err
	}
	if _, err = s.stores.Projects.FindByID(ctx, in.ProjectID); err != nil {
		return nil, err
	}
	if err = s.checkAssignee(ctx, in.ProjectID, in.AssignedTo); err != nil {
		return nil, err
	}

	uploaded, err := s.upload(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = types.TaskTodo
	}

	task = &models.Task{
		Title:        in.Title,
		Description:  in.Description,
		ProjectID:    in.ProjectID,
		AssignedToID: in.AssignedTo,
		AssignedByID: in.CreatorID,
		Status:       status,
		Attachments:  uploaded,
	}
	if err = s.stores.Tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.publish(in.ProjectID, "task.created", "task", task.ID)
	return task, nil
}

// UpdateTask applies the given fields. New files are appended to the
// existing attachments.
func (s *TaskService) UpdateTask(ctx context.Context, in UpdateTaskInput) (task *models.Task, err error) {
	ctx, span := startSpan(ctx, "tasks.update", idAttr("project.id", in.ProjectID), idAttr("task.id", in.TaskID))
	defer func() { endSpan(span, err) }()

	task, err = s.stores.Tasks.Find(ctx, in.ProjectID, in.TaskID)
	if err != nil {
		return nil, err
	}
	if err = checkFiles(in.Files); err != nil {
		return nil, err
	}
	if err = s.checkAssignee(ctx, in.ProjectID, in.AssignedTo); err != nil {
		return nil, err
	}

	uploaded, err := s.upload(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.AssignedTo != nil {
		task.AssignedToID = in.AssignedTo
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	task.Attachments = append(task.Attachments, uploaded...)

	if err = s.stores.Tasks.Save(ctx, task); err != nil {
		return nil, err
	}

	s.publish(in.ProjectID, "task.updated", "task", task.ID)
	return task, nil
}

// DeleteTask removes the task, its subtasks and its attachment blobs. A
// failed blob delete aborts the transaction.
func (s *TaskService) DeleteTask(ctx context.Context, projectID, taskID uint) (err error) {
	ctx, span := startSpan(ctx, "tasks.delete", idAttr("project.id", projectID), idAttr("task.id", taskID))
	defer func() { endSpan(span, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.stores.Tasks.WithTx(tx)

		task, err := tasks.Find(ctx, projectID, taskID)
		if err != nil {
			return err
		}

		for _, a := range task.Attachments {
			if s.storage == nil {
				break
			}
			if err := s.storage.Delete(ctx, a.URL, attachments.ResourceRaw); err != nil {
				return apierr.Internal("Failed to delete attachment", err)
			}
		}

		if _, err := tasks.DeleteSubtasksByTask(ctx, taskID); err != nil {
			return err
		}

		deleted, err := tasks.Delete(ctx, projectID, taskID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return apierr.NotFound("Task not found")
		}
		return nil
	})
	if err != nil {
		return apierr.From(err)
	}

	log.WithFields(log.Fields{"project_id": projectID, "task_id": taskID}).Info("task deleted")
	s.publish(projectID, "task.deleted", "task", taskID)
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context, projectID uint, status types.TaskStatus) ([]models.Task, error) {
	if status != "" && !status.Valid() {
		return nil, apierr.BadRequest("Status must be one of todo, in_progress, done")
	}
	if _, err := s.stores.Projects.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.stores.Tasks.List(ctx, projectID, status)
}

func (s *TaskService) GetTask(ctx context.Context, projectID, taskID uint) (*models.Task, error) {
	return s.stores.Tasks.FindDetailed(ctx, projectID, taskID)
}

func (s *TaskService) CreateSubtask(ctx context.Context, projectID, taskID, creatorID uint, title, description string) (*models.Subtask, error) {
	if _, err := s.stores.Tasks.Find(ctx, projectID, taskID); err != nil {
		return nil, err
	}

	subtask := &models.Subtask{
		Title:       title,
		Description: description,
		TaskID:      taskID,
		CreatedByID: creatorID,
	}
	if err := s.stores.Tasks.CreateSubtask(ctx, subtask); err != nil {
		return nil, err
	}

	s.publish(projectID, "subtask.created", "subtask", subtask.ID)
	return subtask, nil
}

type SubtaskChanges struct {
	Title       *string
	Description *string
	Completed   *bool
}

// UpdateSubtask applies changes. Plain members may only toggle completion;
// the caller passes canEdit=false for them.
func (s *TaskService) UpdateSubtask(ctx context.Context, projectID, taskID, subtaskID uint, changes SubtaskChanges, canEdit bool) (*models.Subtask, error) {
	if !canEdit && (changes.Title != nil || changes.Description != nil) {
		return nil, apierr.Forbidden("Only project admins can edit subtask details")
	}

	if _, err := s.stores.Tasks.FindSubtask(ctx, projectID, taskID, subtaskID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if changes.Title != nil {
		updates["title"] = *changes.Title
	}
	if changes.Description != nil {
		updates["description"] = *changes.Description
	}
	if changes.Completed != nil {
		updates["is_completed"] = *changes.Completed
	}
	if err := s.stores.Tasks.UpdateSubtask(ctx, subtaskID, updates); err != nil {
		return nil, err
	}

	subtask, err := s.stores.Tasks.FindSubtask(ctx, projectID, taskID, subtaskID)
	if err != nil {
		return nil, err
	}
	s.publish(projectID, "subtask.updated", "subtask", subtaskID)
	return subtask, nil
}

func (s *TaskService) DeleteSubtask(ctx context.Context, projectID, taskID, subtaskID uint) error {
	if _, err := s.stores.Tasks.FindSubtask(ctx, projectID, taskID, subtaskID); err != nil {
		return err
	}
	deleted, err := s.stores.Tasks.DeleteSubtask(ctx, taskID, subtaskID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return apierr.NotFound("Subtask not found")
	}
	s.publish(projectID, "subtask.deleted", "subtask", subtaskID)
	return nil
}

// Notes.

func (s *TaskService) ListNotes(ctx context.Context, projectID uint) ([]models.Note, error) {
	if _, err := s.stores.Projects.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.stores.Notes.List(ctx, projectID)
}

func (s *TaskService) GetNote(ctx context.Context, projectID, noteID uint) (*models.Note, error) {
	return s.stores.Notes.Find(ctx, projectID, noteID)
}

func (s *TaskService) CreateNote(ctx context.Context, projectID, creatorID uint, title, content string) (*models.Note, error) {
	if _, err := s.stores.Projects.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	note := &models.Note{ProjectID: projectID, CreatedByID: creatorID, Title: title, Content: content}
	if err := s.stores.Notes.Create(ctx, note); err != nil {
		return nil, err
	}
	s.publish(projectID, "note.created", "note", note.ID)
	return note, nil
}

func (s *TaskService) UpdateNote(ctx context.Context, projectID, noteID uint, title, content string) (*models.Note, error) {
	note, err := s.stores.Notes.Update(ctx, projectID, noteID, title, content)
	if err != nil {
		return nil, err
	}
	s.publish(projectID, "note.updated", "note", noteID)
	return note, nil
}

func (s *TaskService) DeleteNote(ctx context.Context, projectID, noteID uint) error {
	if err := s.stores.Notes.Delete(ctx, projectID, noteID); err != nil {
		return err
	}
	s.publish(projectID, "note.deleted", "note", noteID)
	return nil
}
