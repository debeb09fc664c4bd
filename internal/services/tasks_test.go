package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/attachments"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/testutil"
	"github.com/monocle-dev/taskhub/internal/types"
)

type taskFixture struct {
	conn    *gorm.DB
	svc     *TaskService
	storage *memoryStorage
	pub     *recordingPublisher
	alice   *models.User
	bob     *models.User
	project *models.Project
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	conn := testutil.NewDB(t)
	f := &taskFixture{
		conn:    conn,
		storage: &memoryStorage{},
		pub:     &recordingPublisher{},
		alice:   testutil.CreateUser(t, conn, "alice", types.RoleNormal),
		bob:     testutil.CreateUser(t, conn, "bob", types.RoleNormal),
	}
	f.project = testutil.CreateProject(t, conn, "Apollo", f.alice)
	testutil.AddMember(t, conn, f.project, f.bob, types.RoleMember)
	f.svc = NewTaskService(conn, NewStores(conn), f.storage, f.pub)
	return f
}

func (f *taskFixture) createTask(t *testing.T, files ...attachments.File) *models.Task {
	t.Helper()

	task, err := f.svc.CreateTask(context.Background(), CreateTaskInput{
		ProjectID:   f.project.ID,
		CreatorID:   f.alice.ID,
		Title:       "Build rocket",
		Description: "Every stage of it",
		AssignedTo:  &f.bob.ID,
		Files:       files,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func TestCreateTaskStoresAttachments(t *testing.T) {
	f := newTaskFixture(t)

	task := f.createTask(t, markdownFile("plan.md"), fileOfType("notes.md", "text/x-markdown; charset=utf-8"))

	if task.Status != types.TaskTodo {
		t.Fatalf("status = %s, want todo", task.Status)
	}
	if len(task.Attachments) != 2 {
		t.Fatalf("attachments = %+v", task.Attachments)
	}
	if task.Attachments[0].URL != "mem://1/plan.md" || task.Attachments[0].MimeType != "text/markdown" {
		t.Fatalf("first attachment = %+v", task.Attachments[0])
	}

	got, err := f.svc.GetTask(context.Background(), f.project.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.AssignedTo == nil || got.AssignedTo.ID != f.bob.ID {
		t.Fatalf("assignee not loaded: %+v", got.AssignedTo)
	}
	if len(got.Attachments) != 2 {
		t.Fatalf("persisted attachments = %+v", got.Attachments)
	}
}

func TestCreateTaskRejectsNonMarkdownBeforeUploading(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.CreateTask(context.Background(), CreateTaskInput{
		ProjectID:   f.project.ID,
		CreatorID:   f.alice.ID,
		Title:       "Build rocket",
		Description: "Every stage of it",
		Files:       []attachments.File{markdownFile("plan.md"), fileOfType("brief.pdf", "application/pdf")},
	})
	wantKind(t, err, apierr.KindBadRequest)

	if len(f.storage.uploaded) != 0 {
		t.Fatalf("uploaded %v before rejecting", f.storage.uploaded)
	}
	if n := testutil.CountRows(t, f.conn, &models.Task{}, ""); n != 0 {
		t.Fatalf("tasks = %d, want 0", n)
	}
}

func TestCreateTaskRejectsTooManyFiles(t *testing.T) {
	f := newTaskFixture(t)

	files := make([]attachments.File, types.MaxAttachmentsPerRequest+1)
	for i := range files {
		files[i] = markdownFile("a.md")
	}
	_, err := f.svc.CreateTask(context.Background(), CreateTaskInput{
		ProjectID: f.project.ID, CreatorID: f.alice.ID, Title: "Build rocket", Description: "Every stage of it", Files: files,
	})
	wantKind(t, err, apierr.KindBadRequest)
	if len(f.storage.uploaded) != 0 {
		t.Fatalf("uploaded %d files", len(f.storage.uploaded))
	}
}

func TestCreateTaskAssigneeMustBeMember(t *testing.T) {
	f := newTaskFixture(t)
	outsider := testutil.CreateUser(t, f.conn, "carol", types.RoleNormal)

	_, err := f.svc.CreateTask(context.Background(), CreateTaskInput{
		ProjectID: f.project.ID, CreatorID: f.alice.ID, Title: "Build rocket", Description: "Every stage of it",
		AssignedTo: &outsider.ID,
	})
	wantKind(t, err, apierr.KindBadRequest)
}

func TestUpdateTaskAppendsAttachments(t *testing.T) {
	f := newTaskFixture(t)
	task := f.createTask(t, markdownFile("plan.md"))
	status := types.TaskInProgress
	title := "Build a bigger rocket"

	updated, err := f.svc.UpdateTask(context.Background(), UpdateTaskInput{
		ProjectID: f.project.ID,
		TaskID:    task.ID,
		Title:     &title,
		Status:    &status,
		Files:     []attachments.File{markdownFile("more.md")},
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Title != title || updated.Status != types.TaskInProgress {
		t.Fatalf("update not applied: %+v", updated)
	}

	got, err := f.svc.GetTask(context.Background(), f.project.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if len(got.Attachments) != 2 || got.Attachments[1].URL != "mem://2/more.md" {
		t.Fatalf("attachments = %+v", got.Attachments)
	}
	if got.Description != "Every stage of it" {
		t.Fatalf("unchanged field overwritten: %q", got.Description)
	}
}

func TestUpdateTaskRejectsNonMarkdownBeforeUploading(t *testing.T) {
	f := newTaskFixture(t)
	task := f.createTask(t, markdownFile("plan.md"))
	uploadsBefore := len(f.storage.uploaded)
	eventsBefore := len(f.pub.types())
	title := "Build a bigger rocket"

	_, err := f.svc.UpdateTask(context.Background(), UpdateTaskInput{
		ProjectID: f.project.ID,
		TaskID:    task.ID,
		Title:     &title,
		Files:     []attachments.File{markdownFile("more.md"), fileOfType("brief.pdf", "application/pdf")},
	})
	wantKind(t, err, apierr.KindBadRequest)

	if n := len(f.storage.uploaded); n != uploadsBefore {
		t.Fatalf("uploads = %d, want %d", n, uploadsBefore)
	}
	got, err := f.svc.GetTask(context.Background(), f.project.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Title != "Build rocket" {
		t.Fatalf("title changed to %q", got.Title)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].URL != "mem://1/plan.md" {
		t.Fatalf("attachments = %+v", got.Attachments)
	}
	if n := len(f.pub.types()); n != eventsBefore {
		t.Fatalf("events published for a rejected update")
	}
}

func TestTaskLookupsAreScopedToProject(t *testing.T) {
	f := newTaskFixture(t)
	task := f.createTask(t)
	other := testutil.CreateProject(t, f.conn, "Gemini", f.alice)
	ctx := context.Background()

	_, err := f.svc.GetTask(ctx, other.ID, task.ID)
	wantKind(t, err, apierr.KindNotFound)

	title := "Hijacked title"
	_, err = f.svc.UpdateTask(ctx, UpdateTaskInput{ProjectID: other.ID, TaskID: task.ID, Title: &title})
	wantKind(t, err, apierr.KindNotFound)

	wantKind(t, f.svc.DeleteTask(ctx, other.ID, task.ID), apierr.KindNotFound)

	_, err = f.svc.CreateSubtask(ctx, other.ID, task.ID, f.alice.ID, "Fuel up", "")
	wantKind(t, err, apierr.KindNotFound)
}

func TestDeleteTaskRemovesSubtasksAndBlobs(t *testing.T) {
	f := newTaskFixture(t)
	task := f.createTask(t, markdownFile("plan.md"))
	ctx := context.Background()

	if _, err := f.svc.CreateSubtask(ctx, f.project.ID, task.ID, f.alice.ID, "Fuel up", ""); err != nil {
		t.Fatalf("CreateSubtask: %v", err)
	}

	if err := f.svc.DeleteTask(ctx, f.project.ID, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if n := testutil.CountRows(t, f.conn, &models.Subtask{}, ""); n != 0 {
		t.Fatalf("subtasks left: %d", n)
	}
	if len(f.storage.deleted) != 1 || f.storage.deleted[0] != "mem://1/plan.md" {
		t.Fatalf("deleted blobs = %v", f.storage.deleted)
	}
	wantKind(t, f.svc.DeleteTask(ctx, f.project.ID, task.ID), apierr.KindNotFound)
}

func TestDeleteTaskBlobFailureKeepsRows(t *testing.T) {
	f := newTaskFixture(t)
	task := f.createTask(t, markdownFile("plan.md"))
	ctx := context.Background()
	if _, err := f.svc.CreateSubtask(ctx, f.project.ID, task.ID, f.alice.ID, "Fuel up", ""); err != nil {
		t.Fatalf("CreateSubtask: %v", err)
	}
	f.storage.failDelete = errors.New("blob store offline")

	wantKind(t, f.svc.DeleteTask(ctx, f.project.ID, task.ID), apierr.KindInternal)

	if n := testutil.CountRows(t, f.conn, &models.Task{}, "id = ?", task.ID); n != 1 {
		t.Fatalf("task removed despite failure")
	}
	if n := testutil.CountRows(t, f.conn, &models.Subtask{}, "task_id = ?", task.ID); n != 1 {
		t.Fatalf("subtasks removed despite failure")
	}
}

func TestSubtaskUpdatePermissions(t *testing.T) {
	f := newTaskFixture(t)
	task := f.createTask(t)
	ctx := context.Background()

	subtask, err := f.svc.CreateSubtask(ctx, f.project.ID, task.ID, f.alice.ID, "Fuel up", "")
	if err != nil {
		t.Fatalf("CreateSubtask: %v", err)
	}

	title := "Fuel up fast"
	_, err = f.svc.UpdateSubtask(ctx, f.project.ID, task.ID, subtask.ID, SubtaskChanges{Title: &title}, false)
	wantKind(t, err, apierr.KindForbidden)

	done := true
	got, err := f.svc.UpdateSubtask(ctx, f.project.ID, task.ID, subtask.ID, SubtaskChanges{Completed: &done}, false)
	if err != nil {
		t.Fatalf("UpdateSubtask: %v", err)
	}
	if !got.IsCompleted || got.Title != "Fuel up" {
		t.Fatalf("subtask = %+v", got)
	}

	wantKind(t, f.svc.DeleteSubtask(ctx, f.project.ID, task.ID+100, subtask.ID), apierr.KindNotFound)
	if err := f.svc.DeleteSubtask(ctx, f.project.ID, task.ID, subtask.ID); err != nil {
		t.Fatalf("DeleteSubtask: %v", err)
	}
}

func TestListTasksFiltersByStatus(t *testing.T) {
	f := newTaskFixture(t)
	first := f.createTask(t)
	f.createTask(t)
	ctx := context.Background()

	done := types.TaskDone
	if _, err := f.svc.UpdateTask(ctx, UpdateTaskInput{ProjectID: f.project.ID, TaskID: first.ID, Status: &done}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	tasks, err := f.svc.ListTasks(ctx, f.project.ID, types.TaskDone)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != first.ID {
		t.Fatalf("done tasks = %+v", tasks)
	}

	_, err = f.svc.ListTasks(ctx, f.project.ID, types.TaskStatus("blocked"))
	wantKind(t, err, apierr.KindBadRequest)
}

func TestNotesLifecycle(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	note, err := f.svc.CreateNote(ctx, f.project.ID, f.alice.ID, "Kickoff notes", "agenda")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	updated, err := f.svc.UpdateNote(ctx, f.project.ID, note.ID, "Kickoff minutes", "done")
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if updated.Title != "Kickoff minutes" {
		t.Fatalf("note = %+v", updated)
	}
	if err := f.svc.DeleteNote(ctx, f.project.ID, note.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	_, err = f.svc.GetNote(ctx, f.project.ID, note.ID)
	wantKind(t, err, apierr.KindNotFound)

	want := []string{"note.created", "note.updated", "note.deleted"}
	got := f.pub.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}
