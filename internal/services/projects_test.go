package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/store"
	"github.com/monocle-dev/taskhub/internal/testutil"
	"github.com/monocle-dev/taskhub/internal/types"
)

func TestCreateProjectMakesCreatorAdmin(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	svc := NewProjectService(conn, NewStores(conn), &memoryStorage{}, nil, nil)

	created, err := svc.CreateProject(context.Background(), alice.ID, "Apollo", "moon")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if created.Project.ID == 0 || created.Membership.Role != types.RoleProjectAdmin {
		t.Fatalf("unexpected result %+v", created)
	}
	if created.Membership.UserID != alice.ID || created.Membership.ProjectID != created.Project.ID {
		t.Fatalf("membership not bound to creator: %+v", created.Membership)
	}
}

func TestCreateProjectDuplicateNameLeavesNoRows(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	svc := NewProjectService(conn, NewStores(conn), nil, nil, nil)
	ctx := context.Background()

	if _, err := svc.CreateProject(ctx, alice.ID, "Apollo", ""); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	_, err := svc.CreateProject(ctx, alice.ID, "Apollo", "")
	wantKind(t, err, apierr.KindConflict)

	if n := testutil.CountRows(t, conn, &models.ProjectMembership{}, ""); n != 1 {
		t.Fatalf("memberships = %d, want 1", n)
	}
}

func TestCreateProjectRollsBackWhenMembershipInsertFails(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	failInserts(t, conn, "project_memberships")
	svc := NewProjectService(conn, NewStores(conn), nil, nil, nil)

	_, err := svc.CreateProject(context.Background(), alice.ID, "Apollo", "")
	wantKind(t, err, apierr.KindInternal)

	if n := testutil.CountRows(t, conn, &models.Project{}, ""); n != 0 {
		t.Fatalf("projects = %d, want 0 after rollback", n)
	}
}

func TestDeleteProjectRemovesEverything(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	bob := testutil.CreateUser(t, conn, "bob", types.RoleNormal)
	project := testutil.CreateProject(t, conn, "Apollo", alice)
	other := testutil.CreateProject(t, conn, "Gemini", bob)
	testutil.AddMember(t, conn, project, bob, types.RoleMember)

	task := &models.Task{
		Title: "Build rocket", Description: "all of it", ProjectID: project.ID, AssignedByID: alice.ID,
		Attachments: []models.Attachment{{URL: "mem://1/plan.md", MimeType: "text/markdown"}},
	}
	if err := conn.Create(task).Error; err != nil {
		t.Fatal(err)
	}
	if err := conn.Create(&models.Subtask{Title: "Fuel", TaskID: task.ID, CreatedByID: alice.ID}).Error; err != nil {
		t.Fatal(err)
	}
	if err := conn.Create(&models.Note{Title: "Kickoff", ProjectID: project.ID, CreatedByID: alice.ID}).Error; err != nil {
		t.Fatal(err)
	}

	storage := &memoryStorage{}
	pub := &recordingPublisher{}
	svc := NewProjectService(conn, NewStores(conn), storage, nil, pub)

	if err := svc.DeleteProject(context.Background(), project.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	checks := []struct {
		model interface{}
		where string
	}{
		{&models.Project{}, "id = ?"},
		{&models.ProjectMembership{}, "project_id = ?"},
		{&models.Task{}, "project_id = ?"},
		{&models.Note{}, "project_id = ?"},
	}
	for _, c := range checks {
		if n := testutil.CountRows(t, conn, c.model, c.where, project.ID); n != 0 {
			t.Fatalf("%T rows left: %d", c.model, n)
		}
	}
	if n := testutil.CountRows(t, conn, &models.Subtask{}, ""); n != 0 {
		t.Fatalf("subtasks left: %d", n)
	}
	if n := testutil.CountRows(t, conn, &models.ProjectMembership{}, "project_id = ?", other.ID); n != 1 {
		t.Fatalf("other project memberships = %d, want 1", n)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != "mem://1/plan.md" {
		t.Fatalf("deleted blobs = %v", storage.deleted)
	}
	if got := pub.types(); len(got) != 1 || got[0] != "project.deleted" {
		t.Fatalf("events = %v", got)
	}
	if len(pub.closed) != 1 || pub.closed[0] != project.ID {
		t.Fatalf("closed streams = %v", pub.closed)
	}
}

func TestDeleteProjectUnknownIDIsNotFound(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	testutil.CreateProject(t, conn, "Apollo", alice)
	svc := NewProjectService(conn, NewStores(conn), nil, nil, nil)

	err := svc.DeleteProject(context.Background(), 999)
	wantKind(t, err, apierr.KindNotFound)

	if n := testutil.CountRows(t, conn, &models.ProjectMembership{}, ""); n != 1 {
		t.Fatalf("memberships = %d, want untouched", n)
	}
}

func TestDeleteProjectWithoutMembershipsRollsBack(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	project := &models.Project{Name: "Orphan", CreatedByID: alice.ID}
	if err := conn.Create(project).Error; err != nil {
		t.Fatal(err)
	}
	svc := NewProjectService(conn, NewStores(conn), nil, nil, nil)

	err := svc.DeleteProject(context.Background(), project.ID)
	wantKind(t, err, apierr.KindInternal)

	if n := testutil.CountRows(t, conn, &models.Project{}, "id = ?", project.ID); n != 1 {
		t.Fatalf("project row removed despite failure")
	}
}

func TestMemberLifecycle(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	bob := testutil.CreateUser(t, conn, "bob", types.RoleNormal)
	project := testutil.CreateProject(t, conn, "Apollo", alice)
	pub := &recordingPublisher{}
	svc := NewProjectService(conn, NewStores(conn), nil, nil, pub)
	ctx := context.Background()

	_, err := svc.AddMember(ctx, project.ID, "nobody@example.com", "")
	wantKind(t, err, apierr.KindNotFound)

	m, err := svc.AddMember(ctx, project.ID, " BOB@example.com ", "")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if m.Role != types.RoleMember {
		t.Fatalf("default role = %s, want member", m.Role)
	}

	_, err = svc.AddMember(ctx, project.ID, bob.Email, types.RoleMember)
	wantKind(t, err, apierr.KindConflict)

	for _, want := range []types.Role{types.RoleProjectAdmin, types.RoleMember} {
		got, err := svc.ToggleMemberRole(ctx, project.ID, bob.ID)
		if err != nil {
			t.Fatalf("ToggleMemberRole: %v", err)
		}
		if got != want {
			t.Fatalf("toggle = %s, want %s", got, want)
		}
	}

	members, err := svc.ListMembers(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 || members[1].Username != "bob" {
		t.Fatalf("members = %+v", members)
	}

	if err := svc.RemoveMember(ctx, project.ID, bob.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if len(pub.disconnected) != 1 || pub.disconnected[0] != [2]uint{project.ID, bob.ID} {
		t.Fatalf("disconnected streams = %v", pub.disconnected)
	}
	wantKind(t, svc.RemoveMember(ctx, project.ID, bob.ID), apierr.KindNotFound)
	if len(pub.disconnected) != 1 {
		t.Fatalf("failed removal disconnected streams")
	}

	_, err = svc.ToggleMemberRole(ctx, project.ID, bob.ID)
	wantKind(t, err, apierr.KindNotFound)
}

func TestListProjectsForMemberAndAdmin(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	bob := testutil.CreateUser(t, conn, "bob", types.RoleNormal)
	root := testutil.CreateUser(t, conn, "root", types.RoleAdmin)
	apollo := testutil.CreateProject(t, conn, "Apollo", alice)
	testutil.CreateProject(t, conn, "Gemini", bob)
	testutil.AddMember(t, conn, apollo, bob, types.RoleMember)
	svc := NewProjectService(conn, NewStores(conn), nil, nil, nil)
	ctx := context.Background()

	rows, err := svc.ListProjects(ctx, &types.EffectiveIdentity{UserID: alice.ID, Global: types.RoleNormal})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Apollo" || rows[0].Role != types.RoleProjectAdmin || rows[0].MemberCount != 2 {
		t.Fatalf("alice rows = %+v", rows)
	}

	rows, err = svc.ListProjects(ctx, &types.EffectiveIdentity{UserID: root.ID, Global: types.RoleAdmin})
	if err != nil {
		t.Fatalf("ListProjects admin: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("admin sees %d projects, want 2", len(rows))
	}
}

func TestToggleInvalidatesCachedRole(t *testing.T) {
	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	bob := testutil.CreateUser(t, conn, "bob", types.RoleNormal)
	project := testutil.CreateProject(t, conn, "Apollo", alice)
	testutil.AddMember(t, conn, project, bob, types.RoleMember)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	stores := NewStores(conn)
	cache := store.NewRoleCache(client, time.Minute)
	roles := store.NewCachedRoles(stores.Memberships, cache)
	svc := NewProjectService(conn, stores, nil, cache, nil)
	ctx := context.Background()

	if role, ok, err := roles.GetRole(ctx, project.ID, bob.ID); err != nil || !ok || role != types.RoleMember {
		t.Fatalf("GetRole = %s %v %v", role, ok, err)
	}
	if _, err := svc.ToggleMemberRole(ctx, project.ID, bob.ID); err != nil {
		t.Fatalf("ToggleMemberRole: %v", err)
	}
	if role, _, _ := roles.GetRole(ctx, project.ID, bob.ID); role != types.RoleProjectAdmin {
		t.Fatalf("cached role after toggle = %s, want project_admin", role)
	}

	if err := svc.RemoveMember(ctx, project.ID, bob.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, ok, _ := roles.GetRole(ctx, project.ID, bob.ID); ok {
		t.Fatalf("removed member still resolves")
	}
}

func TestProjectOperationsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	conn := testutil.NewDB(t)
	alice := testutil.CreateUser(t, conn, "alice", types.RoleNormal)
	svc := NewProjectService(conn, NewStores(conn), nil, nil, nil)

	if _, err := svc.CreateProject(context.Background(), alice.ID, "Apollo", ""); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	_ = svc.DeleteProject(context.Background(), 12345)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "projects.create" || spans[1].Name() != "projects.delete" {
		t.Fatalf("span names = %s, %s", spans[0].Name(), spans[1].Name())
	}
	if spans[1].Status().Code.String() != "Error" {
		t.Fatalf("failed delete span status = %v", spans[1].Status())
	}
}
