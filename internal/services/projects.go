package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/attachments"
	"github.com/monocle-dev/taskhub/internal/events"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/store"
	"github.com/monocle-dev/taskhub/internal/types"
)

// Stores bundles the persistence handles the services share.
type Stores struct {
	Users       *store.UserStore
	Projects    *store.ProjectStore
	Memberships *store.MembershipStore
	Tasks       *store.TaskStore
	Notes       *store.NoteStore
}

func NewStores(db *gorm.DB) Stores {
	return Stores{
		Users:       store.NewUserStore(db),
		Projects:    store.NewProjectStore(db),
		Memberships: store.NewMembershipStore(db),
		Tasks:       store.NewTaskStore(db),
		Notes:       store.NewNoteStore(db),
	}
}

type ProjectService struct {
	db      *gorm.DB
	stores  Stores
	storage attachments.Storage
	cache   *store.RoleCache
	events  events.Publisher
}

// CreatedProject is the project together with the creator's admin membership.
type CreatedProject struct {
	Project    *models.Project
	Membership *models.ProjectMembership
}

func NewProjectService(db *gorm.DB, stores Stores, storage attachments.Storage, cache *store.RoleCache, publisher events.Publisher) *ProjectService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ProjectService{
		db:      db,
		stores:  stores,
		storage: storage,
		cache:   cache,
		events:  publisher,
	}
}

func newEvent(projectID uint, kind, resource string, id uint) events.Event {
	return events.Event{
		Type:      kind,
		ProjectID: projectID,
		Resource:  resource,
		ID:        id,
		At:        time.Now().UTC(),
	}
}

func (s *ProjectService) publish(projectID uint, kind, resource string, id uint) {
	s.events.Publish(projectID, newEvent(projectID, kind, resource, id))
}

// CreateProject inserts the project and the creator's project_admin
// membership in one transaction. Either both rows exist afterwards or neither.
func (s *ProjectService) CreateProject(ctx context.Context, creatorID uint, name, description string) (result *CreatedProject, err error) {
	ctx, span := startSpan(ctx, "projects.create", idAttr("user.id", creatorID))
	defer func() { endSpan(span, err) }()

	project := &models.Project{
		Name:        name,
		Description: description,
		CreatedByID: creatorID,
	}

	var membership *models.ProjectMembership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.stores.Projects.WithTx(tx).Create(ctx, project); err != nil {
			return err
		}

		m, err := s.stores.Memberships.WithTx(tx).AddMember(ctx, project.ID, creatorID, types.RoleProjectAdmin)
		if err != nil {
			return err
		}
		membership = m
		return nil
	})
	if err != nil {
		return nil, apierr.From(err)
	}

	span.SetAttributes(idAttr("project.id", project.ID))
	log.WithFields(log.Fields{"project_id": project.ID, "user_id": creatorID}).Info("project created")

	return &CreatedProject{Project: project, Membership: membership}, nil
}

// DeleteProject removes the project with its memberships, tasks, subtasks
// and notes in one transaction. Attachment blobs go after commit.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID uint) (err error) {
	ctx, span := startSpan(ctx, "projects.delete", idAttr("project.id", projectID))
	defer func() { endSpan(span, err) }()

	var blobs []models.Attachment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := s.stores.Projects.WithTx(tx)

		if _, err := projects.FindByID(ctx, projectID); err != nil {
			return err
		}

		removed, err := s.stores.Memberships.WithTx(tx).DeleteByProject(ctx, projectID)
		if err != nil {
			return err
		}
		if removed == 0 {
			return apierr.Internal("Project has no memberships", nil)
		}

		blobs, err = s.stores.Tasks.WithTx(tx).DeleteByProject(ctx, projectID)
		if err != nil {
			return err
		}
		if _, err := s.stores.Notes.WithTx(tx).DeleteByProject(ctx, projectID); err != nil {
			return err
		}

		deleted, err := projects.Delete(ctx, projectID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return apierr.NotFound("Project not found")
		}
		return nil
	})
	if err != nil {
		return apierr.From(err)
	}

	s.cache.InvalidateProject(ctx, projectID)
	s.deleteBlobs(ctx, blobs)
	s.publish(projectID, "project.deleted", "project", projectID)
	s.events.CloseProject(projectID)

	log.WithField("project_id", projectID).Info("project deleted")
	return nil
}

func (s *ProjectService) deleteBlobs(ctx context.Context, blobs []models.Attachment) {
	if s.storage == nil {
		return
	}
	for _, a := range blobs {
		if err := s.storage.Delete(ctx, a.URL, attachments.ResourceRaw); err != nil {
			log.WithError(err).WithField("url", a.URL).Warn("failed to delete attachment blob")
		}
	}
}

func (s *ProjectService) GetProject(ctx context.Context, projectID uint) (*models.Project, int64, error) {
	project, err := s.stores.Projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.stores.Projects.MemberCount(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	return project, count, nil
}

// ListProjects returns the viewer's projects, or every project for a
// global admin.
func (s *ProjectService) ListProjects(ctx context.Context, identity *types.EffectiveIdentity) ([]store.ProjectRow, error) {
	if identity.IsGlobalAdmin() {
		return s.stores.Projects.ListAll(ctx)
	}
	return s.stores.Projects.ListForUser(ctx, identity.UserID)
}

func (s *ProjectService) UpdateProject(ctx context.Context, projectID uint, name, description string) (*models.Project, error) {
	project, err := s.stores.Projects.Update(ctx, projectID, name, description)
	if err != nil {
		return nil, err
	}
	s.publish(projectID, "project.updated", "project", projectID)
	return project, nil
}

// AddMember looks the user up by email and binds them to the project.
func (s *ProjectService) AddMember(ctx context.Context, projectID uint, email string, role types.Role) (membership *models.ProjectMembership, err error) {
	ctx, span := startSpan(ctx, "projects.add_member", idAttr("project.id", projectID))
	defer func() { endSpan(span, err) }()

	if role == "" {
		role = types.RoleMember
	}

	user, err := s.stores.Users.FindByEmail(ctx, normaliseEmail(email))
	if err != nil {
		return nil, err
	}

	membership, err = s.stores.Memberships.AddMember(ctx, projectID, user.ID, role)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateMember(ctx, projectID, user.ID)
	s.publish(projectID, "member.added", "member", user.ID)
	return membership, nil
}

// ToggleMemberRole flips the member between member and project_admin.
func (s *ProjectService) ToggleMemberRole(ctx context.Context, projectID, userID uint) (role types.Role, err error) {
	ctx, span := startSpan(ctx, "projects.toggle_role", idAttr("project.id", projectID), idAttr("user.id", userID))
	defer func() { endSpan(span, err) }()

	role, err = s.stores.Memberships.ToggleRole(ctx, projectID, userID)
	if err != nil {
		return "", err
	}

	s.cache.InvalidateMember(ctx, projectID, userID)
	s.publish(projectID, "member.updated", "member", userID)
	return role, nil
}

func (s *ProjectService) RemoveMember(ctx context.Context, projectID, userID uint) (err error) {
	ctx, span := startSpan(ctx, "projects.remove_member", idAttr("project.id", projectID), idAttr("user.id", userID))
	defer func() { endSpan(span, err) }()

	if err = s.stores.Memberships.RemoveMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.cache.InvalidateMember(ctx, projectID, userID)
	s.events.Disconnect(projectID, userID)
	s.publish(projectID, "member.removed", "member", userID)
	return nil
}

func (s *ProjectService) ListMembers(ctx context.Context, projectID uint) ([]store.MemberRow, error) {
	if _, err := s.stores.Projects.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.stores.Memberships.ListMembers(ctx, projectID)
}
