package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/types"
)

type ProjectStore struct {
	db *gorm.DB
}

func NewProjectStore(db *gorm.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) WithTx(tx *gorm.DB) *ProjectStore {
	return &ProjectStore{db: tx}
}

// ProjectRow is a project together with the viewer's role and head count.
type ProjectRow struct {
	models.Project
	Role        types.Role
	MemberCount int64
}

func (s *ProjectStore) Create(ctx context.Context, project *models.Project) error {
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		if isDuplicate(err) {
			return apierr.Conflict("Project with this name already exists")
		}
		return translate(err, "Creator not found")
	}
	return nil
}

func (s *ProjectStore) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Preload("CreatedBy").First(&project, id).Error; err != nil {
		return nil, translate(err, "Project not found")
	}
	return &project, nil
}

func (s *ProjectStore) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, translate(err, "")
	}
	return count > 0, nil
}

func (s *ProjectStore) Update(ctx context.Context, id uint, name, description string) (*models.Project, error) {
	res := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "description": description})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return nil, apierr.Conflict("Project with this name already exists")
		}
		return nil, translate(res.Error, "Project not found")
	}
	if res.RowsAffected == 0 {
		return nil, apierr.NotFound("Project not found")
	}
	return s.FindByID(ctx, id)
}

// Delete removes the project row and reports how many rows matched.
func (s *ProjectStore) Delete(ctx context.Context, id uint) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&models.Project{}, id)
	if res.Error != nil {
		return 0, translate(res.Error, "")
	}
	return res.RowsAffected, nil
}

func (s *ProjectStore) MemberCount(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ProjectMembership{}).Where("project_id = ?", id).Count(&count).Error
	return count, translate(err, "")
}

const memberCountSubquery = "(SELECT COUNT(*) FROM project_memberships pm WHERE pm.project_id = projects.id) AS member_count"

// ListForUser returns the projects userID belongs to with their role.
func (s *ProjectStore) ListForUser(ctx context.Context, userID uint) ([]ProjectRow, error) {
	var rows []ProjectRow
	err := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Select("projects.*, project_memberships.role AS role, "+memberCountSubquery).
		Joins("JOIN project_memberships ON project_memberships.project_id = projects.id").
		Where("project_memberships.user_id = ?", userID).
		Order("projects.id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return rows, nil
}

// ListAll is the global admin view; Role is left empty.
func (s *ProjectStore) ListAll(ctx context.Context) ([]ProjectRow, error) {
	var rows []ProjectRow
	err := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Select("projects.*, " + memberCountSubquery).
		Order("projects.id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return rows, nil
}
