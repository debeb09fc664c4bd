package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/types"
)

// MembershipStore is the registry of (project, user) -> role. It is the
// only source consulted when authorizing project access.
type MembershipStore struct {
	db *gorm.DB
}

func NewMembershipStore(db *gorm.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func (s *MembershipStore) WithTx(tx *gorm.DB) *MembershipStore {
	return &MembershipStore{db: tx}
}

// MemberRow is a membership joined with the member's public user fields.
type MemberRow struct {
	models.ProjectMembership
	Username string
	Email    string
}

// AddMember binds userID to projectID. Duplicates surface as Conflict from
// the unique index; a missing project or user is NotFound.
func (s *MembershipStore) AddMember(ctx context.Context, projectID, userID uint, role types.Role) (*models.ProjectMembership, error) {
	if !role.IsProjectRole() {
		return nil, apierr.BadRequest("Role must be one of member, project_admin")
	}

	db := s.db.WithContext(ctx)

	if err := db.Select("id").First(&models.Project{}, projectID).Error; err != nil {
		return nil, translate(err, "Project not found")
	}
	if err := db.Select("id").First(&models.User{}, userID).Error; err != nil {
		return nil, translate(err, "User not found")
	}

	membership := models.ProjectMembership{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
	}
	if err := db.Create(&membership).Error; err != nil {
		if isDuplicate(err) {
			return nil, apierr.Conflict("User is already a member of this project")
		}
		return nil, translate(err, "Project or user not found")
	}
	return &membership, nil
}

// GetRole returns the member's role; ok is false when there is no membership.
func (s *MembershipStore) GetRole(ctx context.Context, projectID, userID uint) (types.Role, bool, error) {
	var membership models.ProjectMembership
	err := s.db.WithContext(ctx).
		Select("role").
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, translate(err, "")
	}
	return membership.Role, true, nil
}

// ToggleRole flips member <-> project_admin and returns the new role.
func (s *MembershipStore) ToggleRole(ctx context.Context, projectID, userID uint) (types.Role, error) {
	current, ok, err := s.GetRole(ctx, projectID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apierr.NotFound("Member not found")
	}

	var next types.Role
	switch current {
	case types.RoleMember:
		next = types.RoleProjectAdmin
	case types.RoleProjectAdmin:
		next = types.RoleMember
	default:
		return "", apierr.NotFound("Member role " + string(current) + " cannot be toggled")
	}

	res := s.db.WithContext(ctx).Model(&models.ProjectMembership{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Update("role", next)
	if res.Error != nil {
		return "", translate(res.Error, "Member not found")
	}
	if res.RowsAffected == 0 {
		return "", apierr.NotFound("Member not found")
	}
	return next, nil
}

func (s *MembershipStore) RemoveMember(ctx context.Context, projectID, userID uint) error {
	res := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMembership{})
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("Member not found")
	}
	return nil
}

func (s *MembershipStore) ListMembers(ctx context.Context, projectID uint) ([]MemberRow, error) {
	var rows []MemberRow
	err := s.db.WithContext(ctx).
		Model(&models.ProjectMembership{}).
		Select("project_memberships.*, users.username, users.email").
		Joins("JOIN users ON users.id = project_memberships.user_id").
		Where("project_memberships.project_id = ?", projectID).
		Order("project_memberships.id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "")
	}
	return rows, nil
}

// DeleteByProject removes every membership of a project and returns how
// many rows went away.
func (s *MembershipStore) DeleteByProject(ctx context.Context, projectID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Delete(&models.ProjectMembership{})
	if res.Error != nil {
		return 0, translate(res.Error, "")
	}
	return res.RowsAffected, nil
}
