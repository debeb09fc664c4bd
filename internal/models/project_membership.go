package models

import "github.com/monocle-dev/taskhub/internal/types"

type ProjectMembership struct {
	BaseModel

	UserID    uint       `gorm:"not null;uniqueIndex:idx_user_project" json:"user_id"`
	ProjectID uint       `gorm:"not null;uniqueIndex:idx_user_project;index" json:"project_id"`
	Role      types.Role `gorm:"not null;default:member" json:"role"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE" json:"-"`
}
