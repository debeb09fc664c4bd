package models

import (
	"time"

	"github.com/monocle-dev/taskhub/internal/types"
)

type User struct {
	BaseModel

	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	FullName     string
	PasswordHash string     `gorm:"not null"`
	Role         types.Role `gorm:"not null;default:normal"`

	IsEmailVerified         bool `gorm:"not null;default:false"`
	RefreshToken            string
	EmailVerificationToken  string `gorm:"index"`
	EmailVerificationExpiry *time.Time
	ForgotPasswordToken     string `gorm:"index"`
	ForgotPasswordExpiry    *time.Time

	// Relationships
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// Response strips every credential field.
func (u User) Response() types.UserResponse {
	return types.UserResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FullName:        u.FullName,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

func (u User) Summary() types.UserSummary {
	return types.UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}
