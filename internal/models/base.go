package models

import "time"

// BaseModel is gorm.Model without soft deletes: cascades and the
// (user, project) unique index must see rows actually go away.
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
