package models

import (
	"gorm.io/datatypes"

	"github.com/monocle-dev/taskhub/internal/types"
)

type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}

type Task struct {
	BaseModel

	Title        string                          `gorm:"not null" json:"title"`
	Description  string                          `gorm:"not null" json:"description"`
	ProjectID    uint                            `gorm:"not null;index" json:"project_id"`
	AssignedToID *uint                           `gorm:"index" json:"assigned_to"`
	AssignedByID uint                            `gorm:"not null" json:"assigned_by"`
	Status       types.TaskStatus                `gorm:"not null;default:todo" json:"status"`
	Attachments  datatypes.JSONSlice[Attachment] `json:"attachments"`

	// Relationships
	Project    Project   `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE" json:"-"`
	AssignedTo *User     `gorm:"foreignKey:AssignedToID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Subtasks   []Subtask `gorm:"foreignKey:TaskID" json:"-"`
}
