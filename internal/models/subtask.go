package models

type Subtask struct {
	BaseModel

	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	TaskID      uint   `gorm:"not null;index" json:"task_id"`
	IsCompleted bool   `gorm:"not null;default:false" json:"is_completed"`
	CreatedByID uint   `gorm:"not null" json:"created_by"`

	// Relationships
	Task      Task  `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE" json:"-"`
	CreatedBy *User `gorm:"foreignKey:CreatedByID" json:"-"`
}
