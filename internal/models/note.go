package models

type Note struct {
	BaseModel

	ProjectID   uint   `gorm:"not null;index" json:"project_id"`
	CreatedByID uint   `gorm:"not null" json:"created_by"`
	Title       string `gorm:"not null" json:"title"`
	Content     string `json:"content"`

	// Relationships
	Project   Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE" json:"-"`
	CreatedBy User    `gorm:"foreignKey:CreatedByID" json:"-"`
}
