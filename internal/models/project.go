package models

type Project struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	CreatedByID uint `gorm:"not null;index"`

	// Relationships
	CreatedBy          User                `gorm:"foreignKey:CreatedByID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:ProjectID"`
}
