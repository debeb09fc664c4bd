package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/models"
)

type NoteStore struct {
	db *gorm.DB
}

func NewNoteStore(db *gorm.DB) *NoteStore {
	return &NoteStore{db: db}
}

func (s *NoteStore) WithTx(tx *gorm.DB) *NoteStore {
	return &NoteStore{db: tx}
}

func (s *NoteStore) Create(ctx context.Context, note *models.Note) error {
	return translate(s.db.WithContext(ctx).Create(note).Error, "Project not found")
}

func (s *NoteStore) List(ctx context.Context, projectID uint) ([]models.Note, error) {
	var notes []models.Note
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&notes).Error; err != nil {
		return nil, translate(err, "")
	}
	return notes, nil
}

func (s *NoteStore) Find(ctx context.Context, projectID, noteID uint) (*models.Note, error) {
	var note models.Note
	err := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", noteID, projectID).First(&note).Error
	if err != nil {
		return nil, translate(err, "Note not found")
	}
	return &note, nil
}

func (s *NoteStore) Update(ctx context.Context, projectID, noteID uint, title, content string) (*models.Note, error) {
	res := s.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ? AND project_id = ?", noteID, projectID).
		Updates(map[string]interface{}{"title": title, "content": content})
	if res.Error != nil {
		return nil, translate(res.Error, "Note not found")
	}
	if res.RowsAffected == 0 {
		return nil, apierr.NotFound("Note not found")
	}
	return s.Find(ctx, projectID, noteID)
}

func (s *NoteStore) Delete(ctx context.Context, projectID, noteID uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", noteID, projectID).Delete(&models.Note{})
	if res.Error != nil {
		return translate(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("Note not found")
	}
	return nil
}

func (s *NoteStore) DeleteByProject(ctx context.Context, projectID uint) (int64, error) {
	res := s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Note{})
	if res.Error != nil {
		return 0, translate(res.Error, "")
	}
	return res.RowsAffected, nil
}
