package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"doccopilot/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document record failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetBySessionID(sessionID string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("session_id = ?", sessionID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by session id failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) List(limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	var docs []model.Document
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list document records failed: %w", err)
	}
	return docs, nil
}
