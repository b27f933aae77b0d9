package repo

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wgfleet/internal/models"
)

type TaskLogStore struct{ db *gorm.DB }

func NewTaskLogStore(db *gorm.DB) *TaskLogStore { return &TaskLogStore{db: db} }

func (s *TaskLogStore) Append(ctx context.Context, kind string, entityID uint, status string, attempts int, details map[string]any) error {
	var js datatypes.JSON
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			js = datatypes.JSON(b)
		}
	}
	return s.db.WithContext(ctx).Create(&models.TaskLog{
		Kind:     kind,
		EntityID: entityID,
		Status:   status,
		Attempts: attempts,
		Details:  js,
	}).Error
}

func (s *TaskLogStore) Recent(ctx context.Context, limit int) ([]models.TaskLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []models.TaskLog
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
