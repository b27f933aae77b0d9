package repo

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"wgfleet/internal/cache"
	"wgfleet/internal/models"
)

type SMTPStore struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewSMTPStore(db *gorm.DB, c cache.Cache) *SMTPStore {
	return &SMTPStore{db: db, cache: c}
}

// Get — актуальные настройки SMTP (кэш smtp-settings). Настроек может
// не быть вовсе — тогда (nil, nil).
func (s *SMTPStore) Get(ctx context.Context) (*models.SMTPSettings, error) {
	if raw, ok, _ := s.cache.Get(ctx, cache.KeySMTPSettings); ok {
		var st models.SMTPSettings
		if err := json.Unmarshal(raw, &st); err == nil {
			return &st, nil
		}
		_ = s.cache.Invalidate(ctx, cache.KeySMTPSettings)
	}

	var st models.SMTPSettings
	err := s.db.WithContext(ctx).Order("id DESC").First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(&st); err == nil {
		_ = s.cache.Set(ctx, cache.KeySMTPSettings, raw)
	}
	return &st, nil
}

func (s *SMTPStore) Save(ctx context.Context, st *models.SMTPSettings) error {
	if err := s.db.WithContext(ctx).Save(st).Error; err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, cache.KeySMTPSettings)
	return nil
}

func (s *SMTPStore) Delete(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Delete(&models.SMTPSettings{}, id).Error; err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, cache.KeySMTPSettings)
	return nil
}
