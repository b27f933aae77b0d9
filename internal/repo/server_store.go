package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wgfleet/internal/cache"
	"wgfleet/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrServerHasPeers = errors.New("server is referenced by peers")
)

// Keygen — генерация ключевой пары (см. internal/wg.Keygen).
type Keygen interface {
	Generate(ctx context.Context) (priv, pub string, err error)
}

// Crypto — шифрование приватных ключей at rest.
type Crypto interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type ServerStore struct {
	db     *gorm.DB
	cache  cache.Cache
	keygen Keygen
	crypto Crypto
}

func NewServerStore(db *gorm.DB, c cache.Cache, kg Keygen, cr Crypto) *ServerStore {
	return &ServerStore{db: db, cache: c, keygen: kg, crypto: cr}
}

// -------- Save (авто-генерация ключей) --------

// Save создаёт либо обновляет сервер. Инвариант: сервер никогда не
// сохраняется без ключевой пары — отсутствующие ключи генерируются
// синхронно в рамках этой же записи, провал генерации фатален для записи
// (полузаполненная строка в БД не появляется).
func (s *ServerStore) Save(ctx context.Context, srv *models.Server) error {
	if err := models.ValidateCIDR(srv.Address); err != nil {
		return err
	}

	if !srv.HasKeys() {
		priv, pub, err := s.keygen.Generate(ctx)
		if err != nil {
			return fmt.Errorf("cannot save server %q without valid keys: %w", srv.Name, err)
		}
		enc, err := s.crypto.Encrypt(priv)
		if err != nil {
			return fmt.Errorf("cannot save server %q without valid keys: %w", srv.Name, err)
		}
		srv.PublicKey = pub
		srv.PrivateKeyEncrypted = enc
	}

	if err := s.db.WithContext(ctx).Save(srv).Error; err != nil {
		return err
	}

	// Инвалидация производных записей (best-effort).
	_ = s.cache.Invalidate(ctx,
		cache.KeyDefaultServer,
		cache.KeyServerConfig(srv.ID),
		cache.KeyActivePeers,
	)
	return nil
}

// -------- Чтение --------

func (s *ServerStore) GetByID(ctx context.Context, id uint) (*models.Server, error) {
	var srv models.Server
	err := s.db.WithContext(ctx).First(&srv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &srv, nil
}

// Default — сервер по умолчанию: самый свежий из активных. Если активных
// нет — (nil, nil), это не ошибка. Результат кэшируется.
func (s *ServerStore) Default(ctx context.Context) (*models.Server, error) {
	if raw, ok, _ := s.cache.Get(ctx, cache.KeyDefaultServer); ok {
		var srv models.Server
		if err := json.Unmarshal(raw, &srv); err == nil {
			return &srv, nil
		}
		// Битую запись просто выкидываем.
		_ = s.cache.Invalidate(ctx, cache.KeyDefaultServer)
	}

	var srv models.Server
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		First(&srv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(&srv); err == nil {
		_ = s.cache.Set(ctx, cache.KeyDefaultServer, raw)
	}
	return &srv, nil
}

// ConfigDict — производный словарь конфигурации (server-config:{id}).
func (s *ServerStore) ConfigDict(ctx context.Context, id uint) (*models.ServerConfig, error) {
	key := cache.KeyServerConfig(id)
	if raw, ok, _ := s.cache.Get(ctx, key); ok {
		var cfg models.ServerConfig
		if err := json.Unmarshal(raw, &cfg); err == nil {
			return &cfg, nil
		}
		_ = s.cache.Invalidate(ctx, key)
	}

	srv, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg := srv.Config()
	if raw, err := json.Marshal(&cfg); err == nil {
		_ = s.cache.Set(ctx, key, raw)
	}
	return &cfg, nil
}

func (s *ServerStore) ListActive(ctx context.Context) ([]models.Server, error) {
	var out []models.Server
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// PrivateKey расшифровывает приватный ключ сервера.
func (s *ServerStore) PrivateKey(srv *models.Server) (string, error) {
	return s.crypto.Decrypt(srv.PrivateKeyEncrypted)
}

// -------- Delete (protect-on-delete) --------

// Delete отклоняет удаление, пока на сервер ссылается хотя бы один пир.
func (s *ServerStore) Delete(ctx context.Context, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.Peer{}).
		Where("server_id = ?", id).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d peer(s)", ErrServerHasPeers, n)
	}

	res := s.db.WithContext(ctx).Delete(&models.Server{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	_ = s.cache.Invalidate(ctx,
		cache.KeyDefaultServer,
		cache.KeyServerConfig(id),
		cache.KeyActivePeers,
	)
	return nil
}

// -------- Статистика --------

type ServerStats struct {
	ServerID      uint   `json:"server_id"`
	ServerName    string `json:"server_name"`
	Endpoint      string `json:"endpoint"`
	ActivePeers   int64  `json:"active_peers"`
	InactivePeers int64  `json:"inactive_peers"`
	TotalPeers    int64  `json:"total_peers"`
	Interface     string `json:"interface"`
	Port          int    `json:"port"`
	LastUpdated   string `json:"last_updated"`
}

func (s *ServerStore) Stats(ctx context.Context, id uint) (*ServerStats, error) {
	srv, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var active, inactive int64
	if err := s.db.WithContext(ctx).Model(&models.Peer{}).
		Where("server_id = ? AND is_active = ?", id, true).Count(&active).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Peer{}).
		Where("server_id = ? AND is_active = ?", id, false).Count(&inactive).Error; err != nil {
		return nil, err
	}
	return &ServerStats{
		ServerID:      srv.ID,
		ServerName:    srv.Name,
		Endpoint:      srv.Endpoint,
		ActivePeers:   active,
		InactivePeers: inactive,
		TotalPeers:    active + inactive,
		Interface:     srv.Interface,
		Port:          srv.Port,
		LastUpdated:   srv.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
