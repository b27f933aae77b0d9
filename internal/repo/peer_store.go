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

type PeerStore struct {
	db      *gorm.DB
	cache   cache.Cache
	servers *ServerStore
	crypto  Crypto
}

func NewPeerStore(db *gorm.DB, c cache.Cache, servers *ServerStore, cr Crypto) *PeerStore {
	return &PeerStore{db: db, cache: c, servers: servers, crypto: cr}
}

// -------- CRUD --------

func (s *PeerStore) Save(ctx context.Context, p *models.Peer) error {
	if p.Platform != "" && !models.ValidPlatform(p.Platform) {
		return fmt.Errorf("unknown platform %q", p.Platform)
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, cache.KeyActivePeers)
	return nil
}

func (s *PeerStore) GetByID(ctx context.Context, id uint) (*models.Peer, error) {
	var p models.Peer
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Tombstone — то, что нужно для снятия пира с живого интерфейса уже
// после удаления строки: перечитать её по id будет нельзя.
type Tombstone struct {
	PeerID    uint
	Name      string
	PublicKey string
	ServerID  *uint
}

// Delete удаляет пира и возвращает tombstone с захваченным публичным
// ключом для задачи снятия с интерфейса.
func (s *PeerStore) Delete(ctx context.Context, id uint) (*Tombstone, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Peer{}, id).Error; err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, cache.KeyActivePeers)
	return &Tombstone{
		PeerID:    p.ID,
		Name:      p.Name,
		PublicKey: p.PublicKey,
		ServerID:  p.ServerID,
	}, nil
}

// SetKeys — write-through ключей на пира при онбординге.
func (s *PeerStore) SetKeys(ctx context.Context, id uint, publicKey, privateKey string) error {
	enc, err := s.crypto.Encrypt(privateKey)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Peer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"public_key":            publicKey,
			"private_key_encrypted": enc,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	_ = s.cache.Invalidate(ctx, cache.KeyActivePeers)
	return nil
}

// PrivateKey расшифровывает приватный ключ пира.
func (s *PeerStore) PrivateKey(p *models.Peer) (string, error) {
	return s.crypto.Decrypt(p.PrivateKeyEncrypted)
}

// -------- Резолюция сервера --------

// ResolveServer: собственный сервер пира либо сервер по умолчанию.
// (nil, nil) — когда ни того ни другого нет; зависимые чтения при этом
// падают на переопределения пира, не в ошибку.
func (s *PeerStore) ResolveServer(ctx context.Context, p *models.Peer) (*models.Server, error) {
	if p.ServerID != nil {
		srv, err := s.servers.GetByID(ctx, *p.ServerID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return srv, err
	}
	return s.servers.Default(ctx)
}

// -------- Активные пиры --------

// ActivePeers — кэшируемый список срезов активных пиров (active-peers).
func (s *PeerStore) ActivePeers(ctx context.Context) ([]models.PeerSnapshot, error) {
	if raw, ok, _ := s.cache.Get(ctx, cache.KeyActivePeers); ok {
		var snaps []models.PeerSnapshot
		if err := json.Unmarshal(raw, &snaps); err == nil {
			return snaps, nil
		}
		_ = s.cache.Invalidate(ctx, cache.KeyActivePeers)
	}

	var peers []models.Peer
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Find(&peers).Error; err != nil {
		return nil, err
	}

	// Дефолтный сервер резолвим один раз на весь список.
	def, err := s.servers.Default(ctx)
	if err != nil {
		return nil, err
	}

	snaps := make([]models.PeerSnapshot, 0, len(peers))
	for i := range peers {
		p := &peers[i]
		srv := def
		if p.ServerID != nil {
			if own, err := s.servers.GetByID(ctx, *p.ServerID); err == nil {
				srv = own
			}
		}
		snaps = append(snaps, models.PeerSnapshot{
			ID:             p.ID,
			Name:           p.Name,
			Email:          p.Email,
			PublicKey:      p.PublicKey,
			AllowedIP:      p.AllowedIP,
			ServerID:       p.ServerID,
			ServerEndpoint: p.EffectiveEndpoint(srv),
			Platform:       p.Platform,
		})
	}

	if raw, err := json.Marshal(snaps); err == nil {
		_ = s.cache.Set(ctx, cache.KeyActivePeers, raw)
	}
	return snaps, nil
}

// ActivePeersForServer — свежий (мимо кэша) список активных пиров данного
// сервера для рендера конфига. Пиры без ServerID принадлежат серверу по
// умолчанию.
func (s *PeerStore) ActivePeersForServer(ctx context.Context, serverID uint) ([]models.Peer, error) {
	def, err := s.servers.Default(ctx)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("is_active = ?", true)
	if def != nil && def.ID == serverID {
		q = q.Where("server_id = ? OR server_id IS NULL", serverID)
	} else {
		q = q.Where("server_id = ?", serverID)
	}
	var peers []models.Peer
	err = q.Order("created_at DESC, id DESC").Find(&peers).Error
	return peers, err
}
