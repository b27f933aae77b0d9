package cache

import (
	"context"
	"fmt"
)

// Фиксированные ключи кэша. TTL бесконечный — записи живут до явной
// инвалидации.
const (
	KeyDefaultServer = "default-server"
	KeyActivePeers   = "active-peers"
	KeySMTPSettings  = "smtp-settings"
)

// KeyServerConfig — производный конфиг конкретного сервера.
func KeyServerConfig(serverID uint) string {
	return fmt.Sprintf("server-config:%d", serverID)
}

// Cache — key/value с явной инвалидацией. Значения — сериализованные
// срезы сущностей (JSON); интерпретация — на вызывающей стороне.
//
// Контракт best-effort живёт уровнем выше (BestEffort): здесь ошибки
// возвращаются как есть, чтобы реализации оставались тестируемыми.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, keys ...string) error
}
