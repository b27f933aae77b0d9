package cache

import (
	"context"

	"wgfleet/internal/logs"
)

// BestEffort оборачивает Cache контрактом «кэш не источник истины»:
// любая ошибка чтения/записи/инвалидации гасится и логируется, miss
// отдаётся вместо сбоя. Реконсиляция никогда не падает из-за кэша.
type BestEffort struct {
	inner Cache
}

func NewBestEffort(inner Cache) *BestEffort {
	return &BestEffort{inner: inner}
}

func (b *BestEffort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := b.inner.Get(ctx, key)
	if err != nil {
		logs.Logger.Warnf("cache get %s: %v", key, err)
		return nil, false, nil
	}
	return v, ok, nil
}

func (b *BestEffort) Set(ctx context.Context, key string, value []byte) error {
	if err := b.inner.Set(ctx, key, value); err != nil {
		logs.Logger.Warnf("cache set %s: %v", key, err)
	}
	return nil
}

func (b *BestEffort) Invalidate(ctx context.Context, keys ...string) error {
	if err := b.inner.Invalidate(ctx, keys...); err != nil {
		logs.Logger.Warnf("cache invalidate %v: %v", keys, err)
	}
	return nil
}
