package wg

import (
	"context"
	"runtime"
	"strconv"
)

// Live — управление таблицей пиров работающего интерфейса через wg set.
// Интерфейс никогда не поднимается, не опускается и не рестартует.
// Обе операции идемпотентны: повторный apply с теми же аргументами и
// remove несуществующего пира — не ошибка (семантика самого wg set).
// На платформе без wg обе операции — no-op с успехом (локальный запуск).
type Live struct {
	Runner Runner
}

func (l Live) supported() bool {
	return runtime.GOOS != "windows"
}

// ApplyPeer ставит либо обновляет одну запись пира.
func (l Live) ApplyPeer(ctx context.Context, iface, publicKey, allowedIPs string, keepalive int) error {
	if !l.supported() {
		return nil
	}
	args := []string{"set", iface, "peer", publicKey, "allowed-ips", allowedIPs}
	if keepalive > 0 {
		args = append(args, "persistent-keepalive", strconv.Itoa(keepalive))
	}
	_, err := l.Runner.Run(ctx, "", args...)
	return err
}

// RemovePeer удаляет одну запись пира.
func (l Live) RemovePeer(ctx context.Context, iface, publicKey string) error {
	if !l.supported() {
		return nil
	}
	_, err := l.Runner.Run(ctx, "", "set", iface, "peer", publicKey, "remove")
	return err
}
