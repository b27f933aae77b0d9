package wg

import (
	"context"
	"errors"
	"runtime"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Keygen — генерация ключевой пары. Backend "exec": два запуска хостового
// wg (genkey, затем pubkey со приватным ключом на stdin), каждый ограничен
// Timeout. Backend "native": wgtypes, без субпроцессов (разработка,
// платформы без wg). Сам Keygen никогда не ретраит — политика повторов
// принадлежит вызывающему.
type Keygen struct {
	Runner  Runner
	Timeout time.Duration
	Native  bool
}

const defaultKeygenTimeout = 10 * time.Second

// Generate возвращает (privateKey, publicKey) в base64 по 44 символа.
func (k Keygen) Generate(ctx context.Context) (string, string, error) {
	if k.Native {
		priv, err := wgtypes.GeneratePrivateKey()
		if err != nil {
			return "", "", errors.Join(ErrKeygenFailed, err)
		}
		return priv.String(), priv.PublicKey().String(), nil
	}

	if runtime.GOOS == "windows" {
		// Хостовой капабилити здесь нет; native-backend — явный выбор.
		return "", "", ErrUnsupported
	}

	timeout := k.Timeout
	if timeout <= 0 {
		timeout = defaultKeygenTimeout
	}

	priv, err := k.step(ctx, timeout, "")
	if err != nil {
		return "", "", err
	}
	pub, err := k.step(ctx, timeout, priv, "pubkey")
	if err != nil {
		return "", "", err
	}
	return priv, pub, nil
}

func (k Keygen) step(ctx context.Context, timeout time.Duration, stdin string, args ...string) (string, error) {
	if len(args) == 0 {
		args = []string{"genkey"}
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := k.Runner.Run(stepCtx, stdin, args...)
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return "", err
	default:
		// Любой иной ненулевой результат — провал генерации.
		return "", errors.Join(ErrKeygenFailed, err)
	}
	if out == "" {
		return "", errors.Join(ErrKeygenFailed, errors.New("empty output"))
	}
	if _, err := wgtypes.ParseKey(out); err != nil {
		return "", errors.Join(ErrKeygenFailed, err)
	}
	return out, nil
}
