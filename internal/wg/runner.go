package wg

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Типизированные отказы wg-команд. Задачи реконсиляции классифицируют
// их в terminal/retryable, здесь — только факты.
var (
	ErrTimeout          = errors.New("wg: command timed out")
	ErrUnavailable      = errors.New("wg: binary not found")
	ErrUnsupported      = errors.New("wg: unsupported on this platform")
	ErrKeygenFailed     = errors.New("wg: key generation failed")
	ErrPermissionDenied = errors.New("wg: permission denied")
	ErrCommandFailed    = errors.New("wg: command failed")
)

// Runner — низкоуровневый запуск wg. Механизм эскалации привилегий —
// вопрос деплоя: либо sudo -n, либо абсолютный путь без sudo.
type Runner struct {
	Bin  string // "wg" или абсолютный путь
	Sudo bool   // префикс sudo -n
}

func (r Runner) argv(args ...string) (string, []string) {
	bin := r.Bin
	if bin == "" {
		bin = "wg"
	}
	if r.Sudo {
		return "sudo", append([]string{"-n", bin}, args...)
	}
	return bin, args
}

// Run выполняет команду, stdin опционален. Возвращает trimmed stdout.
func (r Runner) Run(ctx context.Context, stdin string, args ...string) (string, error) {
	name, argv := r.argv(args...)
	cmd := exec.CommandContext(ctx, name, argv...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}
	if ctx.Err() != nil {
		return "", ErrTimeout
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return "", ErrUnavailable
	}
	// Абсолютный путь к несуществующему бинарю — fork/exec ENOENT.
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrUnavailable
	}
	msg := strings.TrimSpace(stderr.String())
	if permissionLike(msg) {
		return "", wrapMsg(ErrPermissionDenied, msg)
	}
	return "", wrapMsg(ErrCommandFailed, msg)
}

// permissionLike распознаёт отказ границы привилегий: sudo -n без
// настроенного sudoers либо прямой EPERM от ядра.
func permissionLike(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{
		"a password is required",
		"permission denied",
		"operation not permitted",
		"sudo:",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func wrapMsg(sentinel error, msg string) error {
	if msg == "" {
		return sentinel
	}
	return &cmdError{sentinel: sentinel, msg: msg}
}

type cmdError struct {
	sentinel error
	msg      string
}

func (e *cmdError) Error() string { return e.sentinel.Error() + ": " + e.msg }
func (e *cmdError) Unwrap() error { return e.sentinel }
