package wg

import (
	"errors"
	"os"
	"path/filepath"
)

// WriteConf долговечно заменяет <dir>/<iface>.conf: временный файл в том
// же каталоге, права 0600, fsync, атомарный rename. Внешний читатель
// никогда не видит полузаписанный конфиг. Отказ прав — ErrPermissionDenied
// (граница привилегий настроена неверно, ретраи не помогут).
func WriteConf(dir, iface string, content []byte) (string, error) {
	path := filepath.Join(dir, iface+".conf")

	tmp, err := os.CreateTemp(dir, "."+iface+".conf.*")
	if err != nil {
		return "", classifyFSErr(err)
	}
	tmpName := tmp.Name()
	defer func() {
		// На любом провале — подчистить временный файл.
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return "", classifyFSErr(err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", classifyFSErr(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", classifyFSErr(err)
	}
	if err := tmp.Close(); err != nil {
		return "", classifyFSErr(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", classifyFSErr(err)
	}
	return path, nil
}

func classifyFSErr(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return errors.Join(ErrPermissionDenied, err)
	}
	return err
}
