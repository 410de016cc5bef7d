package util

import (
	"fmt"

	"github.com/gofrs/flock"
)

// AcquireInstanceLock takes an exclusive lock on the named file under the
// data directory. Long polling breaks when two processes share one bot
// token, so a second instance must refuse to start. The caller unlocks on
// shutdown.
func AcquireInstanceLock(filename string) (*flock.Flock, error) {
	path := GetFilePath(filename)
	if err := EnsureDataDir(path); err != nil {
		return nil, fmt.Errorf("создание каталога данных: %w", err)
	}

	fileLock := flock.New(path)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("захват файла блокировки: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("файл %s уже заблокирован, похоже бот уже запущен", path)
	}
	return fileLock, nil
}
