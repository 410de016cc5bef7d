package util

import (
	"log"
	"os"
	"path/filepath"
)

// GetFilePath resolves a data file path. Files under the working
// directory's data/ take precedence; otherwise the data/ directory next to
// the executable is used.
func GetFilePath(filename string) string {
	localPath := filepath.Join("data", filename)
	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}

	exePath, err := os.Executable()
	if err != nil {
		log.Fatal("ошибка определения пути исполняемого файла: ", err)
	}
	exeDir := filepath.Dir(exePath)
	return filepath.Join(exeDir, "data", filename)
}

// EnsureDataDir creates the data directory for the given file path.
func EnsureDataDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
