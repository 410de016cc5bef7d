package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PersonaFile manages a dynamically reloadable global default personality
// prompt. The file can be edited while the bot is running; changes apply to
// the next message without a restart. An absent or empty file means no
// global default.
type PersonaFile struct {
	mu       sync.RWMutex
	prompt   string
	filePath string
	watcher  *fsnotify.Watcher
}

// NewPersonaFile creates a PersonaFile from a path. An empty path yields a
// disabled instance that always returns "".
func NewPersonaFile(filePath string) *PersonaFile {
	p := &PersonaFile{filePath: filePath}

	if filePath == "" {
		return p
	}

	if err := p.reload(); err != nil {
		log.Printf("файл личности не прочитан (глобальная личность отключена): %v", err)
	}

	return p
}

// Get returns the current global default prompt, "" if none.
func (p *PersonaFile) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prompt
}

func (p *PersonaFile) reload() error {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.prompt = strings.TrimSpace(string(data))
	p.mu.Unlock()
	return nil
}

// Watch starts watching the persona file for changes until ctx is done.
func (p *PersonaFile) Watch(ctx context.Context) error {
	if p.filePath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	p.watcher = watcher

	// Watch the directory, not the file: editors replace files via
	// rename, which drops a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(p.filePath)); err != nil {
		watcher.Close() //nolint:errcheck
		return err
	}

	go p.watchLoop(ctx)
	return nil
}

func (p *PersonaFile) watchLoop(ctx context.Context) {
	defer p.watcher.Close() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			p.handleFileEvent(event)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ошибка наблюдения за файлом личности: %v", err)
		}
	}
}

func (p *PersonaFile) handleFileEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(p.filePath) {
		return
	}

	shouldReload := event.Op&fsnotify.Write == fsnotify.Write ||
		event.Op&fsnotify.Create == fsnotify.Create ||
		event.Op&fsnotify.Rename == fsnotify.Rename

	if !shouldReload {
		return
	}

	// Small delay: editors often fire Write before the content lands.
	time.Sleep(100 * time.Millisecond)

	if err := p.reload(); err != nil {
		log.Printf("перечитать файл личности не удалось: %v", err)
		return
	}
	log.Printf("файл личности перечитан: %s", p.filePath)
}
