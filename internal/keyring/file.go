package keyring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileSource serves a JWKS document from a local file, for deployments that
// pin provider keys instead of fetching them over the network (air-gapped
// environments, integration rigs). The file is re-read when it changes so key
// rotation does not require a restart.
type FileSource struct {
	path    string
	watcher *fsnotify.Watcher

	mu   sync.RWMutex
	data []byte
}

// NewFileSource reads the JWKS file at path and watches it for changes. The
// file must exist and be readable at construction time.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyring: read jwks file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("keyring: watch jwks file: %w", err)
	}
	// Watch the directory, not the file: atomic replaces (write to temp,
	// rename over) drop the watch when placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("keyring: watch jwks dir: %w", err)
	}

	s := &FileSource{path: path, watcher: watcher, data: data}
	go s.watch()
	return s, nil
}

// Fetch returns the most recently loaded file contents.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...), nil
}

// Close stops watching the file.
func (s *FileSource) Close() error {
	return s.watcher.Close()
}

func (s *FileSource) watch() {
	base := filepath.Base(s.path)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(s.path)
			if err != nil {
				// Transient mid-rotation state; keep serving the last
				// good contents.
				continue
			}
			s.mu.Lock()
			s.data = data
			s.mu.Unlock()
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
