package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce window for bursts of write events. Editors often emit
// several events per save.
const debounce = 100 * time.Millisecond

// FileProvider reads config from a local file and can watch it for
// changes via fsnotify.
type FileProvider struct {
	path string

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	closed bool
}

// NewFileProvider resolves path and returns a file-backed provider.
func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	return &FileProvider{path: abs}, nil
}

// Type returns TypeFile.
func (p *FileProvider) Type() Type { return TypeFile }

// Load reads the whole file.
func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", p.path, err)
	}
	return data, nil
}

// Watch signals on the returned channel whenever the file is written or
// recreated. The watch is placed on the parent directory because
// watching the file itself breaks on rename-based saves.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(p.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(p.path), err)
	}
	p.fsw = fsw

	ch := make(chan struct{}, 1)
	go p.run(ctx, fsw, ch)

	slog.Info("Watching config file", "path", p.path)
	return ch, nil
}

func (p *FileProvider) run(ctx context.Context, fsw *fsnotify.Watcher, ch chan struct{}) {
	defer close(ch)
	defer fsw.Close()

	var pending *time.Timer
	stopPending := func() {
		if pending != nil {
			pending.Stop()
		}
	}
	defer stopPending()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(p.path) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
				stopPending()
				pending = time.AfterFunc(debounce, func() { p.signal(ch) })
			case ev.Has(fsnotify.Remove):
				slog.Warn("Config file removed, waiting for it to come back", "path", p.path)
				go p.rewatch(ctx, fsw, ch)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// signal performs a non-blocking send; a full channel already has a
// change pending.
func (p *FileProvider) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
		slog.Debug("Config file changed", "path", p.path)
	default:
	}
}

// rewatch polls for the file to reappear after a delete, re-adding the
// directory watch and signalling once it does. Gives up after 5s.
func (p *FileProvider) rewatch(ctx context.Context, fsw *fsnotify.Watcher, ch chan struct{}) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
		if _, err := os.Stat(p.path); err != nil {
			continue
		}
		if err := fsw.Add(filepath.Dir(p.path)); err != nil {
			continue
		}
		slog.Info("Re-established watch on config file", "path", p.path)
		p.signal(ch)
		return
	}
	slog.Warn("Failed to re-establish watch on config file", "path", p.path)
}

// Close stops watching and releases resources.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.fsw == nil {
		return nil
	}
	err := p.fsw.Close()
	p.fsw = nil
	return err
}

var _ Provider = (*FileProvider)(nil)
