package localdir

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"toolsyncd/internal/domain"
)

// Subscribe registers an instance-change callback for a service.
// Manifest edits notify every subscribed service; the reconciler is
// idempotent, so over-notification is harmless. Duplicate registration
// replaces the callback for the same service.
func (b *Backend) Subscribe(ctx context.Context, service, group string, onChange func(service string)) error {
	if err := b.ensureWatcher(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return domain.E(domain.CodeUnavailable, "localdir.Subscribe", "backend is closed", nil)
	}
	b.subscriptions[service] = onChange
	return nil
}

// AddListener registers a config-change callback for a key. Duplicate
// registration replaces the callback for the same key.
func (b *Backend) AddListener(ctx context.Context, key, group string, onChange func(key string)) error {
	if err := b.ensureWatcher(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return domain.E(domain.CodeUnavailable, "localdir.AddListener", "backend is closed", nil)
	}
	b.configListeners[filepath.Base(key)] = onChange
	return nil
}

func (b *Backend) ensureWatcher() error {
	b.watchOnce.Do(func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			b.watchErr = domain.E(domain.CodeInternal, "localdir.ensureWatcher", "create watcher", err)
			return
		}
		if err := watcher.Add(b.path); err != nil {
			_ = watcher.Close()
			b.watchErr = domain.E(domain.CodeInternal, "localdir.ensureWatcher", "watch "+b.path, err)
			return
		}
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			_ = watcher.Close()
			b.watchErr = domain.E(domain.CodeUnavailable, "localdir.ensureWatcher", "backend is closed", nil)
			return
		}
		b.watcher = watcher
		b.mu.Unlock()
		go b.watchLoop(watcher)
	})
	return b.watchErr
}

func (b *Backend) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-b.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			b.debounce(filepath.Base(event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("directory watch error", zap.Error(err))
		}
	}
}

// debounce coalesces the burst of events an editor emits for one save.
func (b *Backend) debounce(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if timer, ok := b.pending[name]; ok {
		timer.Reset(watchDebounce)
		return
	}
	b.pending[name] = time.AfterFunc(watchDebounce, func() {
		b.mu.Lock()
		delete(b.pending, name)
		b.mu.Unlock()
		b.dispatch(name)
	})
}

func (b *Backend) dispatch(name string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if name == manifestName {
		callbacks := make(map[string]func(string), len(b.subscriptions))
		for service, fn := range b.subscriptions {
			callbacks[service] = fn
		}
		b.mu.Unlock()
		for service, fn := range callbacks {
			fn(service)
		}
		return
	}
	fn, ok := b.configListeners[name]
	b.mu.Unlock()
	if ok {
		fn(name)
	}
}
