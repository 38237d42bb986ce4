package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/andlab/doctas/internal/logging"
)

// ReloadFunc is called after a changed file was loaded and validated.
type ReloadFunc func(old, updated *Config)

type Manager struct {
	mu       sync.RWMutex
	path     string
	config   *Config
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	handlers []ReloadFunc
	logger   zerolog.Logger
}

// NewManager loads the config at the default location.
func NewManager() (*Manager, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerFile(path)
}

func NewManagerFile(path string) (*Manager, error) {
	logger := logging.WithComponent("config")

	config, err := LoadFile(path)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load initial configuration")
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("configuration loaded")
	return &Manager{
		path:   path,
		config: config,
		logger: logger,
	}, nil
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// OnReload registers fn to run after every successful reload.
func (m *Manager) OnReload(fn ReloadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

func (m *Manager) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	m.watcher = watcher

	// editors replace the file, so watch the directory
	configDir := filepath.Dir(m.path)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return err
	}

	m.wg.Add(1)
	go m.watchLoop(ctx)

	m.logger.Info().Str("path", m.path).Msg("watching for changes")
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	configFileName := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFileName {
				continue
			}

			// Only react to Write and Create events (ignore Chmod, Remove, etc.)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				m.logger.Debug().Str("event", event.String()).Msg("config file changed")
				m.Reload()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("config watcher error")

		case <-ctx.Done():
			return
		}
	}
}

// Reload re-reads the file. An unreadable or invalid file keeps the current
// configuration.
func (m *Manager) Reload() bool {
	newConfig, err := LoadFile(m.path)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to reload config")
		return false
	}
	if err := newConfig.Validate(); err != nil {
		m.logger.Warn().Err(err).Msg("invalid config after reload, keeping previous")
		return false
	}

	m.mu.Lock()
	old := m.config
	m.config = newConfig
	handlers := append([]ReloadFunc(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info().Msg("configuration reloaded")
	for _, fn := range handlers {
		fn(old, newConfig)
	}
	return true
}
