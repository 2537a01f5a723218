package sysconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
	ErrMalformed         = errors.New("malformed configuration document")
)

var supportedFormats = map[string]string{
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".toml": "toml",
}

// Manager holds the configuration in effect and persists changes to path.
// It is safe for concurrent use.
type Manager struct {
	path      string
	logger    *zap.Logger
	mu        sync.RWMutex
	current   Configuration
	listeners []func(Configuration)
}

// Load reads the document at path. A missing file yields the defaults, which
// are written to path so operators have a template to edit.
func Load(path string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{path: path, logger: logger, current: Defaults()}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info("system configuration not found, writing defaults", zap.String("path", path))
		if err := m.Save(); err != nil {
			return nil, err
		}
		return m, nil
	}

	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	m.current = cfg
	logger.Info("system configuration loaded", zap.String("path", path))
	return m, nil
}

// NewStatic returns a Manager that never touches the filesystem unless Save
// is called with a path set. Useful for tests and one-shot CLI runs.
func NewStatic(cfg Configuration) *Manager {
	return &Manager{current: cfg, logger: zap.NewNop()}
}

// ReadFile parses and validates a configuration document. Keys missing from
// the document keep their default values; unknown keys are rejected.
func ReadFile(path string) (Configuration, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format, ok := supportedFormats[ext]
	if !ok {
		return Configuration{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(format)
	if err := v.ReadInConfig(); err != nil {
		return Configuration{}, fmt.Errorf("%w: failed to read system configuration: %w", ErrMalformed, err)
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}); err != nil {
		return Configuration{}, fmt.Errorf("%w: failed to decode system configuration: %w", ErrMalformed, err)
	}

	if err := Validate(cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// Current returns a copy of the configuration in effect.
func (m *Manager) Current() Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) Path() string {
	return m.path
}

// OnChange registers fn to be called after every successful Import or Update.
func (m *Manager) OnChange(fn func(Configuration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Import replaces the configuration with the document at path. On any
// parse or validation failure the previous configuration stays in effect.
func (m *Manager) Import(path string) (Configuration, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		m.logger.Warn("system configuration import rejected", zap.String("source", path), zap.Error(err))
		return m.Current(), err
	}
	if err := m.apply(cfg); err != nil {
		return m.Current(), err
	}
	m.logger.Info("system configuration imported", zap.String("source", path))
	return cfg, nil
}

// Update applies fn to a copy of the current configuration, validates and persists it.
func (m *Manager) Update(fn func(*Configuration)) (Configuration, error) {
	cfg := m.Current()
	fn(&cfg)
	if err := Validate(cfg); err != nil {
		return m.Current(), err
	}
	if err := m.apply(cfg); err != nil {
		return m.Current(), err
	}
	return cfg, nil
}

func (m *Manager) apply(cfg Configuration) error {
	m.mu.Lock()
	previous := m.current
	m.current = cfg
	m.mu.Unlock()

	if err := m.Save(); err != nil {
		m.mu.Lock()
		m.current = previous
		m.mu.Unlock()
		return err
	}

	m.mu.RLock()
	listeners := append([]func(Configuration){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// Export writes the current configuration as YAML.
func (m *Manager) Export(w io.Writer) error {
	data, err := yaml.Marshal(m.Current())
	if err != nil {
		return fmt.Errorf("failed to encode system configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Save writes the configuration to its path as YAML. An existing file is
// first copied to <path>.bak.
func (m *Manager) Save() error {
	if m.path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := m.Export(&buf); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := backupFile(m.path); err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o640); err != nil {
		return fmt.Errorf("failed to write system configuration: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace system configuration: %w", err)
	}
	return nil
}

func backupFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read configuration for backup: %w", err)
	}
	if err := os.WriteFile(path+".bak", data, 0o640); err != nil {
		return fmt.Errorf("failed to write configuration backup: %w", err)
	}
	return nil
}
