// Package config handles client and daemon configuration files.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/austinkregel/local-media/playbackclient/internal/ipc"
)

const (
	appName = "musicd"

	defaultClientName       = "musicctl"
	defaultCallTimeout      = 10 * time.Second
	defaultCoverSize        = 256
	defaultProgressInterval = time.Second
)

// Config represents the configuration file
type Config struct {
	Client      ClientConfig      `koanf:"client" toml:"client"`
	Preferences PreferencesConfig `koanf:"preferences" toml:"preferences"`
	Service     ServiceConfig     `koanf:"service" toml:"service"`
}

// ClientConfig holds settings used by programs that bind to the service
type ClientConfig struct {
	SocketPath  string `koanf:"socket_path" toml:"socket_path,omitempty"`
	ClientName  string `koanf:"client_name" toml:"client_name,omitempty"`
	TokenPath   string `koanf:"token_path" toml:"token_path,omitempty"`
	CallTimeout string `koanf:"call_timeout" toml:"call_timeout,omitempty"` // e.g. "5s", "0" disables
}

// PreferencesConfig holds user preferences applied on every bind
type PreferencesConfig struct {
	EnableHeadsetDetection *bool `koanf:"enable_headset_detection" toml:"enable_headset_detection,omitempty"` // default: true
}

// ServiceConfig holds daemon settings
type ServiceConfig struct {
	DataDir          string `koanf:"data_dir" toml:"data_dir,omitempty"`
	RememberQueue    *bool  `koanf:"remember_queue" toml:"remember_queue,omitempty"` // default: true
	CoverSize        int    `koanf:"cover_size" toml:"cover_size,omitempty"`         // pixels, default: 256
	ProgressInterval string `koanf:"progress_interval" toml:"progress_interval,omitempty"`
}

// Manager holds the loaded configuration and the file it is saved to
type Manager struct {
	mu     sync.RWMutex
	path   string
	config *Config
}

// Load reads configuration. An explicit path replaces the default search
// (the xdg config file, then ./musicd.toml, last wins).
func Load(explicit string) (*Manager, error) {
	if explicit != "" {
		return LoadFiles(explicit, explicit)
	}
	paths := searchPaths()
	return LoadFiles(paths[0], paths...)
}

// LoadFiles merges the existing files among paths in order and saves to savePath.
// When any of paths exists, the last existing one becomes the save target instead.
func LoadFiles(savePath string, paths ...string) (*Manager, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		log.Printf("[CONFIG] Loaded %s", path)
		savePath = path
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &Manager{path: savePath, config: cfg}, nil
}

func searchPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		appName + ".toml",
	}
}

// Save writes the configuration to its file
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := gotoml.Marshal(m.config)
	path := m.path
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the file Save writes to
func (m *Manager) Path() string {
	return m.path
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// SocketPath returns the service endpoint
func (m *Manager) SocketPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.Client.SocketPath != "" {
		return expandPath(m.config.Client.SocketPath)
	}
	return ipc.DefaultSocketPath()
}

// ClientName returns the name sent when pairing
func (m *Manager) ClientName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.Client.ClientName != "" {
		return m.config.Client.ClientName
	}
	return defaultClientName
}

// TokenPath returns where the client caches its pairing token
func (m *Manager) TokenPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.Client.TokenPath != "" {
		return expandPath(m.config.Client.TokenPath)
	}
	return filepath.Join(xdg.DataHome, appName, "client-token")
}

// CallTimeout returns the per-call timeout; zero means none
func (m *Manager) CallTimeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return parseDuration(m.config.Client.CallTimeout, defaultCallTimeout)
}

// HeadsetDetection reports whether the service should pause on headset unplug
func (m *Manager) HeadsetDetection() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v := m.config.Preferences.EnableHeadsetDetection; v != nil {
		return *v
	}
	return true
}

// SetHeadsetDetection stores the headset preference and saves the file
func (m *Manager) SetHeadsetDetection(enabled bool) error {
	m.mu.Lock()
	m.config.Preferences.EnableHeadsetDetection = &enabled
	m.mu.Unlock()
	return m.Save()
}

// DataDir returns the daemon data directory
func (m *Manager) DataDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.Service.DataDir != "" {
		return expandPath(m.config.Service.DataDir)
	}
	return filepath.Join(xdg.DataHome, appName)
}

// RememberQueue reports whether the daemon persists its queue across restarts
func (m *Manager) RememberQueue() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v := m.config.Service.RememberQueue; v != nil {
		return *v
	}
	return true
}

// CoverSize returns the maximum cover edge in pixels
func (m *Manager) CoverSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config.Service.CoverSize > 0 {
		return m.config.Service.CoverSize
	}
	return defaultCoverSize
}

// ProgressInterval returns how often progress notifications are pushed
func (m *Manager) ProgressInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := parseDuration(m.config.Service.ProgressInterval, defaultProgressInterval)
	if d <= 0 {
		return defaultProgressInterval
	}
	return d
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("[CONFIG] Invalid duration %q, using %v", s, def)
		return def
	}
	return d
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
