package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/geometry"
	"github.com/wricardo/driving-tour/game/service"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultTour is the config tried first when picking the default.
const DefaultTour = "classic"

// Manager handles tour loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.TourConfig
	defaultName   string
	language      string
	configs       map[string]*engine.TourConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.TourConfig),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a tour by name. The .json suffix is optional.
func (m *Manager) LoadConfig(name string) (*engine.TourConfig, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}

	m.mu.RLock()
	if config, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[name]; exists {
		return config, nil
	}

	data, err := os.ReadFile(filepath.Join(m.configDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config engine.TourConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, name, err)
	}
	if err := engine.ValidateTourConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if config.Language == "" {
		config.Language = m.language
	}

	m.configs[name] = &config
	return &config, nil
}

// ReloadConfig drops a cached tour and reads it again.
func (m *Manager) ReloadConfig(name string) error {
	name = strings.TrimSuffix(name, ".json")
	m.mu.Lock()
	delete(m.configs, name)
	m.mu.Unlock()

	_, err := m.LoadConfig(name)
	return err
}

// ListConfigs returns the valid tours in the directory, sorted by id.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	configs := []*service.ConfigInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		config, err := m.LoadConfig(name)
		if err != nil {
			// Skip invalid configs
			continue
		}

		configs = append(configs, &service.ConfigInfo{
			Filename:      entry.Name(),
			ConfigID:      name,
			Name:          config.Name,
			Description:   config.Description,
			Language:      config.Language,
			Stops:         len(config.Stops),
			ControlPoints: len(config.Track.ControlPoints),
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default tour
func (m *Manager) GetDefault() *engine.TourConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default tour by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.setDefault(strings.TrimSuffix(name, ".json"), config)
	return nil
}

// DefaultName is the config id of the default tour.
func (m *Manager) DefaultName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultName
}

// SetLanguage is the label language of tours that do not name one. It
// applies to tours loaded afterwards, so call it before serving.
func (m *Manager) SetLanguage(lang string) {
	m.mu.Lock()
	m.language = lang
	m.mu.Unlock()
}

// RefreshCache empties the cache and picks the default again.
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.TourConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// Count is the number of cached tours.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.configs)
}

// loadDefaultConfig prefers classic, then the first valid tour, then a
// built-in straight road.
func (m *Manager) loadDefaultConfig() error {
	name := DefaultTour
	config, err := m.LoadConfig(name)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			m.setDefault("default", createMinimalConfig())
			return nil
		}

		name = configs[0].ConfigID
		config, err = m.LoadConfig(name)
		if err != nil {
			m.setDefault("default", createMinimalConfig())
			return nil
		}
	}

	m.setDefault(name, config)
	return nil
}

func (m *Manager) setDefault(name string, config *engine.TourConfig) {
	m.mu.Lock()
	m.defaultName = name
	m.defaultConfig = config
	m.mu.Unlock()
}

// SaveConfig validates and writes a tour to disk
func (m *Manager) SaveConfig(name string, config *engine.TourConfig) error {
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: bad name %q", ErrInvalidConfig, name)
	}
	if err := engine.ValidateTourConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.configDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[name] = config
	m.mu.Unlock()

	return nil
}

// createMinimalConfig is a diagonal road with no stops.
func createMinimalConfig() *engine.TourConfig {
	return &engine.TourConfig{
		Name:        "default",
		Description: "Default minimal tour",
		Track: engine.TrackConfig{
			ControlPoints: []geometry.ControlPoint{{X: 0.1, Y: 0.9}, {X: 0.5, Y: 0.5}, {X: 0.9, Y: 0.1}},
		},
		Messages: engine.Messages{
			Welcome: "Acelere para comecar a trilha.",
			Victory: "Trilha concluida!",
		},
	}
}
