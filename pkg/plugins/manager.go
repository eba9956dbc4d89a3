package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Manager discovers, loads, and owns every plugin instance of one directory.
type Manager struct {
	loader *Loader

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		loader:    NewLoader(),
		instances: make(map[string]*Instance),
	}
}

// LoadAll discovers plugins under dir and loads each one. A plugin that fails
// to load is logged and skipped; duplicates by name are rejected.
func (m *Manager) LoadAll(ctx context.Context, dir string) error {
	discovered, err := Discover(dir)
	if err != nil {
		return err
	}

	for _, plugin := range discovered {
		m.mu.RLock()
		_, taken := m.instances[plugin.Name]
		m.mu.RUnlock()
		if taken {
			return newPluginError(plugin.Name, "LoadAll",
				fmt.Sprintf("duplicate plugin name at %s", plugin.Path), nil)
		}

		instance, err := m.loader.Load(ctx, plugin)
		if err != nil {
			slog.Warn("Failed to load plugin", "plugin", plugin.Name, "error", err)
			continue
		}

		m.mu.Lock()
		m.instances[plugin.Name] = instance
		m.mu.Unlock()
	}

	return nil
}

// Get returns the named instance.
func (m *Manager) Get(name string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	instance, ok := m.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return instance, nil
}

// List returns all loaded instances sorted by name.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	instances := make([]*Instance, 0, len(m.instances))
	for _, instance := range m.instances {
		instances = append(instances, instance)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Name() < instances[j].Name()
	})
	return instances
}

// Close shuts down every instance.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, instance := range m.instances {
		if err := instance.Close(); err != nil {
			slog.Warn("Failed to close plugin", "plugin", name, "error", err)
		}
	}
	m.instances = make(map[string]*Instance)
	return nil
}
