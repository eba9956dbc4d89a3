package plugins

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

const manifestSuffix = ".plugin.yaml"

// Discovered is a plugin found on disk: its executable plus parsed manifest.
type Discovered struct {
	Name         string
	Path         string
	ManifestPath string
	Manifest     *Manifest
}

// Discover walks dir for <binary>.plugin.yaml manifests and returns every
// valid plugin. A broken manifest is logged and skipped; a missing directory
// yields an empty result.
func Discover(dir string) ([]*Discovered, error) {
	dir = expandPath(dir)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var found []*Discovered
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, manifestSuffix) {
			return nil
		}

		execPath := strings.TrimSuffix(path, manifestSuffix)
		plugin, err := loadFromManifest(execPath, path)
		if err != nil {
			slog.Warn("Skipping plugin with bad manifest", "manifest", path, "error", err)
			return nil
		}
		found = append(found, plugin)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plugin directory %s: %w", dir, err)
	}

	return found, nil
}

// DiscoverAt loads the manifest next to a single plugin executable. path may
// name either the executable or its manifest.
func DiscoverAt(path string) (*Discovered, error) {
	path = expandPath(path)
	execPath := strings.TrimSuffix(path, manifestSuffix)
	return loadFromManifest(execPath, execPath+manifestSuffix)
}

func loadFromManifest(execPath, manifestPath string) (*Discovered, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var wrapper struct {
		Plugin Manifest `yaml:"plugin"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	manifest := &wrapper.Plugin
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	info, err := os.Stat(execPath)
	if err != nil {
		return nil, fmt.Errorf("plugin executable not found: %s", execPath)
	}
	if info.Mode()&0111 == 0 {
		return nil, fmt.Errorf("plugin is not executable: %s", execPath)
	}

	return &Discovered{
		Name:         manifest.Name,
		Path:         execPath,
		ManifestPath: manifestPath,
		Manifest:     manifest,
	}, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
