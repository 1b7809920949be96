// Package config handles application configuration and preset persistence
// (spec §4.7, a collaborator spec §1 calls external to the core but a
// complete daemon needs a concrete implementation of).
//
// Grounded on uplg-asahi-map's internal/config/config.go (search-path
// precedence, gopkg.in/yaml.v3 marshaling), generalized from one static
// "layout" selector to a list of mapping presets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/uplg/remapd/internal/eventmodel"
)

// Config is the process-level configuration (spec §4.7): which device to
// bind to, how verbose to log, and which preset file to load mappings from.
type Config struct {
	LogLevel   string `yaml:"log_level"`
	Device     string `yaml:"device"`
	PresetPath string `yaml:"preset_path"`
	ConfigDir  string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		Device:     "auto",
		PresetPath: "preset.yaml",
	}
}

// Load reads configuration from the first readable file among configPath
// (when non-empty) and a fixed list of search locations — the same
// precedence order uplg-asahi-map's Load uses. An unreadable configPath
// falls through to the search locations.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	var searchPaths []string
	if configPath != "" {
		searchPaths = append(searchPaths, configPath)
	}
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		searchPaths = append(searchPaths, filepath.Join("/home", sudoUser, ".config", "remapd", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "remapd", "config.yaml"))
	}
	if exe, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(exe), "configs", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/remapd/config.yaml")

	var loadedPath string
	for _, path := range searchPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		loadedPath = path
		break
	}

	if loadedPath != "" {
		cfg.ConfigDir = filepath.Dir(loadedPath)
	} else if exe, err := os.Executable(); err == nil {
		cfg.ConfigDir = filepath.Join(filepath.Dir(exe), "configs")
	} else if home, err := os.UserHomeDir(); err == nil {
		cfg.ConfigDir = filepath.Join(home, ".config", "remapd")
	} else {
		cfg.ConfigDir = "/etc/remapd"
	}

	return cfg, nil
}

// Save persists the config to ConfigDir/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.ConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.ConfigDir, "config.yaml"), data, 0644)
}

// InputSpec is the YAML-serializable form of eventmodel.InputConfig.
type InputSpec struct {
	Type   uint16 `yaml:"type"`
	Code   uint16 `yaml:"code"`
	Analog bool   `yaml:"analog,omitempty"`
	Origin string `yaml:"origin"`
}

// MappingSpec is the YAML-serializable form of eventmodel.Mapping.
type MappingSpec struct {
	Combination            []InputSpec `yaml:"combination"`
	TargetUinput           string      `yaml:"target_uinput"`
	MacroText              string      `yaml:"macro,omitempty"`
	ReleaseCombinationKeys bool        `yaml:"release_combination_keys"`
	MacroKeySleepMs        int         `yaml:"macro_key_sleep_ms,omitempty"`
	RelRate                int         `yaml:"rel_rate,omitempty"`
}

// ToMapping builds the runtime eventmodel.Mapping this spec describes.
func (s MappingSpec) ToMapping() (eventmodel.Mapping, error) {
	cfgs := make([]eventmodel.InputConfig, 0, len(s.Combination))
	for _, in := range s.Combination {
		cfg, err := eventmodel.NewInputConfig(in.Type, in.Code, in.Analog, in.Origin)
		if err != nil {
			return eventmodel.Mapping{}, fmt.Errorf("mapping %q: %w", s.TargetUinput, err)
		}
		cfgs = append(cfgs, cfg)
	}
	combo, err := eventmodel.NewInputCombination(cfgs...)
	if err != nil {
		return eventmodel.Mapping{}, fmt.Errorf("mapping %q: %w", s.TargetUinput, err)
	}
	return eventmodel.Mapping{
		Combination:            combo,
		TargetUinput:           s.TargetUinput,
		MacroText:              s.MacroText,
		ReleaseCombinationKeys: s.ReleaseCombinationKeys,
		MacroKeySleepMs:        s.MacroKeySleepMs,
		RelRate:                s.RelRate,
	}, nil
}

// Preset is a named, persisted set of mappings (spec §4.7): the thing a
// preset-switch menu item loads, generalizing uplg-asahi-map's single
// AZERTY/QWERTY layout file into an arbitrary mapping list.
type Preset struct {
	Name     string        `yaml:"name"`
	Mappings []MappingSpec `yaml:"mappings"`
}

// LoadPreset reads and parses a preset file.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset %s: %w", path, err)
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing preset %s: %w", path, err)
	}
	return &p, nil
}

// Save writes p to path, creating parent directories as needed.
func (p *Preset) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating preset directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling preset: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// SavePreset writes p to path; a free-function form of (*Preset).Save for
// callers that don't already have a Preset receiver in hand.
func SavePreset(path string, p *Preset) error {
	return p.Save(path)
}

// AvailablePresets lists preset files (by base name, without extension) in
// dir, the same "scan for .yaml files" pattern as
// uplg-asahi-map's AvailableLayouts.
func AvailablePresets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading presets directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".yaml" {
			names = append(names, e.Name()[:len(e.Name())-len(filepath.Ext(e.Name()))])
		}
	}
	return names, nil
}
