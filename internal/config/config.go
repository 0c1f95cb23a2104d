// Package config loads the optiflow.yaml settings file: server defaults plus
// the seed enumerations (statuses, task types, resources) written into a
// fresh database on init.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a config file that parsed but failed validation.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	Web          Web    `yaml:"web"`

	Statuses  []StatusSeed   `yaml:"statuses"`
	TaskTypes []string       `yaml:"task_types"`
	Resources []ResourceSeed `yaml:"resources"`
}

type Web struct {
	Port string `yaml:"port"`
}

// StatusSeed is one entry of the ordered status set. The first entry is the
// initial status of new tasks.
type StatusSeed struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type ResourceSeed struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email,omitempty"`
	Color string `yaml:"color,omitempty"`
}

// Default returns the built-in configuration, matching the seed data of the
// original backend.
func Default() *Config {
	return &Config{
		DBPath:       ".optiflow/optiflow.db",
		SnapshotPath: ".optiflow/snapshot.jsonl",
		Web:          Web{Port: "8000"},
		Statuses: []StatusSeed{
			{Name: "Not Started", Color: "#9E9E9E"},
			{Name: "In Progress", Color: "#2196F3"},
			{Name: "On Hold", Color: "#FF9800"},
			{Name: "Completed", Color: "#4CAF50"},
			{Name: "Cancelled", Color: "#F44336"},
		},
		TaskTypes: []string{"Task", "Milestone"},
	}
}

// Load reads the config file at path, falling back to Default when the file
// does not exist. Missing sections inherit their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path is required", ErrInvalid)
	}
	if len(c.Statuses) < 2 {
		return fmt.Errorf("%w: at least 2 statuses are required", ErrInvalid)
	}
	seen := make(map[string]bool)
	for _, s := range c.Statuses {
		if s.Name == "" {
			return fmt.Errorf("%w: status name must not be empty", ErrInvalid)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate status %q", ErrInvalid, s.Name)
		}
		seen[s.Name] = true
	}
	if len(c.TaskTypes) == 0 {
		return fmt.Errorf("%w: at least 1 task type is required", ErrInvalid)
	}
	seen = make(map[string]bool)
	for _, tt := range c.TaskTypes {
		if seen[tt] {
			return fmt.Errorf("%w: duplicate task type %q", ErrInvalid, tt)
		}
		seen[tt] = true
	}
	return nil
}

// StatusNames returns the configured status names in order.
func (c *Config) StatusNames() []string {
	names := make([]string, len(c.Statuses))
	for i, s := range c.Statuses {
		names[i] = s.Name
	}
	return names
}
