// Package sitehealth summarizes the installed plugins, themes and core
// version along with the updates waiting for each.
package sitehealth

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Component is one installed plugin or theme.
type Component struct {
	Slug            string `json:"slug" yaml:"slug"`
	Name            string `json:"name" yaml:"name"`
	Version         string `json:"version" yaml:"version"`
	Active          bool   `json:"active" yaml:"active"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
	NewVersion      string `json:"new_version,omitempty" yaml:"new_version"`
}

// DisplayName falls back to the slug when the component has no name.
func (c Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Slug
}

type Inventory struct {
	Plugins            []Component `json:"plugins" yaml:"plugins"`
	Themes             []Component `json:"themes" yaml:"themes"`
	CoreVersion        string      `json:"core_version" yaml:"core_version"`
	CoreUpdates        []string    `json:"core_updates" yaml:"core_updates"`
	TranslationUpdates int         `json:"translation_updates" yaml:"translation_updates"`
}

// Provider returns the current inventory.
type Provider interface {
	Inventory(ctx context.Context) (Inventory, error)
}

// FileProvider reads an inventory snapshot from a YAML file on every call.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Inventory(ctx context.Context) (Inventory, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return Inventory{}, nil
	}
	if err != nil {
		return Inventory{}, fmt.Errorf("failed to read inventory file: %w", err)
	}
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return Inventory{}, fmt.Errorf("failed to parse inventory file: %w", err)
	}
	return inv, nil
}

// StaticProvider serves a fixed inventory.
type StaticProvider Inventory

func (p StaticProvider) Inventory(ctx context.Context) (Inventory, error) {
	return Inventory(p), nil
}
