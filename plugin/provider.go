package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrPluginNotFound is returned when no configuration exists for a plugin id.
var ErrPluginNotFound = errors.New("plugin not found")

// Provider supplies configuration packs by plugin id.
// A provider returns a freshly decoded pack on every call; caching is the
// Manager's job.
type Provider interface {
	// Load returns the pack for pluginID or an error wrapping ErrPluginNotFound.
	Load(ctx context.Context, pluginID string) (*Pack, error)

	// List returns the ids of every available plugin, sorted.
	List(ctx context.Context) ([]string, error)
}

// FSProvider reads packs from a directory tree laid out as
// <root>/<plugin_id>/<kind>.yaml. Missing documents mean "no definition".
type FSProvider struct {
	root string
}

// NewFSProvider creates a provider rooted at dir.
func NewFSProvider(dir string) *FSProvider {
	return &FSProvider{root: dir}
}

// Load reads and decodes every document of a plugin.
func (p *FSProvider) Load(ctx context.Context, pluginID string) (*Pack, error) {
	if err := validateIdentifier(pluginID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrPluginNotFound, pluginID)
	}
	dir := filepath.Join(p.root, pluginID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, pluginID)
	}

	pack := &Pack{ID: pluginID, Dir: dir}
	for _, kind := range Kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, kind+".yaml"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s for plugin %s: %w", kind, pluginID, err)
		}
		if err := pack.decode(kind, data, yaml.Unmarshal); err != nil {
			return nil, fmt.Errorf("error parsing %s.yaml for plugin %s: %w", kind, pluginID, err)
		}
	}
	return pack, nil
}

// List returns the sub-directories of the root.
func (p *FSProvider) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// section returns a pointer to the pack section holding kind.
func (p *Pack) section(kind string) (any, error) {
	switch kind {
	case KindManifest:
		return &p.Manifest, nil
	case KindFields:
		return &p.Fields, nil
	case KindDerived:
		return &p.Derived, nil
	case KindLogic:
		return &p.Logic, nil
	case KindDecisionMap:
		return &p.DecisionMap, nil
	case KindFormatting:
		return &p.Formatting, nil
	case KindTexts:
		return &p.Texts, nil
	}
	return nil, fmt.Errorf("unknown document kind %q", kind)
}

// decode unmarshals one document kind into the matching pack section.
func (p *Pack) decode(kind string, data []byte, unmarshal func([]byte, any) error) error {
	target, err := p.section(kind)
	if err != nil {
		return err
	}
	return unmarshal(data, target)
}
