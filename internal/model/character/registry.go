package character

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no prompt file exists for a character name.
// Missing characters are not fatal; callers may supply an inline prompt.
var ErrNotFound = errors.New("character not found")

// Registry loads character configurations from a directory of YAML files,
// one file per character, and caches them by name. The cache is append-only
// except on explicit invalidation.
type Registry struct {
	dir   string
	cache *gocache.Cache
}

// NewRegistry opens a registry over the given prompt directory, creating it
// if necessary. When the directory is empty the stock characters are
// written so a fresh install has working interviewers.
func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prompt dir: %w", err)
	}

	r := &Registry{
		dir:   dir,
		cache: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}

	names, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		for _, c := range Seed() {
			if err := r.Save(strings.ToLower(c.AgentName), c); err != nil {
				return nil, fmt.Errorf("seed character %s: %w", c.AgentName, err)
			}
		}
	}
	return r, nil
}

// List returns the available character names, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read prompt dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yml" || ext == ".yaml" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load returns the configuration for a character name. The returned value is
// a copy; mutating it does not affect the cache.
func (r *Registry) Load(name string) (Character, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Character{}, ErrNotFound
	}

	if cached, ok := r.cache.Get(key); ok {
		return cached.(Character), nil
	}

	data, err := os.ReadFile(r.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Character{}, ErrNotFound
		}
		return Character{}, fmt.Errorf("read character %s: %w", key, err)
	}

	var c Character
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Character{}, fmt.Errorf("parse character %s: %w", key, err)
	}
	if c.AgentName == "" {
		c.AgentName = key
	}

	r.cache.Set(key, c, gocache.NoExpiration)
	return c, nil
}

// Save writes a character configuration, archiving the prior content into a
// history subdirectory and bumping the minor version. The cache entry is
// invalidated so the next Load observes the new content.
func (r *Registry) Save(name string, c Character) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("character name is required")
	}
	if c.AgentName == "" {
		c.AgentName = key
	}

	if prior, err := os.ReadFile(r.path(key)); err == nil {
		histDir := filepath.Join(r.dir, ".history")
		if err := os.MkdirAll(histDir, 0o755); err == nil {
			version := "unversioned"
			var old Character
			if yaml.Unmarshal(prior, &old) == nil && old.Version != "" {
				version = old.Version
			}
			histName := fmt.Sprintf("%s_v%s_%d.yml", key, version, time.Now().UTC().Unix())
			_ = os.WriteFile(filepath.Join(histDir, histName), prior, 0o644)
			c.Version = bumpMinorVersion(old.Version)
		}
	} else if c.Version == "" {
		c.Version = "1.0"
	}

	data, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("encode character %s: %w", key, err)
	}
	if err := os.WriteFile(r.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write character %s: %w", key, err)
	}

	r.cache.Delete(key)
	return nil
}

// Invalidate drops the cached entry for a name.
func (r *Registry) Invalidate(name string) {
	r.cache.Delete(strings.ToLower(strings.TrimSpace(name)))
}

func (r *Registry) path(name string) string {
	return filepath.Join(r.dir, name+".yml")
}

func bumpMinorVersion(version string) string {
	if version == "" {
		return "1.0"
	}
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return version + ".1"
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return version
	}
	parts[1] = strconv.Itoa(minor + 1)
	return strings.Join(parts[:2], ".")
}
