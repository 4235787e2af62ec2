package rule

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MapPack maps one analyzer rule pack's check identifiers onto rule codes
// of a single standard.
type MapPack struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	PackVersion string            `yaml:"version"`
	Analyzer    string            `yaml:"analyzer"`
	Standard    string            `yaml:"standard"`
	Checks      map[string]string `yaml:"checks"`
}

// PackInfo is a summary of a mapping pack for listing.
type PackInfo struct {
	Name       string
	Analyzer   string
	Standard   Standard
	Version    string
	Enabled    bool
	Path       string
	CheckCount int
	Err        error
}

// Catalog resolves analyzer check identifiers to rule IDs.
type Catalog struct {
	byCheck map[string]ID
	source  map[string]string
}

// NewCatalog returns an empty catalog. Resolution then relies on the
// built-in recognizers only.
func NewCatalog() *Catalog {
	return &Catalog{
		byCheck: make(map[string]ID),
		source:  make(map[string]string),
	}
}

// Add registers an explicit check mapping. A check already mapped to a
// different rule is an error.
func (c *Catalog) Add(check string, id ID, source string) error {
	if prev, ok := c.byCheck[check]; ok && prev != id {
		return fmt.Errorf("check %q mapped to %s by %s and to %s by %s", check, prev, c.source[check], id, source)
	}
	c.byCheck[check] = id
	c.source[check] = source
	return nil
}

// Len returns the number of explicit check mappings.
func (c *Catalog) Len() int {
	return len(c.byCheck)
}

// LoadPacks reads every .yaml file in dir into a catalog. Files whose name
// starts with an underscore are listed but disabled. A missing directory
// yields an empty catalog. Errors from individual packs are reported in
// their PackInfo and joined into the returned error.
func LoadPacks(dir string) (*Catalog, []PackInfo, error) {
	cat := NewCatalog()
	if dir == "" {
		return cat, nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return cat, nil, nil
		}
		return nil, nil, err
	}

	var infos []PackInfo
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		info := PackInfo{Name: baseName, Enabled: enabled, Path: path}

		pack, err := loadPack(path)
		if err != nil {
			info.Err = err
			infos = append(infos, info)
			if enabled {
				errs = append(errs, err)
			}
			continue
		}

		if pack.Name != "" {
			info.Name = pack.Name
		}
		info.Analyzer = pack.Analyzer
		info.Version = pack.PackVersion
		info.CheckCount = len(pack.Checks)

		std, err := ParseStandard(pack.Standard)
		if err != nil {
			info.Err = fmt.Errorf("pack %s: %w", path, err)
			infos = append(infos, info)
			if enabled {
				errs = append(errs, info.Err)
			}
			continue
		}
		info.Standard = std

		if enabled {
			if err := mergePackInto(cat, pack, std, path); err != nil {
				info.Err = err
				errs = append(errs, err)
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return cat, infos, errors.Join(errs...)
}

func loadPack(path string) (*MapPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pack MapPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse rule map %s: %w", path, err)
	}

	return &pack, nil
}

// mergePackInto validates every mapping of pack and adds it to cat.
func mergePackInto(cat *Catalog, pack *MapPack, std Standard, path string) error {
	checks := make([]string, 0, len(pack.Checks))
	for check := range pack.Checks {
		checks = append(checks, check)
	}
	sort.Strings(checks)

	var errs []error
	for _, check := range checks {
		id, err := NewID(std, pack.Checks[check])
		if err != nil {
			errs = append(errs, fmt.Errorf("rule map %s: check %q: %w", path, check, err))
			continue
		}
		if err := cat.Add(check, id, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
