package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FilePattern selects configuration files inside a config directory.
const FilePattern = "**/*-config.{yaml,yml,json}"

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrEmptyFile    = errors.New("configuration file is empty")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrNoConfig     = errors.New("no configuration files found")
)

// Bundle is everything loaded from a set of config directories.
type Bundle struct {
	Files []*File
	// Resources in declaration order, with Index and Source set.
	Resources []*Resource
	// Stores holds store settings by store name.
	Stores map[string]*StoreConfig
}

// Discover lists configuration files under dirs, sorted per directory.
func Discover(dirs ...string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config directory %s: %w", dir, ErrFileNotFound)
			}
			return nil, fmt.Errorf("config directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			files = append(files, dir)
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(dir), FilePattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %s in %s: %w", FilePattern, dir, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	return files, nil
}

// Load discovers, parses and validates every configuration file under dirs.
func Load(dirs ...string) (*Bundle, error) {
	paths, err := Discover(dirs...)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoConfig
	}

	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return NewBundle(files...)
}

// NewBundle flattens files into one resource list and store map.
func NewBundle(files ...*File) (*Bundle, error) {
	b := &Bundle{Files: files, Stores: make(map[string]*StoreConfig)}
	owner := make(map[string]string)

	for _, f := range files {
		for _, r := range f.AllResources() {
			r.Index = len(b.Resources)
			r.Source = f.Path
			b.Resources = append(b.Resources, r)
		}
		if f.System == nil {
			continue
		}
		for name, sc := range f.System.Stores {
			if prev, ok := owner[name]; ok {
				return nil, fmt.Errorf("store %q is configured in both %s and %s", name, prev, f.Path)
			}
			owner[name] = f.Path
			b.Stores[name] = sc
		}
	}
	return b, nil
}

// AllResources returns the root resource, when it declares anything,
// followed by the nested resources.
func (f *File) AllResources() []*Resource {
	out := make([]*Resource, 0, len(f.Resources)+1)
	if f.Root.Declares() {
		out = append(out, &f.Root)
	}
	return append(out, f.Resources...)
}

// LoadFile reads, parses and validates one configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	f.resolvePaths(filepath.Dir(path))
	return f, nil
}

// Parse decodes and validates one configuration document. JSON documents
// are accepted as YAML.
func Parse(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if doc == nil {
		return nil, ErrEmptyFile
	}
	if result := ValidateSchema(doc); !result.IsValid() {
		return nil, result
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if f.System != nil {
		for _, sc := range f.System.Stores {
			if sc != nil {
				sc.PreloadData = normalize(sc.PreloadData).(map[string]any)
			}
		}
	}

	result := &ValidationResult{}
	if f.Root.Declares() {
		validateResource(&f.Root, "", result)
	}
	for i, r := range f.Resources {
		validateResource(r, fmt.Sprintf("resources[%d]", i), result)
	}
	if !result.IsValid() {
		return nil, result
	}
	return &f, nil
}

func (f *File) resolvePaths(dir string) {
	for _, r := range f.AllResources() {
		if r.Response != nil && r.Response.File != "" {
			r.Response.File = resolve(dir, r.Response.File)
		}
	}
	if f.System == nil {
		return
	}
	for _, sc := range f.System.Stores {
		if sc != nil && sc.PreloadFile != "" {
			sc.PreloadFile = resolve(dir, sc.PreloadFile)
		}
	}
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
