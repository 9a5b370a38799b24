package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalSettingsFileName is the name of the local settings file.
const LocalSettingsFileName = ".stubdrc.yaml"

// FindLocalSettings returns the path of .stubdrc.yaml in dir, or "" when
// there is none.
func FindLocalSettings(dir string) string {
	path := filepath.Join(dir, LocalSettingsFileName)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// LoadSettingsFile reads Settings from a YAML file and reports which keys
// the file sets.
func LoadSettingsFile(path string) (*Settings, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, nil, &SettingsError{Path: path, Message: err.Error()}
	}
	var s Settings
	if err := node.Decode(&s); err != nil {
		serr := &SettingsError{Path: path, Message: err.Error()}
		var terr *yaml.TypeError
		if errors.As(err, &terr) && len(node.Content) > 0 {
			serr.Line = node.Content[0].Line
		}
		return nil, nil, serr
	}
	return &s, presentKeys(&node), nil
}

func presentKeys(doc *yaml.Node) []string {
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil
	}
	m := doc.Content[0]
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

// SettingsError is a settings file error with location info.
type SettingsError struct {
	Path    string
	Line    int
	Message string
}

func (e *SettingsError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", e.Path, e.Line, e.Message)
	}
	return e.Path + ": " + e.Message
}

// Load resolves defaults, the local settings file in dir, and the
// environment. Flags are applied by the caller afterwards.
func Load(dir string) (*Settings, error) {
	s := NewDefault()

	if path := FindLocalSettings(dir); path != "" {
		local, keys, err := LoadSettingsFile(path)
		if err != nil {
			return nil, err
		}
		Merge(s, local, keys, SourceLocal)
	}

	LoadEnv(s)
	return s, nil
}
