package avatar

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embeddedMoods embed.FS

// LoadEmbedded loads a built-in mood by name.
func LoadEmbedded(name string) (*Mood, error) {
	return loadFile(embeddedMoods, path.Join("data", normalizeName(name)+".yaml"))
}

// ListEmbedded returns the names of all built-in moods.
func ListEmbedded() ([]string, error) {
	return listDir(embeddedMoods, "data")
}

// LoadBuiltIn registers every built-in mood.
func (r *Registry) LoadBuiltIn() error {
	moods, err := LoadFS(embeddedMoods, "data")
	if err != nil {
		return fmt.Errorf("load built-in moods: %w", err)
	}
	return r.RegisterAll(moods)
}

// LoadDir registers every mood file found in dir on disk.
// Moods with the same name as an existing mood replace it.
func (r *Registry) LoadDir(dir string) error {
	moods, err := LoadFS(os.DirFS(dir), ".")
	if err != nil {
		return fmt.Errorf("load moods from %s: %w", dir, err)
	}
	return r.RegisterAll(moods)
}

// RegisterAll registers each mood, stopping at the first invalid one.
func (r *Registry) RegisterAll(moods []*Mood) error {
	for _, m := range moods {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// LoadFS loads every *.yaml / *.yml mood file in dir of fsys.
// The mood name defaults to the file name without extension.
func LoadFS(fsys fs.FS, dir string) ([]*Mood, error) {
	names, err := listDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var moods []*Mood
	for _, file := range names {
		m, err := loadFile(fsys, path.Join(dir, file))
		if err != nil {
			return nil, err
		}
		moods = append(moods, m)
	}
	return moods, nil
}

func listDir(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list mood files: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := path.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func loadFile(fsys fs.FS, file string) (*Mood, error) {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMood, strings.TrimSuffix(path.Base(file), path.Ext(file)))
	}
	name := strings.TrimSuffix(path.Base(file), path.Ext(file))
	return ParseMood(name, data)
}

// ParseMood decodes a YAML mood definition. name is used when the document
// does not set one.
func ParseMood(name string, data []byte) (*Mood, error) {
	var m Mood
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMood, name, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	m.Name = normalizeName(m.Name)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
