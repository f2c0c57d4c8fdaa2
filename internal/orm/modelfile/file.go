// Package modelfile reads YAML model descriptions and replays them against a
// metadata model one incremental edit at a time, the way a model builder would.
package modelfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidFile is returned when a model file fails validation
	ErrInvalidFile = errors.New("invalid model file")

	// ErrUnknownType is returned for property types the parser does not know
	ErrUnknownType = errors.New("unknown property type")
)

// File is the root of a model file
type File struct {
	Entities []Entity `yaml:"entities"`
}

// Entity describes one entity type
type Entity struct {
	Name          string       `yaml:"name"`
	Base          string       `yaml:"base,omitempty"`
	Keyless       bool         `yaml:"keyless,omitempty"`
	Key           []string     `yaml:"key,omitempty"`
	Properties    []Property   `yaml:"properties,omitempty"`
	ForeignKeys   []ForeignKey `yaml:"foreignKeys,omitempty"`
	Discriminator string       `yaml:"discriminator,omitempty"`
}

// Property describes one property. A type ending in "?" is nullable.
type Property struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Key         bool   `yaml:"key,omitempty"`
	Concurrency bool   `yaml:"concurrency,omitempty"`
}

// ForeignKey describes a relationship from the declaring entity to Principal.
// PrincipalKey names an alternate key; the primary key is used when it is empty.
type ForeignKey struct {
	Properties   []string `yaml:"properties"`
	Principal    string   `yaml:"principal"`
	PrincipalKey []string `yaml:"principalKey,omitempty"`
	Ownership    bool     `yaml:"ownership,omitempty"`
}

// Load reads and validates a model file
func Load(path string) (*File, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read model file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, data, nil
}

// Parse decodes and validates model file content
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names and references that do not need a model to resolve
func (f *File) Validate() error {
	entities := make(map[string]*Entity, len(f.Entities))
	for i := range f.Entities {
		e := &f.Entities[i]
		if e.Name == "" {
			return fmt.Errorf("entity %d has no name: %w", i, ErrInvalidFile)
		}
		if _, dup := entities[e.Name]; dup {
			return fmt.Errorf("entity %s declared twice: %w", e.Name, ErrInvalidFile)
		}
		entities[e.Name] = e

		props := make(map[string]struct{}, len(e.Properties))
		for _, p := range e.Properties {
			if p.Name == "" {
				return fmt.Errorf("entity %s has a property without name: %w", e.Name, ErrInvalidFile)
			}
			if _, err := ParseType(p.Type); err != nil {
				return fmt.Errorf("%s.%s: %w", e.Name, p.Name, err)
			}
			lower := strings.ToLower(p.Name)
			if _, dup := props[lower]; dup {
				return fmt.Errorf("property %s.%s declared twice: %w", e.Name, p.Name, ErrInvalidFile)
			}
			props[lower] = struct{}{}
		}
		if e.Keyless && len(e.Key) > 0 {
			return fmt.Errorf("entity %s is keyless but declares a key: %w", e.Name, ErrInvalidFile)
		}
	}

	for _, e := range f.Entities {
		if e.Base != "" {
			if _, ok := entities[e.Base]; !ok {
				return fmt.Errorf("entity %s: unknown base %s: %w", e.Name, e.Base, ErrInvalidFile)
			}
			if len(e.Key) > 0 {
				return fmt.Errorf("derived entity %s declares a key: %w", e.Name, ErrInvalidFile)
			}
		}
		for _, fk := range e.ForeignKeys {
			if _, ok := entities[fk.Principal]; !ok {
				return fmt.Errorf("entity %s: unknown principal %s: %w", e.Name, fk.Principal, ErrInvalidFile)
			}
			if len(fk.Properties) == 0 {
				return fmt.Errorf("entity %s: foreign key to %s has no properties: %w", e.Name, fk.Principal, ErrInvalidFile)
			}
		}
	}
	return nil
}
