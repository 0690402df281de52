package provider

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type providerFile struct {
	Providers []Definition `yaml:"providers"`
}

// LoadFile reads provider definitions from a YAML file. The file holds either a
// top-level sequence of definitions or a mapping with a `providers` sequence. Order is
// preserved.
func LoadFile(path string) ([]Definition, error) {
	// #nosec G304 -- operator-supplied configuration path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes provider definitions from YAML.
func Parse(raw []byte) ([]Definition, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode provider file: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var defs []Definition
		if err := doc.Decode(&defs); err != nil {
			return nil, fmt.Errorf("decode provider list: %w", err)
		}
		return defs, nil
	case yaml.MappingNode:
		var file providerFile
		if err := doc.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode provider file: %w", err)
		}
		return file.Providers, nil
	default:
		return nil, fmt.Errorf("decode provider file: unexpected yaml node kind %d", doc.Kind)
	}
}

// Build assembles the provider list from the defaults and an optional file.
// With replace, the file's providers are used alone; otherwise they are tried first.
func Build(path string, replace bool) ([]Definition, error) {
	if path == "" {
		return Defaults(), nil
	}
	custom, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if replace {
		return custom, nil
	}
	return append(custom, Defaults()...), nil
}
