package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type keyKind int

const (
	scalarKey keyKind = iota
	listKey
)

// Keys lists every dotted key accepted by Value and SetValue.
func Keys() []string {
	kinds := keyKinds()
	keys := make([]string, 0, len(kinds))
	for k := range kinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values flattens cfg into dotted keys. Lists are comma-joined and unset
// optional values are empty.
func Values(cfg *Config) (map[string]string, error) {
	tree, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	flatten("", tree, func(key string, value any, kind keyKind) {
		out[key] = render(value, kind)
	})
	return out, nil
}

// Value returns the flattened value of key.
func Value(cfg *Config, key string) (string, error) {
	values, err := Values(cfg)
	if err != nil {
		return "", err
	}
	v, ok := values[normalizeKey(key)]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return v, nil
}

// SetValue rewrites a single key in the YAML file at path, leaving the rest
// of the document intact. The result must still decode as a Config.
func SetValue(path, key, value string) error {
	key = normalizeKey(key)
	kind, ok := keyKinds()[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}
	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errors.New("config root must be a mapping")
	}
	parts := strings.Split(key, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		child := lookupChild(node, part)
		if child == nil || child.Kind != yaml.MappingNode {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			setChild(node, part, child)
		}
		node = child
	}
	setChild(node, parts[len(parts)-1], valueNode(value, kind))

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := Parse(out, Default()); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return writeFile(path, out)
}

func keyKinds() map[string]keyKind {
	kinds := map[string]keyKind{}
	tree, err := toTree(Default())
	if err != nil {
		return kinds
	}
	flatten("", tree, func(key string, _ any, kind keyKind) {
		kinds[key] = kind
	})
	return kinds
}

func toTree(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return tree, nil
}

func flatten(prefix string, v any, visit func(string, any, keyKind)) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, visit)
		}
	case []any:
		visit(prefix, t, listKey)
	default:
		visit(prefix, t, scalarKey)
	}
}

func render(v any, kind keyKind) string {
	if v == nil {
		return ""
	}
	if kind == listKey {
		items, _ := v.([]any)
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func lookupChild(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func setChild(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func valueNode(value string, kind keyKind) *yaml.Node {
	value = strings.TrimSpace(value)
	if kind == listKey {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: item})
			}
		}
		return seq
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}
