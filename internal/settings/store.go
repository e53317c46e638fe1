// Package settings persists the watched folder pattern list in a YAML
// settings file inside the workspace. The list lives under a single
// namespace and key:
//
//	barrelwatch:
//	  folders:
//	    - src/generated
//	    - src/models/*
//
// Every read goes back to disk and every write preserves keys the package
// does not own, so the file can be shared with other tools and edited by hand.
package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/barrelwatch/internal/output"
)

// Namespace and key of the folder pattern list.
const (
	Namespace  = "barrelwatch"
	FoldersKey = "folders"
)

// FileStore reads and writes the folder pattern list of one settings file.
type FileStore struct {
	path string
	perm os.FileMode
}

// NewFileStore returns a store backed by the settings file at path.
// The file and its parent directory are created on the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, perm: 0o644}
}

// Path returns the settings file path.
func (s *FileStore) Path() string {
	return s.path
}

// Folders returns the persisted folder patterns. A missing file, an empty
// document or an absent key all yield an empty list.
func (s *FileStore) Folders(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	node := lookup(root(doc), Namespace, FoldersKey)
	if node == nil || node.Tag == "!!null" {
		return nil, nil
	}

	var folders []string
	if err := node.Decode(&folders); err != nil {
		return nil, fmt.Errorf("decoding %s.%s in %s: %w", Namespace, FoldersKey, s.path, err)
	}

	return folders, nil
}

// SetFolders replaces the persisted folder patterns, keeping all other
// content of the settings file intact.
func (s *FileStore) SetFolders(ctx context.Context, folders []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := s.read()
	if err != nil {
		return err
	}

	if folders == nil {
		folders = []string{}
	}

	var value yaml.Node
	if err := value.Encode(folders); err != nil {
		return fmt.Errorf("encoding folders: %w", err)
	}

	ns := ensureMapping(root(doc), Namespace)
	set(ns, FoldersKey, &value)

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	return s.write(buf.Bytes())
}

// read parses the settings file into a document node, returning an empty
// document when the file does not exist yet.
func (s *FileStore) read() (*yaml.Node, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyDocument(), nil
		}

		return nil, fmt.Errorf("reading settings %s: %w", s.path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", s.path, err)
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		return emptyDocument(), nil
	}

	if doc.Kind != yaml.DocumentNode || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing settings %s: top level must be a mapping", s.path)
	}

	return &doc, nil
}

// write replaces the settings file through a rename so readers never see
// a partially written document.
func (s *FileStore) write(data []byte) error {
	if err := output.NewFileWriter(s.path, output.WithPermissions(s.perm)).Write(data); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	return nil
}

func emptyDocument() *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}
}

func root(doc *yaml.Node) *yaml.Node {
	return doc.Content[0]
}

// lookup follows keys through nested mappings and returns the value node,
// or nil when any step is missing or not a mapping.
func lookup(node *yaml.Node, keys ...string) *yaml.Node {
	for _, key := range keys {
		if node == nil || node.Kind != yaml.MappingNode {
			return nil
		}

		var next *yaml.Node

		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}

		node = next
	}

	return node
}

// ensureMapping returns the mapping stored under key, creating it or
// replacing a non-mapping value.
func ensureMapping(node *yaml.Node, key string) *yaml.Node {
	if existing := lookup(node, key); existing != nil && existing.Kind == yaml.MappingNode {
		return existing
	}

	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	set(node, key, m)

	return m
}

// set stores value under key in the mapping node, replacing an existing entry.
func set(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = value
			return
		}
	}

	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}
