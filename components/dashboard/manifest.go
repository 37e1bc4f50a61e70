package dashboard

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	manifestVersionV1 = "1"
	// ManifestVersion exposes the current manifest format version for tooling.
	ManifestVersion = manifestVersionV1
)

// EntityManifestDocument models a YAML manifest declaring extra entity tables.
type EntityManifestDocument struct {
	Version  string           `json:"version" yaml:"version"`
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Entities []ManifestEntity `json:"entities" yaml:"entities"`
	Source   string           `json:"-" yaml:"-"`
}

// ManifestEntity describes a single entity entry within a manifest.
type ManifestEntity struct {
	Entity      EntityConfig `json:"entity" yaml:"entity"`
	Maintainers []string     `json:"maintainers,omitempty" yaml:"maintainers,omitempty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// LoadManifestFile reads a manifest from disk, registers it, and returns the document.
func (r *Registry) LoadManifestFile(path string) (*EntityManifestDocument, error) {
	doc, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if err := r.LoadManifestDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadManifestDocument registers entity configs from a decoded manifest.
func (r *Registry) LoadManifestDocument(doc *EntityManifestDocument) error {
	if doc == nil {
		return fmt.Errorf("dashboard: manifest document is nil")
	}
	for _, item := range doc.Entities {
		if err := r.Register(item.Entity); err != nil {
			return fmt.Errorf("dashboard: register entity %s from %s: %w", item.Entity.Code, doc.Source, err)
		}
		r.recordSource(item.Entity.Code, doc.Source)
	}
	return nil
}

// ReadManifest loads a manifest file from disk without registering it.
func ReadManifest(path string) (*EntityManifestDocument, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("dashboard: open manifest %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeManifest(f)
	if err != nil {
		return nil, fmt.Errorf("dashboard: decode manifest %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// DecodeManifest reads a manifest from any reader.
func DecodeManifest(r io.Reader) (*EntityManifestDocument, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc EntityManifestDocument
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("dashboard: manifest is empty")
		}
		return nil, fmt.Errorf("dashboard: parse manifest: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate ensures the manifest satisfies required fields.
func (doc *EntityManifestDocument) Validate() error {
	if doc.Version != manifestVersionV1 {
		return fmt.Errorf("dashboard: unsupported manifest version %q", doc.Version)
	}
	seen := make(map[string]struct{}, len(doc.Entities))
	for idx, item := range doc.Entities {
		if item.Entity.Code == "" {
			return fmt.Errorf("dashboard: manifest entity at index %d is missing entity.code", idx)
		}
		if item.Entity.Name == "" {
			return fmt.Errorf("dashboard: manifest entity %s missing entity.name", item.Entity.Code)
		}
		if _, exists := seen[item.Entity.Code]; exists {
			return fmt.Errorf("dashboard: manifest duplicates entity code %s", item.Entity.Code)
		}
		seen[item.Entity.Code] = struct{}{}
	}
	return nil
}

func (doc *EntityManifestDocument) applyDefaults() {
	if doc.Version == "" {
		doc.Version = manifestVersionV1
	}
	for i := range doc.Entities {
		e := &doc.Entities[i].Entity
		if e.Endpoints.List == "" && e.Code != "" {
			e.Endpoints = StandardEndpoints(e.Code, e.Code)
		}
	}
}
