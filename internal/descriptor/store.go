// Package descriptor resolves dataset descriptors and datacards from YAML files on disk.
//
// Layout:
//
//	<datasets>/<organization>/<dataset>/dataset.yaml
//	<datacards>/<organization>/<definition>.yml
package descriptor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dataframehub/internal/domain"
)

// DescriptorFileName is the descriptor file inside each dataset directory.
const DescriptorFileName = "dataset.yaml"

var (
	_ domain.DescriptorResolver = (*FileStore)(nil)
	_ domain.DatacardStore      = (*FileStore)(nil)
)

// FileStore reads descriptors and datacards from two directory trees. It holds
// no state between calls, so edits to a descriptor take effect on the next query.
type FileStore struct {
	datasetsDir  string
	datacardsDir string
}

// NewFileStore creates a FileStore rooted at the given directories.
func NewFileStore(datasetsDir, datacardsDir string) *FileStore {
	return &FileStore{datasetsDir: datasetsDir, datacardsDir: datacardsDir}
}

// DescriptorPath returns the descriptor file path for a dataset.
func (s *FileStore) DescriptorPath(organization, dataset string) string {
	return filepath.Join(s.datasetsDir, organization, dataset, DescriptorFileName)
}

// Resolve loads the descriptor of organization/dataset.
func (s *FileStore) Resolve(ctx context.Context, organization, dataset string) (*domain.DatasetDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateSegment("organization", organization); err != nil {
		return nil, err
	}
	if err := ValidateSegment("dataset", dataset); err != nil {
		return nil, err
	}

	path := s.DescriptorPath(organization, dataset)
	data, err := os.ReadFile(path) //nolint:gosec // path segments are validated above
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound("dataset %q not found", domain.DatasetKey(organization, dataset))
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc datasetDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.ErrConfiguration("parse descriptor for %q: %v", domain.DatasetKey(organization, dataset), err)
	}
	return doc.toDescriptor(organization, dataset)
}

// GetDatacard loads <datacards>/<organization>/<definition>.yml (or .yaml) as a generic document.
func (s *FileStore) GetDatacard(ctx context.Context, organization, definition string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateSegment("organization", organization); err != nil {
		return nil, err
	}
	if err := ValidateSegment("definition", definition); err != nil {
		return nil, err
	}

	for _, ext := range []string{".yml", ".yaml"} {
		path := filepath.Join(s.datacardsDir, organization, definition+ext)
		data, err := os.ReadFile(path) //nolint:gosec // path segments are validated above
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		card := map[string]any{}
		if err := yaml.Unmarshal(data, &card); err != nil {
			return nil, domain.ErrConfiguration("parse datacard %s/%s: %v", organization, definition, err)
		}
		return card, nil
	}
	return nil, domain.ErrNotFound("datacard %s/%s not found", organization, definition)
}

// Save writes d as a descriptor file and returns its path. An existing
// descriptor is only replaced when overwrite is true.
func (s *FileStore) Save(ctx context.Context, d *domain.DatasetDescriptor, overwrite bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateSegment("organization", d.Organization); err != nil {
		return "", err
	}
	if err := ValidateSegment("dataset", d.Dataset); err != nil {
		return "", err
	}
	if d.BackendType == "" {
		return "", domain.ErrValidation("backend type is required")
	}
	if err := validateSchema(d.Schema); err != nil {
		return "", domain.ErrValidation("dataset %q: %v", d.Key(), err)
	}

	path := s.DescriptorPath(d.Organization, d.Dataset)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", domain.ErrValidation("dataset %q already exists", d.Key())
		}
	}

	data, err := yaml.Marshal(fromDescriptor(d))
	if err != nil {
		return "", fmt.Errorf("encode descriptor: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dataset directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // descriptors are not secret
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// ValidateSegment checks that an organization, dataset or definition name is
// usable as a single directory segment.
func ValidateSegment(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.ErrValidation("%s is required", kind)
	}
	if name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return domain.ErrValidation("%s %q must not contain path separators or '..'", kind, name)
	}
	return nil
}
