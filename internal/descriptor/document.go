package descriptor

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"dataframehub/internal/ddl"
	"dataframehub/internal/domain"
)

// datasetDocument is the on-disk descriptor. Several historical shapes are
// accepted: the backend type may sit under database.type, driver or
// connection.type.
type datasetDocument struct {
	Name        string          `yaml:"name,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Driver      string          `yaml:"driver,omitempty"`
	Location    string          `yaml:"location,omitempty"`
	Database    *storageSection `yaml:"database,omitempty"`
	Connection  *storageSection `yaml:"connection,omitempty"`
	Schema      []schemaEntry   `yaml:"schema,omitempty"`
}

type storageSection struct {
	Type   string `yaml:"type,omitempty"`
	File   string `yaml:"file,omitempty"`
	Table  string `yaml:"table,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// schemaEntry accepts either a bare column name or a {name, type} mapping.
type schemaEntry struct {
	domain.ColumnSpec `yaml:",inline"`
}

func (e *schemaEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Name = node.Value
		return nil
	}
	var spec domain.ColumnSpec
	if err := node.Decode(&spec); err != nil {
		return err
	}
	e.ColumnSpec = spec
	return nil
}

// firstNonEmpty returns the first argument that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func (d *datasetDocument) section(pick func(*storageSection) string) (fromDatabase, fromConnection string) {
	if d.Database != nil {
		fromDatabase = pick(d.Database)
	}
	if d.Connection != nil {
		fromConnection = pick(d.Connection)
	}
	return fromDatabase, fromConnection
}

func (d *datasetDocument) toDescriptor(organization, dataset string) (*domain.DatasetDescriptor, error) {
	dbType, connType := d.section(func(s *storageSection) string { return s.Type })
	backend := firstNonEmpty(dbType, d.Driver, connType)
	if backend == "" {
		return nil, domain.ErrConfiguration("descriptor for %q does not declare a backend type", domain.DatasetKey(organization, dataset))
	}

	dbFile, connFile := d.section(func(s *storageSection) string { return s.File })
	dbTable, connTable := d.section(func(s *storageSection) string { return s.Table })
	dbPath, connPath := d.section(func(s *storageSection) string { return s.Path })
	dbFormat, connFormat := d.section(func(s *storageSection) string { return s.Format })

	desc := &domain.DatasetDescriptor{
		Organization: organization,
		Dataset:      dataset,
		Name:         d.Name,
		Description:  d.Description,
		BackendType:  domain.ParseBackendType(backend),
		PhysicalFile: firstNonEmpty(dbFile, connFile),
		LogicalTable: firstNonEmpty(dbTable, connTable),
		Location:     firstNonEmpty(dbPath, d.Location, connPath),
	}

	if f := firstNonEmpty(dbFormat, connFormat); f != "" {
		format := domain.FileFormat(strings.ToLower(f))
		switch format {
		case domain.FormatParquet, domain.FormatCSV, domain.FormatJSON:
			desc.Format = format
		default:
			return nil, domain.ErrConfiguration("descriptor for %q declares unknown format %q", desc.Key(), f)
		}
	}

	for i, entry := range d.Schema {
		if entry.Name == "" {
			return nil, domain.ErrConfiguration("descriptor for %q: schema entry %d has no name", desc.Key(), i)
		}
		desc.Schema = append(desc.Schema, entry.ColumnSpec)
	}
	if err := validateSchema(desc.Schema); err != nil {
		return nil, domain.ErrConfiguration("descriptor for %q: %v", desc.Key(), err)
	}
	return desc, nil
}

// validateSchema checks every declared column name and type and rejects
// duplicate names.
func validateSchema(cols []domain.ColumnSpec) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if err := ddl.ValidateColumn(c.Name, c.Type); err != nil {
			return err
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fmt.Errorf("column %q is declared twice", c.Name)
		}
		seen[key] = true
	}
	return nil
}

func fromDescriptor(d *domain.DatasetDescriptor) *datasetDocument {
	doc := &datasetDocument{
		Name:        d.Name,
		Description: d.Description,
		Database: &storageSection{
			Type:   string(d.BackendType),
			File:   d.PhysicalFile,
			Table:  d.LogicalTable,
			Path:   d.Location,
			Format: string(d.Format),
		},
	}
	for _, c := range d.Schema {
		doc.Schema = append(doc.Schema, schemaEntry{ColumnSpec: c})
	}
	return doc
}
