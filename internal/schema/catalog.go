// Package schema holds the table and column definitions used to ground and
// validate generated queries. The catalog is immutable after Load; it is safe
// for concurrent readers without locking.
package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

type ColumnDescriptor struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
}

type TableDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Columns     []ColumnDescriptor `json:"columns"`
}

func (t TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, column := range t.Columns {
		if strings.EqualFold(column.Name, name) {
			return column, true
		}
	}
	return ColumnDescriptor{}, false
}

// HasHistoryColumns reports whether the table carries the data-lake version
// columns (grax__idseq) and needs the latest-version CTE to deduplicate rows.
func (t TableDescriptor) HasHistoryColumns() bool {
	_, ok := t.Column("grax__idseq")
	return ok
}

type Catalog struct {
	tables []TableDescriptor
	byName map[string]TableDescriptor
}

func Load(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema catalog %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	catalog, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse schema catalog %q: %w", path, err)
	}
	return catalog, nil
}

func Parse(r io.Reader) (*Catalog, error) {
	var document struct {
		Tables []TableDescriptor `json:"tables"`
	}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("decode catalog document: %w", err)
	}
	return New(document.Tables)
}

func New(tables []TableDescriptor) (*Catalog, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("catalog must define at least one table")
	}

	byName := make(map[string]TableDescriptor, len(tables))
	for _, table := range tables {
		name := strings.ToLower(strings.TrimSpace(table.Name))
		if name == "" {
			return nil, fmt.Errorf("catalog table with empty name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("duplicate catalog table %q", table.Name)
		}
		if len(table.Columns) == 0 {
			return nil, fmt.Errorf("catalog table %q has no columns", table.Name)
		}
		seenColumns := make(map[string]struct{}, len(table.Columns))
		for _, column := range table.Columns {
			columnName := strings.ToLower(strings.TrimSpace(column.Name))
			if columnName == "" {
				return nil, fmt.Errorf("catalog table %q has a column with empty name", table.Name)
			}
			if _, exists := seenColumns[columnName]; exists {
				return nil, fmt.Errorf("duplicate column %q on table %q", column.Name, table.Name)
			}
			seenColumns[columnName] = struct{}{}
		}
		byName[name] = table
	}

	return &Catalog{tables: tables, byName: byName}, nil
}

// Tables returns the descriptors in catalog order.
func (c *Catalog) Tables() []TableDescriptor {
	out := make([]TableDescriptor, len(c.tables))
	copy(out, c.tables)
	return out
}

func (c *Catalog) Table(name string) (TableDescriptor, bool) {
	table, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return table, ok
}

func (c *Catalog) HasTable(name string) bool {
	_, ok := c.Table(name)
	return ok
}

func (c *Catalog) HasColumn(tableName, columnName string) bool {
	table, ok := c.Table(tableName)
	if !ok {
		return false
	}
	_, ok = table.Column(columnName)
	return ok
}

// PromptContext renders the catalog for inclusion in a model prompt. One line
// per column keeps the rendering diff-friendly and cheap to truncate.
func (c *Catalog) PromptContext() string {
	var b strings.Builder
	for _, table := range c.tables {
		b.WriteString("table ")
		b.WriteString(table.Name)
		if table.Description != "" {
			b.WriteString(" -- ")
			b.WriteString(table.Description)
		}
		b.WriteString("\n")
		for _, column := range table.Columns {
			b.WriteString("  ")
			b.WriteString(column.Name)
			b.WriteString(" ")
			b.WriteString(column.Type)
			if column.Description != "" {
				b.WriteString(" -- ")
				b.WriteString(column.Description)
			}
			if len(column.Synonyms) > 0 {
				b.WriteString(" (also: ")
				b.WriteString(strings.Join(column.Synonyms, ", "))
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
