package api

import (
	"net/http"

	"github.com/lakesage/lakesage/internal/auth"
	"github.com/lakesage/lakesage/internal/schema"
)

type schemaColumn struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
}

type schemaTable struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Columns     []schemaColumn `json:"columns"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if errResp := requireRole(r, auth.RoleAsk); errResp != nil {
		writeError(r.Context(), w, errResp.status, errResp.code, errResp.message, false, nil)
		return
	}
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", "schema catalog is not configured", true, nil)
		return
	}

	tables := deps.Catalog.Tables()
	out := make([]schemaTable, 0, len(tables))
	for _, table := range tables {
		out = append(out, renderTable(table))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

func renderTable(table schema.TableDescriptor) schemaTable {
	columns := make([]schemaColumn, 0, len(table.Columns))
	for _, column := range table.Columns {
		columns = append(columns, schemaColumn{
			Name:        column.Name,
			Type:        column.Type,
			Description: column.Description,
			Synonyms:    column.Synonyms,
		})
	}
	return schemaTable{Name: table.Name, Description: table.Description, Columns: columns}
}
