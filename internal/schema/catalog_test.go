package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testTables() []TableDescriptor {
	return []TableDescriptor{
		{
			Name:        "object_account",
			Description: "Salesforce accounts",
			Columns: []ColumnDescriptor{
				{Name: "Id", Type: "varchar"},
				{Name: "Name", Type: "varchar", Synonyms: []string{"account name", "customer"}},
				{Name: "AnnualRevenue", Type: "double", Synonyms: []string{"revenue"}},
				{Name: "grax__idseq", Type: "bigint"},
				{Name: "grax__deleted", Type: "timestamp"},
			},
		},
		{
			Name: "object_contact",
			Columns: []ColumnDescriptor{
				{Name: "Id", Type: "varchar"},
				{Name: "Email", Type: "varchar"},
			},
		},
	}
}

func TestNewBuildsLookupIndex(t *testing.T) {
	catalog, err := New(testTables())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !catalog.HasTable("object_account") {
		t.Fatal("expected object_account")
	}
	if !catalog.HasTable("OBJECT_ACCOUNT") {
		t.Fatal("table lookup should be case-insensitive")
	}
	if !catalog.HasColumn("object_account", "annualrevenue") {
		t.Fatal("column lookup should be case-insensitive")
	}
	if catalog.HasColumn("object_account", "Industry") {
		t.Fatal("unknown column should not resolve")
	}
	if catalog.HasColumn("object_lead", "Id") {
		t.Fatal("unknown table should not resolve")
	}
}

func TestHasHistoryColumns(t *testing.T) {
	catalog, err := New(testTables())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	account, _ := catalog.Table("object_account")
	if !account.HasHistoryColumns() {
		t.Fatal("object_account should report history columns")
	}
	contact, _ := catalog.Table("object_contact")
	if contact.HasHistoryColumns() {
		t.Fatal("object_contact should not report history columns")
	}
}

func TestNewRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string][]TableDescriptor{
		"no tables":        {},
		"empty table name": {{Name: " ", Columns: []ColumnDescriptor{{Name: "Id", Type: "varchar"}}}},
		"no columns":       {{Name: "object_account"}},
		"duplicate table": {
			{Name: "object_account", Columns: []ColumnDescriptor{{Name: "Id", Type: "varchar"}}},
			{Name: "Object_Account", Columns: []ColumnDescriptor{{Name: "Id", Type: "varchar"}}},
		},
		"duplicate column": {
			{Name: "object_account", Columns: []ColumnDescriptor{
				{Name: "Id", Type: "varchar"},
				{Name: "ID", Type: "varchar"},
			}},
		},
	}
	for name, tables := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(tables); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"tables": [], "extra": true}`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	document := `{
  "tables": [
    {
      "name": "object_account",
      "columns": [
        {"name": "Id", "type": "varchar"},
        {"name": "Name", "type": "varchar"}
      ]
    }
  ]
}`
	if err := os.WriteFile(path, []byte(document), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !catalog.HasColumn("object_account", "Name") {
		t.Fatal("expected Name column")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}

func TestPromptContextListsTablesAndSynonyms(t *testing.T) {
	catalog, err := New(testTables())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rendered := catalog.PromptContext()
	for _, want := range []string{"table object_account", "AnnualRevenue double", "also: revenue", "table object_contact"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("PromptContext() missing %q:\n%s", want, rendered)
		}
	}
}
