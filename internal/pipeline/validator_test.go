package pipeline

import (
	"strings"
	"testing"

	"github.com/lakesage/lakesage/internal/schema"
)

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	catalog, err := schema.New([]schema.TableDescriptor{
		{
			Name:        "object_account",
			Description: "Salesforce accounts",
			Columns: []schema.ColumnDescriptor{
				{Name: "Id", Type: "varchar"},
				{Name: "Name", Type: "varchar"},
				{Name: "AnnualRevenue", Type: "double", Synonyms: []string{"revenue"}},
				{Name: "Industry", Type: "varchar"},
				{Name: "grax__idseq", Type: "varchar"},
				{Name: "grax__deleted", Type: "boolean"},
			},
		},
		{
			Name: "object_contact",
			Columns: []schema.ColumnDescriptor{
				{Name: "Id", Type: "varchar"},
				{Name: "FirstName", Type: "varchar"},
				{Name: "LastName", Type: "varchar"},
				{Name: "Email", Type: "varchar"},
				{Name: "AccountId", Type: "varchar"},
			},
		},
		{
			Name: "object_opportunity",
			Columns: []schema.ColumnDescriptor{
				{Name: "Id", Type: "varchar"},
				{Name: "Name", Type: "varchar"},
				{Name: "Amount", Type: "double"},
				{Name: "StageName", Type: "varchar"},
				{Name: "AccountId", Type: "varchar"},
			},
		},
	})
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	return catalog
}

func TestValidateAcceptsSimpleSelect(t *testing.T) {
	v := NewValidator(testCatalog(t))

	result := v.Validate(CandidateQuery{SQL: "SELECT Name, AnnualRevenue FROM object_account ORDER BY AnnualRevenue DESC LIMIT 5"})
	if !result.OK {
		t.Fatalf("Validate() rejected valid query: %s", result.Reason)
	}
	if len(result.Tables) != 1 || result.Tables[0] != "object_account" {
		t.Fatalf("Tables = %v", result.Tables)
	}
}

func TestValidateAcceptsJoinWithAliases(t *testing.T) {
	v := NewValidator(testCatalog(t))

	result := v.Validate(CandidateQuery{SQL: `
SELECT a.Name, c.Email
FROM object_account a
JOIN object_contact c ON c.AccountId = a.Id
WHERE a.Industry = 'Technology'`})
	if !result.OK {
		t.Fatalf("Validate() rejected valid join: %s", result.Reason)
	}
	if len(result.Tables) != 2 {
		t.Fatalf("Tables = %v", result.Tables)
	}
}

func TestValidateAcceptsLatestVersionSubquery(t *testing.T) {
	v := NewValidator(testCatalog(t))

	result := v.Validate(CandidateQuery{SQL: `
SELECT Name, AnnualRevenue FROM (
  SELECT *, ROW_NUMBER() OVER (PARTITION BY Id ORDER BY grax__idseq DESC) AS rn
  FROM object_account
) t WHERE rn = 1 AND NOT grax__deleted
ORDER BY AnnualRevenue DESC LIMIT 5`})
	if !result.OK {
		t.Fatalf("Validate() rejected latest-version query: %s", result.Reason)
	}
	if len(result.Tables) != 1 || result.Tables[0] != "object_account" {
		t.Fatalf("Tables = %v", result.Tables)
	}
}

func TestValidateAcceptsCTE(t *testing.T) {
	v := NewValidator(testCatalog(t))

	result := v.Validate(CandidateQuery{SQL: `
WITH big AS (
  SELECT Id, Name FROM object_account WHERE AnnualRevenue > 1000000
)
SELECT big.Name FROM big`})
	if !result.OK {
		t.Fatalf("Validate() rejected CTE query: %s", result.Reason)
	}
}

func TestValidateIsCaseInsensitive(t *testing.T) {
	v := NewValidator(testCatalog(t))

	result := v.Validate(CandidateQuery{SQL: "SELECT name FROM OBJECT_ACCOUNT"})
	if !result.OK {
		t.Fatalf("Validate() rejected case-variant query: %s", result.Reason)
	}
}

func TestValidateRejections(t *testing.T) {
	v := NewValidator(testCatalog(t))

	tests := map[string]struct {
		sql        string
		wantReason string
	}{
		"empty query":         {sql: "   ", wantReason: "query is empty"},
		"parse error":         {sql: "SELECT FROM WHERE", wantReason: "does not parse"},
		"multiple statements": {sql: "SELECT Id FROM object_account; SELECT Id FROM object_contact", wantReason: "exactly one statement"},
		"insert":              {sql: "INSERT INTO object_account (Id) VALUES ('1')", wantReason: "read-only"},
		"update":              {sql: "UPDATE object_account SET Name = 'x'", wantReason: "read-only"},
		"delete":              {sql: "DELETE FROM object_account", wantReason: "read-only"},
		"drop":                {sql: "DROP TABLE object_account", wantReason: "read-only"},
		"insert in cte":       {sql: "WITH x AS (INSERT INTO object_account (Id) VALUES ('1') RETURNING Id) SELECT Id FROM x", wantReason: `WITH query "x" must be a SELECT`},
		"update in cte":       {sql: "WITH x AS (UPDATE object_account SET Name = 'y' RETURNING Id) SELECT Id FROM x", wantReason: `WITH query "x" must be a SELECT`},
		"delete in cte":       {sql: "WITH x AS (DELETE FROM object_account RETURNING Id) SELECT Id FROM x", wantReason: `WITH query "x" must be a SELECT`},
		"select into":         {sql: "SELECT Id INTO copy_table FROM object_account", wantReason: "SELECT INTO"},
		"for update":          {sql: "SELECT Id FROM object_account FOR UPDATE", wantReason: "locking"},
		"unknown table":       {sql: "SELECT Id FROM object_lead", wantReason: `unknown table "object_lead"`},
		"unknown column":      {sql: "SELECT Revenue FROM object_account", wantReason: `column "revenue" does not exist on table "object_account"`},
		"unknown qualified":   {sql: "SELECT a.Score FROM object_account a", wantReason: `column "score" does not exist on table "object_account"`},
		"unknown alias":       {sql: "SELECT b.Id FROM object_account a", wantReason: `unknown table or alias "b"`},
		"unknown join column": {sql: "SELECT a.Name FROM object_account a JOIN object_contact c ON c.Phone = a.Id", wantReason: `column "phone" does not exist on table "object_contact"`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			result := v.Validate(CandidateQuery{SQL: tc.sql})
			if result.OK {
				t.Fatalf("Validate() accepted %q", tc.sql)
			}
			if !strings.Contains(result.Reason, tc.wantReason) {
				t.Fatalf("reason = %q, want substring %q", result.Reason, tc.wantReason)
			}
		})
	}
}

func TestValidateRejectionReasonNamesOffendingIdentifier(t *testing.T) {
	v := NewValidator(testCatalog(t))

	result := v.Validate(CandidateQuery{SQL: "SELECT NonexistentColumn FROM object_account"})
	if result.OK {
		t.Fatal("Validate() accepted query with unknown column")
	}
	if !strings.Contains(result.Reason, "nonexistentcolumn") {
		t.Fatalf("reason %q does not name the offending column", result.Reason)
	}
	if !strings.Contains(result.Reason, "object_account") {
		t.Fatalf("reason %q does not name the table", result.Reason)
	}
}
