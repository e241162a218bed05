package pipeline

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/lakesage/lakesage/internal/schema"
)

// Validator statically checks a candidate query against the schema catalog
// before anything reaches the warehouse. It is pure and makes no external
// calls; rejecting a bad query here is far cheaper than executing it.
type Validator struct {
	catalog *schema.Catalog
}

func NewValidator(catalog *schema.Catalog) *Validator {
	return &Validator{catalog: catalog}
}

func (v *Validator) Validate(candidate CandidateQuery) ValidationResult {
	sqlText := strings.TrimSpace(candidate.SQL)
	if sqlText == "" {
		return invalid("query is empty")
	}

	parsed, err := pg_query.Parse(sqlText)
	if err != nil {
		return invalid("query does not parse: %v", err)
	}
	stmts := parsed.GetStmts()
	if len(stmts) != 1 {
		return invalid("query must contain exactly one statement, got %d", len(stmts))
	}

	selectNode, ok := stmts[0].GetStmt().GetNode().(*pg_query.Node_SelectStmt)
	if !ok {
		return invalid("only read-only SELECT statements are allowed")
	}

	scan := newQueryScan()
	scan.selectStmt(selectNode.SelectStmt)
	if scan.violation != "" {
		return invalid("%s", scan.violation)
	}

	aliasToTable := map[string]string{}
	var referenced []string
	for _, ref := range scan.tables {
		lowered := strings.ToLower(ref.name)
		if _, isCTE := scan.ctes[lowered]; isCTE {
			scan.opaque[lowered] = struct{}{}
			if ref.alias != "" {
				scan.opaque[strings.ToLower(ref.alias)] = struct{}{}
			}
			continue
		}
		table, ok := v.catalog.Table(ref.name)
		if !ok {
			return invalid("unknown table %q", ref.name)
		}
		aliasToTable[lowered] = table.Name
		if ref.alias != "" {
			aliasToTable[strings.ToLower(ref.alias)] = table.Name
		}
		if !containsString(referenced, table.Name) {
			referenced = append(referenced, table.Name)
		}
	}

	for _, col := range scan.columns {
		if col.qualifier != "" {
			qualifier := strings.ToLower(col.qualifier)
			if _, opaque := scan.opaque[qualifier]; opaque {
				continue
			}
			tableName, ok := aliasToTable[qualifier]
			if !ok {
				return invalid("unknown table or alias %q", col.qualifier)
			}
			if col.name == "*" {
				continue
			}
			if !v.catalog.HasColumn(tableName, col.name) {
				return invalid("column %q does not exist on table %q", col.name, tableName)
			}
			continue
		}

		if col.name == "*" {
			continue
		}
		if _, derived := scan.derived[strings.ToLower(col.name)]; derived {
			continue
		}
		found := false
		for _, tableName := range referenced {
			if v.catalog.HasColumn(tableName, col.name) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		// Columns flowing out of a subquery or CTE cannot be resolved
		// statically; only reject when every source is a catalog table.
		if len(scan.opaque) > 0 {
			continue
		}
		if len(referenced) == 1 {
			return invalid("column %q does not exist on table %q", col.name, referenced[0])
		}
		return invalid("column %q does not exist on any referenced table", col.name)
	}

	return ValidationResult{OK: true, Tables: referenced}
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Reason: fmt.Sprintf(format, args...)}
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

type tableRef struct {
	name  string
	alias string
}

type columnRef struct {
	qualifier string
	name      string
}

// queryScan walks a SELECT tree collecting table and column references.
// CTE names and subquery aliases become opaque sources whose columns are not
// checked against the catalog. Select-list aliases are recorded so outer
// references to them are not mistaken for catalog columns.
type queryScan struct {
	ctes      map[string]struct{}
	opaque    map[string]struct{}
	derived   map[string]struct{}
	tables    []tableRef
	columns   []columnRef
	violation string
}

func newQueryScan() *queryScan {
	return &queryScan{
		ctes:    map[string]struct{}{},
		opaque:  map[string]struct{}{},
		derived: map[string]struct{}{},
	}
}

func (s *queryScan) selectStmt(stmt *pg_query.SelectStmt) {
	if stmt == nil || s.violation != "" {
		return
	}
	if stmt.IntoClause != nil {
		s.violation = "SELECT INTO writes a table and is not allowed"
		return
	}
	if len(stmt.LockingClause) > 0 {
		s.violation = "locking clauses such as FOR UPDATE are not allowed"
		return
	}

	if stmt.WithClause != nil {
		// Register every CTE name first so RECURSIVE and forward
		// references resolve.
		for _, cte := range stmt.WithClause.Ctes {
			if c, ok := cte.GetNode().(*pg_query.Node_CommonTableExpr); ok {
				s.ctes[strings.ToLower(c.CommonTableExpr.Ctename)] = struct{}{}
			}
		}
		for _, cte := range stmt.WithClause.Ctes {
			c, ok := cte.GetNode().(*pg_query.Node_CommonTableExpr)
			if !ok {
				continue
			}
			if _, isSelect := c.CommonTableExpr.Ctequery.GetNode().(*pg_query.Node_SelectStmt); !isSelect {
				s.violation = fmt.Sprintf("WITH query %q must be a SELECT", c.CommonTableExpr.Ctename)
				return
			}
			s.node(c.CommonTableExpr.Ctequery)
		}
	}

	s.selectStmt(stmt.Larg)
	s.selectStmt(stmt.Rarg)

	for _, target := range stmt.TargetList {
		s.node(target)
	}
	for _, from := range stmt.FromClause {
		s.fromItem(from)
	}
	s.node(stmt.WhereClause)
	for _, group := range stmt.GroupClause {
		s.node(group)
	}
	s.node(stmt.HavingClause)
	for _, window := range stmt.WindowClause {
		s.node(window)
	}
	for _, distinct := range stmt.DistinctClause {
		s.node(distinct)
	}
	for _, sort := range stmt.SortClause {
		s.node(sort)
	}
	s.node(stmt.LimitCount)
	s.node(stmt.LimitOffset)
	for _, values := range stmt.ValuesLists {
		s.node(values)
	}
}

func (s *queryScan) fromItem(node *pg_query.Node) {
	if node == nil || node.GetNode() == nil || s.violation != "" {
		return
	}
	switch n := node.GetNode().(type) {
	case *pg_query.Node_RangeVar:
		alias := ""
		if n.RangeVar.Alias != nil {
			alias = n.RangeVar.Alias.Aliasname
		}
		s.tables = append(s.tables, tableRef{name: n.RangeVar.Relname, alias: alias})
	case *pg_query.Node_JoinExpr:
		s.fromItem(n.JoinExpr.Larg)
		s.fromItem(n.JoinExpr.Rarg)
		s.node(n.JoinExpr.Quals)
	case *pg_query.Node_RangeSubselect:
		if n.RangeSubselect.Alias != nil {
			s.opaque[strings.ToLower(n.RangeSubselect.Alias.Aliasname)] = struct{}{}
		}
		s.node(n.RangeSubselect.Subquery)
	case *pg_query.Node_RangeFunction:
		if n.RangeFunction.Alias != nil {
			s.opaque[strings.ToLower(n.RangeFunction.Alias.Aliasname)] = struct{}{}
		}
		for _, fn := range n.RangeFunction.Functions {
			s.node(fn)
		}
	}
}

func (s *queryScan) node(node *pg_query.Node) {
	if node == nil || node.GetNode() == nil || s.violation != "" {
		return
	}
	switch n := node.GetNode().(type) {
	case *pg_query.Node_SelectStmt:
		s.selectStmt(n.SelectStmt)
	case *pg_query.Node_InsertStmt:
		s.violation = "INSERT is not allowed in a read-only query"
	case *pg_query.Node_UpdateStmt:
		s.violation = "UPDATE is not allowed in a read-only query"
	case *pg_query.Node_DeleteStmt:
		s.violation = "DELETE is not allowed in a read-only query"
	case *pg_query.Node_MergeStmt:
		s.violation = "MERGE is not allowed in a read-only query"
	case *pg_query.Node_ResTarget:
		if n.ResTarget.Name != "" {
			s.derived[strings.ToLower(n.ResTarget.Name)] = struct{}{}
		}
		s.node(n.ResTarget.Val)
	case *pg_query.Node_ColumnRef:
		s.columnRef(n.ColumnRef)
	case *pg_query.Node_AExpr:
		s.node(n.AExpr.Lexpr)
		s.node(n.AExpr.Rexpr)
	case *pg_query.Node_BoolExpr:
		for _, arg := range n.BoolExpr.Args {
			s.node(arg)
		}
	case *pg_query.Node_FuncCall:
		for _, arg := range n.FuncCall.Args {
			s.node(arg)
		}
		for _, order := range n.FuncCall.AggOrder {
			s.node(order)
		}
		s.node(n.FuncCall.AggFilter)
		if n.FuncCall.Over != nil {
			s.windowDef(n.FuncCall.Over)
		}
	case *pg_query.Node_WindowDef:
		s.windowDef(n.WindowDef)
	case *pg_query.Node_SubLink:
		s.node(n.SubLink.Testexpr)
		s.node(n.SubLink.Subselect)
	case *pg_query.Node_TypeCast:
		s.node(n.TypeCast.Arg)
	case *pg_query.Node_CaseExpr:
		s.node(n.CaseExpr.Arg)
		for _, when := range n.CaseExpr.Args {
			s.node(when)
		}
		s.node(n.CaseExpr.Defresult)
	case *pg_query.Node_CaseWhen:
		s.node(n.CaseWhen.Expr)
		s.node(n.CaseWhen.Result)
	case *pg_query.Node_CoalesceExpr:
		for _, arg := range n.CoalesceExpr.Args {
			s.node(arg)
		}
	case *pg_query.Node_MinMaxExpr:
		for _, arg := range n.MinMaxExpr.Args {
			s.node(arg)
		}
	case *pg_query.Node_NullTest:
		s.node(n.NullTest.Arg)
	case *pg_query.Node_BooleanTest:
		s.node(n.BooleanTest.Arg)
	case *pg_query.Node_SortBy:
		s.node(n.SortBy.Node)
	case *pg_query.Node_GroupingSet:
		for _, content := range n.GroupingSet.Content {
			s.node(content)
		}
	case *pg_query.Node_GroupingFunc:
		for _, arg := range n.GroupingFunc.Args {
			s.node(arg)
		}
	case *pg_query.Node_RowExpr:
		for _, arg := range n.RowExpr.Args {
			s.node(arg)
		}
	case *pg_query.Node_AArrayExpr:
		for _, element := range n.AArrayExpr.Elements {
			s.node(element)
		}
	case *pg_query.Node_AIndirection:
		s.node(n.AIndirection.Arg)
	case *pg_query.Node_List:
		for _, item := range n.List.Items {
			s.node(item)
		}
	}
}

func (s *queryScan) windowDef(def *pg_query.WindowDef) {
	if def == nil {
		return
	}
	for _, partition := range def.PartitionClause {
		s.node(partition)
	}
	for _, order := range def.OrderClause {
		s.node(order)
	}
}

func (s *queryScan) columnRef(ref *pg_query.ColumnRef) {
	if ref == nil {
		return
	}
	var parts []string
	star := false
	for _, field := range ref.Fields {
		switch n := field.GetNode().(type) {
		case *pg_query.Node_String_:
			parts = append(parts, n.String_.Sval)
		case *pg_query.Node_AStar:
			star = true
		}
	}
	if len(parts) == 0 {
		// bare SELECT *
		return
	}
	if star {
		// qualified t.* checks only that the qualifier resolves
		s.columns = append(s.columns, columnRef{qualifier: parts[len(parts)-1], name: "*"})
		return
	}
	name := parts[len(parts)-1]
	qualifier := ""
	if len(parts) > 1 {
		qualifier = parts[len(parts)-2]
	}
	s.columns = append(s.columns, columnRef{qualifier: qualifier, name: name})
}
