package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/lakesage/lakesage/internal/storage"
	"github.com/lakesage/lakesage/internal/warehouse"
)

type Engine struct {
	Store storage.ObjectStore
}

func NewEngine(store storage.ObjectStore) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) Execute(ctx context.Context, request warehouse.Request) (warehouse.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return warehouse.Result{}, fmt.Errorf("sql is required")
	}
	// No referenced tables means a table-free query like SELECT 1; it runs
	// without touching the object store.
	if len(request.Tables) > 0 && e.Store == nil {
		return warehouse.Result{}, fmt.Errorf("object store is required")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "lakesage-query-")
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths := map[string][]string{}
	var scannedFiles int
	var scannedBytes int64

	for _, tableName := range request.Tables {
		prefix, err := storage.TableDataPrefix(tableName)
		if err != nil {
			return warehouse.Result{}, err
		}
		infos, err := e.Store.List(ctx, prefix)
		if err != nil {
			return warehouse.Result{}, fmt.Errorf("list table %q data: %w", tableName, err)
		}
		if len(infos) == 0 {
			return warehouse.Result{}, fmt.Errorf("no data files for table %q", tableName)
		}
		for index, info := range infos {
			if !strings.HasSuffix(info.Key, ".parquet") {
				continue
			}
			localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(tableName), index))
			if err := e.download(ctx, info.Key, localPath); err != nil {
				return warehouse.Result{}, err
			}
			groupedPaths[tableName] = append(groupedPaths[tableName], localPath)
			scannedFiles++
			scannedBytes += info.Size
		}
		if len(groupedPaths[tableName]) == 0 {
			return warehouse.Result{}, fmt.Errorf("no parquet files for table %q", tableName)
		}
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for tableName, localPaths := range groupedPaths {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteStringArray(localPaths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return warehouse.Result{}, fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}

	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return warehouse.Result{}, fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return warehouse.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return warehouse.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return warehouse.Result{
		Columns:      columns,
		Rows:         resultRows,
		ScannedFiles: scannedFiles,
		ScannedBytes: scannedBytes,
		Duration:     time.Since(start),
	}, nil
}

func (e *Engine) download(ctx context.Context, objectKey, localPath string) error {
	reader, err := e.Store.Get(ctx, objectKey)
	if err != nil {
		return fmt.Errorf("get object %q: %w", objectKey, err)
	}
	if err := writeFile(localPath, reader); err != nil {
		_ = reader.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	if err := reader.Close(); err != nil {
		return fmt.Errorf("close object %q: %w", objectKey, err)
	}
	return nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
