package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/iammorganparry/datachat/internal/model"
)

// ErrNotFound is returned for unknown table ids
var ErrNotFound = errors.New("table not found")

// Store keeps ingested sheets as SQLite tables, one per sheet, plus metadata
type Store struct {
	db *sql.DB
}

// SheetRecord is the stored metadata of one sheet
type SheetRecord struct {
	TableID   string            `json:"table_id"`
	SheetName string            `json:"sheet_name"`
	TableName string            `json:"table_name"`
	Filename  string            `json:"filename"`
	Columns   []string          `json:"columns"`
	DTypes    map[string]string `json:"dtypes"`
	RowCount  int               `json:"row_count"`
	ColCount  int               `json:"col_count"`
	CreatedAt time.Time         `json:"created_at"`
}

// OpenStore opens the SQLite database at path. ":memory:" keeps everything
// in the process.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: SQLite handles one writer at a time and an in-memory
	// database exists per connection
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS datasets (
  table_id TEXT PRIMARY KEY,
  filename TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sheets (
  table_id TEXT NOT NULL,
  sheet_name TEXT NOT NULL,
  table_name TEXT NOT NULL UNIQUE,
  position INTEGER NOT NULL,
  columns TEXT NOT NULL,
  dtypes TEXT NOT NULL,
  row_count INTEGER NOT NULL,
  col_count INTEGER NOT NULL,
  PRIMARY KEY (table_id, sheet_name),
  FOREIGN KEY (table_id) REFERENCES datasets(table_id) ON DELETE CASCADE
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var identUnsafe = regexp.MustCompile(`\W`)

// TableName returns the SQL table holding one sheet of a dataset
func TableName(tableID, sheet string) string {
	return identUnsafe.ReplaceAllString(tableID+"_"+sheet, "_")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SaveDataset stores all sheets of an upload in one transaction
func (s *Store) SaveDataset(ctx context.Context, tableID, filename string, sheets []Sheet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (table_id, filename, created_at) VALUES (?, ?, ?)`,
		tableID, filename, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	used := map[string]bool{}
	for pos, sheet := range sheets {
		name := TableName(tableID, sheet.Name)
		if used[name] {
			name = fmt.Sprintf("%s_%d", name, pos)
		}
		used[name] = true
		if err := saveSheet(ctx, tx, tableID, name, pos, sheet); err != nil {
			return fmt.Errorf("store sheet %s: %w", sheet.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func saveSheet(ctx context.Context, tx *sql.Tx, tableID, name string, pos int, sheet Sheet) error {
	defs := make([]string, len(sheet.Columns))
	for i, col := range sheet.Columns {
		sqlType := sheet.DTypes[col]
		if sqlType == TypeDatetime {
			sqlType = TypeText
		}
		defs[i] = quoteIdent(col) + " " + sqlType
	}
	if len(defs) == 0 {
		defs = []string{`"Column_1" TEXT`}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	if len(sheet.Columns) > 0 && len(sheet.Rows) > 0 {
		cols := make([]string, len(sheet.Columns))
		marks := make([]string, len(sheet.Columns))
		for i, col := range sheet.Columns {
			cols[i] = quoteIdent(col)
			marks[i] = "?"
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", ")))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, row := range sheet.Rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("insert row: %w", err)
			}
		}
	}

	colsJSON, _ := json.Marshal(sheet.Columns)
	dtypesJSON, _ := json.Marshal(sheet.DTypes)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sheets (table_id, sheet_name, table_name, position, columns, dtypes, row_count, col_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tableID, sheet.Name, name, pos, string(colsJSON), string(dtypesJSON), len(sheet.Rows), len(sheet.Columns),
	)
	if err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}
	return nil
}

// Sheets returns the sheet metadata of a dataset in workbook order
func (s *Store) Sheets(ctx context.Context, tableID string) ([]SheetRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.sheet_name, s.table_name, d.filename, s.columns, s.dtypes, s.row_count, s.col_count, d.created_at
		FROM sheets s JOIN datasets d ON d.table_id = s.table_id
		WHERE s.table_id = ?
		ORDER BY s.position`, tableID)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	var out []SheetRecord
	for rows.Next() {
		rec := SheetRecord{TableID: tableID}
		var cols, dtypes string
		var created int64
		if err := rows.Scan(&rec.SheetName, &rec.TableName, &rec.Filename, &cols, &dtypes, &rec.RowCount, &rec.ColCount, &created); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		if err := json.Unmarshal([]byte(cols), &rec.Columns); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
		if err := json.Unmarshal([]byte(dtypes), &rec.DTypes); err != nil {
			return nil, fmt.Errorf("decode dtypes: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Query runs a read-only statement and returns rows keyed in select order
func (s *Store) Query(ctx context.Context, query string) ([]model.Row, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []model.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := model.Row{Columns: append([]string(nil), cols...), Values: make(map[string]any, len(cols))}
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			row.Values[col] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
