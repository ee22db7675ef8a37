package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/petrijr/formflow/pkg/api"
)

// SQLRowStore is a RowStore over an arbitrary relational schema.
// Tables and columns are named by form definitions; the schema itself is
// owned by the application.
type SQLRowStore struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure SQLRowStore implements RowStore.
var _ api.RowStore = (*SQLRowStore)(nil)

// NewSQLRowStore returns a SQLRowStore that builds statements for dialect.
func NewSQLRowStore(db *sql.DB, dialect Dialect) *SQLRowStore {
	return &SQLRowStore{db: db, dialect: dialect}
}

func (s *SQLRowStore) InsertRow(ctx context.Context, table, primaryKey string, columns map[string]any) (int64, error) {
	if len(columns) == 0 {
		return 0, errors.New("insert without columns")
	}
	tbl, err := s.dialect.Ident(table)
	if err != nil {
		return 0, err
	}
	pk, err := s.dialect.Ident(primaryKey)
	if err != nil {
		return 0, err
	}
	names, args, err := s.columnList(columns)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tbl, strings.Join(names, ", "), s.dialect.Placeholders(1, len(names)))

	if s.dialect.Returning {
		var id int64
		if err := s.db.QueryRowContext(ctx, query+" RETURNING "+pk, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLRowStore) UpdateRow(ctx context.Context, table, primaryKey string, id int64, columns map[string]any) error {
	if len(columns) == 0 {
		return nil
	}
	tbl, err := s.dialect.Ident(table)
	if err != nil {
		return err
	}
	pk, err := s.dialect.Ident(primaryKey)
	if err != nil {
		return err
	}
	names, args, err := s.columnList(columns)
	if err != nil {
		return err
	}

	sets := make([]string, len(names))
	for i, n := range names {
		sets[i] = n + " = " + s.dialect.Placeholder(i+1)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		tbl, strings.Join(sets, ", "), pk, s.dialect.Placeholder(len(names)+1))
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if !s.dialect.ExactRowsAffected {
		return nil
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRowNotFound
	}
	return nil
}

func (s *SQLRowStore) SelectRow(ctx context.Context, table, primaryKey string, id int64) (map[string]any, error) {
	tbl, err := s.dialect.Ident(table)
	if err != nil {
		return nil, err
	}
	pk, err := s.dialect.Ident(primaryKey)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", tbl, pk, s.dialect.Placeholder(1)), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrRowNotFound
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(cols))
	for i, c := range cols {
		// Drivers return text columns as []byte; the copy is required
		// because the buffer is reused by the next Scan.
		if b, ok := raw[i].([]byte); ok {
			out[c] = string(b)
			continue
		}
		out[c] = raw[i]
	}
	return out, rows.Err()
}

// columnList returns quoted column names in a stable order and the
// matching bind arguments.
func (s *SQLRowStore) columnList(columns map[string]any) ([]string, []any, error) {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		q, err := s.dialect.Ident(k)
		if err != nil {
			return nil, nil, err
		}
		names[i] = q
		args[i] = columns[k]
	}
	return names, args, nil
}
