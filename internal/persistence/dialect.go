package persistence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
//
// The *sql.DB handed to the stores must use a matching driver, for example
// "modernc.org/sqlite", "github.com/go-sql-driver/mysql",
// "github.com/lib/pq" or "github.com/jackc/pgx/v5/stdlib". The caller is
// responsible for importing the driver for its side effects.
type Dialect struct {
	Name string

	// Returning is true when inserted ids are read with RETURNING instead
	// of sql.Result.LastInsertId.
	Returning bool

	// ExactRowsAffected is false for MySQL, which reports rows changed
	// rather than rows matched.
	ExactRowsAffected bool

	// AutoIncrementPK is the column definition of a generated int64 key.
	AutoIncrementPK string
	// KeyText is a text type usable in primary keys and unique indexes.
	KeyText string
	// Blob is a binary column type.
	Blob string

	quote       func(string) string
	placeholder func(n int) string
	upsert      func(table string, keys, cols []string, values string) string
}

var (
	SQLiteDialect = Dialect{
		Name:              "sqlite",
		ExactRowsAffected: true,
		AutoIncrementPK:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		KeyText:           "TEXT",
		Blob:              "BLOB",
		quote:             doubleQuote,
		placeholder:       func(int) string { return "?" },
		upsert:            onConflictUpsert,
	}

	MySQLDialect = Dialect{
		Name:            "mysql",
		AutoIncrementPK: "BIGINT AUTO_INCREMENT PRIMARY KEY",
		KeyText:         "VARCHAR(255)",
		Blob:            "LONGBLOB",
		quote:           func(s string) string { return "`" + s + "`" },
		placeholder:     func(int) string { return "?" },
		upsert:          duplicateKeyUpsert,
	}

	PostgresDialect = Dialect{
		Name:              "postgres",
		Returning:         true,
		ExactRowsAffected: true,
		AutoIncrementPK:   "BIGSERIAL PRIMARY KEY",
		KeyText:           "TEXT",
		Blob:              "BYTEA",
		quote:             doubleQuote,
		placeholder:       func(n int) string { return "$" + strconv.Itoa(n) },
		upsert:            onConflictUpsert,
	}
)

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLiteDialect, nil
	case "mysql":
		return MySQLDialect, nil
	case "postgres", "postgresql", "pgx":
		return PostgresDialect, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident validates and quotes a table or column name. Names come from form
// definitions and are never interpolated unchecked.
func (d Dialect) Ident(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return d.quote(name), nil
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

// Placeholders returns count bind parameters starting at from, joined with ", ".
func (d Dialect) Placeholders(from, count int) string {
	ps := make([]string, count)
	for i := range ps {
		ps[i] = d.placeholder(from + i)
	}
	return strings.Join(ps, ", ")
}

// Upsert returns an INSERT statement for cols that overwrites the non-key
// columns when a row with the same keys exists. keys must be a prefix of cols.
func (d Dialect) Upsert(table string, keys, cols []string) string {
	return d.upsert(table, keys, cols, d.Placeholders(1, len(cols)))
}

func doubleQuote(s string) string { return `"` + s + `"` }

func onConflictUpsert(table string, keys, cols []string, values string) string {
	sets := make([]string, 0, len(cols))
	for _, c := range cols[len(keys):] {
		sets = append(sets, c+" = excluded."+c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), values, strings.Join(keys, ", "), strings.Join(sets, ", "))
}

func duplicateKeyUpsert(table string, keys, cols []string, values string) string {
	sets := make([]string, 0, len(cols))
	for _, c := range cols[len(keys):] {
		sets = append(sets, c+" = VALUES("+c+")")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(cols, ", "), values, strings.Join(sets, ", "))
}
