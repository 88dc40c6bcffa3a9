package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"ticketstar/internal/snapshot"
	"ticketstar/pkg/errors"
)

// PostgresLoader replaces each table inside one transaction and streams the
// rows with COPY.
type PostgresLoader struct {
	db     *sql.DB
	schema string
}

// NewPostgresLoader wraps an open connection. An empty schema uses the
// search path.
func NewPostgresLoader(db *sql.DB, schema string) *PostgresLoader {
	return &PostgresLoader{db: db, schema: schema}
}

func (l *PostgresLoader) qualified(name string) string {
	if l.schema == "" {
		return pq.QuoteIdentifier(name)
	}
	return pq.QuoteIdentifier(l.schema) + "." + pq.QuoteIdentifier(name)
}

// Load drops and recreates the table, copies the rows in and commits.
func (l *PostgresLoader) Load(ctx context.Context, table snapshot.Table, opts LoadOptions) (int64, error) {
	target := l.qualified(table.Name)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.SQLError("Failed to begin transaction", "BEGIN", err)
	}
	defer tx.Rollback()

	dropSQL := "DROP TABLE IF EXISTS " + target
	if _, err := tx.ExecContext(ctx, dropSQL); err != nil {
		return 0, errors.SQLError("Failed to drop table", dropSQL, err).WithContext("table", table.Name)
	}

	createSQL := postgresCreateSQL(target, table.Columns)
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, errors.SQLError("Failed to create table", createSQL, err).WithContext("table", table.Name)
	}

	copySQL := pq.CopyIn(table.Name, table.Header()...)
	if l.schema != "" {
		copySQL = pq.CopyInSchema(l.schema, table.Name, table.Header()...)
	}
	stmt, err := tx.PrepareContext(ctx, copySQL)
	if err != nil {
		return 0, errors.SQLError("Failed to prepare COPY", copySQL, err).WithContext("table", table.Name)
	}
	for _, row := range table.Rows {
		values := make([]interface{}, len(row))
		for i, cell := range row {
			values[i] = cellValue(table.Columns[i], cell)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			stmt.Close()
			return 0, errors.SQLError("Failed to copy row", copySQL, err).WithContext("table", table.Name)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, errors.SQLError("Failed to flush COPY", copySQL, err).WithContext("table", table.Name)
	}
	if err := stmt.Close(); err != nil {
		return 0, errors.SQLError("Failed to close COPY", copySQL, err).WithContext("table", table.Name)
	}

	if len(opts.ClusterBy) > 0 {
		keys := make([]string, len(opts.ClusterBy))
		for i, k := range opts.ClusterBy {
			keys[i] = pq.QuoteIdentifier(k)
		}
		indexSQL := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			pq.QuoteIdentifier(table.Name+"_cluster_idx"), target, strings.Join(keys, ", "))
		if _, err := tx.ExecContext(ctx, indexSQL); err != nil {
			return 0, errors.SQLError("Failed to create index", indexSQL, err).WithContext("table", table.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.SQLError("Failed to commit load", "COMMIT", err).WithContext("table", table.Name)
	}

	var count int64
	countSQL := "SELECT COUNT(*) FROM " + target
	if err := l.db.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
		return 0, errors.SQLError("Failed to count rows", countSQL, err).WithContext("table", table.Name)
	}
	return count, checkCount(table, count)
}

// Close closes the connection.
func (l *PostgresLoader) Close() error {
	return l.db.Close()
}

func postgresType(t snapshot.ColumnType) string {
	switch t {
	case snapshot.TypeInteger:
		return "BIGINT"
	case snapshot.TypeFloat:
		return "DOUBLE PRECISION"
	case snapshot.TypeDate:
		return "DATE"
	case snapshot.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func postgresCreateSQL(target string, columns []snapshot.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pq.QuoteIdentifier(c.Name) + " " + postgresType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", target, strings.Join(defs, ", "))
}
