package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"ticketstar/internal/snapshot"
	"ticketstar/pkg/errors"
)

// SnowflakeConfig holds Snowflake connection configuration
type SnowflakeConfig struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
}

// DSN renders the gosnowflake data source name.
func (c SnowflakeConfig) DSN() (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:      c.Account,
		User:         c.Username,
		Password:     c.Password,
		Database:     c.Database,
		Schema:       c.Schema,
		Warehouse:    c.Warehouse,
		Role:         c.Role,
		LoginTimeout: c.Timeout,
	})
}

// SnowflakeLoader stages each table through its table stage and copies it in.
type SnowflakeLoader struct {
	db       *sql.DB
	database string
	schema   string
	// stageDir holds the files PUT to the table stages.
	stageDir string
}

// NewSnowflakeLoader wraps an open connection.
func NewSnowflakeLoader(db *sql.DB, database, schema string) *SnowflakeLoader {
	return &SnowflakeLoader{db: db, database: database, schema: schema, stageDir: os.TempDir()}
}

func (l *SnowflakeLoader) qualified(name string) string {
	return fmt.Sprintf("%s.%s.%s", l.database, l.schema, strings.ToUpper(name))
}

// Load recreates the table, PUTs the rows to its stage and copies them in.
func (l *SnowflakeLoader) Load(ctx context.Context, table snapshot.Table, opts LoadOptions) (int64, error) {
	target := l.qualified(table.Name)

	createSQL := snowflakeCreateSQL(target, table.Columns, opts.ClusterBy)
	if _, err := l.db.ExecContext(ctx, createSQL); err != nil {
		return 0, errors.SQLError("Failed to create table", createSQL, err).WithContext("table", table.Name)
	}

	dir, err := os.MkdirTemp(l.stageDir, "ticketstar-"+table.Name+"-")
	if err != nil {
		return 0, errors.FileError(l.stageDir, err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, table.Name+snapshot.Extension)
	if err := snapshot.WriteFile(file, table); err != nil {
		return 0, err
	}

	stage := fmt.Sprintf("@%s.%s.%%%s", l.database, l.schema, strings.ToUpper(table.Name))
	putSQL := fmt.Sprintf("PUT file://%s %s AUTO_COMPRESS=TRUE OVERWRITE=TRUE", filepath.ToSlash(file), stage)
	if _, err := l.db.ExecContext(ctx, putSQL); err != nil {
		return 0, errors.SQLError("Failed to PUT file", putSQL, err).WithContext("table", table.Name)
	}

	copySQL := fmt.Sprintf(`COPY INTO %s FROM %s
		FILE_FORMAT = (TYPE = CSV SKIP_HEADER = 1 FIELD_OPTIONALLY_ENCLOSED_BY = '"' EMPTY_FIELD_AS_NULL = TRUE)
		ON_ERROR = ABORT_STATEMENT
		PURGE = TRUE`, target, stage)
	if _, err := l.db.ExecContext(ctx, copySQL); err != nil {
		return 0, errors.SQLError("Failed to execute COPY INTO", copySQL, err).WithContext("table", table.Name)
	}

	var count int64
	countSQL := "SELECT COUNT(*) FROM " + target
	if err := l.db.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
		return 0, errors.SQLError("Failed to count rows", countSQL, err).WithContext("table", table.Name)
	}
	return count, checkCount(table, count)
}

// Close closes the connection.
func (l *SnowflakeLoader) Close() error {
	return l.db.Close()
}

func snowflakeType(t snapshot.ColumnType) string {
	switch t {
	case snapshot.TypeInteger:
		return "NUMBER(38,0)"
	case snapshot.TypeFloat:
		return "FLOAT"
	case snapshot.TypeDate:
		return "DATE"
	case snapshot.TypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

func snowflakeCreateSQL(target string, columns []snapshot.Column, clusterBy []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%s %s", strings.ToUpper(c.Name), snowflakeType(c.Type))
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", target, strings.Join(defs, ", "))
	if len(clusterBy) > 0 {
		keys := make([]string, len(clusterBy))
		for i, k := range clusterBy {
			keys[i] = strings.ToUpper(k)
		}
		stmt += fmt.Sprintf(" CLUSTER BY (%s)", strings.Join(keys, ", "))
	}
	return stmt
}
