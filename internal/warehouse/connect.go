package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ticketstar/internal/config"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// Open connects to the configured warehouse and returns its loader. The
// connection is verified with a retried ping.
func Open(ctx context.Context, cfg models.Warehouse, password string) (Loader, error) {
	timeout, err := config.ParseDuration(cfg.Timeout, "warehouse.timeout")
	if err != nil {
		return nil, err
	}

	var driver, dsn string
	switch cfg.Driver {
	case config.DriverSnowflake:
		driver = "snowflake"
		dsn, err = SnowflakeConfig{
			Account:   cfg.Account,
			Username:  cfg.Username,
			Password:  password,
			Database:  cfg.Database,
			Schema:    cfg.Schema,
			Warehouse: cfg.Warehouse,
			Role:      cfg.Role,
			Timeout:   timeout,
		}.DSN()
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid snowflake settings: %v", err), "warehouse")
		}
	case config.DriverPostgres:
		driver, dsn = "postgres", cfg.DSN
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown warehouse driver %q", cfg.Driver), "warehouse.driver")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to open warehouse connection").
			WithContext("driver", driver)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := ping(ctx, db, timeout); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Driver == config.DriverPostgres {
		return NewPostgresLoader(db, cfg.Schema), nil
	}
	return NewSnowflakeLoader(db, cfg.Database, cfg.Schema), nil
}

func ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := db.PingContext(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to connect to warehouse").
				WithSuggestions(
					"Verify the warehouse credentials",
					"Check network access to the warehouse",
				)
		}
		return nil
	})
}
