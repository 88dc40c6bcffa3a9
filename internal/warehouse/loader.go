// Package warehouse loads published snapshots into an analytical warehouse
// with full-table overwrite semantics.
package warehouse

import (
	"context"
	"fmt"

	"ticketstar/internal/snapshot"
)

// LoadOptions carries optional physical-layout hints.
type LoadOptions struct {
	// ClusterBy lists the columns the table should be clustered or indexed
	// on. It is a performance hint only.
	ClusterBy []string
}

// Loader replaces a warehouse table with the rows of a snapshot table and
// returns the row count the warehouse reports after the load.
type Loader interface {
	Load(ctx context.Context, table snapshot.Table, opts LoadOptions) (int64, error)
	Close() error
}

func checkCount(table snapshot.Table, loaded int64) error {
	if loaded != int64(len(table.Rows)) {
		return fmt.Errorf("table %s: loaded %d rows, expected %d", table.Name, loaded, len(table.Rows))
	}
	return nil
}

// cellValue maps an empty non-string cell to NULL.
func cellValue(col snapshot.Column, cell string) interface{} {
	if cell == "" && col.Type != snapshot.TypeString {
		return nil
	}
	return cell
}
