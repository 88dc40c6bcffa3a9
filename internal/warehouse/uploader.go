package warehouse

import (
	"context"
	"slices"

	"ticketstar/internal/observability"
	"ticketstar/internal/snapshot"
	"ticketstar/pkg/errors"
)

// UploadReport lists the outcome per table.
type UploadReport struct {
	Loaded map[string]int64
	Failed map[string]error
}

// Partial reports whether any table failed to load.
func (r *UploadReport) Partial() bool {
	return len(r.Failed) > 0
}

// Uploader loads the six published artifacts, dimensions first.
type Uploader struct {
	loader Loader
	logger *observability.Logger
	audit  *observability.Audit
}

// NewUploader creates an uploader. A nil audit disables counters.
func NewUploader(loader Loader, logger *observability.Logger, audit *observability.Audit) *Uploader {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Uploader{loader: loader, logger: logger, audit: audit}
}

// UploadAll loads every artifact found in dir. A table that cannot be read
// or loaded is skipped and reported; the remaining tables are still loaded.
// The returned error is non-nil only when ctx ends the upload early.
func (u *Uploader) UploadAll(ctx context.Context, dir string) (*UploadReport, error) {
	report := &UploadReport{Loaded: map[string]int64{}, Failed: map[string]error{}}

	for _, name := range snapshot.Tables {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log := u.logger.WithField("table", name)
		rows, err := u.upload(ctx, dir, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			err = errors.CollaboratorError("upload of "+name, err)
			log.WithError(err).ErrorWithFields("Failed to upload table", map[string]interface{}{"dir": dir})
			report.Failed[name] = err
			u.record(name, "failed")
			continue
		}

		report.Loaded[name] = rows
		log.InfoWithFields("Uploaded table", map[string]interface{}{"rows": rows})
		u.record(name, "loaded")
	}
	return report, nil
}

func (u *Uploader) upload(ctx context.Context, dir, name string) (int64, error) {
	table, err := snapshot.ReadTable(dir, name)
	if err != nil {
		return 0, err
	}

	var opts LoadOptions
	if name == snapshot.FactSales {
		opts.ClusterBy = slices.Clone(snapshot.FactClusterBy)
	}
	return u.loader.Load(ctx, table, opts)
}

func (u *Uploader) record(table, outcome string) {
	if u.audit != nil {
		u.audit.RecordUpload(table, outcome)
	}
}
