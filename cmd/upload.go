package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ticketstar/internal/config"
	"ticketstar/internal/ui"
	"ticketstar/internal/warehouse"
	apperrors "ticketstar/pkg/errors"
)

func newUploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Load the published snapshots into the warehouse",
		Long: `Load the six snapshots of the output directory into the configured
warehouse, replacing each table. A table that fails is skipped and the
command exits with status 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUpload(a); err != nil {
				return err
			}
			return a.upload(cmd.Context())
		},
	}
	cmd.Flags().StringP("output", "o", "", "snapshot directory")
	return cmd
}

func validateUpload(a *app) error {
	if a.cfg.Output.Dir == "" {
		return apperrors.ConfigError("output directory is required", "output.dir")
	}
	return config.ValidateWarehouse(a.cfg)
}

// resolvePassword fills the warehouse password from the environment, the
// config file or the credential store.
func (a *app) resolvePassword() error {
	var store config.CredentialStore
	if s, err := a.credentials(); err != nil {
		a.logger.WithError(err).Debug("Credential store unavailable")
	} else {
		store = s
	}
	return config.ResolveWarehousePassword(a.cfg, store)
}

func (a *app) upload(ctx context.Context) error {
	if err := a.resolvePassword(); err != nil {
		return err
	}

	a.ui.StartProgress(fmt.Sprintf("Connecting to %s", a.cfg.Warehouse.Driver))
	loader, err := a.openLoader(ctx, a.cfg.Warehouse, a.cfg.Warehouse.Password)
	if err != nil {
		a.ui.StopProgress(false, "Connection failed")
		return err
	}
	defer closeLoader(a, loader)
	a.ui.StopProgress(true, fmt.Sprintf("Connected to %s", a.cfg.Warehouse.Driver))

	a.ui.StartProgress("Loading tables")
	report, err := warehouse.NewUploader(loader, a.logger, a.audit).UploadAll(ctx, a.cfg.Output.Dir)
	if err != nil {
		a.ui.StopProgress(false, "Upload cancelled")
		return err
	}
	a.ui.StopProgress(!report.Partial(), fmt.Sprintf("Loaded %d tables", len(report.Loaded)))
	a.ui.Printf("%s", ui.NewSummary(ui.SupportsColor()).Upload(report))
	a.writeMetrics()

	if report.Partial() {
		return &partialError{msg: fmt.Sprintf("%d tables failed to load", len(report.Failed))}
	}
	return nil
}
