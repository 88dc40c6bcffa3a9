package cmd

import (
	stderrors "errors"
	"time"

	"github.com/spf13/cobra"

	"ticketstar/internal/config"
	"ticketstar/internal/ui"
)

func newRunCmd(a *app) *cobra.Command {
	var fetch, upload bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch weather, transform and upload in one go",
		Long: `Run the whole pipeline: optionally download weather (--fetch), build and
publish the star schema, then optionally load it into the warehouse
(--upload). A structural error stops the run before anything is published.
Skipped weather cities or failed tables finish the run with status 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start := time.Now()

			if err := config.Validate(a.cfg); err != nil {
				return err
			}
			if fetch {
				if err := config.ValidateFetch(a.cfg); err != nil {
					return err
				}
			}
			if upload {
				if err := config.ValidateWarehouse(a.cfg); err != nil {
					return err
				}
			}

			var partial *partialError
			if fetch {
				a.ui.Section("Fetch weather")
				if err := a.fetchWeather(ctx); err != nil {
					if !stderrors.As(err, &partial) {
						return err
					}
					a.logger.WithError(err).Warn("Continuing with partial weather")
				}
			}

			a.ui.Section("Transform")
			if _, err := a.transform(ctx); err != nil {
				return err
			}

			if upload {
				a.ui.Section("Upload")
				if err := a.upload(ctx); err != nil {
					if !stderrors.As(err, &partial) {
						return err
					}
				}
			}

			elapsed := time.Since(start)
			a.logger.InfoWithFields("Run completed", map[string]interface{}{
				"duration": elapsed.String(),
				"fetch":    fetch,
				"upload":   upload,
				"partial":  partial != nil,
			})
			if partial != nil {
				return partial
			}
			a.ui.Success("Run completed in " + ui.FormatDuration(elapsed))
			return nil
		},
	}

	addTransformFlags(cmd)
	addFetchFlags(cmd)
	cmd.Flags().BoolVar(&fetch, "fetch", false, "download weather before transforming")
	cmd.Flags().BoolVar(&upload, "upload", false, "load the snapshots into the warehouse afterwards")
	return cmd
}
