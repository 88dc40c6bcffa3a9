package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ticketstar/internal/config"
	"ticketstar/internal/pipeline"
	"ticketstar/internal/ui"
)

func newTransformCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Build the star schema snapshots from the source files",
		Long: `Read the ticket, section and weather CSV files, build the five dimensions
and the fact table, and publish them into the output directory. The six
snapshots are replaced together; a structural error leaves the previous
snapshots untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(a.cfg); err != nil {
				return err
			}
			_, err := a.transform(cmd.Context())
			return err
		},
	}
	addTransformFlags(cmd)
	return cmd
}

func addTransformFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("tickets", "", "ticket sales CSV")
	flags.String("sections", "", "section capacity CSV")
	flags.String("weather", "", "daily weather CSV")
	flags.StringP("output", "o", "", "snapshot directory")
	flags.String("metrics-file", "", "write prometheus counters to this textfile")
	flags.String("venue-scope", "", "venue dimension grain (date, section)")
	flags.Bool("fan-out", false, "allow a ticket to match several home cities")
}

func (a *app) transform(ctx context.Context) (*pipeline.Result, error) {
	a.ui.StartProgress("Building star schema")
	result, err := pipeline.New(a.cfg, a.logger, a.audit).Run(ctx)
	if err != nil {
		a.ui.StopProgress(false, "Transform failed")
		return nil, err
	}
	a.ui.StopProgress(true, fmt.Sprintf("Published %d tables to %s", len(result.Tables), result.OutputDir))
	a.ui.Printf("%s", ui.NewSummary(ui.SupportsColor()).Run(result.Report, result.Tables, result.Duration))
	return result, nil
}
