package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ticketstar/internal/config"
	"ticketstar/internal/ui"
	"ticketstar/internal/weather"
)

func newFetchWeatherCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-weather",
		Short: "Download daily weather for every configured station",
		Long: `Download the daily observations of every configured station over the
configured date range and write them to the weather source file. Cities
without data are skipped; the command then exits with status 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFetch(a); err != nil {
				return err
			}
			return a.fetchWeather(cmd.Context())
		},
	}
	addFetchFlags(cmd)
	cmd.Flags().String("weather", "", "weather CSV to write")
	return cmd
}

func addFetchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("start", "", "first day (YYYY-MM-DD)")
	flags.String("end", "", "last day (YYYY-MM-DD)")
	flags.Int("concurrency", 0, "concurrent station downloads")
}

func validateFetch(a *app) error {
	if err := config.Validate(a.cfg); err != nil {
		return err
	}
	return config.ValidateFetch(a.cfg)
}

// fetchWeather writes the weather source file. A partial result is written
// and reported as a partialError.
func (a *app) fetchWeather(ctx context.Context) error {
	start, end, err := config.DateBounds(a.cfg)
	if err != nil {
		return err
	}
	provider, err := a.newProvider(a.cfg.Weather)
	if err != nil {
		return err
	}

	a.ui.StartProgress(fmt.Sprintf("Fetching weather for %d cities", len(a.cfg.Stations)))
	fetcher := weather.NewFetcher(provider, a.cfg.Weather.Concurrency, a.logger).
		OnProgress(func(city string, done, total int) {
			a.ui.UpdateProgress(fmt.Sprintf("Fetching weather %d/%d (%s)", done, total, city))
		})
	observations, report, err := fetcher.FetchAll(ctx, a.cfg.Stations, start, end)
	if err != nil {
		a.ui.StopProgress(false, "Weather fetch failed")
		return err
	}
	if err := weather.WriteCSV(a.cfg.Sources.Weather, observations); err != nil {
		a.ui.StopProgress(false, "Failed to write weather file")
		return err
	}
	a.ui.StopProgress(true, fmt.Sprintf("Wrote %d observations to %s", len(observations), a.cfg.Sources.Weather))
	a.ui.Printf("%s", ui.NewSummary(ui.SupportsColor()).Fetch(report))

	if report.Partial() {
		return &partialError{msg: fmt.Sprintf("no weather for %d of %d cities", len(report.Skipped), len(a.cfg.Stations))}
	}
	return nil
}
