package cmd

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ticketstar/internal/config"
	"ticketstar/internal/observability"
	"ticketstar/internal/security"
	"ticketstar/internal/ui"
	"ticketstar/internal/warehouse"
	"ticketstar/internal/weather"
	"ticketstar/pkg/models"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitPartial means the run finished but a collaborator skipped some units.
	ExitPartial = 2
)

// skipConfig marks commands that must not load the configuration first.
const skipConfig = "skip-config"

// flagKeys binds command-line flags to configuration keys. A flag that is
// not set on the command line does not override the file or environment.
var flagKeys = map[string]string{
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"tickets":      "sources.tickets",
	"sections":     "sources.sections",
	"weather":      "sources.weather",
	"output":       "output.dir",
	"metrics-file": "output.metrics_file",
	"venue-scope":  "model.venue_scope",
	"fan-out":      "model.fan_out",
	"start":        "date_range.start",
	"end":          "date_range.end",
	"concurrency":  "weather.concurrency",
}

// credentialStore is the part of security.CredentialManager the CLI uses.
type credentialStore interface {
	Get(name string) (string, error)
	Store(name, value string) error
	Delete(name string) error
}

// partialError reports a run that completed with skipped collaborator units.
type partialError struct {
	msg string
}

func (e *partialError) Error() string {
	return e.msg
}

// app carries the state shared by all commands of one invocation.
type app struct {
	v         *viper.Viper
	cfgFile   string
	quiet     bool
	verbose   bool
	logOutput io.Writer

	cfg    *models.Config
	logger *observability.Logger
	audit  *observability.Audit
	ui     *ui.UI

	asker       ui.Asker
	credentials func() (credentialStore, error)
	newProvider func(models.WeatherSource) (weather.Provider, error)
	openLoader  func(ctx context.Context, cfg models.Warehouse, password string) (warehouse.Loader, error)
}

func newApp() *app {
	return &app{
		v:         viper.New(),
		logOutput: os.Stderr,
		asker:     ui.TerminalAsker(),
		credentials: func() (credentialStore, error) {
			return security.NewCredentialManager(security.DefaultCredentialsDir())
		},
		newProvider: func(src models.WeatherSource) (weather.Provider, error) {
			cfg, err := weather.ClientConfigFrom(src)
			if err != nil {
				return nil, err
			}
			return weather.NewMeteostatClient(cfg), nil
		},
		openLoader: warehouse.Open,
	}
}

// NewRootCmd builds the ticketstar command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ticketstar",
		Short: "Build the ticket sales star schema",
		Long: `ticketstar turns raw ticket sales, section capacities and daily weather
into a star schema of five dimensions and one fact table, published as CSV
snapshots and optionally loaded into Snowflake or PostgreSQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.ui = ui.NewUI(a.verbose, a.quiet)
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.loadConfig(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./ticketstar.yaml or ~/.ticketstar/ticketstar.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "only print errors")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "print additional detail")

	root.AddCommand(
		newRunCmd(a),
		newTransformCmd(a),
		newFetchWeatherCmd(a),
		newUploadCmd(a),
		newInitCmd(a),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration with the command's flags bound on top
// and sets up the logger.
func (a *app) loadConfig(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.audit = observability.NewAudit()
	a.logger = observability.NewLogger(observability.LoggerConfig{
		Level:   observability.LogLevelFromString(cfg.Logging.Level),
		Output:  a.logOutput,
		Format:  cfg.Logging.Format,
		Service: "ticketstar",
		Version: Version,
	})

	if used := a.v.ConfigFileUsed(); used != "" {
		a.ui.VerbosePrintf("Using config file %s\n", used)
	}
	return nil
}

// writeMetrics refreshes the metrics textfile after a stage that ran outside
// the pipeline.
func (a *app) writeMetrics() {
	if a.cfg.Output.MetricsFile == "" {
		return
	}
	if err := a.audit.WriteTextfile(a.cfg.Output.MetricsFile); err != nil {
		a.logger.WithError(err).Warnf("Failed to write metrics file %s", a.cfg.Output.MetricsFile)
	}
}

// Execute runs the CLI and exits with its status.
func Execute() {
	os.Exit(execute(newApp(), os.Args[1:]))
}

func execute(a *app, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var partial *partialError
	if stderrors.As(err, &partial) {
		ui.ShowWarning(partial.Error())
		return ExitPartial
	}
	ui.ShowError(err)
	return ExitFailure
}

// closeLoader closes the warehouse connection, ignoring an already closed pool.
func closeLoader(a *app, loader warehouse.Loader) {
	if err := loader.Close(); err != nil && !stderrors.Is(err, sql.ErrConnDone) {
		a.logger.WithError(err).Warn("Failed to close warehouse connection")
	}
}
