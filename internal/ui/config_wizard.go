package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"ticketstar/internal/config"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// Asker is the subset of survey used by the wizard.
type Asker interface {
	Ask(qs []*survey.Question, response interface{}) error
	AskOne(p survey.Prompt, response interface{}) error
}

type surveyAsker struct{}

func (surveyAsker) Ask(qs []*survey.Question, response interface{}) error {
	return survey.Ask(qs, response)
}

func (surveyAsker) AskOne(p survey.Prompt, response interface{}) error {
	return survey.AskOne(p, response)
}

// TerminalAsker prompts on the controlling terminal.
func TerminalAsker() Asker {
	return surveyAsker{}
}

// ErrWizardCancelled is returned when the user aborts the wizard.
var ErrWizardCancelled = errors.New(errors.ErrCodeConfigMissing, "configuration cancelled")

type sourceAnswers struct {
	Tickets   string `survey:"tickets"`
	Sections  string `survey:"sections"`
	Weather   string `survey:"weather"`
	OutputDir string `survey:"output_dir"`
}

type modelAnswers struct {
	VenueScope string `survey:"venue_scope"`
	FanOut     bool   `survey:"fan_out"`
}

type rangeAnswers struct {
	Start       string `survey:"start"`
	End         string `survey:"end"`
	Concurrency string `survey:"concurrency"`
}

type snowflakeAnswers struct {
	Account   string `survey:"account"`
	Username  string `survey:"username"`
	Password  string `survey:"password"`
	Role      string `survey:"role"`
	Warehouse string `survey:"warehouse"`
	Database  string `survey:"database"`
	Schema    string `survey:"schema"`
}

type postgresAnswers struct {
	DSN    string `survey:"dsn"`
	Schema string `survey:"schema"`
}

// WizardResult is the outcome of a completed wizard. Password is kept out of
// Config so it can be written to the credential store instead of the file.
type WizardResult struct {
	Config   *models.Config
	Password string
}

// ConfigWizard provides an interactive configuration setup
type ConfigWizard struct {
	asker       Asker
	currentStep int
	totalSteps  int
}

// NewConfigWizard creates a new configuration wizard
func NewConfigWizard(asker Asker) *ConfigWizard {
	if asker == nil {
		asker = surveyAsker{}
	}
	return &ConfigWizard{
		asker:       asker,
		currentStep: 1,
		totalSteps:  5,
	}
}

// Run walks through every step starting from defaults, which is not modified.
func (w *ConfigWizard) Run(defaults *models.Config) (*WizardResult, error) {
	ShowHeader("ticketstar - Configuration Setup")

	cfg := *defaults
	cfg.Stations = make(map[string]string, len(defaults.Stations))
	for city, id := range defaults.Stations {
		cfg.Stations[city] = id
	}
	result := &WizardResult{Config: &cfg}

	steps := []func(*WizardResult) error{
		w.configureSourcesStep,
		w.configureModelStep,
		w.configureRangeStep,
		w.configureWarehouseStep,
		w.reviewConfiguration,
	}
	for _, step := range steps {
		if err := step(result); err != nil {
			if err == terminal.InterruptErr {
				return nil, ErrWizardCancelled
			}
			return nil, err
		}
	}
	return result, nil
}

func (w *ConfigWizard) configureSourcesStep(result *WizardResult) error {
	w.showProgress("Sources and Output")
	cfg := result.Config

	questions := []*survey.Question{
		{
			Name:     "tickets",
			Prompt:   &survey.Input{Message: "Ticket sales CSV:", Default: cfg.Sources.Tickets},
			Validate: survey.Required,
		},
		{
			Name:     "sections",
			Prompt:   &survey.Input{Message: "Section capacity CSV:", Default: cfg.Sources.Sections},
			Validate: survey.Required,
		},
		{
			Name: "weather",
			Prompt: &survey.Input{
				Message: "Weather CSV:",
				Default: cfg.Sources.Weather,
				Help:    "Written by 'ticketstar fetch-weather' and read by 'ticketstar transform'",
			},
			Validate: survey.Required,
		},
		{
			Name:     "output_dir",
			Prompt:   &survey.Input{Message: "Snapshot directory:", Default: cfg.Output.Dir},
			Validate: survey.Required,
		},
	}

	var answers sourceAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.Sources = models.Sources{
		Tickets:  strings.TrimSpace(answers.Tickets),
		Sections: strings.TrimSpace(answers.Sections),
		Weather:  strings.TrimSpace(answers.Weather),
	}
	cfg.Output.Dir = strings.TrimSpace(answers.OutputDir)

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configureModelStep(result *WizardResult) error {
	w.showProgress("Star Schema Model")
	cfg := result.Config

	scope := cfg.Model.VenueScope
	if scope == "" {
		scope = config.VenueScopeDate
	}
	questions := []*survey.Question{
		{
			Name: "venue_scope",
			Prompt: &survey.Select{
				Message: "Venue dimension grain:",
				Options: []string{config.VenueScopeDate, config.VenueScopeSection},
				Default: scope,
				Help:    "date keeps one venue row per game day and section; section keeps one per section",
			},
		},
		{
			Name: "fan_out",
			Prompt: &survey.Confirm{
				Message: "Allow a ticket to match several home cities?",
				Default: cfg.Model.FanOut,
				Help:    "When disabled an ambiguous section aborts the run",
			},
		},
	}

	var answers modelAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.Model = models.Model{VenueScope: answers.VenueScope, FanOut: answers.FanOut}

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configureRangeStep(result *WizardResult) error {
	w.showProgress("Weather Date Range")
	cfg := result.Config

	questions := []*survey.Question{
		{
			Name:     "start",
			Prompt:   &survey.Input{Message: "First day (YYYY-MM-DD):", Default: cfg.DateRange.Start},
			Validate: validateDate,
		},
		{
			Name:     "end",
			Prompt:   &survey.Input{Message: "Last day (YYYY-MM-DD):", Default: cfg.DateRange.End},
			Validate: validateDate,
		},
		{
			Name: "concurrency",
			Prompt: &survey.Input{
				Message: "Concurrent weather downloads:",
				Default: strconv.Itoa(max(cfg.Weather.Concurrency, 1)),
			},
			Validate: validatePositive,
		},
	}

	var answers rangeAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.DateRange = models.DateRange{Start: strings.TrimSpace(answers.Start), End: strings.TrimSpace(answers.End)}
	if _, _, err := config.DateBounds(cfg); err != nil {
		return err
	}
	concurrency, err := strconv.Atoi(strings.TrimSpace(answers.Concurrency))
	if err != nil || concurrency < 1 {
		return errors.ConfigError(fmt.Sprintf("invalid concurrency %q", answers.Concurrency), "weather.concurrency")
	}
	cfg.Weather.Concurrency = concurrency

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configureWarehouseStep(result *WizardResult) error {
	w.showProgress("Warehouse")
	cfg := result.Config

	driver := cfg.Warehouse.Driver
	if driver == "" {
		driver = config.DriverSnowflake
	}
	prompt := &survey.Select{
		Message: "Warehouse driver:",
		Options: []string{config.DriverSnowflake, config.DriverPostgres},
		Default: driver,
	}
	if err := w.asker.AskOne(prompt, &driver); err != nil {
		return err
	}
	cfg.Warehouse.Driver = driver

	if driver == config.DriverPostgres {
		return w.configurePostgres(result)
	}
	return w.configureSnowflake(result)
}

func (w *ConfigWizard) configureSnowflake(result *WizardResult) error {
	wh := &result.Config.Warehouse

	questions := []*survey.Question{
		{
			Name: "account",
			Prompt: &survey.Input{
				Message: "Snowflake Account:",
				Default: wh.Account,
				Help:    "Your Snowflake account identifier (e.g., xy12345.us-east-1)",
			},
			Validate: survey.Required,
		},
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:", Default: wh.Username},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
				Help:    "Stored in the OS keyring or an encrypted file, never in the config",
			},
			Validate: survey.Required,
		},
		{
			Name:   "role",
			Prompt: &survey.Input{Message: "Role:", Default: defaultString(wh.Role, "SYSADMIN")},
		},
		{
			Name:     "warehouse",
			Prompt:   &survey.Input{Message: "Warehouse:", Default: defaultString(wh.Warehouse, "COMPUTE_WH")},
			Validate: survey.Required,
		},
		{
			Name:     "database",
			Prompt:   &survey.Input{Message: "Database:", Default: defaultString(wh.Database, "ANALYTICS")},
			Validate: survey.Required,
		},
		{
			Name:     "schema",
			Prompt:   &survey.Input{Message: "Schema:", Default: defaultString(wh.Schema, "TICKETSTAR")},
			Validate: survey.Required,
		},
	}

	var answers snowflakeAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	wh.Account = answers.Account
	wh.Username = answers.Username
	wh.Password = ""
	wh.Role = answers.Role
	wh.Warehouse = answers.Warehouse
	wh.Database = answers.Database
	wh.Schema = answers.Schema
	wh.DSN = ""
	result.Password = answers.Password

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configurePostgres(result *WizardResult) error {
	wh := &result.Config.Warehouse

	questions := []*survey.Question{
		{
			Name: "dsn",
			Prompt: &survey.Input{
				Message: "Connection string:",
				Default: wh.DSN,
				Help:    "e.g., postgres://etl@localhost:5432/analytics?sslmode=disable",
			},
			Validate: survey.Required,
		},
		{
			Name:   "schema",
			Prompt: &survey.Input{Message: "Schema:", Default: defaultString(wh.Schema, "public")},
		},
	}

	var answers postgresAnswers
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	wh.DSN = answers.DSN
	wh.Schema = answers.Schema
	wh.Password = ""
	result.Password = ""

	w.currentStep++
	return nil
}

func (w *ConfigWizard) reviewConfiguration(result *WizardResult) error {
	w.showProgress("Review Configuration")
	cfg := result.Config

	fmt.Fprintln(Output, "\n"+ColorInfo("Configuration Summary:"))
	fmt.Fprintln(Output, strings.Repeat("─", 50))

	fmt.Fprintln(Output, ColorBold("\nSources:"))
	PrintKeyValue("Tickets", cfg.Sources.Tickets)
	PrintKeyValue("Sections", cfg.Sources.Sections)
	PrintKeyValue("Weather", cfg.Sources.Weather)
	PrintKeyValue("Snapshots", cfg.Output.Dir)

	fmt.Fprintln(Output, ColorBold("\nModel:"))
	PrintKeyValue("Venue scope", cfg.Model.VenueScope)
	PrintKeyValue("Fan-out", strconv.FormatBool(cfg.Model.FanOut))
	PrintKeyValue("Date range", cfg.DateRange.Start+" .. "+cfg.DateRange.End)

	fmt.Fprintln(Output, ColorBold("\nWarehouse:"))
	PrintKeyValue("Driver", cfg.Warehouse.Driver)
	if cfg.Warehouse.Driver == config.DriverPostgres {
		PrintKeyValue("Schema", cfg.Warehouse.Schema)
	} else {
		PrintKeyValue("Account", cfg.Warehouse.Account)
		PrintKeyValue("Username", cfg.Warehouse.Username)
		PrintKeyValue("Target", cfg.Warehouse.Database+"."+cfg.Warehouse.Schema)
	}

	fmt.Fprintln(Output, strings.Repeat("─", 50))

	confirm := false
	prompt := &survey.Confirm{
		Message: "Save this configuration?",
		Default: true,
	}
	if err := w.asker.AskOne(prompt, &confirm); err != nil {
		return err
	}
	if !confirm {
		return ErrWizardCancelled
	}
	return nil
}

func (w *ConfigWizard) showProgress(step string) {
	fmt.Fprintf(Output, "\n%s [Step %d/%d] %s\n\n",
		ColorProgress("►"),
		w.currentStep,
		w.totalSteps,
		ColorBold(step),
	)
}

func validateDate(val interface{}) error {
	s, _ := val.(string)
	if _, err := time.Parse(config.DateLayout, strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("expected a date like 2025-01-31")
	}
	return nil
}

func validatePositive(val interface{}) error {
	s, _ := val.(string)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("expected a positive number")
	}
	return nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
