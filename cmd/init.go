package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ticketstar/internal/common"
	"ticketstar/internal/config"
	"ticketstar/internal/security"
	"ticketstar/internal/ui"
)

func newInitCmd(a *app) *cobra.Command {
	var force, forget bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration interactively",
		Long: `Walk through the sources, model, date range and warehouse settings and
write them to the configuration file. The warehouse password goes to the OS
keyring, or an encrypted file when no keyring is available.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(force, forget)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration without asking")
	cmd.Flags().BoolVar(&forget, "forget-password", false, "remove the stored warehouse password when none is entered")
	return cmd
}

func (a *app) runInit(force, forget bool) error {
	path := a.cfgFile
	if path == "" {
		path = config.GetConfigFile()
	}
	path, err := common.CleanPath(path)
	if err != nil {
		return err
	}

	existing := ""
	if _, err := os.Stat(path); err == nil {
		if !force {
			overwrite := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("%s already exists. Overwrite it?", path),
				Default: false,
			}
			if err := a.asker.AskOne(prompt, &overwrite); err != nil {
				return err
			}
			if !overwrite {
				a.ui.Info("Configuration left unchanged")
				return nil
			}
		}
		existing = path
	}

	defaults, err := config.Load(viper.New(), existing)
	if err != nil {
		return err
	}

	result, err := ui.NewConfigWizard(a.asker).Run(defaults)
	if err != nil {
		return err
	}

	if err := a.savePassword(result, forget); err != nil {
		return err
	}

	if err := config.Save(result.Config, path); err != nil {
		return err
	}
	a.ui.Success(fmt.Sprintf("Configuration saved to %s", path))
	return nil
}

// savePassword stores the password entered in the wizard. With forget set, a
// blank answer removes the previously stored password instead of keeping it.
func (a *app) savePassword(result *ui.WizardResult, forget bool) error {
	if result.Password == "" && !forget {
		return nil
	}
	store, err := a.credentials()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	name := config.WarehouseCredentialName(result.Config.Warehouse)

	if result.Password == "" {
		err := store.Delete(name)
		if err != nil && !stderrors.Is(err, security.ErrCredentialNotFound) {
			return fmt.Errorf("failed to remove warehouse password: %w", err)
		}
		if err == nil {
			a.ui.VerbosePrintf("Removed stored warehouse password %q\n", name)
		}
		return nil
	}

	if err := store.Store(name, result.Password); err != nil {
		return fmt.Errorf("failed to store warehouse password: %w", err)
	}
	a.ui.VerbosePrintf("Stored warehouse password as %q\n", name)
	return nil
}
