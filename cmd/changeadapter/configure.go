package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/change-adapter/internal/model"
	configform "github.com/nhle/change-adapter/internal/ui/config"
)

func newConfigureCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configure [instance]",
		Short: "Add or edit an instance interactively",
		Long: `Opens a form to add a ServiceNow instance, or to edit the given one.
The password is stored in the system keyring, never in the config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			fields := configform.NewFields()
			if len(args) == 1 {
				inst, ok := cfg.Instance(args[0])
				if !ok {
					return fmt.Errorf("unknown instance %q", args[0])
				}
				fields = configform.FieldsFrom(inst)
			}

			if err := configform.NewForm(&fields, 72).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Aborted; nothing saved.")
					return nil
				}
				return err
			}

			inst, err := configform.Save(opts.configPath, cfg, fields)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved instance %s to %s\n", inst.ID, opts.configPath)
			return nil
		},
	}
}
