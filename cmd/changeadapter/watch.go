package main

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/change-adapter/internal/app"
	appsync "github.com/nhle/change-adapter/internal/sync"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the interactive status dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}

			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			// Logs would corrupt the full-screen view.
			log := zerolog.Nop()

			instances := app.BuildAdapters(env.cfg, log)
			p := appsync.New(s, nil, log)
			if app.RegisterEnabled(p, instances) == 0 {
				return errors.New("no enabled instances configured; run `changeadapter configure`")
			}

			m := app.New(cmd.Context(), p, s, app.Names(instances))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			p.Stop()
			return err
		},
	}
}
