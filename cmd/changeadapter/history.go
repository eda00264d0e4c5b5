package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <instance>",
		Short: "Show recorded ONLINE/OFFLINE events",
		Args:  cobra.ExactArgs(1),
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

			events, err := s.GetStatusEvents(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSTATUS\tMESSAGE")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					ev.CreatedAt.Local().Format(time.DateTime), ev.Status, ev.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show (0 for all)")
	return cmd
}
