package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/store"
)

func newRecordsCmd(opts *rootOptions) *cobra.Command {
	var (
		stored  bool
		query   string
		limit   int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "records <instance>",
		Short: "Fetch change requests from an instance",
		Long: `Fetches the change requests of an instance and prints them as normalized
JSON. With --stored the tickets saved by the poller are printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			id := args[0]

			if stored {
				return printStored(cmd, env, id, query, limit)
			}

			a, err := env.adapter(id)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, ok := <-a.GetRecord(ctx)
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s returned no body; nothing to print\n", id)
				return nil
			}
			if res.Err != nil {
				return fmt.Errorf("fetching change requests from %s: %w", id, res.Err)
			}
			return writeJSON(cmd.OutOrStdout(), res.Value)
		},
	}

	cmd.Flags().BoolVar(&stored, "stored", false, "print tickets from the local store")
	cmd.Flags().StringVar(&query, "query", "", "filter stored tickets by number or description")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of stored tickets")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	return cmd
}

func printStored(cmd *cobra.Command, env *environment, id, query string, limit int) error {
	s, err := env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	filter := store.TicketFilter{InstanceID: &id, Limit: limit}
	if query != "" {
		filter.Query = &query
	}

	rows, err := s.GetTickets(cmd.Context(), filter)
	if err != nil {
		return err
	}

	tickets := make([]model.ChangeTicket, len(rows))
	for i, r := range rows {
		tickets[i] = r.Ticket
	}
	return writeJSON(cmd.OutOrStdout(), tickets)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
