package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/change-adapter/internal/source/servicenow"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		fields  []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create <instance>",
		Short: "Create a change request",
		Long: `Creates a change request on an instance and prints the normalized result.
Fields are sent as given, e.g. --field short_description="Patch DB".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			id := args[0]

			body, err := parseFields(fields)
			if err != nil {
				return err
			}

			a, err := env.adapter(id, servicenow.WithClientOptions(
				servicenow.WithPostBody(func() any { return body }),
			))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, ok := <-a.PostRecord(ctx)
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s returned no body; nothing to print\n", id)
				return nil
			}
			if res.Err != nil {
				return fmt.Errorf("creating change request on %s: %w", id, res.Err)
			}
			return writeJSON(cmd.OutOrStdout(), res.Value)
		},
	}

	cmd.Flags().StringArrayVar(&fields, "field", nil, "record field as key=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	return cmd
}

// parseFields turns key=value pairs into a request body.
func parseFields(pairs []string) (map[string]any, error) {
	body := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", p)
		}
		body[k] = v
	}
	return body, nil
}
