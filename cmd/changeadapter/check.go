package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/source/servicenow"
)

// checkReport is one line of `check` output.
type checkReport struct {
	Instance string `json:"instance"`
	Status   string `json:"status"`
	Records  int    `json:"records"`
	Error    string `json:"error,omitempty"`
}

// statusDropped marks a check whose response had no body and was dropped.
const statusDropped = "NO RESPONSE"

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON  bool
		fail    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check [instance...]",
		Short: "Run one health check per instance",
		Long: `Runs a single health check against each given instance (all configured
instances when none are given) and prints the status it announced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			reports, err := runChecks(ctx, env, args)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				printReports(cmd, reports)
			}

			if fail {
				for _, r := range reports {
					if r.Status != string(model.StatusOnline) {
						return fmt.Errorf("instance %s is %s", r.Instance, r.Status)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&fail, "fail", false, "exit non-zero unless every instance is ONLINE")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall timeout")
	return cmd
}

// runChecks runs the health checks concurrently and returns the reports
// in argument order.
func runChecks(ctx context.Context, env *environment, ids []string) ([]checkReport, error) {
	if len(ids) == 0 {
		for _, inst := range env.cfg.Instances {
			ids = append(ids, inst.ID)
		}
	}

	reports := make([]checkReport, len(ids))
	done := make(chan struct{}, len(ids))
	for i, id := range ids {
		a, err := env.adapter(id)
		if err != nil {
			return nil, err
		}
		go func() {
			defer func() { done <- struct{}{} }()
			reports[i] = report(ctx, id, a)
		}()
	}
	for range ids {
		<-done
	}
	return reports, nil
}

// report waits for one health check of a and summarizes it.
func report(ctx context.Context, id string, a *servicenow.Adapter) checkReport {
	r := checkReport{Instance: id}
	res, ok := <-a.Healthcheck(ctx)
	switch {
	case !ok:
		r.Status = statusDropped
	case res.Err != nil:
		r.Status = string(model.StatusOffline)
		r.Error = res.Err.Error()
	default:
		r.Status = string(model.StatusOnline)
		r.Records = len(res.Value)
	}
	return r
}

func printReports(cmd *cobra.Command, reports []checkReport) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tSTATUS\tRECORDS\tERROR")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Instance, r.Status, r.Records, r.Error)
	}
	w.Flush()
}
