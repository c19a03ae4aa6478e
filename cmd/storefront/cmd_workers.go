package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/app/services"
)

var queueWorkersFlag int

// storefront queue:work runs workers without the HTTP server. Only useful
// with a shared driver (redis or amqp).
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start queue workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = a.Config.Queue.Workers
		}
		if a.Config.Queue.Driver == "memory" {
			fmt.Fprintln(os.Stderr, "warning: QUEUE_DRIVER=memory, this process only sees its own jobs")
		}

		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		a.Queue.Work(cmd.Context(), workers)
		fmt.Println("Queue worker stopped.")
		return nil
	},
}

// storefront queue:failed
var queueFailedCmd = &cobra.Command{
	Use:   "queue:failed",
	Short: "List jobs that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		failed, err := a.Queue.FailedJobs(cmd.Context())
		if err != nil {
			return err
		}
		if len(failed) == 0 {
			fmt.Println("No failed jobs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "FAILED AT\tJOB\tATTEMPTS\tERROR")
		for _, f := range failed {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.FailedAt.Format(time.RFC3339), f.Name, f.Attempts, f.Error)
		}
		return w.Flush()
	},
}

// storefront reconcile runs one sweep and exits.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Confirm pending card orders the gateway reports as paid",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		report, err := a.Reconcile.Sweep(cmd.Context())
		fmt.Printf("Checked %d order(s), %d failed.\n", report.Checked, report.Failed)

		outcomes := make([]string, 0, len(report.Outcomes))
		for o := range report.Outcomes {
			outcomes = append(outcomes, string(o))
		}
		sort.Strings(outcomes)
		for _, o := range outcomes {
			fmt.Printf("  %s: %d\n", o, report.Outcomes[services.Outcome(o)])
		}
		return err
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 0, "Number of concurrent workers (default QUEUE_WORKERS)")
}
