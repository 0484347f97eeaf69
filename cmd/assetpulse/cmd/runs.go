package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/service/runs"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE:  runRunsList,
}

var runsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count runs matching the filter",
	RunE:  runRunsCount,
}

var runsGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show a single run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsGet,
}

var runsStepsCmd = &cobra.Command{
	Use:   "steps <run-id>",
	Short: "Show step stats for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsSteps,
}

var runsTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List run tags and their values",
	RunE:  runRunsTags,
}

var (
	runsStatus string
	runsJob    string
	runsCursor string
	runsLimit  int
	runsFormat string
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsCountCmd, runsGetCmd, runsStepsCmd, runsTagsCmd)

	runsCmd.PersistentFlags().StringVar(&runsFormat, "format", "table",
		"output format (table, json, yaml)")

	for _, c := range []*cobra.Command{runsListCmd, runsCountCmd} {
		c.Flags().StringVar(&runsStatus, "status", "",
			"comma-separated run statuses to match")
		c.Flags().StringVar(&runsJob, "job", "", "job name to match")
	}
	runsListCmd.Flags().StringVar(&runsCursor, "cursor", "",
		"run id to resume listing after")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum runs to return")
}

func runsFilterFromFlags() (core.RunsFilter, error) {
	var filter core.RunsFilter
	filter.JobName = runsJob
	if runsStatus != "" {
		for _, part := range strings.Split(runsStatus, ",") {
			status := core.RunStatus(strings.TrimSpace(part))
			if !core.IsValidRunStatus(status) {
				return filter, fmt.Errorf("unknown run status: %s", status)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	return filter, nil
}

// withRunService opens the store and hands a run service to fn.
func withRunService(fn func(*runs.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)
	return fn(runs.NewService(store))
}

func runRunsList(cobraCmd *cobra.Command, _ []string) error {
	filter, err := runsFilterFromFlags()
	if err != nil {
		return err
	}
	return withRunService(func(svc *runs.Service) error {
		records, err := svc.List(cobraCmd.Context(), filter, core.RunID(runsCursor), runsLimit)
		if err != nil {
			return err
		}
		if runsFormat != "table" {
			return outputAs(runsFormat, records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tJOB\tSTATUS\tCREATED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				rec.ID, rec.JobName, rec.Status,
				rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	})
}

func runRunsCount(cobraCmd *cobra.Command, _ []string) error {
	filter, err := runsFilterFromFlags()
	if err != nil {
		return err
	}
	return withRunService(func(svc *runs.Service) error {
		count, err := svc.Count(cobraCmd.Context(), filter)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	})
}

func runRunsGet(cobraCmd *cobra.Command, args []string) error {
	return withRunService(func(svc *runs.Service) error {
		run, err := svc.Get(cobraCmd.Context(), core.RunID(args[0]))
		if err != nil {
			return err
		}
		if runsFormat == "table" {
			fmt.Printf("Run:     %s\n", run.ID)
			fmt.Printf("Job:     %s\n", run.JobName)
			fmt.Printf("Status:  %s\n", run.Status)
			fmt.Printf("Created: %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if run.Selection.IsConstrained() {
				fmt.Printf("Assets:  %s\n", joinAssetKeys(run.Selection.Keys()))
			} else {
				fmt.Println("Assets:  (unconstrained)")
			}
			return nil
		}
		return outputAs(runsFormat, run)
	})
}

func runRunsSteps(cobraCmd *cobra.Command, args []string) error {
	return withRunService(func(svc *runs.Service) error {
		stats, err := svc.StepStats(cobraCmd.Context(), core.RunID(args[0]))
		if err != nil {
			return err
		}
		if runsFormat != "table" {
			return outputAs(runsFormat, stats)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tSTATUS\tATTEMPTS")
		for _, stat := range stats {
			fmt.Fprintf(w, "%s\t%s\t%d\n", stat.StepKey, stat.Status, stat.Attempts)
		}
		return w.Flush()
	})
}

func runRunsTags(cobraCmd *cobra.Command, _ []string) error {
	return withRunService(func(svc *runs.Service) error {
		tags, err := svc.Tags(cobraCmd.Context())
		if err != nil {
			return err
		}
		if runsFormat != "table" {
			return outputAs(runsFormat, tags)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tVALUES")
		for _, tag := range tags {
			fmt.Fprintf(w, "%s\t%s\n", tag.Key, strings.Join(tag.Values, ", "))
		}
		return w.Flush()
	})
}

func joinAssetKeys(keys []core.AssetKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
