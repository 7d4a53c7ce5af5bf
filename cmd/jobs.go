package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List scoring jobs",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one job with its aggregates and logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

func init() {
	f := jobsCmd.Flags()
	f.String("status", "", "filter by status (pending, processing, completed, failed)")
	f.Int("limit", 20, "maximum number of jobs")
	f.Int("offset", 0, "listing offset")

	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("process"); err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.JobFilter{}
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		status := model.JobStatus(v)
		switch status {
		case model.JobStatusPending, model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusFailed:
			filter.Status = status
		default:
			return eris.Errorf("jobs: unknown status %q", v)
		}
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.Offset, _ = cmd.Flags().GetInt("offset")

	jobs, err := st.ListJobs(ctx, filter)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs.")
		return nil
	}

	fmt.Printf("%-36s %-30s %6s %-10s %-20s\n", "ID", "FILENAME", "ROWS", "STATUS", "CREATED")
	fmt.Println(strings.Repeat("-", 106))
	for _, j := range jobs {
		name := j.Filename
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		fmt.Printf("%-36s %-30s %6d %-10s %-20s\n",
			j.ID, name, j.RowCount, j.Status, j.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("process"); err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.JobSummary(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job:      %s\n", summary.ID)
	fmt.Printf("File:     %s\n", summary.Filename)
	fmt.Printf("Status:   %s\n", summary.Status)
	fmt.Printf("Rows:     %d\n", summary.RowCount)
	fmt.Printf("Average:  %.1f\n", summary.AvgScore)
	fmt.Printf("Alive:    %d domains\n", summary.DomainAliveCount)
	if summary.OutputPath != "" {
		fmt.Printf("Output:   %s\n", summary.OutputPath)
	}
	if len(summary.VerifiedByChecker) > 0 {
		fmt.Println("\nVerified:")
		for provider, count := range summary.VerifiedByChecker {
			fmt.Printf("  %-15s %d\n", provider, count)
		}
	}

	logs, err := st.ListLogs(ctx, args[0], 0)
	if err != nil {
		return err
	}
	if len(logs) > 0 {
		fmt.Println("\nLogs:")
		// show the tail, full logs are available over HTTP
		if len(logs) > 15 {
			logs = logs[len(logs)-15:]
		}
		for _, l := range logs {
			fmt.Printf("  %s [%s] %s\n", l.Timestamp.Format("15:04:05"), strings.ToUpper(l.Level), l.Message)
		}
	}
	return nil
}
