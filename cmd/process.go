package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadworks/salesfilter/internal/fetcher"
	"github.com/leadworks/salesfilter/internal/model"
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Score a lead sheet from disk",
	Long: `Runs a full scoring job over an .xlsx or .csv lead sheet and writes
the scored workbook next to the other job artifacts.

Examples:
  # Score a sheet with the default rules
  salesfilter process leads.xlsx

  # Write the artifact somewhere specific
  salesfilter process leads.xlsx --output-dir ./scored`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("output-dir", "", "artifact directory (default from config)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("process"); err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.Jobs.OutputDir = v
	}

	sheet, err := fetcher.ReadFile(args[0])
	if err != nil {
		return err
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	log := zap.L().With(zap.String("command", "process"))
	log.Info("starting batch scoring", zap.String("file", args[0]), zap.Int("rows", len(sheet.Rows)))

	jobID, err := env.Orch.Run(ctx, sheet, filepath.Base(args[0]))
	if err != nil {
		return err
	}

	job, err := env.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusCompleted {
		return eris.Errorf("process: job %s finished with status %s, see 'salesfilter jobs show %s'", jobID, job.Status, jobID)
	}

	summary, err := env.Store.JobSummary(ctx, jobID)
	if err != nil {
		return err
	}

	fmt.Printf("Job:      %s\n", job.ID)
	fmt.Printf("Rows:     %d\n", job.RowCount)
	fmt.Printf("Average:  %.1f\n", summary.AvgScore)
	fmt.Printf("Output:   %s\n", job.OutputPath)
	return nil
}
