package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over all scored leads",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
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

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Jobs:           %d\n", stats.TotalJobs)
	fmt.Printf("Leads scored:   %d\n", stats.TotalLeads)
	fmt.Printf("Average score:  %.1f\n", stats.AverageScore)
	fmt.Printf("Domains alive:  %d (%.1f%%)\n", stats.DomainAliveCount, stats.DomainAliveRate)

	if len(stats.VerifiedByChecker) > 0 {
		fmt.Println("\nVerified:")
		for provider, count := range stats.VerifiedByChecker {
			fmt.Printf("  %-15s %6d (%.1f%%)\n", provider, count, stats.VerifiedRates[provider])
		}
	}
	if len(stats.CountsByDomainType) > 0 {
		fmt.Println("\nDomain types:")
		for dt, count := range stats.CountsByDomainType {
			fmt.Printf("  %-15s %6d\n", dt, count)
		}
	}
	if len(stats.TopDomains) > 0 {
		fmt.Println("\nTop domains:")
		fmt.Printf("  %-30s %6s %8s\n", "DOMAIN", "LEADS", "AVG")
		fmt.Println("  " + strings.Repeat("-", 46))
		for _, d := range stats.TopDomains {
			fmt.Printf("  %-30s %6d %8.1f\n", d.Domain, d.Count, d.AvgScore)
		}
	}
	return nil
}
