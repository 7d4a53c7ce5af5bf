package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/scoring"
	"github.com/leadworks/salesfilter/internal/verify"
)

var scoreCmd = &cobra.Command{
	Use:   "score <email>",
	Short: "Score a single lead",
	Long: `Scores one lead through the rule engine and prints the signal
breakdown. By default only the offline rules run; --verify adds the
domain liveness probe, network verification and enrichment.

Examples:
  # Offline rule scoring
  salesfilter score j.smith@globaltel.net --name "John Smith"

  # Full pipeline including network checks
  salesfilter score j.smith@globaltel.net --name "John Smith" --verify`,
	Args: cobra.ExactArgs(1),
	RunE: runSingleScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("name", "", "lead name")
	f.String("date", "", "signup date")
	f.Bool("verify", false, "run liveness, verification adapters and enrichment")
	rootCmd.AddCommand(scoreCmd)
}

func runSingleScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	rules, err := loadRules()
	if err != nil {
		return err
	}
	engine := scoring.NewEngine(rules)

	email := args[0]
	name, _ := cmd.Flags().GetString("name")
	date, _ := cmd.Flags().GetString("date")
	withVerify, _ := cmd.Flags().GetBool("verify")

	domain := scoring.ExtractDomain(email)

	var verification model.Verification
	var enrichment *model.Enrichment
	if withVerify {
		switch {
		case domain == "":
			verification.DomainSkipped = true
			verification.DomainDetail = "no valid domain"
		case rules.IsFreeProvider(domain):
			verification.DomainSkipped = true
			verification.DomainDetail = "consumer provider, liveness not probed"
		default:
			liveness := verify.NewLiveness(
				time.Duration(cfg.Verify.LivenessDNSTimeoutSecs)*time.Second,
				time.Duration(cfg.Verify.LivenessHTTPTimeoutSecs)*time.Second,
			)
			verification.DomainAlive, verification.DomainDetail = liveness.Check(ctx, domain)
		}
		verification.Checks = buildRegistry(rules).RunAll(ctx, name, email, domain)
		if enricher := buildEnricher(rules); enricher != nil {
			enrichment = enricher.Enrich(ctx, model.LeadRow{Name: name, Email: email, Date: date}, domain)
		}
	}

	score, reason, breakdown := engine.Score(name, email, verification)
	if enrichment != nil && enrichment.ScoreAdjustment != 0 {
		score = rules.Clamp(score + enrichment.ScoreAdjustment)
		reason = fmt.Sprintf("%s, enrichment %+d, adjusted total = %d", reason, enrichment.ScoreAdjustment, score)
	}

	fmt.Printf("Email:   %s\n", email)
	if name != "" {
		fmt.Printf("Name:    %s\n", name)
	}
	fmt.Printf("Domain:  %s\n", domain)
	fmt.Printf("Type:    %s\n", breakdown.DomainType)
	if breakdown.DetectedIndustry != "" {
		fmt.Printf("Industry: %s\n", breakdown.DetectedIndustry)
	}
	fmt.Printf("Score:   %d\n", score)
	fmt.Printf("Reason:  %s\n", reason)

	if len(breakdown.Signals) > 0 {
		fmt.Println("\nSignals:")
		for _, sig := range breakdown.Signals {
			fmt.Printf("  %-15s %+4d  %s\n", sig.Kind, sig.Points, sig.Rationale)
		}
	}
	if withVerify {
		fmt.Println("\nVerification:")
		fmt.Printf("  %-15s %v  %s\n", "domain", verification.DomainAlive, verification.DomainDetail)
		for _, check := range verification.Checks {
			fmt.Printf("  %-15s verified=%v matched=%v  %s\n", check.Provider, check.Verified, check.Matched, check.Detail)
		}
		if enrichment != nil {
			fmt.Println("\nEnrichment:")
			if enrichment.CompanyName != "" {
				fmt.Printf("  company:    %s (%s)\n", enrichment.CompanyName, enrichment.CompanyStatus)
			}
			if enrichment.PhoneNumber != "" {
				fmt.Printf("  phone:      %s (%s)\n", enrichment.PhoneNumber, enrichment.PhoneType)
			}
			fmt.Printf("  adjustment: %+d\n", enrichment.ScoreAdjustment)
		}
	}
	return nil
}
