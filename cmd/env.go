package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadworks/salesfilter/internal/job"
	"github.com/leadworks/salesfilter/internal/scoring"
	"github.com/leadworks/salesfilter/internal/store"
	"github.com/leadworks/salesfilter/internal/verify"
	"github.com/leadworks/salesfilter/pkg/numlookup"
	"github.com/leadworks/salesfilter/pkg/opencorp"
)

// env bundles the wired pipeline for one command run.
type env struct {
	Store store.Store
	Orch  *job.Orchestrator
	Rules *scoring.Rules
}

// Close drains in-flight jobs before releasing the store.
func (e *env) Close() {
	e.Orch.Wait()
	_ = e.Store.Close()
}

// initEnv opens the store and wires the scoring pipeline from config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orch := job.NewOrchestrator(
		st,
		scoring.NewEngine(rules),
		buildRegistry(rules),
		verify.NewLiveness(
			time.Duration(cfg.Verify.LivenessDNSTimeoutSecs)*time.Second,
			time.Duration(cfg.Verify.LivenessHTTPTimeoutSecs)*time.Second,
		),
		buildEnricher(rules),
		job.NewTracker(time.Duration(cfg.Jobs.ProgressGraceSecs)*time.Second),
		job.Config{
			MaxConcurrent: cfg.Jobs.MaxConcurrent,
			OutputDir:     cfg.Jobs.OutputDir,
		},
	)
	return &env{Store: st, Orch: orch, Rules: rules}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func loadRules() (*scoring.Rules, error) {
	if cfg.Scoring.RulesPath == "" {
		return scoring.DefaultRules(), nil
	}
	return scoring.LoadRules(cfg.Scoring.RulesPath)
}

func buildRegistry(rules *scoring.Rules) *verify.Registry {
	return verify.NewRegistry(
		verify.NewProfessional(rules),
		verify.NewSocial(rules),
		verify.NewCodeHost(rules, cfg.Verify.CodeHostBaseURL, cfg.Verify.CodeHostRPS),
	)
}

func buildEnricher(rules *scoring.Rules) *verify.Enricher {
	if !cfg.Enrich.Enabled {
		return nil
	}
	ttl := time.Duration(cfg.Enrich.CacheTTLHours) * time.Hour
	return verify.NewEnricher(
		rules,
		opencorp.NewClient(cfg.Enrich.OpenCorpBaseURL, cfg.Enrich.OpenCorpAPIKey, ttl),
		numlookup.NewClient(cfg.Enrich.NumLookupBaseURL, cfg.Enrich.NumLookupAPIKey),
	)
}
