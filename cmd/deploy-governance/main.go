package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/nais/deploy-governance/internal/api"
	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/auth"
	"github.com/nais/deploy-governance/internal/config"
	"github.com/nais/deploy-governance/internal/database"
	"github.com/nais/deploy-governance/internal/database/memory"
	"github.com/nais/deploy-governance/internal/deployment"
	"github.com/nais/deploy-governance/internal/logger"
	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/notify"
	"github.com/nais/deploy-governance/internal/reputation"
	"github.com/nais/deploy-governance/internal/search"
	"github.com/nais/deploy-governance/internal/targets"
	"github.com/nais/deploy-governance/internal/voting"
)

type store interface {
	deployment.Store
	voting.Store
	reputation.Store
}

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, log); err != nil {
		log.WithError(err).Fatal("deploy-governance stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("creating prometheus exporter: %w", err)
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter("github.com/nais/deploy-governance")

	errors, err := meter.Int64Counter("errors")
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	var st store
	if cfg.DatabaseDSN == config.MemoryDSN {
		log.Warn("using the in-process store, state is lost on restart")
		st = memory.New()
	} else {
		pool, err := database.NewDB(ctx, cfg.DatabaseDSN, log.WithField("component", "database"))
		if err != nil {
			return fmt.Errorf("setting up database: %w", err)
		}
		repo := database.New(pool, log.WithField("component", "database"))
		defer repo.Close()
		if err := repo.Metrics(meter); err != nil {
			return err
		}
		st = repo
	}

	catalogue := reputation.DefaultCatalogue()
	if cfg.AchievementsFile != "" {
		catalogue, err = reputation.LoadCatalogue(cfg.AchievementsFile)
		if err != nil {
			return fmt.Errorf("loading achievements: %w", err)
		}
	}

	ledger := reputation.NewLedger(st, log.WithField("component", "reputation"), reputation.WithCatalogue(catalogue))
	for _, expert := range cfg.Experts {
		if err := ledger.SetExpertise(ctx, expert.ID, expert.Expertise); err != nil {
			return fmt.Errorf("registering expert %q: %w", expert.ID, err)
		}
	}

	var notifier voting.Notifier = notify.NewLog(log.WithField("component", "notify"))
	if cfg.NotifyEndpoint != "" {
		notifier = notify.NewWebhook(cfg.NotifyToken, cfg.NotifyEndpoint, errors, log.WithField("client", "notify"))
	}

	coordinator, err := voting.NewCoordinator(st, ledger, notifier, voting.Config{
		Window:                       cfg.VotingWindow,
		QuorumPercentage:             cfg.QuorumPercentage,
		DecisiveMargin:               cfg.DecisiveMargin,
		MinAdditiveRatio:             cfg.MinAdditiveRatio,
		EnvironmentalImpactThreshold: cfg.EnvironmentalImpactThreshold,
		ExpertWeight:                 cfg.ExpertWeight,
		Experts:                      cfg.ExpertIDs(),
	}, meter, log.WithField("component", "voting"))
	if err != nil {
		return fmt.Errorf("setting up voting: %w", err)
	}
	defer coordinator.Close()

	registry := targets.NewRegistry()
	for _, t := range cfg.Targets {
		client := targets.New(t.PSK, t.Endpoint, errors, log.WithFields(logrus.Fields{"client": "target", "target_id": t.ID}))
		if err := registry.Register(model.TargetRef{ID: t.ID, Platform: t.Platform, Endpoint: t.Endpoint}, client); err != nil {
			return err
		}
	}
	if len(cfg.Targets) == 0 {
		log.Warn("no deployment targets configured")
	}

	orchestrator, err := deployment.New(st, coordinator, ledger, registry, deployment.Config{
		AdditiveOnly:                 cfg.AdditiveOnly,
		EnvironmentalImpactThreshold: cfg.EnvironmentalImpactThreshold,
		TargetTimeout:                cfg.TargetTimeout,
		TargetRetries:                cfg.TargetRetries,
		MaxParallelTargets:           cfg.MaxParallelTargets,
	}, meter, log.WithField("component", "deployment"))
	if err != nil {
		return fmt.Errorf("setting up orchestrator: %w", err)
	}
	if err := orchestrator.Recover(ctx); err != nil {
		return fmt.Errorf("recovering deployments: %w", err)
	}

	server := &api.Server{
		Orchestrator: orchestrator,
		Voting:       coordinator,
		Ledger:       ledger,
		Targets:      registry,
		Searcher:     search.New(search.NewDeployments(st)),
		Presenter:    apierror.NewPresenter(log.WithField("component", "api")),
		Log:          log.WithField("component", "api"),
	}

	metricsMW, err := api.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("setting up metrics middleware: %w", err)
	}

	authMW := auth.TrustedHeader()
	if cfg.RunAsUser != "" {
		log.Infof("Running as user %s", cfg.RunAsUser)
		authMW = auth.StaticUser(cfg.RunAsUser)
	}

	corsMW := cors.New(
		cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", auth.UserHeader},
			AllowCredentials: true,
			Debug:            cfg.LogLevel == "debug",
		})

	mux := http.NewServeMux()
	mux.Handle("/", corsMW.Handler(server.Router(authMW, metricsMW)))
	mux.Handle("/metrics", promhttp.Handler())

	log.Infof("listening on http://%s:%s/", cfg.BindHost, cfg.Port)
	return http.ListenAndServe(cfg.BindHost+":"+cfg.Port, mux)
}
