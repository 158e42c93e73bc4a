package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/cloudlease/blueprints/internal/activity"
	"github.com/cloudlease/blueprints/internal/backoff"
	"github.com/cloudlease/blueprints/internal/config"
	"github.com/cloudlease/blueprints/internal/db"
	"github.com/cloudlease/blueprints/internal/events"
	"github.com/cloudlease/blueprints/internal/logging"
	"github.com/cloudlease/blueprints/internal/metrics"
	"github.com/cloudlease/blueprints/internal/stackset"
	"github.com/cloudlease/blueprints/internal/store"
	"github.com/cloudlease/blueprints/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load AWS config")
	}

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	w := worker.New(tc, cfg.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}},
	})

	exec := backoff.NewExecutor(logger)
	provider := stackset.NewClient(cloudformation.NewFromConfig(awsCfg), exec, logger)
	st := store.New(pool, cfg.DeploymentRetentionDays)
	publisher := events.NewPublisher(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)

	// Register activities
	w.RegisterActivity(activity.NewStackSets(provider, st, logger))
	w.RegisterActivity(activity.NewBlueprintDB(st, logger))
	w.RegisterActivity(activity.NewPublish(publisher, st, logger))

	// Register workflows
	w.RegisterWorkflow(workflow.DeployBlueprintWorkflow)
	w.RegisterWorkflow(workflow.DeployStackSetWorkflow)
	w.RegisterWorkflow(workflow.TeardownStackSetWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", cfg.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}
