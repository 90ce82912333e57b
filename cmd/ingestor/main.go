// Package main wires the ingestion core, its storage backends, the HTTP
// trigger surface, and the wall-clock scheduler into one running process.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/adapters/entsog"
	"github.com/gasmarket-eu/ingestor/internal/adapters/gie"
	"github.com/gasmarket-eu/ingestor/internal/adapters/nationalgas"
	"github.com/gasmarket-eu/ingestor/internal/api"
	"github.com/gasmarket-eu/ingestor/internal/config"
	"github.com/gasmarket-eu/ingestor/internal/ingestion"
	"github.com/gasmarket-eu/ingestor/internal/scheduler"
	"github.com/gasmarket-eu/ingestor/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	dbConfig := storage.LoadConfig()
	if err := dbConfig.Validate(); err != nil {
		log.Fatalf("invalid database configuration: %v", err)
	}

	conn, err := storage.NewConnection(dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() { _ = conn.Close() }()

	flatStore, err := storage.NewFlatStore(conn)
	if err != nil {
		log.Fatalf("failed to build flat store: %v", err)
	}

	gieStore, err := storage.NewGIEStore(conn)
	if err != nil {
		log.Fatalf("failed to build GIE store: %v", err)
	}

	datasetConfigPath := config.GetEnvStr(ingestion.DatasetConfigPathEnvVar, ingestion.DefaultDatasetConfigPath)

	datasetConfig, err := ingestion.LoadDatasetConfig(datasetConfigPath)
	if err != nil {
		log.Fatalf("failed to load dataset config %s: %v", datasetConfigPath, err)
	}

	registry := buildRegistry(logger)

	limiter := ingestion.NewConcurrencyLimiter(
		config.GetEnvInt("INGESTION_MAX_CONCURRENT_RUNS_PER_DATASET", 1),
	)

	orchestrator := ingestion.NewOrchestrator(
		registry,
		flatStore,
		flatStore,
		flatStore,
		flatStore,
		flatStore,
		gieStore,
		datasetConfig,
		limiter,
		ingestion.WithLogger(logger),
	)

	serverConfig := api.LoadServerConfig()

	server := api.NewServer(&serverConfig, orchestrator, registry, conn)

	sched := scheduler.NewScheduler(orchestrator, fixedJobs(), scheduler.WithLogger(logger))

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()

	go sched.Run(schedulerCtx)

	if err := server.Start(); err != nil {
		cancelScheduler()
		log.Fatalf("server exited with error: %v", err)
	}
}

// buildRegistry populates the adapter registry with every dataset this
// process knows how to ingest. GAS_PUBLICATIONS' default publication IDs
// and GIE_API_KEY are read here, at startup, rather than per-request.
func buildRegistry(logger *slog.Logger) *ingestion.Registry {
	registry := ingestion.NewRegistry()

	fetchTimeout := config.GetEnvDuration("INGESTION_FETCH_TIMEOUT", 60*time.Second) //nolint: mnd

	nationalGasClient := nationalgas.NewClient(
		nationalgas.WithLogger(logger),
		nationalgas.WithRequestsPerSecond(1.0/1.5), //nolint: mnd
		nationalgas.WithHTTPClient(&http.Client{Timeout: fetchTimeout}),
	)

	publicationIDs := config.ParseCommaSeparatedList(config.GetEnvStr("NATIONAL_GAS_PUBLICATION_IDS", ""))

	registry.Register(nationalgas.DatasetGasQuality, func() ingestion.Adapter {
		return nationalgas.NewGasQualityAdapter(nationalGasClient)
	})
	registry.Register(nationalgas.DatasetInstantaneousFlow, func() ingestion.Adapter {
		return nationalgas.NewInstantaneousFlowAdapter(nationalGasClient)
	})
	registry.Register(nationalgas.DatasetGasPublications, func() ingestion.Adapter {
		return nationalgas.NewGasPublicationsAdapter(nationalGasClient, publicationIDs)
	})
	registry.Register(entsog.DatasetID, func() ingestion.Adapter {
		return entsog.NewAdapter(nationalGasClient)
	})

	gieAPIKey := config.GetEnvStr("GIE_API_KEY", "")
	gieClient := gie.NewClient(gieAPIKey)

	registry.RegisterGIE(gie.DatasetAGSI, "GIE_AGSI", func() ingestion.Adapter {
		return gie.NewAGSIAdapter(gieClient)
	})
	registry.RegisterGIE(gie.DatasetALSI, "GIE_ALSI", func() ingestion.Adapter {
		return gie.NewALSIAdapter(gieClient)
	})

	return registry
}

// fixedJobs is the scheduling model's "two fixed cron-like triggers": an
// intraday tick for the fast-moving National Gas datasets, and a daily
// tick for the slower-moving publication and GIE storage datasets.
func fixedJobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     "intraday",
			Interval: 15 * time.Minute, //nolint: mnd
			Datasets: []string{
				nationalgas.DatasetGasQuality,
				nationalgas.DatasetInstantaneousFlow,
			},
		},
		{
			Name:     "daily",
			Interval: 24 * time.Hour, //nolint: mnd
			Datasets: []string{
				nationalgas.DatasetGasPublications,
				entsog.DatasetID,
				gie.DatasetAGSI,
				gie.DatasetALSI,
			},
		},
	}
}
