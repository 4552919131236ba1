package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/timeline/pkg/common/config"
	"github.com/synaptica-ai/timeline/pkg/common/database"
	"github.com/synaptica-ai/timeline/pkg/common/kafka"
	"github.com/synaptica-ai/timeline/pkg/common/logger"
	"github.com/synaptica-ai/timeline/pkg/common/middleware"
	"github.com/synaptica-ai/timeline/pkg/ingestion"
	"github.com/synaptica-ai/timeline/pkg/observability/metrics"
	"github.com/synaptica-ai/timeline/pkg/terminology"
	"github.com/synaptica-ai/timeline/pkg/timeline"
)

func main() {
	logger.Init()
	cfg := config.Load()

	catalog, err := terminology.Load(cfg.CatalogFile)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.CatalogFile).Fatal("failed to load terminology catalog")
	}
	cohort, err := ingestion.LoadCohort(cfg.CohortFile)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.CohortFile).Fatal("failed to load cohort file")
	}

	paths := timeline.Paths{Notes: cfg.NotesCSV, Labs: cfg.LabsCSV, Medications: cfg.MedsCSV}
	m := metrics.New()

	observers := []timeline.Observer{
		timeline.ObserverFunc(func(ctx context.Context, o timeline.Outcome) {
			m.ObserveLoad(o.State == timeline.Ready, o.Elapsed, o.Patients, o.Warning != "")
			m.SetState(int(o.State))
		}),
	}

	if cfg.RunLogEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres()

		repo := timeline.NewRunRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate load run table")
		}
		observers = append(observers, timeline.NewRunRecorder(repo, paths))
	}

	if cfg.TimelineEventsTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.TimelineEventsTopic)
		defer producer.Close()
		observers = append(observers, timeline.NewNotifier(producer))
	}

	store := timeline.NewStore(timeline.FileLoader(paths, catalog, cohort), observers...)

	router := mux.NewRouter()
	router.Use(middleware.Instrument(m))
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	timeline.NewHTTPHandler(store, catalog).Register(router)

	var handler http.Handler = router
	handler = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Recovery(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"notes": paths.Notes,
			"labs":  paths.Labs,
			"meds":  paths.Medications,
		}).Info("Timeline Service started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	if cfg.LoadEagerly {
		go func() {
			// Failures are already logged by the store and retried on the next request.
			_, _ = store.Ensure(ctx)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Timeline Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Timeline Service stopped")
}
