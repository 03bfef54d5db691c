package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-ingest/internal/app"
	"social-ingest/internal/handlers"
	"social-ingest/internal/ingest"
	"social-ingest/internal/logging"
	"social-ingest/internal/media"
	"social-ingest/internal/memory"
	"social-ingest/internal/metrics"
	"social-ingest/internal/middleware"
	"social-ingest/internal/startup"

	"github.com/gorilla/mux"
)

// collectInterval is how often ledger gauges are refreshed.
const collectInterval = time.Minute

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before anything allocates heavily
	memLimit := memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Image pipeline
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips initialization failed: %v", err)
	}
	defer media.ShutdownVips()
	startup.LogTranscoderInit()

	monitorCfg := memory.DefaultConfig()
	monitorCfg.LimitBytes = memLimit.GoMemLimit
	monitor := memory.NewMonitor(monitorCfg)
	monitor.Start()

	// Object store, ledger and pipeline
	svc, err := app.Build(context.Background(), config, app.Options{Gate: monitor})
	if err != nil {
		startup.LogFatal("Failed to initialize pipeline: %v", err)
	}
	startup.LogStorageInit(config.Storage)

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	var (
		collector *metrics.Collector
		sweeper   *ingest.Sweeper
		ledger    handlers.LedgerStats
	)
	if svc.Ledger != nil {
		ledger = svc.Ledger
		collector = metrics.NewCollector(svc.Ledger, collectInterval)
		collector.Start()

		sweeper = ingest.NewSweeper(svc.Orch, config.SweepInterval)
		sweeper.Start()
	}
	startup.LogSweeperInit(config.SweepInterval, sweeper != nil)

	// Initialize handlers
	h := handlers.New(svc.Orch, svc.Acquirer, ledger, sweeper)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.RequestID(
		middleware.Logger(loggingConfig)(
			middleware.Compression(middleware.DefaultCompressionConfig())(router),
		),
	)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, sweeper, collector, monitor)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	<-done
	if err := svc.Close(); err != nil {
		logging.Warn("Failed to close pipeline: %v", err)
	}
	startup.LogShutdownComplete()
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Social ingestion
	api.HandleFunc("/social/fetch", h.FetchSocial).Methods("POST")
	api.HandleFunc("/social/opengraph", h.FetchOpenGraph).Methods("POST")
	api.HandleFunc("/social/cleanup", h.CleanupSocial).Methods("POST")

	// Uploads
	api.HandleFunc("/upload", h.Upload).Methods("POST")
	api.HandleFunc("/upload/from-url", h.UploadFromURL).Methods("POST")
	api.HandleFunc("/upload/profile-photo", h.UploadProfilePhoto).Methods("POST")
	api.HandleFunc("/upload/profile-photo", h.DeleteProfilePhoto).Methods("DELETE")

	// Link helpers
	api.HandleFunc("/proxy-image", h.ProxyImage).Methods("GET")
	api.HandleFunc("/link-info", h.GetLinkInfo).Methods("GET")
	api.HandleFunc("/video-info", h.GetVideoInfo).Methods("GET")

	return r
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", h.MetricsHandler())
	m.HandleFunc("/health", h.LivenessCheck)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, sweeper *ingest.Sweeper, collector *metrics.Collector, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if sweeper != nil {
		startup.LogShutdownStep("Stopping sweeper")
		sweeper.Stop()
		startup.LogShutdownStepComplete("Sweeper stopped")
	}

	if collector != nil {
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}
}
