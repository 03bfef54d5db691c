package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"social-ingest/internal/logging"
	"social-ingest/internal/media"
	"social-ingest/internal/objectstore"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Storage backends.
const (
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// StorageConfig configures the object store.
type StorageConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	PublicURL string
	URLMode   objectstore.URLMode
}

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	DatabaseDir string
	// LedgerEnabled is false when DatabaseDir is not writable.
	LedgerEnabled bool

	Storage StorageConfig

	InstagramAppID   string
	FetchTimeout     time.Duration
	DownloadTimeout  time.Duration
	MetadataCacheTTL time.Duration
	// MetadataCacheSize < 0 disables the metadata cache.
	MetadataCacheSize int
	// MediaWorkers caps acquisition fan-out; zero sizes from CPU count.
	MediaWorkers  int
	SweepInterval time.Duration
	// AllowPrivateFetch lets media downloads reach loopback, private and
	// link-local addresses.
	AllowPrivateFetch bool
}

// LoadDotEnv loads KEY=VALUE pairs from paths (".env" when none) into the
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		logging.Info("  Loaded environment from %s", p)
	}
	return nil
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logging.Info("  STORAGE_BACKEND:     %s", cfg.Storage.Backend)
	logging.Info("  STORAGE_ENDPOINT:    %s", valueOrUnset(cfg.Storage.Endpoint))
	logging.Info("  STORAGE_BUCKET:      %s", valueOrUnset(cfg.Storage.Bucket))
	logging.Info("  STORAGE_REGION:      %s", cfg.Storage.Region)
	logging.Info("  STORAGE_ACCESS_KEY:  %s", MaskSecret(cfg.Storage.AccessKey))
	logging.Info("  STORAGE_SECRET_KEY:  %s", MaskSecret(cfg.Storage.SecretKey))
	logging.Info("  STORAGE_PUBLIC_URL:  %s", valueOrUnset(cfg.Storage.PublicURL))
	logging.Info("  STORAGE_URL_MODE:    %s", cfg.Storage.URLMode)
	logging.Info("  INSTAGRAM_APP_ID:    %s", cfg.InstagramAppID)
	logging.Info("  FETCH_TIMEOUT:       %v", cfg.FetchTimeout)
	logging.Info("  DOWNLOAD_TIMEOUT:    %v", cfg.DownloadTimeout)
	logging.Info("  METADATA_CACHE_TTL:  %v", cfg.MetadataCacheTTL)
	logging.Info("  METADATA_CACHE_SIZE: %d", cfg.MetadataCacheSize)
	logging.Info("  MEDIA_WORKERS:       %s", workersString(cfg.MediaWorkers))
	logging.Info("  SWEEP_INTERVAL:      %v", cfg.SweepInterval)
	logging.Info("  ALLOW_PRIVATE_FETCH: %v", cfg.AllowPrivateFetch)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", cfg.DatabaseDir)
	cfg.LedgerEnabled = setupOptionalDir(cfg.DatabaseDir, "ledger")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Object ledger: %s", enabledString(cfg.LedgerEnabled))
	logging.Info("    Metrics:       %s", enabledString(cfg.MetricsEnabled))
	logging.Info("    Metadata cache: %s", enabledString(cfg.MetadataCacheSize >= 0))

	return cfg, nil
}

// ConfigFromEnv reads and validates the configuration without the startup
// banner. Command-line tools use it; LedgerEnabled is left to the caller.
func ConfigFromEnv() (*Config, error) {
	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() (*Config, error) {
	mode, err := objectstore.ParseURLMode(getEnv("STORAGE_URL_MODE", string(objectstore.URLModePresigned)))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		Storage: StorageConfig{
			Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", BackendS3)),
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			PublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
			URLMode:   mode,
		},
		InstagramAppID:    getEnv("INSTAGRAM_APP_ID", "936619743392459"),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		DownloadTimeout:   getEnvDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		MetadataCacheTTL:  getEnvDuration("METADATA_CACHE_TTL", 10*time.Minute),
		MetadataCacheSize: getEnvInt("METADATA_CACHE_SIZE", 512),
		MediaWorkers:      getEnvInt("MEDIA_WORKERS", 0),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Hour),
		AllowPrivateFetch: getEnvBool("ALLOW_PRIVATE_FETCH", false),
	}, nil
}

// Validate checks required settings for the selected storage backend.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
		logging.Warn("  STORAGE_BACKEND=memory: objects are lost on restart")
		return nil
	case BackendS3:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s or %s)", c.Storage.Backend, BackendS3, BackendMemory)
	}

	var missing []string
	for _, v := range []struct{ name, value string }{
		{"STORAGE_ENDPOINT", c.Storage.Endpoint},
		{"STORAGE_ACCESS_KEY", c.Storage.AccessKey},
		{"STORAGE_SECRET_KEY", c.Storage.SecretKey},
		{"STORAGE_BUCKET", c.Storage.Bucket},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required storage configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MaskSecret hides all but the first two characters of s.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 4:
		return "****"
	default:
		return s[:2] + strings.Repeat("*", 6)
	}
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func workersString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogLedgerInit logs ledger initialization
func LogLedgerInit(path string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("LEDGER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Ledger %s opened in %v", path, duration)
}

// LogStorageInit logs object store initialization
func LogStorageInit(s StorageConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OBJECT STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if s.Backend == BackendMemory {
		logging.Info("  [OK] In-memory object store")
		return
	}
	logging.Info("  [OK] Bucket %q at %s (%s URLs)", s.Bucket, s.Endpoint, s.URLMode)
	if s.PublicURL != "" {
		logging.Info("  Reference URLs rewritten to %s", s.PublicURL)
	}
}

// LogTranscoderInit logs image pipeline initialization
func LogTranscoderInit() {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("IMAGE PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	for _, class := range []media.AssetClass{media.ClassSocial, media.ClassOG, media.ClassProfile, media.ClassFavicon} {
		p := media.ProfileFor(class)
		logging.Info("  %-8s %dx%d %s %s", class, p.Width, p.Height, p.Fit, p.ContentType())
	}
	if media.IsVipsAvailable() {
		logging.Info("  [OK] libvips available for favicon rasterisation")
	} else {
		logging.Warn("  libvips unavailable; SVG/ICO favicons are stored as-is")
	}
}

// LogSweeperInit logs the pending-delete sweeper configuration
func LogSweeperInit(interval time.Duration, enabled bool) {
	if !enabled {
		logging.Info("  Pending-delete sweep: DISABLED (no ledger)")
		return
	}
	logging.Info("  Pending-delete sweep every %v", interval)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
   ___           _      _   ___                  _
  / __| ___  __ (_) __ | | |_ _| _ _   __ _  ___ | |_
  \__ \/ _ \/ _|| |/ _|| |  | | | ' \ / _' |/ -_)|  _|
  |___/\___/\__||_|\__,|_| |___||_||_|\__, |\___| \__|
                                      |___/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
