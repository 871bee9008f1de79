package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/api"
	"github.com/yourusername/mediahub-go/api/handlers"
	"github.com/yourusername/mediahub-go/internal/app"
	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/infrastructure"
	"github.com/yourusername/mediahub-go/internal/metrics"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

var (
	serverMode  = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	foreground  = flag.Bool("foreground", false, "Run in the foreground instead of forking a daemon")
	configPath  = flag.String("config", "", "Path to config file")
	writeConfig = flag.String("write-config", "", "Write the effective configuration to this path and exit")
)

func main() {
	flag.Parse()

	if *writeConfig != "" {
		config, err := app.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		if err := app.SaveConfig(config, *writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		return
	}

	if !*serverMode && !*foreground {
		startAsDaemon()
		return
	}

	runServer()
}

// startAsDaemon forks the current process and runs the server in background
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	setDaemonAttr(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open /dev/null: %v\n", err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
		Service:    "mediahub",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	})
	if err != nil {
		log.Fatal("Failed to initialize event logs", zap.Error(err))
	}
	defer multiLog.Close()

	log.Info("Starting mediahub server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Strings("media_dirs", config.Library.MediaDirs),
		zap.Bool("remote_configured", config.Remote.Configured()))

	if err := createDirectories(config); err != nil {
		log.Fatal("Failed to create directories", zap.Error(err))
	}

	store, err := infrastructure.NewSQLiteCatalogStore(config.Library.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open catalog database", zap.Error(err))
	}
	defer store.Close()

	taskStore, err := infrastructure.NewBoltTaskStore(config.Download.StatePath)
	if err != nil {
		log.Fatal("Failed to open task state", zap.Error(err))
	}
	defer taskStore.Close()

	thumbnails, err := infrastructure.NewImageCache(config.Poster.ThumbnailDir, config.Poster.RequestTimeout, log)
	if err != nil {
		log.Fatal("Failed to open thumbnail cache", zap.Error(err))
	}

	probe := infrastructure.NewFileProbe(log)
	client := infrastructure.NewJellyfinClient(config.Remote, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	fetcher := app.NewRemoteFetcher(client, config.Remote, log, multiLog)
	validator := app.NewCatalogValidator(store, probe, config.Validation, log, multiLog)
	library := app.NewLocalLibrary(store, probe, config.Library.MediaDirs, log, multiLog)
	engine := app.NewUnificationEngine(store, validator, fetcher, library, thumbnails, config.Catalog, log, multiLog)
	broadcaster := app.NewProgressBroadcaster(config.Download.SubscriberBuffer, log)

	hooks := app.CompletionHooks{Library: library, Caches: engine, Notifier: notifier}
	if config.Poster.Enabled {
		hooks.Posters = infrastructure.NewPosterService(config.Poster, log)
	}
	orchestrator := app.NewDownloadOrchestrator(client, taskStore, broadcaster, hooks, config.Download, log, multiLog)
	mediaMgr := app.NewMediaManager(engine, orchestrator, thumbnails, config.Download.DownloadDir, log, multiLog)
	watcher := app.NewLibraryWatcher(library, engine, validator, orchestrator, config.Library, log, multiLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if restarted, err := orchestrator.Recover(); err != nil {
		log.Error("Failed to recover transfers", zap.Error(err))
	} else if restarted > 0 {
		log.Info("Restarted interrupted transfers", zap.Int("count", restarted))
	}

	go func() {
		result, err := library.ScanDirectories(ctx)
		if err != nil {
			log.Warn("Initial library scan failed", zap.Error(err))
			return
		}
		engine.InvalidateLocal()
		engine.InvalidateUnified()
		log.Info("Initial library scan finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("updated", result.Updated),
			zap.Int64("removed", result.Removed))
	}()

	if config.Remote.Configured() {
		go func() {
			checkCtx, checkCancel := context.WithTimeout(ctx, config.Remote.RequestTimeout)
			defer checkCancel()
			info, err := client.TestConnection(checkCtx)
			if err != nil {
				log.Warn("Remote server not reachable", zap.Error(err))
				return
			}
			log.Info("Connected to remote server",
				zap.String("name", info.ServerName),
				zap.String("version", info.Version))
		}()
	}

	if err := watcher.Start(ctx); err != nil {
		log.Error("Failed to start library watcher", zap.Error(err))
	}

	var gatherer prometheus.Gatherer
	if config.Server.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics.Register(reg)
		gatherer = reg
	}

	router := api.SetupRouter(api.Services{
		Catalog:    engine,
		Downloader: mediaMgr,
		Shows:      app.NewShowAggregator(log),
		Transfers:  orchestrator,
		Progress:   broadcaster,
		Validation: validator,
		Readiness: map[string]handlers.ReadinessCheck{
			"database": func(ctx context.Context) error {
				_, err := store.Count()
				return err
			},
		},
		Gatherer: gatherer,
		LogsDir:  config.Logging.LogsDir,
	}, log, multiLog)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if watcher.IsRunning() {
		if err := watcher.Stop(); err != nil {
			log.Error("Error stopping library watcher", zap.Error(err))
		}
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Error("Transfers did not stop in time", zap.Error(err))
	}
	if err := mediaMgr.Shutdown(shutdownCtx); err != nil {
		log.Warn("Thumbnail prefetches did not finish in time", zap.Error(err))
	}
	broadcaster.Close()
	cancel()

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		filepath.Dir(config.Library.DatabasePath),
		filepath.Dir(config.Download.StatePath),
		config.Download.DownloadDir,
		config.Poster.ThumbnailDir,
		config.Logging.LogsDir,
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
