// Command trackerd runs the parcel tracking portal service: it mirrors
// the delivery backend's entity state, serves markers and stats over
// HTTP/websocket, and records history to the configured storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/hack3rvirus/parcel-tracker/internal/cache"
	"github.com/hack3rvirus/parcel-tracker/internal/config"
	"github.com/hack3rvirus/parcel-tracker/internal/database"
	"github.com/hack3rvirus/parcel-tracker/internal/dispatcher"
	"github.com/hack3rvirus/parcel-tracker/internal/feed"
	"github.com/hack3rvirus/parcel-tracker/internal/influx"
	"github.com/hack3rvirus/parcel-tracker/internal/logging"
	"github.com/hack3rvirus/parcel-tracker/internal/monitor"
	intOtel "github.com/hack3rvirus/parcel-tracker/internal/otel"
	"github.com/hack3rvirus/parcel-tracker/internal/reconcile"
	"github.com/hack3rvirus/parcel-tracker/internal/server"
	"github.com/hack3rvirus/parcel-tracker/internal/session"
	"github.com/hack3rvirus/parcel-tracker/internal/spatial"
	"github.com/hack3rvirus/parcel-tracker/internal/storage"
	"github.com/hack3rvirus/parcel-tracker/internal/worker"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
	"github.com/hack3rvirus/parcel-tracker/pkg/streaming"
)

const serviceName = "parcel-tracker"

func main() {
	configDir := flag.String("config", ".", "directory containing parcel_tracker.cfg.json")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "trackerd: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	sessionStart := time.Now()

	// Bootstrap logging to stdout until the config is loaded.
	logManager := logging.NewSlogManager()
	logManager.Setup(nil, "info", nil)
	logger := logManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}

	logFilePath := logging.LogFilePath(logsDir, serviceName, sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	// OTel provider, if enabled, shares the log file.
	var otelProvider *intOtel.Provider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var logProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		logProvider = otelProvider.LoggerProvider()
	}
	logManager.Setup(logFile, config.GetString("logLevel"), logProvider)
	logger = logManager.Logger()
	logger.Info("Logging to file", "path", logFilePath)

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// Storage.
	storageCfg := config.GetStorageConfig()
	var db *gorm.DB
	if storageCfg.Type == "database" {
		dbManager := database.NewManager(zlog)
		if err := dbManager.Connect(); err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		if err := dbManager.Setup(); err != nil {
			return fmt.Errorf("setting up database: %w", err)
		}
		db = dbManager.DB
	}
	backend, err := storage.NewBackend(storageCfg, db)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage backend: %w", err)
	}

	// Metrics.
	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		influxManager = influx.NewManager(zlog, filepath.Join(logsDir, "influx_backup.lp.gz"))
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
			influxManager = nil
		}
	}

	// Backend feed.
	sessionCtx := session.NewContext(config.GetString("session.role"), config.GetString("api.apiKey"))
	client := feed.NewClient(config.GetString("api.serverUrl"), sessionCtx.APIKey())

	entityCache := cache.NewEntityCache()
	markerCache := cache.NewMarkerCache()

	recCfg := config.GetReconcileConfig()
	loop := reconcile.NewLoop(reconcile.Dependencies{
		Fetcher:      client,
		EntityCache:  entityCache,
		MarkerCache:  markerCache,
		LogManager:   logManager,
		PollInterval: recCfg.PollInterval,
		FetchTimeout: recCfg.FetchTimeout,
	})

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	loop.RegisterHandlers(eventDispatcher)

	stream := feed.NewStream(
		config.GetString("ws.url"),
		feed.StreamOptions{
			BaseBackoff: recCfg.ReconnectBase,
			MaxBackoff:  recCfg.ReconnectMax,
			MaxAttempts: recCfg.MaxReconnects,
		},
		func(env streaming.Envelope) {
			if !eventDispatcher.HasHandler(env.Type) {
				logger.Debug("Unhandled stream message", "type", env.Type)
				return
			}
			if _, err := eventDispatcher.Dispatch(dispatcher.Event{
				Type:       env.Type,
				Data:       env.Data,
				ReceivedAt: time.Now(),
			}); err != nil {
				logger.Error("Dispatch failed", "type", env.Type, "error", err)
			}
		},
		func(state feed.State) {
			logger.Info("Stream state changed", "state", string(state))
			if influxManager != nil {
				point := influx.StreamStatePoint(string(state))
				if err := influxManager.WritePoint(context.Background(), influx.BucketStreamHealth, point); err != nil {
					logger.Error("Failed to record stream state", "error", err)
				}
			}
		},
		logger,
	)

	workerManager := worker.NewManager(worker.Dependencies{LogManager: logManager}, backend)
	driverIndex := spatial.NewIndex()

	srv := server.New(server.Dependencies{
		LogManager:  logManager,
		EntityCache: entityCache,
		MarkerCache: markerCache,
		Loop:        loop,
		Spatial:     driverIndex,
		Mutator:     client,
		Session:     sessionCtx,
	}, server.Options{
		Listen:         config.GetString("server.listen"),
		AllowedOrigins: config.GetStringSlice("server.allowedOrigins"),
	})

	// Start everything, snapshot consumers first.
	if err := loop.Start(); err != nil {
		return fmt.Errorf("starting reconcile loop: %w", err)
	}
	workerManager.Run(loop.Subscribe())
	srv.Hub().Run(loop.Subscribe())

	spatialSub := loop.Subscribe()
	go func() {
		for snap := range spatialSub.Receive() {
			driverIndex.Update(snap.Drivers)
		}
	}()

	if influxManager != nil {
		statsSub := loop.Subscribe()
		go func() {
			for snap := range statsSub.Receive() {
				s := snap
				point := influx.SnapshotStatsPoint(&s)
				if err := influxManager.WritePoint(context.Background(), influx.BucketTrackerStats, point); err != nil {
					logger.Error("Failed to record snapshot stats", "error", err)
				}
			}
		}()
	}

	if err := stream.Connect(); err != nil {
		logger.Warn("Live stream unavailable, relying on polling", "error", err)
	}

	var driverFeed *feed.DriverFeed
	if config.GetBool("mqtt.enabled") {
		driverFeed = feed.NewDriverFeed(feed.DriverFeedConfig{
			Broker:   config.GetString("mqtt.broker"),
			ClientID: config.GetString("mqtt.clientId"),
			Username: config.GetString("mqtt.username"),
			Password: config.GetString("mqtt.password"),
			Topic:    config.GetString("mqtt.topic"),
		}, func(driverID string, pos core.GeoPoint) {
			loop.HandleDriverPosition(driverID, pos)
			workerManager.RecordLocationUpdate(core.LocationUpdate{
				EntityID:  driverID,
				Kind:      core.KindDriver,
				Location:  pos,
				UpdatedAt: time.Now(),
				Source:    core.SourceGPS,
			})
		}, logger)
		if err := driverFeed.Start(); err != nil {
			logger.Warn("MQTT driver feed unavailable", "error", err)
			driverFeed = nil
		}
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager:    logManager,
		Loop:          loop,
		WorkerManager: workerManager,
		Influx:        influxManager,
		StatusDir:     logsDir,
	})
	if err := monitorService.Start(); err != nil {
		logger.Error("Failed to start status monitor", "error", err)
	}

	srv.Start()
	logger.Info("Service started", "listen", config.GetString("server.listen"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if driverFeed != nil {
		driverFeed.Stop()
	}
	if err := stream.Close(); err != nil {
		logger.Error("Stream close failed", "error", err)
	}
	monitorService.Stop()
	loop.Stop()
	workerManager.Stop()

	if err := backend.Close(); err != nil {
		logger.Error("Storage backend close failed", "error", err)
	}
	if exp, ok := backend.(storage.Exportable); ok {
		if path := exp.GetExportedFilePath(); path != "" {
			logger.Info("History exported", "path", path)
		}
	}

	if influxManager != nil {
		if influxManager.BackupWriter != nil {
			influxManager.BackupWriter.Close()
		}
		if influxManager.Client != nil {
			influxManager.Client.Close()
		}
	}
	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("OTel shutdown failed", "error", err)
		}
	}
	if err := logManager.Flush(shutdownCtx); err != nil {
		logger.Error("Log flush failed", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
