package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/dartlink/internal/storage"
	bledisc "github.com/srg/dartlink/pkg/ble"
	"github.com/srg/dartlink/pkg/config"
	"github.com/srg/dartlink/pkg/connection"
	"github.com/srg/dartlink/pkg/dartboard"
	"github.com/srg/dartlink/pkg/eventbus"
	"github.com/srg/dartlink/pkg/events"
	"github.com/srg/dartlink/pkg/ingest"
	"github.com/srg/dartlink/pkg/supervisor"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the board and record throws",
	Long: `Run the full pipeline: scan for a dartboard, connect, decode throw
notifications, score and persist them, and reconnect automatically when the
board drops off. Runs until interrupted.`,
	RunE: runDaemon,
}

var (
	runQuiet       bool
	runCalibration string
)

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress live throw output")
	runCmd.Flags().StringVar(&runCalibration, "calibration", "", "Calibration table JSON to load at startup")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// --log-level wins over the configured level
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	store, err := storage.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open throw database: %w", err)
	}
	defer store.Close()

	mapper := dartboard.NewMapper(logger)
	if runCalibration != "" {
		if err := importCalibrationFile(mapper, runCalibration); err != nil {
			return fmt.Errorf("failed to load calibration table: %w", err)
		}
		logger.WithField("path", runCalibration).Info("Calibration table loaded")
	}

	bus := eventbus.New(logger)
	if !runQuiet {
		subscribeConsoleOutput(bus)
	}

	queue := ingest.NewQueue(cfg.QueueCapacity)
	worker := ingest.NewWorker(queue, mapper, store, bus, cfg.DequeueTimeout, logger)

	scanner, err := bledisc.NewScanner(&bledisc.Options{
		Patterns:    cfg.DevicePatterns,
		ScanTimeout: cfg.ScanTimeout,
		RetryMax:    cfg.ScanRetryMax,
		RetryDelay:  cfg.ScanRetryDelay,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	newLink := func(dev bledisc.Descriptor) supervisor.Link {
		return connection.NewClient(dev, &connection.Options{
			NotifyCharUUID: cfg.NotifyCharUUID,
			ConnectTimeout: cfg.ConnectTimeout,
			RetryMax:       cfg.ConnectRetryMax,
			RetryDelay:     cfg.ConnectRetryDelay,
		}, logger)
	}

	sup := supervisor.New(scanner, newLink, queue, worker, bus, &supervisor.Options{
		PollInterval:   cfg.PollInterval,
		RetryBackoff:   cfg.RetryBackoff,
		CleanupTimeout: cfg.CleanupTimeout,
	}, logger)

	if cfg.MetricsAddr != "" {
		startMetricsListener(cfg.MetricsAddr, logger)
	}

	if err := sup.Start(); err != nil {
		return err
	}

	// Run until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh

	fmt.Println("\nShutting down...")
	sup.Stop()
	return nil
}

// startMetricsListener serves Prometheus metrics in the background. Failure to
// bind is logged but does not take the pipeline down.
func startMetricsListener(addr string, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("Metrics listener started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics listener failed")
		}
	}()
}

// subscribeConsoleOutput prints pipeline events as they happen. Handlers run
// on the worker goroutine, so they only format and print.
func subscribeConsoleOutput(bus *eventbus.Bus) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan, color.Bold)

	bus.Subscribe(events.TopicConnected, func(payload any) {
		c, ok := payload.(events.Connected)
		if !ok {
			return
		}
		green.Printf("Connected to %s (%s)\n", c.Name, c.Address)
	})

	bus.Subscribe(events.TopicThrow, func(payload any) {
		t, ok := payload.(*dartboard.Throw)
		if !ok {
			return
		}
		if t.Score != nil {
			cyan.Printf("%-14s %3d points\n", t.Name, *t.Score)
		} else {
			yellow.Printf("%-14s (unscored)\n", t.Name)
		}
	})

	bus.Subscribe(events.TopicPlayerChange, func(payload any) {
		yellow.Println("--- player change ---")
	})

	bus.Subscribe(events.TopicError, func(payload any) {
		e, ok := payload.(events.BLEError)
		if !ok {
			return
		}
		red.Printf("BLE error (%s): %s\n", e.Reason, e.Message)
	})
}
