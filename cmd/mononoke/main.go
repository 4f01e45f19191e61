package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appconfig "github.com/Archbaer/cupcake-mononoke/config"
	"github.com/Archbaer/cupcake-mononoke/internal/pipeline"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	targetsPath := flag.String("targets", "", "Path to a standalone target list overriding the configured one")
	flag.Parse()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if *targetsPath != "" {
		targets, err := appconfig.LoadTargets(*targetsPath)
		if err != nil {
			log.WithError(err).Error("Failed to load target list")
			os.Exit(1)
		}
		cfg.Targets = *targets
		if err := cfg.Validate(); err != nil {
			log.WithError(err).Error("Configuration invalid with the standalone target list")
			os.Exit(1)
		}
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Mononoke.Name,
		"version": cfg.Mononoke.Version,
	}).Info("starting mononoke")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A batch run is cancelled between steps, never killed mid-write: the
	// signal handler cancels the context and the pipeline winds down at the
	// next target or domain boundary.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}
	if cfg.Logging.DashboardName != "" {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Mononoke.Name, cfg.Logging.DashboardName)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to build pipeline")
		os.Exit(1)
	}

	report, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("batch run cancelled")
		} else {
			log.WithError(err).Error("batch run aborted")
		}
		os.Exit(1)
	}

	if !report.Ok() {
		// Partial failures are per-target and already merged around, so the
		// batch still counts as delivered.
		log.WithFields(logger.Fields{
			"failed_targets": len(report.Summary.Failed),
		}).Warn("batch run finished with failed targets")
	}

	log.WithFields(logger.Fields{
		"targets": report.Summary.Total(),
		"domains": len(report.Domains),
	}).Info("mononoke finished")
}
