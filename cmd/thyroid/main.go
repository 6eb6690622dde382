// Command thyroid runs the thyroid-disease training pipeline once and prints
// its report to stdout. Structured logs go to stderr.
//
// Settings come from config.Default, the YAML file named by THYROID_CONFIG
// and THYROID_* variables; a .env file in the working directory is read
// first when present.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/thyroidml/config"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
	"github.com/YuminosukeSato/thyroidml/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "thyroid: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.SetupLoggerWithWriter(os.Stderr, cfg.LogLevel)
	logger := log.GetLoggerWithName("thyroid")
	logger.Info("Starting pipeline",
		"data_path", cfg.DataPath,
		"store_backend", cfg.Store.Backend,
		"store_path", cfg.Store.Path,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, pipeline.WithLogger(logger))
	if err != nil {
		var stageErr *errors.StageError
		if errors.As(err, &stageErr) {
			logger.Error("Pipeline failed", err, log.StageKey, stageErr.Stage)
		}
		return err
	}
	return res.WriteReport(os.Stdout)
}
