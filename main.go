package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/config"
	"github.com/AshishGautamKarn/sn-introspect/pkg/engine"
	"github.com/AshishGautamKarn/sn-introspect/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	outPath := flag.String("out", "", "write the report to this file instead of stdout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting sn-introspect",
		zap.String("version", Version),
		zap.String("env", cfg.Env),
		zap.String("api_base_url", cfg.API.BaseURL),
		zap.String("db_dialect", cfg.Database.Dialect),
		zap.String("db_host", cfg.Database.Host))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := engine.New(cfg, logger).Run(ctx)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Fatal("cannot create output file", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		logger.Fatal("cannot encode report", zap.Error(err))
	}

	if rep.Summary.TotalErrors > 0 {
		fmt.Fprintf(os.Stderr, "completed with %d error(s), see report\n", rep.Summary.TotalErrors)
	}
}
