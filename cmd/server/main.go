package main

import (
	"context"
	"flag"
	"log"

	"github.com/franckalain/nutriscan/internal/config"
	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/lookup"
	"github.com/franckalain/nutriscan/internal/scanner"
	"github.com/franckalain/nutriscan/internal/server"
	"github.com/franckalain/nutriscan/internal/tracer"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	scannerConfig := flag.String("scanner-config", "", "path to scanner configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if *scannerConfig != "" {
		cfg.Scanner.ConfigPath = *scannerConfig
	}

	appLog := logger.NewZapLogger(cfg.Log.FilePath, cfg.IsProduction())
	defer appLog.Sync()

	shutdownTracer := tracer.InitTracer(cfg.Tracing.Enabled, cfg.Tracing.Endpoint, appLog)
	defer shutdownTracer(context.Background())

	// Initialize the scan capability
	scanners, err := scanner.NewFactory(cfg.Scanner.Type, cfg.Scanner.ConfigPath, appLog)
	if err != nil {
		log.Fatal("Failed to create scanner:", err)
	}
	if err := scanners.Load(context.Background()); err != nil {
		log.Fatal("Failed to load scanner:", err)
	}
	if closer, ok := scanners.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	client := lookup.NewClient(cfg.Lookup.BaseURL, cfg.Timeout(), appLog, lookup.WithUserAgent(cfg.Lookup.UserAgent))

	// Initialize and start server
	srv := server.New(client, scanners, appLog, cfg.Server.Debug)
	if err := srv.Start(cfg.Server.Port, cfg.Server.StaticDir); err != nil {
		appLog.Error("server", "server stopped with error", map[string]interface{}{"error": err})
		log.Fatal("Failed to start server:", err)
	}
}
