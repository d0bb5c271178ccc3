package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/billybrichards/climate-parser/backend"
	"github.com/billybrichards/climate-parser/config"
	"github.com/billybrichards/climate-parser/extract"
	"github.com/billybrichards/climate-parser/handler"
	"github.com/billybrichards/climate-parser/logging"
	"github.com/billybrichards/climate-parser/manager"
	"github.com/billybrichards/climate-parser/server"
)

var version = "dev"

func main() {
	cli, err := config.ParseArgs(os.Args[0], os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cli.Version {
		fmt.Printf("climate-parser %s (prompt %s)\n", version, extract.PromptVersion)
		return
	}

	cfg, err := config.LoadConfig(cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := logrus.InfoLevel
	if cfg.LogLevel != "" {
		if level, err = logrus.ParseLevel(cfg.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", cfg.LogLevel, err)
			os.Exit(1)
		}
	}
	if cli.Debug {
		level = logrus.DebugLevel
	}
	logging.InitLogger(level, cfg.IsProduction())
	log := logging.GetLogger()

	if cfg.APIKey == "" {
		log.Warn("API_KEY is not set, protected routes will answer with a configuration error")
	}
	if cfg.Upstream.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, upstream calls will fail")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tracker := manager.NewTracker(reg)
	defer tracker.Close()

	client := backend.NewBackendClient(cfg.Upstream)
	extractor := extract.NewExtractor(client, extract.Options{
		IncludeExample: cfg.IncludeExample,
		RepairJSON:     cfg.Upstream.RepairJSON,
	})

	httpHandler, err := handler.NewHTTPHandler(handler.Options{
		Config:    cfg,
		Extractor: extractor,
		Prober:    client,
		Tracker:   tracker,
		Gatherer:  reg,
	})
	if err != nil {
		log.Fatalf("Failed to create HTTP handler: %v", err)
	}

	ln, port, err := server.Listen(cfg.ListenHost, cfg.Port, cfg.MaxPortAttempts)
	if err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
	log.WithFields(logrus.Fields{
		"environment":    cfg.Environment,
		"model":          client.Model(),
		"prompt_version": extract.PromptVersion,
	}).Infof("Server listening on port %d", port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := server.Serve(ctx, ln, httpHandler); err != nil {
		log.Errorf("Server stopped: %v", err)
	}
}
