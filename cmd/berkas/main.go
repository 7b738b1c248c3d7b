package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/app"
	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/server"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Berkas version %s\n", common.GetVersion())
		os.Exit(0)
	}

	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}
	configPath := *configFile
	if *configFileC != "" {
		configPath = *configFileC
	}
	// Auto-discover config file if not specified
	if configPath == "" {
		if _, err := os.Stat("berkas.toml"); err == nil {
			configPath = "berkas.toml"
		}
	}

	// Startup sequence: config -> flag overrides -> logger -> banner
	var err error
	config, err = common.LoadFromFile(configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config_file", configPath).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Str("environment", config.Environment).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	srv := server.New(application)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
