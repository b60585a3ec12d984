package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kubegate/kubegate/internal/config"
	"github.com/kubegate/kubegate/internal/gateway"
	"github.com/kubegate/kubegate/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("kubegate %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	loader := config.NewLoader()
	var cfg *config.Config
	if *configPath != "" {
		loaded, err := loader.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = loader.LoadFromEnv()
	}

	resolved := cfg.Resolve()
	if *validateOnly {
		if resolved.Err != nil {
			fmt.Fprintf(os.Stderr, "Configuration is invalid: %v\n", resolved.Err)
			os.Exit(1)
		}
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := logging.New(logging.Config{
		Level:       resolved.Logging.Level,
		File:        resolved.Logging.File,
		MaxSizeMB:   resolved.Logging.MaxSizeMB,
		MaxBackups:  resolved.Logging.MaxBackups,
		MaxAgeDays:  resolved.Logging.MaxAgeDays,
		Development: resolved.Development(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	gateway.Version = version
	logging.Info("starting kubegate",
		zap.String("version", version),
		zap.String("env", string(resolved.Mode)),
		zap.String("prefix", resolved.Prefix),
	)
	if resolved.Err != nil {
		// Keep serving; requests get a configuration error until a
		// corrected config is reloaded.
		logging.Error("configuration is invalid", zap.Error(resolved.Err))
	}

	server, err := gateway.NewServer(cfg, *configPath)
	if err != nil {
		logging.Error("failed to create gateway", zap.Error(err))
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		logging.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
