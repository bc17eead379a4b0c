package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/app"
	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/server"
)

const shutdownGrace = 10 * time.Second

// configList collects repeated -config flags in order.
type configList []string

func (c *configList) String() string { return strings.Join(*c, ",") }

func (c *configList) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// discoverConfigs looks in the conventional locations when no -config flag
// is given. Running on defaults alone is fine, so finding nothing is not an
// error.
func discoverConfigs() configList {
	for _, candidate := range []string{"firmata.toml", "deployments/local/firmata.toml"} {
		if _, err := os.Stat(candidate); err == nil {
			return configList{candidate}
		}
	}
	return nil
}

func main() {
	var configs configList
	flag.Var(&configs, "config", "Config file path, repeatable; later files override earlier ones")
	flag.Var(&configs, "c", "Config file path (shorthand)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	portShort := flag.Int("p", 0, "Server port (shorthand)")
	host := flag.String("host", "", "Server host (overrides config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	showVersionV := flag.Bool("v", false, "Print version and exit (shorthand)")
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Firmata %s\n", common.GetFullVersion())
		return
	}

	if *portShort != 0 {
		*port = *portShort
	}

	if len(configs) == 0 {
		configs = discoverConfigs()
	}

	// Precedence: defaults -> config files in order -> env -> flags
	config, err := common.LoadFromFiles(configs...)
	if err != nil {
		arbor.NewLogger().Fatal().
			Strs("paths", configs).
			Err(err).
			Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *port, *host)

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	if config.IsProduction() && config.Logging.Level == "debug" {
		logger.Warn().Msg("Debug logging enabled in production")
	}

	logger.Info().
		Strs("config_files", configs).
		Str("environment", config.Environment).
		Str("host", config.Server.Host).
		Int("port", config.Server.Port).
		Bool("worker_enabled", config.Worker.Enabled).
		Bool("scheduler_enabled", config.Scheduler.Enabled).
		Msg("Configuration resolved")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	srv := server.New(application)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}
