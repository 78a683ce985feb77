package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/config"
	"github.com/arcuru/eidetica/pkg/eidetica"
	"github.com/arcuru/eidetica/pkg/log"
	"github.com/arcuru/eidetica/pkg/metrics"
	"github.com/arcuru/eidetica/pkg/shell"
	"github.com/arcuru/eidetica/pkg/storage"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "eidetica",
	Short:   "Interactive shell over an Eidetica storage file",
	Version: Version,
	RunE:    runShell,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("eidetica version %s (%s)\n", Version, Commit))
	rootCmd.Flags().String("config", "", "Path to a YAML config file")
	rootCmd.Flags().String("db", "", "Database file to open (overrides config)")
	rootCmd.Flags().String("key-name", "", "Default signing key name (overrides config)")
	rootCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.Flags().Bool("log-json", false, "Output logs in JSON format (overrides config)")
	rootCmd.Flags().Bool("metrics", false, "Enable the Prometheus recorder, collector, and health HTTP server")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
}

func runShell(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dbFile, _ := cmd.Flags().GetString("db")
	keyName, _ := cmd.Flags().GetString("key-name")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	config.ApplyFlagOverrides(&cfg, dbFile, keyName, logLevel, logJSON, cmd.Flags().Changed("log-json"))

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	metricsEnabled, _ := cmd.Flags().GetBool("metrics")

	var recorder storage.Recorder = storage.NoopRecorder
	if metricsEnabled {
		recorder = metrics.NewRecorder()
	}

	var backend storage.Database = storage.NewMemoryBackend(recorder)
	if saveable, ok := backend.(storage.Saveable); ok {
		if err := saveable.LoadFromFile(cfg.DatabaseFile); err != nil {
			metrics.RegisterComponent("storage", false, err.Error())
			return fmt.Errorf("loading %s: %w", cfg.DatabaseFile, err)
		}
	}
	metrics.RegisterComponent("storage", true, "loaded")

	ks := auth.NewKeystore()
	if _, err := ks.PublicKey(cfg.KeyName); err != nil {
		if _, err := ks.GenerateKey(cfg.KeyName); err != nil {
			return fmt.Errorf("minting default key %s: %w", cfg.KeyName, err)
		}
	}

	if metricsEnabled {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		metrics.SetVersion(Version)

		collector := metrics.NewCollector(backend)
		collector.Start()
		defer collector.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server stopped")
			}
		}()
		log.Infow("metrics server listening", "addr", metricsAddr)
	}

	db := eidetica.New(backend, ks)
	sh := shell.New(db, cfg, os.Stdin, os.Stdout)
	code := sh.Run()
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
