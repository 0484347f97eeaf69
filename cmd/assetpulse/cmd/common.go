package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/flowmetric/assetpulse/internal/adapters/state"
	"github.com/flowmetric/assetpulse/internal/config"
	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/logging"
)

// newLogger builds a logger from the persistent flags.
func newLogger() *logging.Logger {
	return logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stderr,
	})
}

// loadConfig loads and validates the application configuration through the
// shared viper instance so flag and env precedence applies.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (core.Store, error) {
	store, err := state.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s store at %s: %w", cfg.Storage.Backend, cfg.Storage.Path, err)
	}
	return store, nil
}

// closeStore closes the store, logging rather than failing on error.
func closeStore(store core.Store) {
	if err := state.CloseStore(store); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", err)
	}
}

// outputAs renders v to stdout in the requested format.
func outputAs(format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
