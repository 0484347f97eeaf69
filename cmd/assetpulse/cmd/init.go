package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowmetric/assetpulse/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize assetpulse in the current directory",
	Long: `Write a default .assetpulse.yaml configuration file and create the
data directory for the storage backend.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(_ *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	configPath := filepath.Join(cwd, ".assetpulse.yaml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists, use --force to overwrite")
	}

	if err := os.WriteFile(configPath, []byte(config.DefaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cwd, ".assetpulse"), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if !quiet {
		fmt.Printf("Created %s\n", configPath)
		fmt.Println("Created .assetpulse/")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  assetpulse serve      # start the API server")
		fmt.Println("  assetpulse status     # show asset liveness")
	}
	return nil
}
