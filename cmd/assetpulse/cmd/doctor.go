package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/flowmetric/assetpulse/internal/adapters/state"
	"github.com/flowmetric/assetpulse/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and storage health",
	Long:  "Validate the configuration, verify the storage backend opens, and report host resources.",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	allOk := true

	fmt.Println("Checking configuration...")
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return fmt.Errorf("configuration check failed")
	}
	fmt.Printf("  ✓ configuration valid (backend=%s, path=%s)\n", cfg.Storage.Backend, cfg.Storage.Path)
	if err := config.NewValidator().Validate(cfg); err != nil {
		fmt.Printf("  ✗ %v\n", err)
		allOk = false
	}
	fmt.Println()

	fmt.Println("Checking storage...")
	fmt.Println()

	store, err := state.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		fmt.Printf("  ✗ cannot open store: %v\n", err)
		allOk = false
	} else {
		fmt.Printf("  ✓ %s store opens at %s\n", cfg.Storage.Backend, cfg.Storage.Path)
		closeStore(store)
	}
	fmt.Println()

	fmt.Println("Checking host resources...")
	fmt.Println()

	dataDir := filepath.Dir(cfg.Storage.Path)
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}
	if _, err := os.Stat(dataDir); err != nil {
		dataDir = string(os.PathSeparator)
	}
	if usage, err := disk.Usage(dataDir); err == nil {
		fmt.Printf("  ✓ disk: %.1f GB free of %.1f GB (%.0f%% used)\n",
			float64(usage.Free)/1024/1024/1024,
			float64(usage.Total)/1024/1024/1024,
			usage.UsedPercent)
		if usage.UsedPercent > 95 {
			fmt.Println("  ⚠ disk nearly full; run ingest may fail")
			allOk = false
		}
	} else {
		fmt.Printf("  ○ disk usage unavailable: %v\n", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("  ✓ memory: %.0f MB used of %.0f MB (%.0f%%)\n",
			float64(vm.Used)/1024/1024,
			float64(vm.Total)/1024/1024,
			vm.UsedPercent)
	} else {
		fmt.Printf("  ○ memory usage unavailable: %v\n", err)
	}
	fmt.Println()

	if !allOk {
		return fmt.Errorf("health check failed")
	}
	fmt.Println("All checks passed")
	return nil
}
