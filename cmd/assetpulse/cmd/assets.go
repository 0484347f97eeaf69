package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/flowmetric/assetpulse/internal/core"
)

var assetsCmd = &cobra.Command{
	Use:   "assets [query]",
	Short: "List tracked assets",
	Long: `List tracked asset keys with their latest materialization. An
optional query fuzzy-matches against asset keys.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAssets,
}

var assetsFormat string

func init() {
	rootCmd.AddCommand(assetsCmd)
	assetsCmd.Flags().StringVar(&assetsFormat, "format", "table",
		"output format (table, json, yaml)")
}

func runAssets(cobraCmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	ctx := cobraCmd.Context()
	keys, err := store.ListAssetKeys(ctx)
	if err != nil {
		return err
	}

	if len(args) == 1 && args[0] != "" {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = string(k)
		}
		matches := fuzzy.Find(args[0], names)
		filtered := make([]core.AssetKey, len(matches))
		for i, m := range matches {
			filtered[i] = core.AssetKey(m.Str)
		}
		keys = filtered
	}
	if len(keys) == 0 {
		fmt.Println("No matching assets")
		return nil
	}

	entries, err := store.GetAssetEntries(ctx, keys)
	if err != nil {
		return err
	}
	if assetsFormat != "table" {
		return outputAs(assetsFormat, entries)
	}

	byKey := make(map[core.AssetKey]core.AssetEntry, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tLATEST\tLAST RUN")
	for _, key := range keys {
		entry := byKey[key]
		latest := "-"
		if entry.LastMaterialization != nil {
			latest = entry.LastMaterialization.Timestamp.Local().Format("2006-01-02 15:04:05")
		}
		lastRun := string(entry.LastRunID)
		if lastRun == "" {
			lastRun = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", key, latest, lastRun)
	}
	return w.Flush()
}
