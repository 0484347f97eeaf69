package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowmetric/assetpulse/internal/core"
	"github.com/flowmetric/assetpulse/internal/fsutil"
	"github.com/flowmetric/assetpulse/internal/service/liveness"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show asset liveness",
	Long: `Resolve liveness for tracked assets: the latest materialization and
the runs currently producing (or queued to produce) each asset.

Producers are declared in a YAML file mapping each asset to the step keys
that can produce it:

  producers:
    - asset_key: warehouse/users
      step_keys: [build_users]
    - asset_key: warehouse/orders
      step_keys: [build_orders, backfill_orders]

Without --producers, every known asset is resolved using run asset
selections alone.`,
	RunE: runStatus,
}

var (
	statusProducers string
	statusFormat    string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusProducers, "producers", "",
		"YAML file declaring asset producers")
	statusCmd.Flags().StringVar(&statusFormat, "format", "table",
		"output format (table, json, yaml)")
}

type producerDecl struct {
	AssetKey string   `yaml:"asset_key"`
	StepKeys []string `yaml:"step_keys"`
}

type producersFile struct {
	Producers []producerDecl `yaml:"producers"`
}

func loadProducers(path string) ([]core.AssetProducer, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, fmt.Errorf("reading producers file: %w", err)
	}
	var pf producersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing producers file: %w", err)
	}

	producers := make([]core.AssetProducer, 0, len(pf.Producers))
	for _, decl := range pf.Producers {
		if decl.AssetKey == "" {
			return nil, fmt.Errorf("producers file: asset_key must not be empty")
		}
		steps := make([]core.StepKey, len(decl.StepKeys))
		for i, s := range decl.StepKeys {
			steps[i] = core.StepKey(s)
		}
		producers = append(producers, core.AssetProducer{Key: core.AssetKey(decl.AssetKey), StepKeys: steps})
	}
	return producers, nil
}

func runStatus(cobraCmd *cobra.Command, _ []string) error {
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

	var producers []core.AssetProducer
	if statusProducers != "" {
		producers, err = loadProducers(statusProducers)
		if err != nil {
			return err
		}
	} else {
		keys, err := store.ListAssetKeys(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			producers = append(producers, core.AssetProducer{Key: key})
		}
	}
	if len(producers) == 0 {
		fmt.Println("No tracked assets")
		return nil
	}

	resolver := liveness.NewResolver(store, newLogger())
	results, err := resolver.Resolve(ctx, producers)
	if err != nil {
		return err
	}

	if statusFormat != "table" {
		return outputAs(statusFormat, results)
	}

	printLivenessTable(results)
	return nil
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	inProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	unstartedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	staleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func printLivenessTable(results []core.AssetLiveness) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("ASSET")+"\t"+
		headerStyle.Render("LATEST")+"\t"+
		headerStyle.Render("STATE")+"\t"+
		headerStyle.Render("RUNS"))

	for _, res := range results {
		latest := "-"
		if res.LatestMaterialization != nil {
			latest = res.LatestMaterialization.Timestamp.Local().Format("2006-01-02 15:04:05")
		}

		state := staleStyle.Render("idle")
		runIDs := ""
		switch {
		case len(res.InProgressRunIDs) > 0:
			state = inProgressStyle.Render("materializing")
			runIDs = joinRunIDs(res.InProgressRunIDs)
		case len(res.UnstartedRunIDs) > 0:
			state = unstartedStyle.Render("queued")
			runIDs = joinRunIDs(res.UnstartedRunIDs)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Key, latest, state, runIDs)
	}
	_ = w.Flush()
}

func joinRunIDs(ids []core.RunID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
