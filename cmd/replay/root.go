package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/posm-tools/replay-core/internal/config"
	"github.com/posm-tools/replay-core/internal/pipeline"
	"github.com/posm-tools/replay-core/internal/store"
	"github.com/posm-tools/replay-core/internal/store/memorystore"
	"github.com/posm-tools/replay-core/internal/telemetry"
	"github.com/posm-tools/replay-core/internal/upstream"
)

var (
	cfgPath     string
	storeDir    string
	jsonOutput  bool
	verboseFlag bool
	traceFlag   bool

	telemetryProviders *telemetry.Providers
)

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Reconcile offline OSM replica edits against upstream",
	Long: `replay reconciles edits made on a disconnected OSM replica against
concurrent upstream edits for a bounded area of interest, producing an
upstream-compatible osmChange document.

The pipeline collects local changesets, loads the original/local/upstream
AOI snapshots, detects conflicts, surfaces them for resolution, and
uploads the composite edit atomically.

Typical session:
  replay trigger              run the pipeline up to conflict resolution
  replay conflicts            list what needs a decision
  replay resolve node 42      pick ours/theirs/custom for one element
  replay push                 build and upload the osmChange`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verboseFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if traceFlag {
			p, err := telemetry.Setup(os.Stderr)
			if err != nil {
				return err
			}
			telemetryProviders = p
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryProviders != nil {
			return telemetryProviders.Shutdown(cmd.Context())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "replay.yaml", "path to the replay config file")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", "", "directory for the durable element store (empty = in-memory, single run)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "emit OpenTelemetry spans/metrics to stderr")

	viper.SetEnvPrefix("REPLAY")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("store_dir", rootCmd.PersistentFlags().Lookup("store-dir"))
}

// loadConfig reads the replay config, honoring REPLAY_CONFIG over the
// --config default.
func loadConfig() (config.ReplayConfig, error) {
	path := cfgPath
	if env := viper.GetString("config"); env != "" {
		path = env
	}
	return config.Load(path)
}

// openStore returns the element store selected by --store-dir: the
// durable Dolt-backed store when set (required for resolve/push to see
// a previous trigger's elements across processes), the in-memory store
// otherwise.
func openStore(ctx context.Context) (store.Store, func() error, error) {
	dir := storeDir
	if env := viper.GetString("store_dir"); env != "" {
		dir = env
	}
	if dir == "" {
		return memorystore.New(), func() error { return nil }, nil
	}
	return openDurableStore(ctx, dir)
}

// buildOrchestrator wires the default external collaborators: the OSM
// API changeset collector, the Overpass snapshot acquirer, the FIFO
// local exporter, and the OSM API uploader.
func buildOrchestrator(cfg config.ReplayConfig, st store.Store) *pipeline.Orchestrator {
	collector := upstream.NewHTTPCollector(cfg.OSMBaseURL, cfg.OverpassURL)
	return pipeline.NewOrchestrator(pipeline.Deps{
		Store:     st,
		Collector: collector,
		Snapshots: collector,
		LocalExporter: &upstream.FIFOExporter{
			RequestFIFO: cfg.RequestFIFO,
			ResultFIFO:  cfg.ResultFIFO,
		},
		Uploader: upstream.NewHTTPUploader(http.DefaultClient, cfg.OAuthAPIURL, "replay-core"),
		Config:   cfg,
	})
}

// statePath is where the singleton pipeline state record is persisted
// between CLI invocations.
func statePath(cfg config.ReplayConfig) string {
	return filepath.Join(cfg.AOIRoot, cfg.AOIName, "pipeline_state.json")
}

func loadState(cfg config.ReplayConfig) (*pipeline.State, error) {
	b, err := os.ReadFile(statePath(cfg))
	if errors.Is(err, os.ErrNotExist) {
		return pipeline.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pipeline state: %w", err)
	}
	var s pipeline.State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse pipeline state: %w", err)
	}
	return &s, nil
}

func saveState(cfg config.ReplayConfig, s *pipeline.State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pipeline state: %w", err)
	}
	path := statePath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write pipeline state: %w", err)
	}
	return nil
}

func loadManifest(cfg config.ReplayConfig) (config.Manifest, error) {
	return config.LoadManifest(cfg.AOIRoot, cfg.AOIName)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
