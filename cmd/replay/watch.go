package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/posm-tools/replay-core/internal/store"
	"github.com/posm-tools/replay-core/internal/upstream"
)

var (
	watchDir      string
	watchSentinel string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a drop directory and trigger the pipeline on arrival",
	Long: `Run until interrupted, watching a directory for a sentinel file. Each
arrival resets the pipeline and runs a full trigger pass, so a field
deployment can kick off reconciliation by dropping a file instead of
invoking the CLI on the replay host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manifest, err := loadManifest(cfg)
		if err != nil {
			return err
		}
		bbox := upstream.BBox{
			West:  manifest.BBox[0],
			South: manifest.BBox[1],
			East:  manifest.BBox[2],
			North: manifest.BBox[3],
		}

		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		w, err := upstream.NewWatcher(watchDir)
		if err != nil {
			return err
		}
		defer w.Close()

		slog.Info("watching for trigger", "dir", watchDir, "sentinel", watchSentinel)
		return w.Run(ctx, watchSentinel, func(path string) error {
			slog.Info("trigger file arrived", "path", path)

			o := buildOrchestrator(cfg, st)
			if err := o.Reset(ctx); err != nil {
				return err
			}
			if err := o.Trigger(ctx, bbox, fromChangesetID); err != nil {
				// A failed run is left for the operator to retrigger; the
				// watcher stays alive for the next drop.
				slog.Error("pipeline run failed", "error", err)
			}
			if err := saveState(cfg, o.State); err != nil {
				return err
			}
			conflicting, err := st.Query(ctx, store.QueryFilter{Query: store.QueryConflicting})
			if err != nil {
				return err
			}
			slog.Info("pipeline run finished", "stage", o.State.Stage, "conflicts", len(conflicting))
			return nil
		})
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", ".", "directory to watch")
	watchCmd.Flags().StringVar(&watchSentinel, "sentinel", "trigger", "file name that fires a pipeline run")
	watchCmd.Flags().Int64Var(&fromChangesetID, "from-changeset", 1, "first local changeset id to sweep")
	rootCmd.AddCommand(watchCmd)
}
