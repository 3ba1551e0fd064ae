package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/posm-tools/replay-core/internal/store"
	"github.com/posm-tools/replay-core/internal/upstream"
)

var fromChangesetID int64

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run the replay pipeline up to conflict resolution",
	Long: `Run the pipeline stages in order: gather local changesets, fetch the
upstream AOI extract, export the local AOI, detect conflicts, and stop at
resolving_conflicts (or skip straight past it when nothing conflicts).`,
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

		o := buildOrchestrator(cfg, st)
		state, err := loadState(cfg)
		if err != nil {
			return err
		}
		o.State = state
		defer func() {
			if err := saveState(cfg, o.State); err != nil {
				slog.Error("persist pipeline state", "error", err)
			}
		}()

		slog.Info("triggering pipeline", "aoi", cfg.AOIName, "bbox", manifest.BBox, "from_changeset", fromChangesetID)
		if err := o.Trigger(ctx, bbox, fromChangesetID); err != nil {
			return err
		}

		conflicting, err := st.Query(ctx, store.QueryFilter{Query: store.QueryConflicting})
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]any{
				"state":     o.State,
				"conflicts": len(conflicting),
			})
			return nil
		}
		fmt.Printf("Pipeline at %s (%d conflicts)\n", o.State.Stage, len(conflicting))
		if len(conflicting) == 0 {
			fmt.Println("Nothing to resolve; run 'replay push' to upload.")
		} else {
			fmt.Println("Run 'replay conflicts' to list them.")
		}
		return nil
	},
}

func init() {
	triggerCmd.Flags().Int64Var(&fromChangesetID, "from-changeset", 1, "first local changeset id to sweep")
	rootCmd.AddCommand(triggerCmd)
}
