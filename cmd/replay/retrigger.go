package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/posm-tools/replay-core/internal/pipeline"
)

var retriggerCmd = &cobra.Command{
	Use:   "retrigger",
	Short: "Roll back to the previous stage boundary and clear any error",
	Long: `Roll the pipeline state back to the predecessor of its current stage,
discarding that stage's products (collected changesets, tracked elements,
or the pending upload, depending on where the pipeline stands). Resolved
elements are preserved when rolling back a push. Run 'replay trigger'
afterwards to re-run from the boundary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		o := buildOrchestrator(cfg, st)
		if o.State, err = loadState(cfg); err != nil {
			return err
		}

		stage := o.State.Stage
		if stage == pipeline.StageNotTriggered {
			return fmt.Errorf("pipeline has not been triggered yet")
		}
		if err := o.Retrigger(ctx, stage); err != nil {
			return err
		}
		if err := saveState(cfg, o.State); err != nil {
			return err
		}
		fmt.Printf("Rolled back %s -> %s\n", stage, o.State.Stage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retriggerCmd)
}
