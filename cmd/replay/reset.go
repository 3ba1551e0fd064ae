package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard all pipeline products and return to not_triggered",
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
		if err := o.Reset(ctx); err != nil {
			return err
		}
		if err := saveState(cfg, o.State); err != nil {
			return err
		}
		fmt.Println("Pipeline reset to not_triggered; element store cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
