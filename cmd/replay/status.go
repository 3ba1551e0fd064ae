package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pipeline state and AOI element totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		state, err := loadState(cfg)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(state)
			return nil
		}
		fmt.Printf("Stage:    %s\n", state.Stage)
		fmt.Printf("Complete: %v\n", state.IsCurrentStageComplete)
		if state.HasErrored {
			fmt.Printf("Errored:  %s\n", state.ErrorDetails)
		}
		fmt.Printf("Local:    %d nodes, %d ways, %d relations\n",
			state.ElementsData.Local.Nodes, state.ElementsData.Local.Ways, state.ElementsData.Local.Relations)
		fmt.Printf("Upstream: %d nodes, %d ways, %d relations\n",
			state.ElementsData.Upstream.Nodes, state.ElementsData.Upstream.Ways, state.ElementsData.Upstream.Relations)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
