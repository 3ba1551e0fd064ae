package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
)

var (
	conflictsFilter string
	conflictsKind   string
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List tracked elements awaiting (or past) resolution",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, err := loadConfig()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		query, err := queryKind(conflictsFilter)
		if err != nil {
			return err
		}
		filter := store.QueryFilter{Query: query, Kind: osm.Kind(conflictsKind)}
		elements, err := st.Query(ctx, filter)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(conflictListing(elements))
			return nil
		}
		if len(elements) == 0 {
			fmt.Printf("No %s elements.\n", conflictsFilter)
			return nil
		}
		for _, el := range elements {
			line := fmt.Sprintf("%-10s %-12d %-14s %s", el.Key.Kind, el.Key.ID, el.LocalState, el.Status)
			if el.ReferredBy != nil {
				line += fmt.Sprintf("  (via %s)", *el.ReferredBy)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// queryKind maps the CLI filter vocabulary onto the store's query
// semantics, which the out-of-scope HTTP facade's listings would share.
func queryKind(filter string) (store.QueryKind, error) {
	switch filter {
	case "conflicting", "unresolved":
		return store.QueryConflicting, nil
	case "resolved":
		return store.QueryResolved, nil
	case "partially-resolved":
		return store.QueryPartiallyResolved, nil
	case "referring":
		return store.QueryReferring, nil
	case "added":
		return store.QueryAdded, nil
	case "all":
		return store.QueryAll, nil
	}
	return "", fmt.Errorf("unknown filter %q (want conflicting, resolved, partially-resolved, referring, added, or all)", filter)
}

type conflictRow struct {
	Kind       osm.Kind         `json:"kind"`
	ID         int64            `json:"id"`
	LocalState store.LocalState `json:"local_state"`
	Status     store.Status     `json:"status"`
	ReferredBy string           `json:"referred_by,omitempty"`
}

func conflictListing(elements []store.TrackedElement) []conflictRow {
	rows := make([]conflictRow, 0, len(elements))
	for _, el := range elements {
		row := conflictRow{
			Kind:       el.Key.Kind,
			ID:         el.Key.ID,
			LocalState: el.LocalState,
			Status:     el.Status,
		}
		if el.ReferredBy != nil {
			row.ReferredBy = el.ReferredBy.String()
		}
		rows = append(rows, row)
	}
	return rows
}

func init() {
	conflictsCmd.Flags().StringVar(&conflictsFilter, "filter", "conflicting", "which listing to show: conflicting, resolved, partially-resolved, referring, added, all")
	conflictsCmd.Flags().StringVar(&conflictsKind, "kind", "", "restrict to one element kind (node, way, relation)")
	rootCmd.AddCommand(conflictsCmd)
}
