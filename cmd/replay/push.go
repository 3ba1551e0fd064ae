package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/posm-tools/replay-core/internal/emitter"
	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/pipeline"
	"github.com/posm-tools/replay-core/internal/store"
	"github.com/posm-tools/replay-core/internal/upstream"
)

var (
	pushComment string
	pushOut     string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Build the osmChange document and upload it upstream",
	Long: `Select every resolved and non-referring tracked element, rewrite
locally created ids to negative placeholders, and upload the resulting
osmChange atomically (create changeset, upload contents, close).

With --out the document is written to a file instead of uploaded, and
the pipeline state is left untouched.`,
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

		unresolved, err := st.Query(ctx, store.QueryFilter{Query: store.QueryConflicting})
		if err != nil {
			return err
		}
		if len(unresolved) > 0 {
			return fmt.Errorf("%d conflicts are still unresolved; run 'replay conflicts'", len(unresolved))
		}

		all, err := st.Query(ctx, store.QueryFilter{Query: store.QueryAll})
		if err != nil {
			return err
		}
		selected := emitter.Select(all)

		if pushOut != "" {
			change, err := emitter.Emit(selected, 0)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := osm.EncodeChange(&buf, change); err != nil {
				return err
			}
			if err := os.WriteFile(pushOut, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %d bytes to %s (%d elements).\n", buf.Len(), pushOut, len(selected))
			return nil
		}

		o := buildOrchestrator(cfg, st)
		if o.State, err = loadState(cfg); err != nil {
			return err
		}
		defer func() {
			if err := saveState(cfg, o.State); err != nil {
				slog.Error("persist pipeline state", "error", err)
			}
		}()

		uploader := upstream.NewHTTPUploader(http.DefaultClient, cfg.OAuthAPIURL, "replay-core")
		err = o.Push(ctx, func(_ *pipeline.State) error {
			changesetID, err := uploader.CreateChangeset(ctx, pushComment)
			if err != nil {
				return err
			}
			slog.Info("created upstream changeset", "changeset", changesetID, "elements", len(selected))

			change, err := emitter.Emit(selected, changesetID)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := osm.EncodeChange(&buf, change); err != nil {
				return err
			}
			if err := uploader.UploadDiff(ctx, changesetID, buf.Bytes()); err != nil {
				return err
			}
			if err := uploader.CloseChangeset(ctx, changesetID); err != nil {
				return err
			}

			for _, el := range selected {
				el.Status = store.StatusPushed
				if err := st.Insert(ctx, el, true); err != nil {
					return fmt.Errorf("mark %s pushed: %w", el.Key, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %d elements upstream; pipeline at %s.\n", len(selected), o.State.Stage)
		return nil
	},
}

func init() {
	pushCmd.Flags().StringVar(&pushComment, "comment", "POSM replay reconciliation", "changeset comment")
	pushCmd.Flags().StringVar(&pushOut, "out", "", "write the osmChange to a file instead of uploading")
	rootCmd.AddCommand(pushCmd)
}
