package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
)

var (
	resolveTheirs bool
	resolveOurs   bool
	resolveCustom string
	resolveClear  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <kind> <id>",
	Short: "Resolve one conflicting element (ours, theirs, or a custom snapshot)",
	Long: `Resolve a conflicting element by choosing the local version (--ours),
the upstream version (--theirs), or a hand-edited OSM XML snapshot
(--custom file.osm). With no flag, an interactive prompt shows both
versions side by side and asks for a decision.

Resolving a way or relation cascades to the conflicting nodes it refers
to, so the parent and its children move to resolved in one step.
--reset clears a previous resolution instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		key, err := parseElementKey(args[0], args[1])
		if err != nil {
			return err
		}
		_, err = loadConfig()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if resolveClear {
			if err := st.ResetElement(ctx, key); err != nil {
				return err
			}
			fmt.Printf("Cleared resolution of %s.\n", key)
			return nil
		}

		el, err := st.Get(ctx, key)
		if err != nil {
			return err
		}
		if el.LocalState != store.StateConflicting {
			return fmt.Errorf("%s is %s, not conflicting", key, el.LocalState)
		}

		choice, err := resolutionChoice(el)
		if err != nil {
			return err
		}

		res, err := buildResolution(ctx, st, el, choice)
		if err != nil {
			return err
		}
		if err := st.UpdateResolution(ctx, key, res); err != nil {
			return err
		}
		fmt.Printf("Resolved %s from %s (%d cascaded nodes).\n", key, res.ResolvedFrom, len(res.ConflictingNodes))
		return nil
	},
}

func parseElementKey(kindArg, idArg string) (store.Key, error) {
	kind := osm.LongMemberKind(osm.Kind(strings.ToLower(kindArg)))
	switch kind {
	case osm.KindNode, osm.KindWay, osm.KindRelation:
	default:
		return store.Key{}, fmt.Errorf("unknown element kind %q", kindArg)
	}
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return store.Key{}, fmt.Errorf("element id %q: %w", idArg, err)
	}
	return store.Key{Kind: kind, ID: id}, nil
}

// resolutionChoice maps the flags to a provenance, falling back to the
// interactive prompt when none was given.
func resolutionChoice(el store.TrackedElement) (store.ResolvedFrom, error) {
	switch {
	case resolveTheirs:
		return store.ResolvedFromTheirs, nil
	case resolveOurs:
		return store.ResolvedFromOurs, nil
	case resolveCustom != "":
		return store.ResolvedFromCustom, nil
	}
	return promptChoice(el)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	oursStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).PaddingRight(4)
	theirsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// promptChoice renders the two versions side by side and asks the
// operator which one wins.
func promptChoice(el store.TrackedElement) (store.ResolvedFrom, error) {
	fmt.Println(renderComparison(el))

	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Resolve %s", el.Key)).
			Options(
				huh.NewOption("Keep ours (local edit)", string(store.ResolvedFromOurs)),
				huh.NewOption("Take theirs (upstream)", string(store.ResolvedFromTheirs)),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return store.ResolvedFrom(choice), nil
}

// renderComparison builds a two-column ours/theirs view of the element:
// coordinates for nodes, tag tables for everything, refs for ways.
func renderComparison(el store.TrackedElement) string {
	left := headerStyle.Render("Ours (local)") + "\n" + describeElement(el.LocalSnapshot, el.HasLocal)
	right := headerStyle.Render("Theirs (upstream)") + "\n" + describeElement(el.UpstreamSnapshot, el.HasUpstream)
	return lipgloss.JoinHorizontal(lipgloss.Top, oursStyle.Render(left), theirsStyle.Render(right))
}

func describeElement(e osm.Element, present bool) string {
	if !present {
		return dimStyle.Render("(deleted)")
	}
	var b strings.Builder
	switch e.Kind {
	case osm.KindNode:
		fmt.Fprintf(&b, "lat=%g lon=%g\n", e.Node.Lat, e.Node.Lon)
	case osm.KindWay:
		fmt.Fprintf(&b, "%d node refs\n", len(e.Way.Nodes))
	case osm.KindRelation:
		fmt.Fprintf(&b, "%d members\n", len(e.Relation.Members))
	}
	for _, tag := range e.Tags() {
		fmt.Fprintf(&b, "%s=%s\n", tag.Key, tag.Value)
	}
	return b.String()
}

// buildResolution assembles the store message for one choice, including
// the conflicting-node cascade for composite parents.
func buildResolution(ctx context.Context, st store.Store, el store.TrackedElement, from store.ResolvedFrom) (store.Resolution, error) {
	res := store.Resolution{ResolvedFrom: from}

	switch from {
	case store.ResolvedFromOurs:
		if !el.HasLocal {
			return store.Resolution{}, fmt.Errorf("%s has no local snapshot to keep", el.Key)
		}
		res.ResolvedSnapshot = el.LocalSnapshot
	case store.ResolvedFromTheirs:
		if !el.HasUpstream {
			return store.Resolution{}, fmt.Errorf("%s was deleted upstream; use --custom or --ours", el.Key)
		}
		res.ResolvedSnapshot = el.UpstreamSnapshot
	case store.ResolvedFromCustom:
		snapshot, err := readCustomSnapshot(resolveCustom, el.Key.Kind)
		if err != nil {
			return store.Resolution{}, err
		}
		res.ResolvedSnapshot = snapshot
	default:
		return store.Resolution{}, fmt.Errorf("unknown resolution choice %q", from)
	}

	// ours/theirs on a way or relation cascades the same direction to
	// every conflicting node that named it as canonical parent. A custom
	// snapshot cascades nothing; its children are resolved individually.
	if el.Key.Kind != osm.KindNode && from != store.ResolvedFromCustom {
		children, err := st.Query(ctx, store.QueryFilter{Query: store.QueryAll, Kind: osm.KindNode})
		if err != nil {
			return store.Resolution{}, err
		}
		for _, child := range children {
			if child.ReferredBy == nil || *child.ReferredBy != el.Key {
				continue
			}
			snapshot := child.LocalSnapshot
			if from == store.ResolvedFromTheirs {
				snapshot = child.UpstreamSnapshot
			}
			if res.ConflictingNodes == nil {
				res.ConflictingNodes = make(map[store.Key]osm.Element)
			}
			res.ConflictingNodes[child.Key] = snapshot
		}
	}
	return res, nil
}

// readCustomSnapshot reads a single-element OSM XML file as the resolved
// shape.
func readCustomSnapshot(path string, kind osm.Kind) (osm.Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return osm.Element{}, fmt.Errorf("custom snapshot: %w", err)
	}
	defer f.Close()

	var found *osm.Element
	err = osm.Decode(f, func(e osm.Element) error {
		if e.Kind == kind && found == nil {
			el := e
			found = &el
		}
		return nil
	})
	if err != nil {
		return osm.Element{}, fmt.Errorf("custom snapshot %s: %w", path, err)
	}
	if found == nil {
		return osm.Element{}, fmt.Errorf("custom snapshot %s contains no %s", path, kind)
	}
	return *found, nil
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveTheirs, "theirs", false, "take the upstream version")
	resolveCmd.Flags().BoolVar(&resolveOurs, "ours", false, "keep the local version")
	resolveCmd.Flags().StringVar(&resolveCustom, "custom", "", "path to an OSM XML file holding the resolved element")
	resolveCmd.Flags().BoolVar(&resolveClear, "reset", false, "clear a previous resolution")
	resolveCmd.MarkFlagsMutuallyExclusive("theirs", "ours", "custom", "reset")
	rootCmd.AddCommand(resolveCmd)
}
