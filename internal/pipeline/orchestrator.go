package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/posm-tools/replay-core/internal/aoiload"
	"github.com/posm-tools/replay-core/internal/conflict"
	"github.com/posm-tools/replay-core/internal/config"
	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/refprop"
	"github.com/posm-tools/replay-core/internal/store"
	"github.com/posm-tools/replay-core/internal/telemetry"
	"github.com/posm-tools/replay-core/internal/tracker"
	"github.com/posm-tools/replay-core/internal/upstream"
)

// Deps are the Orchestrator's external collaborators: the element store
// and the four upstream interfaces, plus the configuration record.
type Deps struct {
	Store         store.Store
	Collector     upstream.ChangesetCollector
	Snapshots     upstream.SnapshotAcquirer
	LocalExporter upstream.LocalExporter
	Uploader      upstream.Uploader
	Config        config.ReplayConfig
}

// Orchestrator drives the replay pipeline end to end. It is
// single-writer: at most one stage runs at a time, enforced by a
// weighted semaphore of size 1.
type Orchestrator struct {
	sem  *semaphore.Weighted
	deps Deps

	State *State

	changesets []upstream.Changeset
	touched    *tracker.Tracker

	originalSnap *aoiload.Snapshot
	localSnap    *aoiload.Snapshot
	upstreamSnap *aoiload.Snapshot
	refGraph     *aoiload.ReferenceGraph
	versions     *aoiload.Versions
}

// NewOrchestrator returns a fresh Orchestrator at StageNotTriggered.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		sem:   semaphore.NewWeighted(1),
		deps:  deps,
		State: New(),
	}
}

// acquire enforces single-writer access for the duration of one stage.
func (o *Orchestrator) acquire(ctx context.Context) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("pipeline: acquire run lock: %w", err)
	}
	return nil
}

func (o *Orchestrator) release() { o.sem.Release(1) }

// Trigger runs the pipeline from StageNotTriggered through
// StageCreatingGeoJSONs, at which point StageResolvingConflicts is
// entered and awaits the operator-driven resolution API, unless the
// zero-conflict shortcut applies, in which case the stage is
// marked complete immediately and the caller may proceed straight to
// Push.
func (o *Orchestrator) Trigger(ctx context.Context, bbox upstream.BBox, fromChangesetID int64) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.release()

	if err := o.gatherChangesets(ctx, fromChangesetID); err != nil {
		return err
	}
	if err := o.extractUpstreamAOI(ctx, bbox); err != nil {
		return err
	}
	if err := o.extractLocalAOI(ctx, bbox); err != nil {
		return err
	}
	if err := o.detectConflicts(ctx); err != nil {
		return err
	}
	return o.createGeoJSONs(ctx)
}

func (o *Orchestrator) gatherChangesets(ctx context.Context, fromID int64) error {
	ctx, span := telemetry.StageSpan(ctx, string(StageGatheringChangesets))
	defer span.End()
	return RunStage(o.State, StageGatheringChangesets, func(_ *State) error {
		o.changesets = nil
		id := fromID
		for {
			meta, ok, err := o.deps.Collector.Meta(ctx, id)
			if err != nil {
				return fmt.Errorf("gather changesets: %w", err)
			}
			if !ok {
				break
			}
			payload, err := o.deps.Collector.Payload(ctx, id)
			if err != nil {
				return fmt.Errorf("gather changesets: download %d: %w", id, err)
			}
			o.changesets = append(o.changesets, upstream.Changeset{ID: id, Meta: meta, Payload: payload})
			id++
		}
		return nil
	})
}

func (o *Orchestrator) extractUpstreamAOI(ctx context.Context, bbox upstream.BBox) error {
	ctx, span := telemetry.StageSpan(ctx, string(StageExtractingUpstreamAOI))
	defer span.End()
	return RunStage(o.State, StageExtractingUpstreamAOI, func(s *State) error {
		r, err := o.deps.Snapshots.FetchUpstreamAOI(ctx, bbox)
		if err != nil {
			return fmt.Errorf("extract upstream aoi: %w", err)
		}
		defer r.Close()

		o.touched = tracker.New()
		for _, cs := range o.changesets {
			if err := o.touched.ObserveAll(strings.NewReader(cs.Payload)); err != nil {
				return fmt.Errorf("extract upstream aoi: classify changesets: %w", err)
			}
		}

		wanted := wantedFromTracker(o.touched)
		snap, _, err := aoiload.Load(r, wanted, false)
		if err != nil {
			return fmt.Errorf("extract upstream aoi: %w", err)
		}
		o.upstreamSnap = snap
		s.ElementsData.Upstream = aoiloadCounts(snap)
		return nil
	})
}

func (o *Orchestrator) extractLocalAOI(ctx context.Context, bbox upstream.BBox) error {
	ctx, span := telemetry.StageSpan(ctx, string(StageExtractingLocalAOI))
	defer span.End()
	return RunStage(o.State, StageExtractingLocalAOI, func(s *State) error {
		r, err := o.deps.LocalExporter.ExportLocalAOI(ctx, bbox)
		if err != nil {
			return fmt.Errorf("extract local aoi: %w", err)
		}
		defer r.Close()

		wanted := wantedFromTracker(o.touched)
		snap, graph, err := aoiload.Load(r, wanted, true)
		if err != nil {
			return fmt.Errorf("extract local aoi: %w", err)
		}
		o.localSnap = snap
		o.refGraph = graph
		s.ElementsData.Local = aoiloadCounts(snap)

		cfg := o.deps.Config
		origPath := cfg.OriginalAOIPath()
		origFile, err := os.Open(origPath)
		if err != nil {
			return fmt.Errorf("extract local aoi: open original %s: %w", origPath, err)
		}
		defer origFile.Close()
		versions, err := aoiload.LoadVersions(origFile)
		if err != nil {
			return fmt.Errorf("extract local aoi: load versions: %w", err)
		}
		o.versions = versions

		origFile2, err := os.Open(origPath)
		if err != nil {
			return fmt.Errorf("extract local aoi: reopen original %s: %w", origPath, err)
		}
		defer origFile2.Close()
		origSnap, _, err := aoiload.Load(origFile2, wanted, false)
		if err != nil {
			return fmt.Errorf("extract local aoi: load original snapshot: %w", err)
		}
		o.originalSnap = origSnap
		return nil
	})
}

func (o *Orchestrator) detectConflicts(ctx context.Context) error {
	ctx, span := telemetry.StageSpan(ctx, string(StageDetectingConflicts))
	defer span.End()
	return RunStage(o.State, StageDetectingConflicts, func(_ *State) error {
		if err := o.deps.Store.Clear(ctx); err != nil {
			return fmt.Errorf("detect conflicts: clear store: %w", err)
		}

		for _, kind := range []osm.Kind{osm.KindNode, osm.KindWay, osm.KindRelation} {
			touched := o.touched.TouchedSet(kind)
			referenced := o.touched.ReferencedSet(kind)

			conflicting := conflict.Detect(kind, referenced, o.localSnap, o.upstreamSnap, o.versions.ForKind(kind))

			for id := range touched {
				if err := o.insertTouched(ctx, kind, id, conflicting[id]); err != nil {
					return err
				}
			}

			if kind == osm.KindNode {
				touchedWays := o.touched.TouchedSet(osm.KindWay)
				touchedRelations := o.touched.TouchedSet(osm.KindRelation)
				prop := refprop.Propagate(o.refGraph, conflicting, touchedWays, touchedRelations)

				if err := o.insertReferring(ctx, osm.KindWay, prop.ReferringWays); err != nil {
					return err
				}
				if err := o.insertReferring(ctx, osm.KindRelation, prop.ReferringRelations); err != nil {
					return err
				}
				if err := o.applyReferredBy(ctx, prop.ReferredBy); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (o *Orchestrator) insertTouched(ctx context.Context, kind osm.Kind, id int64, conflicting bool) error {
	key := store.Key{Kind: kind, ID: id}
	el := store.TrackedElement{Key: key, Status: store.StatusUnresolved}

	if o.originalSnap.Has(kind, id) {
		el.OriginalSnapshot = o.originalSnap.Element(kind, id)
		el.HasOriginal = true
	}
	if o.localSnap.Has(kind, id) {
		el.LocalSnapshot = o.localSnap.Element(kind, id)
		el.HasLocal = true
	}
	if o.upstreamSnap.Has(kind, id) {
		el.UpstreamSnapshot = o.upstreamSnap.Element(kind, id)
		el.HasUpstream = true
	}

	switch {
	case conflicting:
		el.LocalState = store.StateConflicting
	case o.touched.IsAdded(kind, id):
		el.LocalState = store.StateAdded
	case o.touched.IsDeleted(kind, id):
		el.LocalState = store.StateDeleted
	default:
		el.LocalState = store.StateModified
	}
	if !conflicting {
		// Non-conflicting local edits need no decision and go out as-is.
		el.Status = store.StatusResolved
	}

	return o.deps.Store.Insert(ctx, el, true)
}

func (o *Orchestrator) insertReferring(ctx context.Context, kind osm.Kind, ids map[int64]bool) error {
	for id := range ids {
		key := store.Key{Kind: kind, ID: id}
		el := store.TrackedElement{
			Key:        key,
			LocalState: store.StateReferring,
			Status:     store.StatusUnresolved,
		}
		if o.localSnap.Has(kind, id) {
			el.LocalSnapshot = o.localSnap.Element(kind, id)
			el.HasLocal = true
		}
		if err := o.deps.Store.Insert(ctx, el, true); err != nil {
			return fmt.Errorf("insert referring %s: %w", key, err)
		}
	}
	return nil
}

func (o *Orchestrator) applyReferredBy(ctx context.Context, referredBy map[int64]store.Key) error {
	for nodeID, parent := range referredBy {
		key := store.Key{Kind: osm.KindNode, ID: nodeID}
		el, err := o.deps.Store.Get(ctx, key)
		if err != nil {
			continue
		}
		p := parent
		el.ReferredBy = &p
		if err := o.deps.Store.Insert(ctx, el, true); err != nil {
			return fmt.Errorf("set referred_by on %s: %w", key, err)
		}
	}
	return nil
}

func (o *Orchestrator) createGeoJSONs(ctx context.Context) error {
	ctx, span := telemetry.StageSpan(ctx, string(StageCreatingGeoJSONs))
	defer span.End()
	return RunStage(o.State, StageCreatingGeoJSONs, func(s *State) error {
		if err := o.writeReferencedOSMs(); err != nil {
			return err
		}
		conflicting, err := o.deps.Store.Query(ctx, store.QueryFilter{Query: store.QueryConflicting})
		if err != nil {
			return fmt.Errorf("create geojsons: query conflicting: %w", err)
		}
		if s.HasZeroConflicts(len(conflicting)) {
			s.Stage = StageResolvingConflicts
			s.IsCurrentStageComplete = true
		}
		return nil
	})
}

// writeReferencedOSMs emits one reduced referenced-elements sub-OSM per
// snapshot into the AOI directory, for the out-of-scope GeoJSON
// converter to pick up.
func (o *Orchestrator) writeReferencedOSMs() error {
	aoiDir := filepath.Dir(o.deps.Config.OriginalAOIPath())
	for name, snap := range map[string]*aoiload.Snapshot{
		"referenced_original.osm": o.originalSnap,
		"referenced_local.osm":    o.localSnap,
		"referenced_upstream.osm": o.upstreamSnap,
	} {
		path := filepath.Join(aoiDir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create geojsons: create %s: %w", path, err)
		}
		if err := snap.WriteReferenced(f); err != nil {
			f.Close()
			return fmt.Errorf("create geojsons: write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("create geojsons: close %s: %w", path, err)
		}
	}
	return nil
}

// Push drives StagePushConflicts -> StagePushedUpstream: it runs upload
// under the push_conflicts stage guard and, when upload succeeds, moves
// the state to pushed_upstream. Push itself neither builds the osmChange
// document nor calls the configured Uploader; upload does both (the
// push command emits from the store and uploads via an Uploader).
func (o *Orchestrator) Push(ctx context.Context, upload func(*State) error) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.release()
	return RunStage(o.State, StagePushConflicts, func(s *State) error {
		if err := upload(s); err != nil {
			return err
		}
		s.Stage = StagePushedUpstream
		s.IsCurrentStageComplete = true
		return nil
	})
}

// Retrigger rolls the state back to stage's predecessor and discards
// that stage's products: collected changesets for the gather and push
// stages, tracked elements for detection and resolution.
func (o *Orchestrator) Retrigger(ctx context.Context, stage Stage) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.release()

	switch stage {
	case StageGatheringChangesets:
		o.changesets = nil
	case StageDetectingConflicts:
		if err := o.deps.Store.Clear(ctx); err != nil {
			return fmt.Errorf("retrigger detecting_conflicts: %w", err)
		}
	case StageResolvingConflicts:
		if err := o.deps.Store.Clear(ctx); err != nil {
			return fmt.Errorf("retrigger resolving_conflicts: %w", err)
		}
	case StagePushConflicts:
		o.changesets = nil
	}

	prev, ok := previous(stage)
	if !ok {
		return fmt.Errorf("pipeline: %q is not a recognized stage", stage)
	}
	o.State.Stage = prev
	o.State.IsCurrentStageComplete = true
	o.State.HasErrored = false
	o.State.ErrorDetails = ""
	return nil
}

// Reset discards all pipeline products and returns to
// StageNotTriggered.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.release()

	if err := o.deps.Store.Clear(ctx); err != nil {
		return fmt.Errorf("reset: clear store: %w", err)
	}
	o.changesets = nil
	o.touched = nil
	o.originalSnap, o.localSnap, o.upstreamSnap = nil, nil, nil
	o.refGraph, o.versions = nil, nil
	o.State = New()
	return nil
}

func wantedFromTracker(t *tracker.Tracker) aoiload.WantedIDs {
	union := func(kind osm.Kind) map[int64]bool {
		out := make(map[int64]bool)
		for id := range t.TouchedSet(kind) {
			out[id] = true
		}
		for id := range t.ReferencedSet(kind) {
			out[id] = true
		}
		return out
	}
	return aoiload.WantedIDs{
		Nodes:     union(osm.KindNode),
		Ways:      union(osm.KindWay),
		Relations: union(osm.KindRelation),
	}
}

func aoiloadCounts(s *aoiload.Snapshot) ElementCounts {
	return ElementCounts{Nodes: s.Counts.Nodes, Ways: s.Counts.Ways, Relations: s.Counts.Relations}
}
