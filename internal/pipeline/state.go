// Package pipeline implements the replay tool's singleton state
// machine, its stage-transition guard, and the Trigger/Retrigger/Reset
// entry points that drive the other stage packages in order.
package pipeline

// Stage is one of the nine ordered pipeline states.
type Stage string

const (
	StageNotTriggered          Stage = "not_triggered"
	StageGatheringChangesets   Stage = "gathering_changesets"
	StageExtractingUpstreamAOI Stage = "extracting_upstream_aoi"
	StageExtractingLocalAOI    Stage = "extracting_local_aoi"
	StageDetectingConflicts    Stage = "detecting_conflicts"
	StageCreatingGeoJSONs      Stage = "creating_geojsons"
	StageResolvingConflicts    Stage = "resolving_conflicts"
	StagePushConflicts         Stage = "push_conflicts"
	StagePushedUpstream        Stage = "pushed_upstream"
)

// order fixes the adjacency used by the transition guard: stage at index
// i may only be entered from stage i-1.
var order = []Stage{
	StageNotTriggered,
	StageGatheringChangesets,
	StageExtractingUpstreamAOI,
	StageExtractingLocalAOI,
	StageDetectingConflicts,
	StageCreatingGeoJSONs,
	StageResolvingConflicts,
	StagePushConflicts,
	StagePushedUpstream,
}

func indexOf(s Stage) int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// previous returns the stage that must be complete before s may be
// entered, and whether s is a recognized stage at all.
func previous(s Stage) (Stage, bool) {
	i := indexOf(s)
	if i <= 0 {
		return "", i == 0
	}
	return order[i-1], true
}

// ElementCounts is a per-kind total, used for State.ElementsData's local
// and upstream breakdowns.
type ElementCounts struct {
	Nodes, Ways, Relations int
}

// ElementsData reports per-kind element totals for the local and
// upstream snapshots.
type ElementsData struct {
	Local    ElementCounts
	Upstream ElementCounts
}

// State is the singleton pipeline record. Initialized at first access,
// torn down on Reset. Not a package-level global: callers own an
// instance and pass it explicitly.
type State struct {
	Stage                  Stage
	IsCurrentStageComplete bool
	HasErrored             bool
	ErrorDetails           string
	ElementsData           ElementsData
}

// New returns a fresh state at StageNotTriggered, its stage marked
// complete so the first Trigger (into StageGatheringChangesets) passes
// the transition guard.
func New() *State {
	return &State{Stage: StageNotTriggered, IsCurrentStageComplete: true}
}

// HasZeroConflicts backs the zero-conflict shortcut after
// StageCreatingGeoJSONs: when the count is zero, the orchestrator marks
// the stage complete and awaits push directly, skipping
// StageResolvingConflicts's operator-facing wait.
func (s *State) HasZeroConflicts(conflictCount int) bool {
	return conflictCount == 0
}
