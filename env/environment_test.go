package env

import (
	"testing"

	"github.com/signalsfoundry/grid-simulator/internal/logging"
	"github.com/signalsfoundry/grid-simulator/model"
)

// inert is an entity that always stays put.
type inert struct{}

func (inert) React(Self, *Snapshot) (Action, error) { return None(), nil }

// safeInert is an inert entity eligible for parallel dispatch.
type safeInert struct{ inert }

func (safeInert) ConcurrentSafe() {}

func newEnvForTest(t *testing.T, cfg Config) *Environment {
	t.Helper()
	e, err := New(cfg, logging.Noop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return e
}

func TestNewRejectsInvalidBounds(t *testing.T) {
	for _, bounds := range []model.Dimension{
		{Width: 0, Height: 3},
		{Width: 3, Height: 0},
		{Width: -1, Height: -1},
	} {
		if _, err := New(Config{Bounds: bounds}, nil); err == nil {
			t.Fatalf("New with bounds %v should fail", bounds)
		}
	}
}

func TestInsertIssuesMonotonicIdentities(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 4, Height: 4}})

	var last model.EntityID
	for i := 0; i < 4; i++ {
		id, err := e.Insert(inert{}, model.At(model.Position{X: i, Y: 0}))
		if err != nil {
			t.Fatalf("Insert error: %v", err)
		}
		if !id.Valid() {
			t.Fatalf("issued invalid id %d", id)
		}
		if id <= last {
			t.Fatalf("id %d not greater than previously issued %d", id, last)
		}
		last = id
	}
	if e.Len() != 4 {
		t.Fatalf("Len = %d, want 4", e.Len())
	}
}

func TestInsertRejectsOutOfBoundsFootprint(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	if _, err := e.Insert(inert{}, model.At(model.Position{X: 3, Y: 0})); err == nil {
		t.Fatal("Insert out of bounds should fail in a bounded environment")
	}
}

func TestInsertWrapsInToroidalEnvironment(t *testing.T) {
	e := newEnvForTest(t, Config{
		Bounds: model.Dimension{Width: 3, Height: 3},
		Wrap:   Toroidal,
	})
	id, err := e.Insert(inert{}, model.At(model.Position{X: 4, Y: -1}))
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	fp, ok := e.Snapshot().FootprintOf(id)
	if !ok {
		t.Fatal("inserted entity missing from snapshot")
	}
	if fp.Anchor != (model.Position{X: 1, Y: 2}) {
		t.Fatalf("anchor = %v, want wrapped (1,2)", fp.Anchor)
	}
}

func TestCommitMoveUpdatesSpatialIndex(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	id, err := e.Insert(inert{}, model.At(model.Position{X: 1, Y: 1}))
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	rep := e.Commit([]ScheduledAction{
		{Entity: id, Action: MoveTo(model.At(model.Position{X: 2, Y: 1}))},
	})
	if rep.Failed() {
		t.Fatalf("unexpected diagnostics: %v", rep.Diagnostics)
	}
	if rep.Moved != 1 {
		t.Fatalf("Moved = %d, want 1", rep.Moved)
	}

	snap := e.Snapshot()
	if got := snap.EntitiesIn(model.At(model.Position{X: 1, Y: 1})); len(got) != 0 {
		t.Fatalf("vacated cell still reports %v", got)
	}
	got := snap.EntitiesIn(model.At(model.Position{X: 2, Y: 1}))
	if len(got) != 1 || got[0] != id {
		t.Fatalf("destination cell reports %v, want [%d]", got, id)
	}
}

func TestCommitOutOfBoundsMoveLeavesEntityInPlace(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	id, _ := e.Insert(inert{}, model.At(model.Position{X: 2, Y: 2}))

	rep := e.Commit([]ScheduledAction{
		{Entity: id, Action: MoveTo(model.At(model.Position{X: 3, Y: 2}))},
	})
	if len(rep.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want exactly one", rep.Diagnostics)
	}
	if rep.Diagnostics[0].Reason != ReasonOutOfBoundsMove {
		t.Fatalf("reason = %v, want out_of_bounds_move", rep.Diagnostics[0].Reason)
	}
	fp, ok := e.Snapshot().FootprintOf(id)
	if !ok || fp.Anchor != (model.Position{X: 2, Y: 2}) {
		t.Fatalf("entity should stay at (2,2), got %v (alive=%v)", fp.Anchor, ok)
	}
}

func TestCommitToroidalMoveWrapsToOppositeEdge(t *testing.T) {
	e := newEnvForTest(t, Config{
		Bounds: model.Dimension{Width: 3, Height: 3},
		Wrap:   Toroidal,
	})
	id, _ := e.Insert(inert{}, model.At(model.Position{X: 2, Y: 0}))

	rep := e.Commit([]ScheduledAction{
		{Entity: id, Action: MoveTo(model.At(model.Position{X: 3, Y: 0}))},
	})
	if rep.Failed() {
		t.Fatalf("unexpected diagnostics: %v", rep.Diagnostics)
	}
	fp, _ := e.Snapshot().FootprintOf(id)
	if fp.Anchor != (model.Position{X: 0, Y: 0}) {
		t.Fatalf("anchor = %v, want wrapped (0,0)", fp.Anchor)
	}
}

func TestCommitRemovalVacatesCellForSameGenerationMove(t *testing.T) {
	e := newEnvForTest(t, Config{
		Bounds:   model.Dimension{Width: 3, Height: 3},
		Conflict: RejectOverlap,
	})
	a, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))
	b, _ := e.Insert(inert{}, model.At(model.Position{X: 1, Y: 0}))

	// A removes itself; B moves into A's cell in the same commit. The
	// removal pass runs first, so the destination is free even under
	// RejectOverlap.
	rep := e.Commit([]ScheduledAction{
		{Entity: a, Action: Remove()},
		{Entity: b, Action: MoveTo(model.At(model.Position{X: 0, Y: 0}))},
	})
	if rep.Failed() {
		t.Fatalf("unexpected diagnostics: %v", rep.Diagnostics)
	}
	if rep.Removed != 1 || rep.Moved != 1 {
		t.Fatalf("Removed=%d Moved=%d, want 1 and 1", rep.Removed, rep.Moved)
	}

	snap := e.Snapshot()
	got := snap.EntitiesIn(model.At(model.Position{X: 0, Y: 0}))
	if len(got) != 1 || got[0] != b {
		t.Fatalf("cell (0,0) reports %v, want exactly [%d]", got, b)
	}
	if snap.Contains(a) {
		t.Fatal("removed entity still present")
	}
}

func TestCommitStaleActionIsDroppedWithDiagnostic(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	a, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))

	// The second action references a just-removed identity; it must be
	// dropped with exactly one stale-action diagnostic, not an engine
	// failure.
	rep := e.Commit([]ScheduledAction{
		{Entity: a, Action: Remove()},
		{Entity: a, Action: MoveTo(model.At(model.Position{X: 1, Y: 1}))},
	})
	if len(rep.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want exactly one", rep.Diagnostics)
	}
	d := rep.Diagnostics[0]
	if d.Reason != ReasonStaleAction || d.Entity != a {
		t.Fatalf("diagnostic = %+v, want stale_action for entity %d", d, a)
	}
}

func TestCommitSpawnVisibleNextGeneration(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	parent, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))

	before := e.Snapshot()
	if before.Len() != 1 {
		t.Fatalf("population before commit = %d, want 1", before.Len())
	}

	rep := e.Commit([]ScheduledAction{
		{Entity: parent, Action: SpawnChild(inert{}, model.At(model.Position{X: 1, Y: 1}))},
	})
	if rep.Spawned != 1 {
		t.Fatalf("Spawned = %d, want 1", rep.Spawned)
	}
	if !before.Expired() {
		t.Fatal("snapshot should be expired after commit")
	}

	after := e.Snapshot()
	if after.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", after.Generation())
	}
	got := after.EntitiesIn(model.At(model.Position{X: 1, Y: 1}))
	if len(got) != 1 {
		t.Fatalf("spawned entity missing from cell (1,1): %v", got)
	}
	if got[0] <= parent {
		t.Fatalf("child id %d not issued after parent %d", got[0], parent)
	}
}

func TestCommitOutOfBoundsSpawnIsRejected(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	parent, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))

	rep := e.Commit([]ScheduledAction{
		{Entity: parent, Action: SpawnChild(inert{}, model.At(model.Position{X: 5, Y: 5}))},
	})
	if rep.Spawned != 0 {
		t.Fatalf("Spawned = %d, want 0", rep.Spawned)
	}
	if len(rep.Diagnostics) != 1 || rep.Diagnostics[0].Reason != ReasonOutOfBoundsSpawn {
		t.Fatalf("diagnostics = %v, want one out_of_bounds_spawn", rep.Diagnostics)
	}
	if e.Len() != 1 {
		t.Fatalf("population = %d, want 1", e.Len())
	}
}

func TestCommitNilChildSpawnIsRejected(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	parent, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))

	rep := e.Commit([]ScheduledAction{
		{Entity: parent, Action: SpawnChild(nil, model.At(model.Position{X: 1, Y: 1}))},
	})
	if len(rep.Diagnostics) != 1 || rep.Diagnostics[0].Reason != ReasonRejectedSpawn {
		t.Fatalf("diagnostics = %v, want one rejected_spawn", rep.Diagnostics)
	}
}

func TestCommitRejectOverlapDropsConflictingMove(t *testing.T) {
	e := newEnvForTest(t, Config{
		Bounds:   model.Dimension{Width: 3, Height: 3},
		Conflict: RejectOverlap,
	})
	a, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))
	b, _ := e.Insert(inert{}, model.At(model.Position{X: 2, Y: 2}))

	// Both move into (1,1); the earlier-issued identity wins, the later
	// one is dropped with a diagnostic.
	rep := e.Commit([]ScheduledAction{
		{Entity: a, Action: MoveTo(model.At(model.Position{X: 1, Y: 1}))},
		{Entity: b, Action: MoveTo(model.At(model.Position{X: 1, Y: 1}))},
	})
	if rep.Moved != 1 {
		t.Fatalf("Moved = %d, want 1", rep.Moved)
	}
	if len(rep.Diagnostics) != 1 || rep.Diagnostics[0].Reason != ReasonOccupiedMove {
		t.Fatalf("diagnostics = %v, want one occupied_move", rep.Diagnostics)
	}

	snap := e.Snapshot()
	got := snap.EntitiesIn(model.At(model.Position{X: 1, Y: 1}))
	if len(got) != 1 || got[0] != a {
		t.Fatalf("cell (1,1) reports %v, want [%d]", got, a)
	}
	fp, _ := snap.FootprintOf(b)
	if fp.Anchor != (model.Position{X: 2, Y: 2}) {
		t.Fatalf("rejected mover should stay at (2,2), got %v", fp.Anchor)
	}
}

func TestCommitAllowOverlapSharesCell(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	a, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))
	b, _ := e.Insert(inert{}, model.At(model.Position{X: 2, Y: 2}))

	rep := e.Commit([]ScheduledAction{
		{Entity: a, Action: MoveTo(model.At(model.Position{X: 1, Y: 1}))},
		{Entity: b, Action: MoveTo(model.At(model.Position{X: 1, Y: 1}))},
	})
	if rep.Failed() {
		t.Fatalf("unexpected diagnostics: %v", rep.Diagnostics)
	}
	got := e.Snapshot().EntitiesIn(model.At(model.Position{X: 1, Y: 1}))
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("cell (1,1) reports %v, want [%d %d] in issuance order", got, a, b)
	}
}

func TestCommitAdvancesGenerationByOne(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 2, Height: 2}})
	for want := uint64(1); want <= 3; want++ {
		e.Commit(nil)
		if got := e.Generation(); got != want {
			t.Fatalf("generation = %d, want %d", got, want)
		}
	}
}

func TestIdentityNeverReusedAfterRemoval(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 2, Height: 2}})
	a, _ := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))
	e.Commit([]ScheduledAction{{Entity: a, Action: Remove()}})

	b, err := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0}))
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if b <= a {
		t.Fatalf("id %d issued after removing %d should be greater", b, a)
	}
}

func TestRestrictToConcurrent(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	parent, _ := e.Insert(safeInert{}, model.At(model.Position{X: 0, Y: 0}))

	if err := e.RestrictToConcurrent(); err != nil {
		t.Fatalf("RestrictToConcurrent with a safe population: %v", err)
	}
	if _, err := e.Insert(inert{}, model.At(model.Position{X: 1, Y: 1})); err == nil {
		t.Fatal("inserting a non-Concurrent entity should fail after restriction")
	}

	// Spawning a non-Concurrent child is dropped with a diagnostic rather
	// than failing the commit.
	rep := e.Commit([]ScheduledAction{
		{Entity: parent, Action: SpawnChild(inert{}, model.At(model.Position{X: 1, Y: 1}))},
	})
	if len(rep.Diagnostics) != 1 || rep.Diagnostics[0].Reason != ReasonRejectedSpawn {
		t.Fatalf("diagnostics = %v, want one rejected_spawn", rep.Diagnostics)
	}
}

func TestRestrictToConcurrentFailsOnUnsafePopulation(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 3, Height: 3}})
	if _, err := e.Insert(inert{}, model.At(model.Position{X: 0, Y: 0})); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := e.RestrictToConcurrent(); err == nil {
		t.Fatal("RestrictToConcurrent should fail with a non-Concurrent entity present")
	}
}

func TestSnapshotEachIssuanceOrder(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 4, Height: 1}})
	var ids []model.EntityID
	for i := 0; i < 4; i++ {
		id, _ := e.Insert(inert{}, model.At(model.Position{X: i, Y: 0}))
		ids = append(ids, id)
	}

	var visited []model.EntityID
	e.Snapshot().Each(func(id model.EntityID, fp model.Footprint, _ Entity) bool {
		visited = append(visited, id)
		return true
	})
	if len(visited) != len(ids) {
		t.Fatalf("visited %d entities, want %d", len(visited), len(ids))
	}
	for i := range ids {
		if visited[i] != ids[i] {
			t.Fatalf("visit order %v, want issuance order %v", visited, ids)
		}
	}
}

func TestSnapshotRegionQueryMultiCellFootprint(t *testing.T) {
	e := newEnvForTest(t, Config{Bounds: model.Dimension{Width: 5, Height: 5}})
	id, err := e.Insert(inert{}, model.Region(model.Position{X: 1, Y: 1}, model.Dimension{Width: 2, Height: 2}))
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	snap := e.Snapshot()
	// Query a region overlapping only one corner of the footprint.
	got := snap.EntitiesIn(model.At(model.Position{X: 2, Y: 2}))
	if len(got) != 1 || got[0] != id {
		t.Fatalf("corner cell reports %v, want [%d]", got, id)
	}
	if got := snap.EntitiesIn(model.At(model.Position{X: 3, Y: 3})); len(got) != 0 {
		t.Fatalf("cell outside footprint reports %v", got)
	}
}
