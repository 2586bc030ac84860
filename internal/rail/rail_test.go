package rail

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/cxd309/railsim/internal/geometry"
)

func straight(id string, x1, x2 int64, colors ...string) Data {
	return Data{
		ID:            id,
		Start:         Endpoint{Pos: geometry.Position{X: x1}, Angle: geometry.AngleE},
		End:           Endpoint{Pos: geometry.Position{X: x2}, Angle: geometry.AngleW},
		SpeedForward:  20,
		SpeedBackward: 10,
		Colors:        colors,
	}
}

func mustNetwork(t *testing.T, data ...Data) *Network {
	t.Helper()
	n, err := NewNetwork(data)
	if err != nil {
		t.Fatalf("NewNetwork: %s", err)
	}
	return n
}

func mustRail(t *testing.T, n *Network, id string) *Rail {
	t.Helper()
	r, err := n.Rail(id)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewCanonicalisesDirection(t *testing.T) {
	d := straight("r", 0, 10, "red", "blue", "red")
	d.Start, d.End = d.End, d.Start
	d.SpeedForward, d.SpeedBackward = 10, 20
	r, err := New(d)
	if err != nil {
		t.Fatal(err)
	}
	if r.Start.Pos != (geometry.Position{}) || r.Start.Angle != geometry.AngleE {
		t.Errorf("Start = %+v", r.Start)
	}
	if r.SpeedForward != 20 || r.SpeedBackward != 10 {
		t.Errorf("speeds = %g/%g, want 20/10", r.SpeedForward, r.SpeedBackward)
	}
	if diff := cmp.Diff([]string{"blue", "red"}, r.Colors); diff != "" {
		t.Errorf("colors (-want +got):\n%s", diff)
	}
	if !r.IsValid() || r.Length() != 10 {
		t.Errorf("Length() = %g", r.Length())
	}
	leave, arrive := r.Headings(geometry.Position{X: 10})
	if leave != geometry.AngleW || arrive != geometry.AngleW {
		t.Errorf("Headings from end = %s, %s", leave, arrive)
	}
}

func TestNewRejectsBadData(t *testing.T) {
	for name, d := range map[string]Data{
		"no id":          {Start: Endpoint{Pos: geometry.Position{}}, End: Endpoint{Pos: geometry.Position{X: 1}}},
		"same endpoints": {ID: "x"},
		"negative speed": {ID: "x", End: Endpoint{Pos: geometry.Position{X: 1}}, SpeedForward: -1},
	} {
		if _, err := New(d); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSharedColourBlocksNeighbour(t *testing.T) {
	n := mustNetwork(t, straight("A", 0, 10, "red"), straight("B", 10, 20, "red"))
	a, b := mustRail(t, n, "A"), mustRail(t, n, "B")
	v1, v2 := uuid.New(), uuid.New()

	if a.IsBlocked(v1, true) {
		t.Fatal("A should be free for V1")
	}
	if id, ok := b.Holder("red"); !ok || id != v1 {
		t.Errorf("B holder = %v, %t; want V1", id, ok)
	}
	if !b.IsBlocked(v2, false) {
		t.Error("B should be blocked for V2")
	}
	if b.IsBlocked(v1, false) {
		t.Error("B should not block its holder")
	}
}

func TestReservationSurvivesOneTick(t *testing.T) {
	n := mustNetwork(t, straight("A", 0, 10, "red"))
	a := mustRail(t, n, "A")
	v1, v2 := uuid.New(), uuid.New()
	a.IsBlocked(v1, true)

	n.TickReservations()
	if !a.IsBlocked(v2, true) {
		t.Fatal("previous generation should still block V2")
	}
	n.TickReservations()
	if a.IsBlocked(v2, true) {
		t.Fatal("reservation should expire after two generations")
	}
	if !a.IsBlocked(v1, false) {
		t.Error("V2 now holds A")
	}
}

func TestColourlessRailNeverBlocks(t *testing.T) {
	n := mustNetwork(t, straight("A", 0, 10))
	a := mustRail(t, n, "A")
	a.IsBlocked(uuid.New(), true)
	if a.IsBlocked(uuid.New(), true) {
		t.Error("colourless rail blocked")
	}
}

func TestReservationIsAllOrNothing(t *testing.T) {
	// D carries both colours; E is only reachable from D through A.
	n := mustNetwork(t,
		straight("D", 0, 10, "red", "green"),
		straight("A", 10, 20, "red"),
		straight("E", 20, 30, "green"),
	)
	d, a, e := mustRail(t, n, "D"), mustRail(t, n, "A"), mustRail(t, n, "E")
	v1, v2 := uuid.New(), uuid.New()

	if e.IsBlocked(v2, true) {
		t.Fatal("E should be free")
	}
	if _, ok := a.Holder("red"); ok {
		t.Fatal("reserving E must not spread through A, which has no green")
	}
	if !d.IsBlocked(v1, true) {
		t.Fatal("the block around D reaches E, held by V2")
	}
	for _, r := range []*Rail{d, a} {
		for _, c := range r.Colors {
			if id, ok := r.Holder(c); ok {
				t.Errorf("%s %s held by %v after a failed claim", r.ID, c, id)
			}
		}
	}
	if d.IsBlocked(v1, false) {
		t.Error("D itself is not held by anyone")
	}
}

func TestMutualExclusion(t *testing.T) {
	// a loop of four red rails
	loop := []Data{
		straight("A", 0, 10, "red"),
		straight("B", 10, 20, "red"),
		{ID: "C", Start: Endpoint{Pos: geometry.Position{X: 20}, Angle: geometry.AngleS}, End: Endpoint{Pos: geometry.Position{X: 20, Z: 10}, Angle: geometry.AngleN}, SpeedForward: 10, SpeedBackward: 10, Colors: []string{"red"}},
		{ID: "D", Start: Endpoint{Pos: geometry.Position{}, Angle: geometry.AngleS}, End: Endpoint{Pos: geometry.Position{X: 20, Z: 10}, Angle: geometry.AngleW}, SpeedForward: 10, SpeedBackward: 10, Colors: []string{"red"}},
	}
	n := mustNetwork(t, loop...)
	rails := n.Rails()
	vehicles := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for round := range 4 {
		for i, r := range rails {
			r.IsBlocked(vehicles[(i+round)%len(vehicles)], true)
		}
		holders := map[uuid.UUID]bool{}
		for _, r := range rails {
			if id, ok := r.Holder("red"); ok {
				holders[id] = true
			}
		}
		if len(holders) > 1 {
			t.Fatalf("round %d: %d vehicles hold red", round, len(holders))
		}
		n.TickReservations()
	}
}

func TestNetworkSync(t *testing.T) {
	n := mustNetwork(t, straight("A", 0, 10), straight("B", 10, 20), straight("C", 20, 30))
	b := mustRail(t, n, "B")
	var ids []string
	for _, r := range b.Connected() {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"A", "C"}, ids); diff != "" {
		t.Errorf("connected (-want +got):\n%s", diff)
	}
	if r, ok := n.RailBetween(geometry.Position{X: 20}, geometry.Position{X: 10}); !ok || r != b {
		t.Error("RailBetween(20, 10) should be B")
	}
	v := n.Version()
	if err := n.Remove("C"); err != nil {
		t.Fatal(err)
	}
	if !n.Dirty() {
		t.Error("network should be dirty after Remove")
	}
	n.Sync()
	if n.Version() != v+1 {
		t.Errorf("Version() = %d, want %d", n.Version(), v+1)
	}
	if len(b.Connected()) != 1 {
		t.Errorf("B connected to %d rails after removing C", len(b.Connected()))
	}
	if err := n.Remove("C"); !errors.Is(err, ErrRailNotFound) {
		t.Errorf("Remove(C) = %v, want ErrRailNotFound", err)
	}
	if err := n.Add(mustNew(t, straight("A2", 10, 0))); err == nil {
		t.Error("duplicate endpoints should be rejected")
	}
}

func mustNew(t *testing.T, d Data) *Rail {
	t.Helper()
	r, err := New(d)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestPath(t *testing.T) {
	a := mustNew(t, straight("A", 0, 10))
	b := mustNew(t, straight("B", 10, 25))
	p := Path{}.Append(a, false).Append(b, false)
	if p.Length() != 25 {
		t.Fatalf("Length() = %g", p.Length())
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		distance float64
		want     int
	}{{0, 0}, {9.9, 0}, {10, 1}, {24, 1}, {40, 1}} {
		if got := p.IndexAt(tt.distance); got != tt.want {
			t.Errorf("IndexAt(%g) = %d, want %d", tt.distance, got, tt.want)
		}
	}
	if got := p.PositionAt(12); got != (geometry.Vec3{X: 12}) {
		t.Errorf("PositionAt(12) = %+v", got)
	}
	back := Path{}.Append(b, true)
	joined := p.Concat(back)
	if joined[2].StartDistance != 25 || joined[2].EndDistance != 40 {
		t.Errorf("concatenated element = %+v", joined[2])
	}
	if joined[2].From() != (geometry.Position{X: 25}) || joined[2].SpeedLimit() != 10 {
		t.Errorf("reversed traversal from %s at %g", joined[2].From(), joined[2].SpeedLimit())
	}
	joined[1].EndDistance = 30
	if err := joined.Validate(); err == nil {
		t.Error("overlapping elements should fail validation")
	}
}
