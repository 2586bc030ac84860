package pathfind

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/logger"
	"github.com/cxd309/railsim/internal/rail"
)

func eastWest(id string, x1, x2, z int64, fwd, back float64) rail.Data {
	return rail.Data{
		ID:            id,
		Start:         rail.Endpoint{Pos: geometry.Position{X: x1, Z: z}, Angle: geometry.AngleE},
		End:           rail.Endpoint{Pos: geometry.Position{X: x2, Z: z}, Angle: geometry.AngleW},
		SpeedForward:  fwd,
		SpeedBackward: back,
	}
}

func network(t *testing.T, data ...rail.Data) *rail.Network {
	t.Helper()
	n, err := rail.NewNetwork(data)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func find(t *testing.T, n *rail.Network, from, to string, opts Options) (rail.Path, bool) {
	t.Helper()
	a, err := n.Rail(from)
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Rail(to)
	if err != nil {
		t.Fatal(err)
	}
	f := NewRailFinder(n, a, b, opts)
	if !f.Run(10000) {
		t.Fatal("search did not finish")
	}
	return f.Result()
}

type traversal struct {
	RailID   string
	Reversed bool
}

func traversals(p rail.Path) []traversal {
	var out []traversal
	for _, pd := range p {
		out = append(out, traversal{pd.RailID, pd.Reversed})
	}
	return out
}

func TestRailFinderStraightLine(t *testing.T) {
	n := network(t, eastWest("A", 0, 10, 0, 10, 10), eastWest("B", 10, 20, 0, 10, 10), eastWest("C", 20, 30, 0, 10, 10))
	path, ok := find(t, n, "A", "C", Options{})
	if !ok {
		t.Fatal("no path")
	}
	want := []traversal{{"A", false}, {"B", false}, {"C", false}}
	if diff := cmp.Diff(want, traversals(path)); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}
	if path.Length() != 30 {
		t.Errorf("Length() = %g", path.Length())
	}

	back, ok := find(t, n, "C", "A", Options{})
	if !ok {
		t.Fatal("no path back")
	}
	want = []traversal{{"C", true}, {"B", true}, {"A", true}}
	if diff := cmp.Diff(want, traversals(back)); diff != "" {
		t.Errorf("path back (-want +got):\n%s", diff)
	}
}

func TestRailFinderTurnBack(t *testing.T) {
	branch := rail.Data{
		ID:            "C",
		Start:         rail.Endpoint{Pos: geometry.Position{Z: 10}, Angle: geometry.AngleE},
		End:           rail.Endpoint{Pos: geometry.Position{X: 10}, Angle: geometry.AngleW},
		SpeedForward:  10,
		SpeedBackward: 10,
	}
	for _, turnBack := range []bool{false, true} {
		b := eastWest("B", 10, 20, 0, 10, 10)
		b.CanTurnBack = turnBack
		n := network(t, eastWest("A", 0, 10, 0, 10, 0), b, branch)
		path, ok := find(t, n, "A", "C", Options{})
		if ok != turnBack {
			t.Fatalf("turnBack=%t: found=%t", turnBack, ok)
		}
		if !ok {
			continue
		}
		want := []traversal{{"A", false}, {"B", false}, {"B", true}, {"C", true}}
		if diff := cmp.Diff(want, traversals(path)); diff != "" {
			t.Errorf("path (-want +got):\n%s", diff)
		}
	}
}

func TestRailFinderRespectsModeAndClosedDirections(t *testing.T) {
	b := eastWest("B", 10, 20, 0, 10, 10)
	b.Mode = rail.ModeBoat
	n := network(t, eastWest("A", 0, 10, 0, 10, 10), b, eastWest("C", 20, 30, 0, 10, 10))
	if _, ok := find(t, n, "A", "C", Options{Mode: rail.ModeTrain}); ok {
		t.Error("train path must not use a boat rail")
	}

	n = network(t, eastWest("A", 0, 10, 0, 10, 10), eastWest("B", 10, 20, 0, 0, 10), eastWest("C", 20, 30, 0, 10, 10))
	if _, ok := find(t, n, "A", "C", Options{}); ok {
		t.Error("B is closed eastbound")
	}
}

func TestRailFinderRemoteHop(t *testing.T) {
	r1 := eastWest("R1", 0, 100, 0, 50, 50)
	r1.CanConnectRemotely = true
	r2 := eastWest("R2", 1000, 1100, 0, 50, 50)
	r2.CanConnectRemotely = true
	n := network(t, r1, r2)

	path, ok := find(t, n, "R1", "R2", Options{RemoteSpeed: 60, MaxTurnArc: 32})
	if !ok {
		t.Fatal("no path")
	}
	want := []traversal{{"R1", false}, {"connector-2", false}, {"R2", false}}
	if diff := cmp.Diff(want, traversals(path)); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}
	if math.Abs(path.Length()-1100) > 1e-9 {
		t.Errorf("Length() = %g", path.Length())
	}
	if _, ok := find(t, n, "R1", "R2", Options{}); ok {
		t.Error("remote hops need a remote speed")
	}
}

func TestConnectorsTurnInSteps(t *testing.T) {
	from, to := geometry.Position{}, geometry.Position{Z: 500}
	opts := Options{RemoteSpeed: 20, MaxTurnArc: 32}
	path := Connectors("c", from, geometry.AngleE, to, geometry.AngleS, true, opts)
	if len(path) < 2 {
		t.Fatalf("expected turning pieces, got %d", len(path))
	}
	if path[0].From() != from || path[len(path)-1].To() != to {
		t.Errorf("path runs %s to %s", path[0].From(), path[len(path)-1].To())
	}
	for i, pd := range path {
		if i > 0 && pd.From() != path[i-1].To() {
			t.Errorf("piece %d starts at %s, previous ends at %s", i, pd.From(), path[i-1].To())
		}
		if i < len(path)-1 && pd.Length() > 1.1*opts.MaxTurnArc {
			t.Errorf("turn piece %d is %g long", i, pd.Length())
		}
		if !pd.Rail.IsValid() || pd.SpeedLimit() != 20 {
			t.Errorf("piece %d: valid=%t speed=%g", i, pd.Rail.IsValid(), pd.SpeedLimit())
		}
	}
	if err := path.Validate(); err != nil {
		t.Error(err)
	}
}

type countdown struct {
	steps int
	ok    bool
}

func (c *countdown) Step() bool {
	c.steps--
	return c.steps <= 0
}

func (c *countdown) Result() (rail.Path, bool) { return nil, c.ok }

func TestQueueRunsJobsInOrder(t *testing.T) {
	q := NewQueue(logger.Nop())
	var events []string
	q.Add("d1", &countdown{steps: 3}, func(rail.Path) { events = append(events, "d1 ok") }, func() { events = append(events, "d1 fail") })
	q.Add("d2", &countdown{steps: 1, ok: true}, func(rail.Path) { events = append(events, "d2 ok") }, func() { events = append(events, "d2 fail") })
	q.Add("d3", &countdown{steps: 1, ok: true}, func(rail.Path) { events = append(events, "d3 ok") }, nil)

	// a zero budget still makes one step per tick
	q.Tick(0)
	q.Tick(0)
	if len(events) != 0 {
		t.Fatalf("events after two steps: %v", events)
	}
	q.Tick(0)
	if diff := cmp.Diff([]string{"d1 fail"}, events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}

	q.Cancel("d3")
	q.Tick(time.Second)
	if diff := cmp.Diff([]string{"d1 fail", "d2 ok"}, events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d", q.Len())
	}
}

func TestRailFinderDirectionConstraints(t *testing.T) {
	n := network(t, eastWest("A", 0, 10, 0, 10, 10), eastWest("B", 10, 20, 0, 10, 10), eastWest("C", 20, 30, 0, 10, 10))
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"forward both", Options{StartDirection: Forward, GoalDirection: Forward}, true},
		{"start backward", Options{StartDirection: Backward}, false},
		{"goal backward", Options{GoalDirection: Backward}, false},
		{"either", Options{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := find(t, n, "A", "C", tt.opts)
			if ok != tt.ok {
				t.Errorf("found = %t, want %t", ok, tt.ok)
			}
		})
	}
	if DirectionOf(true) != Backward || DirectionOf(false) != Forward {
		t.Error("DirectionOf mismatch")
	}
}
