package siding

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/kinematics"
	"github.com/cxd309/railsim/internal/rail"
	"github.com/cxd309/railsim/internal/vehicle"
)

type seg struct {
	id         string
	length     int64
	speed      float64
	accelerate bool
	colors     []string
}

func line(t *testing.T, segs ...seg) (*rail.Network, rail.Path) {
	t.Helper()
	var data []rail.Data
	var x int64
	for _, s := range segs {
		data = append(data, rail.Data{
			ID:            s.id,
			Start:         rail.Endpoint{Pos: geometry.Position{X: x}, Angle: geometry.AngleE},
			End:           rail.Endpoint{Pos: geometry.Position{X: x + s.length}, Angle: geometry.AngleW},
			SpeedForward:  s.speed,
			SpeedBackward: s.speed,
			CanAccelerate: s.accelerate,
			Colors:        s.colors,
		})
		x += s.length
	}
	n, err := rail.NewNetwork(data)
	if err != nil {
		t.Fatal(err)
	}
	var path rail.Path
	for _, d := range data {
		r, err := n.Rail(d.ID)
		if err != nil {
			t.Fatal(err)
		}
		path = path.Append(r, false)
	}
	return n, path
}

// station is siding S, a main line M and a terminating platform P with a 10 s dwell.
func station(t *testing.T, accelerate bool) (*rail.Network, rail.Path) {
	n, path := line(t,
		seg{"S", 50, 20, accelerate, nil},
		seg{"M", 200, 20, accelerate, []string{"red"}},
		seg{"P", 100, 20, accelerate, nil},
	)
	path[2].StopIndex, path[2].DwellMillis = 0, 10000
	return n, path
}

func newSiding(t *testing.T, n *rail.Network, maxVehicles int) *Siding {
	t.Helper()
	s, err := New(Data{
		ID:            "s1",
		RailID:        "S",
		MaxVehicles:   maxVehicles,
		VehicleLength: 20,
		Motion:        kinematics.Spec{Acceleration: 1, Deceleration: 1, MaxSpeed: 20},
	}, Env{DepotID: "d1", Network: n, DoorMillis: 2000})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		data Data
	}{
		{"no id", Data{VehicleLength: 10, Motion: kinematics.Spec{Acceleration: 1, Deceleration: 1, MaxSpeed: 1}}},
		{"no length", Data{ID: "s", Motion: kinematics.Spec{Acceleration: 1, Deceleration: 1, MaxSpeed: 1}}},
		{"bad motion", Data{ID: "s", VehicleLength: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.data, Env{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProfileAndStopTimes(t *testing.T) {
	n, path := station(t, true)
	s := newSiding(t, n, 2)
	if err := s.SetPath(path, vehicle.NoRepeat, vehicle.NoRepeat); err != nil {
		t.Fatal(err)
	}
	stops := s.StopTimes()
	if len(stops) != 1 {
		t.Fatalf("stops = %+v", stops)
	}
	st := stops[0]
	if st.PathIndex != 2 || st.StopIndex != 0 {
		t.Errorf("stop = %+v", st)
	}
	// 330 m from a standing start to a standstill at 1 m/s² each way
	if st.ArrivalOffset < 36000 || st.ArrivalOffset > 37000 {
		t.Errorf("arrival offset = %d ms", st.ArrivalOffset)
	}
	if st.DepartureOffset-st.ArrivalOffset != 10000 {
		t.Errorf("dwell = %d ms", st.DepartureOffset-st.ArrivalOffset)
	}
	if s.RoundTripMillis() != st.DepartureOffset {
		t.Errorf("round trip = %d, want %d", s.RoundTripMillis(), st.DepartureOffset)
	}
	if s.LeadMillis() != st.DepartureOffset {
		t.Errorf("lead = %d", s.LeadMillis())
	}

	prof := s.Profile()
	if math.Abs(prof.Distance()-330) > 1e-3 {
		t.Errorf("profile covers %g m, want 330", prof.Distance())
	}
	prevTime := -1.0
	for d := 0.0; d <= prof.Distance(); d += 1 {
		tm := prof.TimeAt(d)
		if tm < prevTime {
			t.Fatalf("TimeAt decreases at %g m", d)
		}
		prevTime = tm
	}
	for tm := 0.0; tm <= prof.Duration(); tm += 0.25 {
		if v := prof.SpeedAt(tm); v > 20+1e-9 {
			t.Fatalf("speed %g above the limit at %g s", v, tm)
		}
	}
}

func TestProfileWithoutAcceleration(t *testing.T) {
	n, path := station(t, false)
	s := newSiding(t, n, -1)
	if err := s.SetPath(path, vehicle.NoRepeat, vehicle.NoRepeat); err != nil {
		t.Fatal(err)
	}
	// runs at the limit at once and only brakes for the stop
	if got := s.StopTimes()[0].ArrivalOffset; got > 30000 {
		t.Errorf("arrival offset = %d ms", got)
	}
}

func TestProfileStuckOnZeroLimit(t *testing.T) {
	n, path := line(t, seg{"S", 50, 20, true, nil}, seg{"M", 100, 0, true, nil})
	s := newSiding(t, n, -1)
	if err := s.SetPath(path, vehicle.NoRepeat, vehicle.NoRepeat); err == nil {
		t.Fatal("expected error for a rail with no speed")
	}
	if s.Ready() {
		t.Error("failed siding should not be ready")
	}
}

func TestSetPathRejects(t *testing.T) {
	n, path := station(t, true)
	s := newSiding(t, n, -1)
	if err := s.SetPath(nil, vehicle.NoRepeat, vehicle.NoRepeat); err != ErrNoPath {
		t.Errorf("empty path err = %v", err)
	}
	if err := s.SetPath(path, 2, 1); err == nil {
		t.Error("bad repeat indices accepted")
	}
}

func TestLoopingProfile(t *testing.T) {
	n, path := line(t, seg{"S", 50, 20, true, nil}, seg{"P", 100, 20, true, nil}, seg{"M", 200, 20, true, nil})
	p, _ := n.Rail("P")
	path = path.Append(p, false)
	path[1].StopIndex, path[1].DwellMillis = 0, 1000
	path[3].StopIndex, path[3].DwellMillis = 1, 1000
	s := newSiding(t, n, 1)
	if err := s.SetPath(path, 1, 3); err != nil {
		t.Fatal(err)
	}
	if !s.RepeatInfinitely() {
		t.Fatal("path should loop")
	}
	stops := s.StopTimes()
	if len(stops) != 2 {
		t.Fatalf("stops = %+v", stops)
	}
	if want := stops[1].DepartureOffset - stops[0].DepartureOffset; s.RoundTripMillis() != want {
		t.Errorf("lap = %d, want %d", s.RoundTripMillis(), want)
	}
	// looping sidings take every departure
	for _, dep := range []int64{0, 10, 20} {
		if !s.AddDeparture(dep) {
			t.Errorf("departure %d rejected", dep)
		}
	}
}

func TestAddDepartureHeadway(t *testing.T) {
	n, path := station(t, true)
	tests := []struct {
		name        string
		maxVehicles int
		offers      func(rt int64) []int64
		want        func(rt int64) []int64
	}{
		{
			name:        "one vehicle waits a full round trip",
			maxVehicles: 1,
			offers:      func(rt int64) []int64 { return []int64{0, rt / 2, rt - 1, rt, 2*rt - 1, 2 * rt} },
			want:        func(rt int64) []int64 { return []int64{0, rt, 2 * rt} },
		},
		{
			name:        "more vehicles keep the round trip headway",
			maxVehicles: 2,
			offers:      func(rt int64) []int64 { return []int64{0, 1, rt / 2, rt, rt + 1, 2*rt + 5} },
			want:        func(rt int64) []int64 { return []int64{0, rt, 2*rt + 5} },
		},
		{
			name:        "unlimited",
			maxVehicles: -1,
			offers:      func(rt int64) []int64 { return []int64{0, 1, 2} },
			want:        func(rt int64) []int64 { return []int64{0, 1, 2} },
		},
		{
			name:        "no vehicles",
			maxVehicles: 0,
			offers:      func(rt int64) []int64 { return []int64{0, rt} },
			want:        func(rt int64) []int64 { return nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSiding(t, n, tt.maxVehicles)
			if err := s.SetPath(path, vehicle.NoRepeat, vehicle.NoRepeat); err != nil {
				t.Fatal(err)
			}
			rt := s.RoundTripMillis()
			for _, dep := range tt.offers(rt) {
				s.AddDeparture(dep)
			}
			if diff := cmp.Diff(tt.want(rt), s.Departures()); diff != "" {
				t.Errorf("departures (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddDepartureWithoutPath(t *testing.T) {
	n, _ := station(t, true)
	if newSiding(t, n, -1).AddDeparture(0) {
		t.Error("siding without a path accepted a departure")
	}
}

func TestDue(t *testing.T) {
	tests := []struct {
		lastChecked, tod, t int64
		want                bool
	}{
		{-1, 0, 0, true},
		{100, 200, 150, true},
		{100, 200, 100, false},
		{100, 200, 200, true},
		{100, 200, 250, false},
		{900, 50, 950, true},
		{900, 50, 20, true},
		{900, 50, 500, false},
	}
	for _, tt := range tests {
		s := &Siding{lastChecked: tt.lastChecked}
		if got := s.due(tt.t, tt.tod); got != tt.want {
			t.Errorf("due(%d) in (%d, %d] = %t, want %t", tt.t, tt.lastChecked, tt.tod, got, tt.want)
		}
	}
}

func TestTickSpawnsRunsAndRemovesVehicles(t *testing.T) {
	n, path := station(t, true)
	s := newSiding(t, n, 1)
	if err := s.SetPath(path, vehicle.NoRepeat, vehicle.NoRepeat); err != nil {
		t.Fatal(err)
	}
	const day = 24 * 60 * 60 * 1000
	dep := s.LeadMillis() + 1000
	if !s.AddDeparture(dep) {
		t.Fatal("departure rejected")
	}
	m, _ := n.Rail("M")

	var now int64
	spawned := false
	for ; now < 120000; now += 50 {
		n.TickReservations()
		s.Tick(now, 0.05, day)
		switch {
		case now < 1000 && len(s.Vehicles()) != 0:
			t.Fatalf("vehicle spawned early at %d", now)
		case now == 1000 && len(s.Vehicles()) != 1:
			t.Fatalf("no vehicle at %d", now)
		}
		if len(s.Vehicles()) == 1 {
			spawned = true
			if s.Vehicles()[0].DepartureIndex() != 0 {
				t.Errorf("departure index = %d", s.Vehicles()[0].DepartureIndex())
			}
		}
		if spawned && len(s.Vehicles()) == 0 {
			break
		}
	}
	if !spawned || len(s.Vehicles()) != 0 {
		t.Fatalf("vehicle lifecycle incomplete at %d ms (spawned=%t, live=%d)", now, spawned, len(s.Vehicles()))
	}
	if _, held := m.Holder("red"); held {
		t.Error("finished vehicle still holds the block")
	}
}

func TestTickRespectsVehicleLimit(t *testing.T) {
	n, path := station(t, true)
	s := newSiding(t, n, 1)
	if err := s.SetPath(path, vehicle.NoRepeat, vehicle.NoRepeat); err != nil {
		t.Fatal(err)
	}
	lead := s.LeadMillis()
	// bypass the headway check to force two due departures
	s.departures = []int64{lead, lead}
	s.Tick(0, 0.05, 24*60*60*1000)
	if len(s.Vehicles()) != 1 {
		t.Errorf("live vehicles = %d, want 1", len(s.Vehicles()))
	}
	s.Clear()
	if len(s.Vehicles()) != 0 {
		t.Error("Clear left vehicles")
	}
}
