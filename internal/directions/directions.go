// Package directions plans journeys between two positions with a connection scan over
// scheduled rides, time-independent hops (walking between nearby platforms and
// continuous-movement rides) and walks at either end. Graph building, ride prefetch
// and scanning are resumable steps run within a wall-clock budget each tick.
package directions

import (
	"math"
	"time"

	"github.com/cxd309/railsim/internal/config"
	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/logger"
	"github.com/cxd309/railsim/internal/transit"
)

// RideSource supplies vehicle rides, typically a depot.
type RideSource interface {
	Rides(from, to int64) []transit.Ride
	IndependentRides() []transit.Ride
}

// Segment is one leg of a journey. Walking legs have no route; the first and last
// walks have no platform at the open end.
type Segment struct {
	RouteID         string  `json:"route_id,omitempty"`
	FromPlatformID  string  `json:"from_platform_id,omitempty"`
	ToPlatformID    string  `json:"to_platform_id,omitempty"`
	DepartureMillis int64   `json:"departure"`
	ArrivalMillis   int64   `json:"arrival"`
	WalkingDistance float64 `json:"walking_distance,omitempty"` // metres
}

// IsRide reports whether the leg is on a vehicle.
func (s Segment) IsRide() bool { return s.RouteID != "" }

// Request asks for the earliest journey leaving Start at StartMillis. Callback
// receives the legs in order, or nil when the destination cannot be reached within
// the planning horizon.
type Request struct {
	Start       geometry.Position
	End         geometry.Position
	StartMillis int64
	Callback    func([]Segment)
}

// Engine queues requests and works through them a step at a time.
type Engine struct {
	store   *transit.Store
	sources func() []RideSource
	cfg     config.SimulationConfig
	log     logger.Logger
	now     func() time.Time

	graph    *graph
	building *graphBuild
	requests []*scan
}

// New returns an engine reading platforms from store and rides from sources, which
// is called whenever the graph or a request needs the current set.
func New(store *transit.Store, sources func() []RideSource, cfg config.SimulationConfig, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{store: store, sources: sources, cfg: cfg, log: log.With("component", "directions"), now: time.Now}
	e.Invalidate()
	return e
}

// Invalidate schedules a graph rebuild; requests in flight restart once it is done.
func (e *Engine) Invalidate() {
	e.graph = nil
	e.building = newGraphBuild(e.store.Platforms(), e.sources(), e.cfg)
	for _, s := range e.requests {
		s.reset()
	}
}

// AddRequest queues a journey request.
func (e *Engine) AddRequest(start, end geometry.Position, startMillis int64, callback func([]Segment)) {
	e.requests = append(e.requests, newScan(Request{Start: start, End: end, StartMillis: startMillis, Callback: callback}))
}

// Pending is the number of unanswered requests.
func (e *Engine) Pending() int { return len(e.requests) }

// Tick spends up to budget building the graph and then scanning queued requests in
// order. At least one step is taken when there is work.
func (e *Engine) Tick(budget time.Duration) {
	deadline := e.now().Add(budget)
	for stepped := false; !stepped || e.now().Before(deadline); stepped = true {
		switch {
		case e.graph == nil:
			if e.building.step() {
				e.graph = e.building.result()
				e.building = nil
				e.log.Debug("directions graph built", "platforms", len(e.graph.platforms))
			}
		case len(e.requests) > 0:
			s := e.requests[0]
			if s.step(e) {
				e.requests = e.requests[1:]
				if s.req.Callback != nil {
					s.req.Callback(s.journey)
				}
			}
		default:
			return
		}
	}
}

func (e *Engine) walkMillis(distance float64) int64 {
	return int64(math.Ceil(distance / e.cfg.WalkingSpeed * 1000))
}

// edge is a time-independent hop out of a platform.
type edge struct {
	to       string
	routeID  string
	duration int64
	distance float64
}

// graph is the time-independent part of the network.
type graph struct {
	platforms map[string]*transit.Platform
	edges     map[string][]edge
}

type cell struct{ x, z int64 }

// graphBuild indexes platforms into a grid of cells as wide as the walking radius,
// then adds the walks to every platform within reach, then the independent rides.
type graphBuild struct {
	cfg       config.SimulationConfig
	platforms []*transit.Platform
	sources   []RideSource
	grid      map[cell][]*transit.Platform
	g         *graph
	phase     int
	i         int
}

func newGraphBuild(platforms []*transit.Platform, sources []RideSource, cfg config.SimulationConfig) *graphBuild {
	b := &graphBuild{
		cfg:       cfg,
		platforms: platforms,
		sources:   sources,
		grid:      make(map[cell][]*transit.Platform),
		g:         &graph{platforms: make(map[string]*transit.Platform), edges: make(map[string][]edge)},
	}
	return b
}

func (b *graphBuild) cellOf(p geometry.Position) cell {
	size := int64(math.Max(1, b.cfg.MaxWalkingDistance))
	return cell{floorDiv(p.X, size), floorDiv(p.Z, size)}
}

// step does one unit of work and reports whether the graph is complete.
func (b *graphBuild) step() bool {
	switch b.phase {
	case 0:
		if b.i < len(b.platforms) {
			p := b.platforms[b.i]
			b.g.platforms[p.ID] = p
			c := b.cellOf(p.Position)
			b.grid[c] = append(b.grid[c], p)
			b.i++
			return false
		}
		b.phase, b.i = 1, 0
	case 1:
		if b.i < len(b.platforms) {
			b.addWalks(b.platforms[b.i])
			b.i++
			return false
		}
		b.phase, b.i = 2, 0
	case 2:
		if b.i < len(b.sources) {
			for _, r := range b.sources[b.i].IndependentRides() {
				b.g.edges[r.FromPlatformID] = append(b.g.edges[r.FromPlatformID], edge{to: r.ToPlatformID, routeID: r.RouteID, duration: r.Duration()})
			}
			b.i++
			return false
		}
		b.phase = 3
	}
	return b.phase == 3
}

func (b *graphBuild) addWalks(p *transit.Platform) {
	c := b.cellOf(p.Position)
	for dx := int64(-1); dx <= 1; dx++ {
		for dz := int64(-1); dz <= 1; dz++ {
			for _, q := range b.grid[cell{c.x + dx, c.z + dz}] {
				if q == p {
					continue
				}
				d := p.Position.Distance(q.Position)
				if d > b.cfg.MaxWalkingDistance {
					continue
				}
				b.g.edges[p.ID] = append(b.g.edges[p.ID], edge{
					to:       q.ID,
					duration: int64(math.Ceil(d / b.cfg.WalkingSpeed * 1000)),
					distance: d,
				})
			}
		}
	}
}

func (b *graphBuild) result() *graph { return b.g }

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
