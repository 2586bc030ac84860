package pathfind

import (
	"fmt"

	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/rail"
)

// RailNode is a position reached by traversing from Prev. Origin is the virtual node
// before the start rail; Remote marks arrival by a remote hop rather than a rail.
type RailNode struct {
	Pos        geometry.Position
	Prev       geometry.Position
	Heading    geometry.Angle
	HasHeading bool
	Origin     bool
	Remote     bool
}

// Direction constrains which way a rail is traversed.
type Direction int

const (
	Either Direction = iota
	Forward
	Backward
)

func (d Direction) allows(reversed bool) bool {
	switch d {
	case Forward:
		return !reversed
	case Backward:
		return reversed
	}
	return true
}

// DirectionOf is the constraint that repeats a traversal.
func DirectionOf(reversed bool) Direction {
	if reversed {
		return Backward
	}
	return Forward
}

// Options tune a rail search. StartDirection and GoalDirection restrict how the start
// and goal rails may be traversed.
type Options struct {
	Mode           rail.TransportMode
	RemoteSpeed    float64 // m/s
	MaxTurnArc     float64 // metres
	StartDirection Direction
	GoalDirection  Direction
}

// railGraph adapts a synced network to Graph. Goal is any traversal of the goal rail.
type railGraph struct {
	network  *rail.Network
	from, to *rail.Rail
	opts     Options
	target   geometry.Vec3
	remote   []geometry.Position
}

func (g *railGraph) Edges(n RailNode) []Edge[RailNode] {
	if n.Origin {
		var out []Edge[RailNode]
		for _, end := range []geometry.Position{g.from.Start.Pos, g.from.End.Pos} {
			if !g.opts.StartDirection.allows(g.from.ReversedFrom(end)) {
				continue
			}
			if e, ok := g.traverse(g.from, end); ok {
				out = append(out, e)
			}
		}
		return out
	}

	var arrived *rail.Rail
	if !n.Remote {
		arrived, _ = g.network.RailBetween(n.Prev, n.Pos)
	}
	var out []Edge[RailNode]
	for _, nb := range g.network.Neighbours(n.Pos) {
		leave, _ := nb.Rail.Headings(n.Pos)
		turnBack := arrived != nil && arrived.CanTurnBack && leave == n.Heading.Opposite()
		if n.HasHeading && leave != n.Heading && !turnBack {
			continue
		}
		if e, ok := g.traverse(nb.Rail, n.Pos); ok {
			out = append(out, e)
		}
	}
	if arrived != nil && arrived.CanConnectRemotely && g.opts.RemoteSpeed > 0 {
		for _, p := range g.remote {
			if p == n.Pos {
				continue
			}
			if _, direct := g.network.RailBetween(n.Pos, p); direct {
				continue
			}
			out = append(out, Edge[RailNode]{
				Node:     RailNode{Pos: p, Prev: n.Pos, Remote: true},
				Duration: n.Pos.Distance(p) / g.opts.RemoteSpeed,
			})
		}
	}
	return out
}

// traverse is the move along r leaving from.
func (g *railGraph) traverse(r *rail.Rail, from geometry.Position) (Edge[RailNode], bool) {
	if !r.IsValid() || (g.opts.Mode != "" && r.Mode != g.opts.Mode) {
		return Edge[RailNode]{}, false
	}
	speed := r.SpeedLimit(r.ReversedFrom(from))
	if speed <= 0 {
		return Edge[RailNode]{}, false
	}
	_, arrive := r.Headings(from)
	return Edge[RailNode]{
		Node:     RailNode{Pos: r.Other(from), Prev: from, Heading: arrive, HasHeading: true},
		Duration: r.Length() / speed,
	}, true
}

func (g *railGraph) Remaining(n RailNode) float64 {
	if n.Origin {
		return g.from.Geometry().PositionAt(g.from.Length()/2, false).Distance(g.target)
	}
	return n.Pos.Vec().Distance(g.target)
}

func (g *railGraph) IsGoal(n RailNode) bool {
	if n.Origin || n.Remote {
		return false
	}
	r, ok := g.network.RailBetween(n.Prev, n.Pos)
	return ok && r == g.to && g.opts.GoalDirection.allows(r.ReversedFrom(n.Prev))
}

// RailFinder searches from one rail to another. The resulting path traverses both
// the start and the goal rail.
type RailFinder struct {
	*Finder[RailNode]
	graph *railGraph
}

// NewRailFinder prepares a search over a synced network.
func NewRailFinder(network *rail.Network, from, to *rail.Rail, opts Options) *RailFinder {
	g := &railGraph{
		network: network,
		from:    from,
		to:      to,
		opts:    opts,
		target:  to.Geometry().PositionAt(to.Length()/2, false),
		remote:  network.RemoteEnds(),
	}
	return &RailFinder{Finder: NewFinder[RailNode](g, RailNode{Origin: true}), graph: g}
}

// Result converts the best node sequence into a path. It reports false until the
// search is done, or when no path exists.
func (f *RailFinder) Result() (rail.Path, bool) {
	if !f.Done() || !f.Found() {
		return nil, false
	}
	nodes, _ := f.Best()
	path, err := f.graph.toPath(nodes)
	if err != nil {
		return nil, false
	}
	return path, true
}

// toPath looks up the rail behind each node and bridges remote hops with connectors.
func (g *railGraph) toPath(nodes []RailNode) (rail.Path, error) {
	var path rail.Path
	for i := 1; i < len(nodes); i++ {
		n := nodes[i]
		if !n.Remote {
			r, ok := g.network.RailBetween(n.Prev, n.Pos)
			if !ok {
				return nil, fmt.Errorf("%w: between %s and %s", rail.ErrRailNotFound, n.Prev, n.Pos)
			}
			path = path.Append(r, r.ReversedFrom(n.Prev))
			continue
		}
		prev := nodes[i-1]
		// arrive heading for the connector: the way the next rail leaves
		arrive, known := geometry.AngleE, false
		if i+1 < len(nodes) && !nodes[i+1].Remote {
			if r, ok := g.network.RailBetween(nodes[i+1].Prev, nodes[i+1].Pos); ok {
				arrive, _ = r.Headings(n.Pos)
				known = true
			}
		}
		path = path.Concat(Connectors(fmt.Sprintf("connector-%d", i), prev.Pos, prev.Heading, n.Pos, arrive, known, g.opts))
	}
	return path, path.Validate()
}
