package rail

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/cxd309/railsim/internal/geometry"
)

// Neighbour is a rail leaving a position together with its far end.
type Neighbour struct {
	To   geometry.Position
	Rail *Rail
}

// Network owns the rails of one world and the position adjacency derived from them.
// The adjacency only changes on Sync; pathfinding and reservation treat it as
// read-only in between.
type Network struct {
	rails     map[string]*Rail
	adjacency map[geometry.Position]map[geometry.Position]*Rail
	version   int
	dirty     bool
}

// NewNetwork builds a network from rail data and syncs it.
func NewNetwork(data []Data) (*Network, error) {
	n := &Network{rails: make(map[string]*Rail)}
	for _, d := range data {
		r, err := New(d)
		if err != nil {
			return nil, err
		}
		if err := n.Add(r); err != nil {
			return nil, err
		}
	}
	n.Sync()
	return n, nil
}

// Add inserts r. Returns an error if its id is taken or another rail already joins
// the same two positions.
func (n *Network) Add(r *Rail) error {
	if _, exists := n.rails[r.ID]; exists {
		return fmt.Errorf("rail %q already exists", r.ID)
	}
	for _, o := range n.rails {
		if o.Start.Pos == r.Start.Pos && o.End.Pos == r.End.Pos {
			return fmt.Errorf("rail %q duplicates %q between %s and %s", r.ID, o.ID, r.Start.Pos, r.End.Pos)
		}
	}
	n.rails[r.ID] = r
	n.dirty = true
	return nil
}

// Remove deletes the rail with the given id.
func (n *Network) Remove(id string) error {
	if _, ok := n.rails[id]; !ok {
		return fmt.Errorf("%w: %q", ErrRailNotFound, id)
	}
	delete(n.rails, id)
	n.dirty = true
	return nil
}

// Rail looks up a rail by id.
func (n *Network) Rail(id string) (*Rail, error) {
	r, ok := n.rails[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRailNotFound, id)
	}
	return r, nil
}

// Rails returns every rail ordered by id.
func (n *Network) Rails() []*Rail {
	ids := slices.Sorted(maps.Keys(n.rails))
	out := make([]*Rail, len(ids))
	for i, id := range ids {
		out[i] = n.rails[id]
	}
	return out
}

// Dirty reports whether rails changed since the last sync.
func (n *Network) Dirty() bool { return n.dirty }

// Version increases on every sync that changed the rail set.
func (n *Network) Version() int { return n.version }

// Sync rebuilds the position adjacency and each rail's connected cache.
func (n *Network) Sync() {
	adj := make(map[geometry.Position]map[geometry.Position]*Rail)
	link := func(a, b geometry.Position, r *Rail) {
		if adj[a] == nil {
			adj[a] = make(map[geometry.Position]*Rail)
		}
		adj[a][b] = r
	}
	for _, r := range n.rails {
		link(r.Start.Pos, r.End.Pos, r)
		link(r.End.Pos, r.Start.Pos, r)
	}
	for _, r := range n.Rails() {
		r.connected = r.connected[:0]
		for _, pos := range []geometry.Position{r.Start.Pos, r.End.Pos} {
			for _, nb := range sortedNeighbours(adj[pos]) {
				if nb.Rail != r && !slices.Contains(r.connected, nb.Rail) {
					r.connected = append(r.connected, nb.Rail)
				}
			}
		}
	}
	n.adjacency = adj
	if n.dirty {
		n.version++
	}
	n.dirty = false
}

// Neighbours returns the rails leaving pos ordered by their far end.
func (n *Network) Neighbours(pos geometry.Position) []Neighbour {
	return sortedNeighbours(n.adjacency[pos])
}

// RailBetween returns the rail joining a and b.
func (n *Network) RailBetween(a, b geometry.Position) (*Rail, bool) {
	r, ok := n.adjacency[a][b]
	return r, ok
}

// RemoteEnds returns every end of a rail that allows remote connections, in position
// order.
func (n *Network) RemoteEnds() []geometry.Position {
	var out []geometry.Position
	for _, r := range n.rails {
		if !r.CanConnectRemotely {
			continue
		}
		for _, p := range []geometry.Position{r.Start.Pos, r.End.Pos} {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	slices.SortFunc(out, geometry.Position.Compare)
	return out
}

// TickReservations starts a new reservation generation on every rail.
func (n *Network) TickReservations() {
	for _, r := range n.rails {
		r.rotate()
	}
}

// Release drops every reservation held by vehicle.
func (n *Network) Release(vehicle uuid.UUID) {
	for _, r := range n.rails {
		r.release(vehicle)
	}
}

func sortedNeighbours(m map[geometry.Position]*Rail) []Neighbour {
	out := make([]Neighbour, 0, len(m))
	for to, r := range m {
		out = append(out, Neighbour{To: to, Rail: r})
	}
	slices.SortFunc(out, func(a, b Neighbour) int {
		return cmp.Or(a.To.Compare(b.To), cmp.Compare(a.Rail.ID, b.Rail.ID))
	})
	return out
}
