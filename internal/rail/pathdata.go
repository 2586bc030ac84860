package rail

import (
	"fmt"
	"sort"

	"github.com/cxd309/railsim/internal/geometry"
)

// NoStop marks a path element with no platform stop.
const NoStop = -1

// PathData is one traversal of a rail inside a generated path. Distances are measured
// from the start of the whole path, in metres.
type PathData struct {
	Rail          *Rail   `json:"-"`
	RailID        string  `json:"rail_id"`
	Reversed      bool    `json:"reversed"`
	StartDistance float64 `json:"start_distance"`
	EndDistance   float64 `json:"end_distance"`
	DwellMillis   int64   `json:"dwell_millis"`
	StopIndex     int     `json:"stop_index"`
}

// NewPathData places a traversal of r starting at startDistance.
func NewPathData(r *Rail, reversed bool, startDistance float64) PathData {
	return PathData{
		Rail:          r,
		RailID:        r.ID,
		Reversed:      reversed,
		StartDistance: startDistance,
		EndDistance:   startDistance + r.Length(),
		StopIndex:     NoStop,
	}
}

// Length of the traversal in metres.
func (p PathData) Length() float64 { return p.EndDistance - p.StartDistance }

// SpeedLimit applies the rail's limit for the traversal direction.
func (p PathData) SpeedLimit() float64 { return p.Rail.SpeedLimit(p.Reversed) }

// From is the position the traversal starts at.
func (p PathData) From() geometry.Position {
	if p.Reversed {
		return p.Rail.End.Pos
	}
	return p.Rail.Start.Pos
}

// To is the position the traversal ends at.
func (p PathData) To() geometry.Position { return p.Rail.Other(p.From()) }

// IsStop reports whether a vehicle stops at the end of this traversal.
func (p PathData) IsStop() bool { return p.StopIndex != NoStop }

// Path is an ordered sequence of traversals with non-decreasing distances.
type Path []PathData

// Append adds a traversal of r at the end of the path.
func (p Path) Append(r *Rail, reversed bool) Path {
	return append(p, NewPathData(r, reversed, p.Length()))
}

// Concat appends other, shifting its distances to follow p.
func (p Path) Concat(other Path) Path {
	offset := p.Length()
	if len(other) > 0 {
		offset -= other[0].StartDistance
	}
	out := make(Path, len(p), len(p)+len(other))
	copy(out, p)
	for _, pd := range other {
		pd.StartDistance += offset
		pd.EndDistance += offset
		out = append(out, pd)
	}
	return out
}

// Length is the end distance of the last traversal.
func (p Path) Length() float64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].EndDistance
}

// IndexAt returns the index of the traversal containing distance. Distances past the
// end map to the last traversal.
func (p Path) IndexAt(distance float64) int {
	i := sort.Search(len(p), func(i int) bool { return p[i].EndDistance > distance })
	if i == len(p) {
		return len(p) - 1
	}
	return i
}

// PositionAt returns the world position at distance along the path.
func (p Path) PositionAt(distance float64) geometry.Vec3 {
	if len(p) == 0 {
		return geometry.Vec3{}
	}
	pd := p[p.IndexAt(distance)]
	return pd.Rail.Geometry().PositionAt(distance-pd.StartDistance, pd.Reversed)
}

// Validate checks that traversals are contiguous and their distances never decrease.
func (p Path) Validate() error {
	for i, pd := range p {
		if pd.EndDistance < pd.StartDistance {
			return fmt.Errorf("path element %d (%s) ends before it starts", i, pd.RailID)
		}
		if i > 0 && pd.StartDistance < p[i-1].EndDistance {
			return fmt.Errorf("path element %d (%s) starts before element %d ends", i, pd.RailID, i-1)
		}
	}
	return nil
}
