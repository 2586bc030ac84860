package pathfind

import (
	"fmt"
	"math"

	"github.com/cxd309/railsim/internal/geometry"
	"github.com/cxd309/railsim/internal/rail"
)

const defaultMaxTurnArc = 32 // metres

// Connectors bridges a gap with rails that exist only inside the returned path.
// Leaving from with heading, it first turns toward to in 22.5 degree steps whose arcs
// are at most opts.MaxTurnArc long, then joins to with one last connector arriving
// along arrive (or straight on when arriveKnown is false). Any piece whose rounded
// endpoints cannot be fitted becomes a straight.
func Connectors(prefix string, from geometry.Position, heading geometry.Angle, to geometry.Position, arrive geometry.Angle, arriveKnown bool, opts Options) rail.Path {
	maxArc := opts.MaxTurnArc
	if maxArc <= 0 {
		maxArc = defaultMaxTurnArc
	}
	const turn = math.Pi / 8
	chord := 2 * (maxArc / turn) * math.Sin(turn/2)

	var path rail.Path
	cur := from
	for i := range 8 {
		dx, dz := float64(to.X-cur.X), float64(to.Z-cur.Z)
		if math.Hypot(dx, dz) < 2*chord {
			break
		}
		steps := heading.Steps(geometry.AngleFromVector(dx, dz))
		if steps == 0 {
			break
		}
		sign, next := 1.0, heading.Add(1)
		if steps < 0 {
			sign, next = -1, heading.Sub(1)
		}
		mid := heading.Radians() + sign*turn/2
		end := geometry.Vec3{
			X: float64(cur.X) + chord*math.Cos(mid),
			Y: float64(cur.Y),
			Z: float64(cur.Z) + chord*math.Sin(mid),
		}.Round()
		if end != cur {
			c := rail.NewConnector(fmt.Sprintf("%s-%d", prefix, i), rail.Endpoint{Pos: cur, Angle: heading}, rail.Endpoint{Pos: end, Angle: next.Opposite()}, opts.RemoteSpeed, opts.Mode)
			path = path.Append(c, c.ReversedFrom(cur))
			cur = end
		}
		heading = next
	}
	if cur != to {
		if !arriveKnown {
			arrive = geometry.AngleFromVector(float64(to.X-cur.X), float64(to.Z-cur.Z))
		}
		c := rail.NewConnector(prefix, rail.Endpoint{Pos: cur, Angle: heading}, rail.Endpoint{Pos: to, Angle: arrive.Opposite()}, opts.RemoteSpeed, opts.Mode)
		path = path.Append(c, c.ReversedFrom(cur))
	}
	return path
}
