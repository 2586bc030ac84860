package geometry

import (
	"math"
)

// Shape selects the vertical profile of a rail. The horizontal centreline is always
// fitted from straights and circular arcs.
type Shape string

const (
	// ShapeQuadratic is a constant grade with parabolic vertical curves of the rail's
	// vertical radius at both ends (a plain linear grade when the radius is zero).
	ShapeQuadratic Shape = "quadratic"
	// ShapeTwoRadii is two equal circular vertical curves meeting at the midpoint.
	ShapeTwoRadii Shape = "two_radii"
	// ShapeCable is a straight chord with a parabolic sag, for cable cars.
	ShapeCable Shape = "cable"
)

// cableSagRatio is the sag of a cable at its midpoint as a fraction of its length.
const cableSagRatio = 0.04

const epsilon = 1e-4

// piece is one straight or arc of a fitted centreline.
//
// A straight starts at (h,k) and runs along dir. An arc has centre (h,k) and radius
// r; its angle at parameter t is a0 + sign*t/r. In both cases t is arc length and
// runs from 0 to length.
type piece struct {
	arc    bool
	h, k   float64
	r      float64
	a0     float64
	sign   float64
	dir    flat
	length float64
}

func (p piece) at(t float64) flat {
	if p.arc {
		a := p.a0 + p.sign*t/p.r
		return flat{p.h + p.r*math.Cos(a), p.k + p.r*math.Sin(a)}
	}
	return flat{p.h + p.dir.x*t, p.k + p.dir.z*t}
}

func (p piece) tangent(t float64) flat {
	if p.arc {
		a := p.a0 + p.sign*t/p.r
		return flat{-math.Sin(a), math.Cos(a)}.scale(p.sign)
	}
	return p.dir
}

func straightPiece(from, dir flat, length float64) piece {
	return piece{h: from.x, k: from.z, dir: dir, length: length}
}

// arcPiece builds the arc leaving from along dir that passes through to.
func arcPiece(from, dir, to flat) (piece, bool) {
	q := to.sub(from)
	fwd := dir.dot(q)
	side := dir.cross(q)
	if math.Abs(side) < epsilon {
		return piece{}, false
	}
	rs := (fwd*fwd + side*side) / (2 * side)
	c := from.add(dir.normal().scale(rs))
	sign := 1.0
	if side < 0 {
		sign = -1
	}
	a0 := math.Atan2(from.z-c.z, from.x-c.x)
	a1 := math.Atan2(to.z-c.z, to.x-c.x)
	sweep := math.Mod(sign*(a1-a0), 2*math.Pi)
	if sweep < 0 {
		sweep += 2 * math.Pi
	}
	r := math.Abs(rs)
	return piece{arc: true, h: c.x, k: c.z, r: r, a0: a0, sign: sign, length: r * sweep}, true
}

// Geometry is the fitted centreline of a rail between two oriented endpoints.
// The zero value and any unresolvable fit are invalid: length zero, every position
// at the start point.
type Geometry struct {
	start, end     Position
	shape          Shape
	verticalRadius float64
	pieces         []piece
	length         float64
}

// Fit fits the centreline from start to end. Each endpoint angle points from the
// endpoint into the rail, so a straight rail running east has startAngle E and
// endAngle W.
func Fit(start Position, startAngle Angle, end Position, endAngle Angle, shape Shape, verticalRadius float64) *Geometry {
	g := &Geometry{start: start, end: end, shape: shape, verticalRadius: verticalRadius}
	p1, p2 := flatOf(start), flatOf(end)
	u1 := startAngle.unit()
	h2 := endAngle.Opposite().unit()
	d := p2.sub(p1)
	if d.length() < epsilon {
		return g
	}
	fwd := u1.dot(d)
	side := u1.cross(d)

	switch {
	case startAngle == endAngle.Opposite():
		if fwd <= epsilon {
			return g
		}
		if math.Abs(side) < epsilon {
			g.add(straightPiece(p1, u1, fwd))
			return g
		}
		// lateral offset between parallel ends: two equal arcs meeting at the midpoint
		mid := p1.add(d.scale(0.5))
		a, ok := arcPiece(p1, u1, mid)
		if !ok {
			return g
		}
		b, ok := arcPiece(mid, a.tangent(a.length), p2)
		if !ok {
			return g
		}
		g.add(a, b)
	case startAngle == endAngle:
		// only a semicircle can reverse the heading
		if math.Abs(fwd) > epsilon {
			return g
		}
		if a, ok := arcPiece(p1, u1, p2); ok {
			g.add(a)
		}
	default:
		det := u1.cross(h2)
		t := d.cross(h2) / det
		w := u1.cross(d) / det
		if t <= epsilon || w <= epsilon {
			return g
		}
		switch {
		case math.Abs(t-w) < epsilon:
			if a, ok := arcPiece(p1, u1, p2); ok {
				g.add(a)
			}
		case t > w:
			q := p1.add(u1.scale(t - w))
			if a, ok := arcPiece(q, u1, p2); ok {
				g.add(straightPiece(p1, u1, t-w), a)
			}
		default:
			q := p1.add(u1.scale(t)).add(h2.scale(t))
			if a, ok := arcPiece(p1, u1, q); ok {
				g.add(a, straightPiece(q, h2, w-t))
			}
		}
	}
	return g
}

// Straight joins two positions with a single straight piece regardless of their
// angles. Synthetic connectors use it as a fallback.
func Straight(start, end Position) *Geometry {
	g := &Geometry{start: start, end: end, shape: ShapeQuadratic}
	d := flatOf(end).sub(flatOf(start))
	if l := d.length(); l >= epsilon {
		g.add(straightPiece(flatOf(start), d.scale(1/l), l))
	}
	return g
}

func (g *Geometry) add(pieces ...piece) {
	for _, p := range pieces {
		if p.length <= 0 {
			continue
		}
		g.pieces = append(g.pieces, p)
		g.length += p.length
	}
}

// IsValid reports whether the fit resolved. Invalid geometry must not be used for
// movement.
func (g *Geometry) IsValid() bool { return g != nil && g.length > 0 }

// Length is the horizontal length of the centreline in metres.
func (g *Geometry) Length() float64 {
	if g == nil {
		return 0
	}
	return g.length
}

// IsStraight reports whether the centreline has no arcs.
func (g *Geometry) IsStraight() bool {
	for _, p := range g.pieces {
		if p.arc {
			return false
		}
	}
	return true
}

// PositionAt maps a distance from the start (from the end when reversed) to a world
// coordinate. Distances outside [0, Length] are clamped.
func (g *Geometry) PositionAt(distance float64, reversed bool) Vec3 {
	if !g.IsValid() {
		return g.start.Vec()
	}
	if reversed {
		distance = g.length - distance
	}
	distance = Clamp(distance, 0, g.length)
	var p flat
	remaining := distance
	for i, pc := range g.pieces {
		if remaining <= pc.length || i == len(g.pieces)-1 {
			p = pc.at(remaining)
			break
		}
		remaining -= pc.length
	}
	return Vec3{X: p.x, Y: g.elevation(distance), Z: p.z}
}

// HeadingAt returns the direction of travel at distance, nearest compass angle.
func (g *Geometry) HeadingAt(distance float64, reversed bool) Angle {
	if !g.IsValid() {
		return AngleFromVector(flatOf(g.end).sub(flatOf(g.start)).x, flatOf(g.end).sub(flatOf(g.start)).z)
	}
	if reversed {
		distance = g.length - distance
	}
	distance = Clamp(distance, 0, g.length)
	remaining := distance
	for i, pc := range g.pieces {
		if remaining <= pc.length || i == len(g.pieces)-1 {
			t := pc.tangent(remaining)
			if reversed {
				t = t.scale(-1)
			}
			return AngleFromVector(t.x, t.z)
		}
		remaining -= pc.length
	}
	return AngleE
}

// Render walks the centreline in consecutive segments no longer than step and calls
// fn with each segment's endpoints.
func (g *Geometry) Render(step float64, fn func(from, to Vec3)) {
	if !g.IsValid() || step <= 0 {
		return
	}
	n := int(math.Ceil(g.length / step))
	prev := g.PositionAt(0, false)
	for i := 1; i <= n; i++ {
		next := g.PositionAt(g.length*float64(i)/float64(n), false)
		fn(prev, next)
		prev = next
	}
}
