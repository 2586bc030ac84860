package geometry

import "math"

// elevation returns the height at horizontal distance u from the start.
func (g *Geometry) elevation(u float64) float64 {
	y1, y2 := float64(g.start.Y), float64(g.end.Y)
	dy := y2 - y1
	if dy == 0 && g.shape != ShapeCable {
		return y1
	}
	l := g.length
	switch g.shape {
	case ShapeTwoRadii:
		return y1 + math.Copysign(twoRadii(u, l, math.Abs(dy)), dy)
	case ShapeCable:
		f := u / l
		sag := cableSagRatio * l
		return Lerp(y1, y2, f) - 4*sag*f*(1-f)
	default:
		return y1 + math.Copysign(quadratic(u, l, math.Abs(dy), g.verticalRadius), dy)
	}
}

// quadratic is the rise after u metres for a total rise h over l metres: a constant
// grade entered and left along parabolas of radius r.
func quadratic(u, l, h, r float64) float64 {
	if r <= 0 {
		return h * u / l
	}
	disc := l*l - 4*r*h
	if disc < 0 {
		// too steep for the radius
		return twoRadii(u, l, h)
	}
	grade := (l - math.Sqrt(disc)) / (2 * r)
	x1 := r * grade
	switch {
	case u < x1:
		return u * u / (2 * r)
	case u > l-x1:
		return h - (l-u)*(l-u)/(2*r)
	default:
		return x1*x1/(2*r) + grade*(u-x1)
	}
}

// twoRadii is the rise after u metres along two equal circular curves that meet at
// the midpoint of the rail.
func twoRadii(u, l, h float64) float64 {
	r := (l*l/4 + h*h/4) / h
	if u <= l/2 {
		return r - math.Sqrt(math.Max(0, r*r-u*u))
	}
	rest := l - u
	return h - (r - math.Sqrt(math.Max(0, r*r-rest*rest)))
}
