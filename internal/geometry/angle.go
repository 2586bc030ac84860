package geometry

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// angleCount is the number of compass directions an endpoint may face.
const angleCount = 16

// angleStep is the separation between adjacent directions, in degrees.
const angleStep = 360.0 / angleCount

// Angle is one of 16 compass directions, 22.5 degrees apart. Angle 0 points to +X and
// angles increase toward +Z.
type Angle uint8

const (
	AngleE Angle = iota
	AngleESE
	AngleSE
	AngleSSE
	AngleS
	AngleSSW
	AngleSW
	AngleWSW
	AngleW
	AngleWNW
	AngleNW
	AngleNNW
	AngleN
	AngleNNE
	AngleNE
	AngleENE
)

var angleNames = [angleCount]string{"E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW", "N", "NNE", "NE", "ENE"}

var sinTable, cosTable, tanTable [angleCount]float64

func init() {
	for i := range angleCount {
		r := float64(i) * angleStep * math.Pi / 180
		sinTable[i] = math.Sin(r)
		cosTable[i] = math.Cos(r)
		tanTable[i] = math.Tan(r)
	}
	// exact zeros so axis-aligned rails stay axis-aligned
	for _, i := range []int{0, 4, 8, 12} {
		if i%8 == 0 {
			sinTable[i] = 0
			tanTable[i] = 0
		} else {
			cosTable[i] = 0
			tanTable[i] = math.Inf(1)
		}
	}
}

// AngleFromDegrees returns the direction nearest to deg.
func AngleFromDegrees(deg float64) Angle {
	i := int(math.Round(deg/angleStep)) % angleCount
	if i < 0 {
		i += angleCount
	}
	return Angle(i)
}

// AngleFromVector returns the direction nearest to the horizontal vector (dx, dz).
func AngleFromVector(dx, dz float64) Angle {
	return AngleFromDegrees(math.Atan2(dz, dx) * 180 / math.Pi)
}

func (a Angle) index() int { return int(a) % angleCount }

func (a Angle) Degrees() float64 { return float64(a.index()) * angleStep }
func (a Angle) Radians() float64 { return a.Degrees() * math.Pi / 180 }
func (a Angle) Sin() float64 { return sinTable[a.index()] }
func (a Angle) Cos() float64 { return cosTable[a.index()] }
func (a Angle) Tan() float64 { return tanTable[a.index()] }

// Add rotates a by o.
func (a Angle) Add(o Angle) Angle { return Angle((a.index() + o.index()) % angleCount) }

// Sub rotates a by -o.
func (a Angle) Sub(o Angle) Angle { return Angle((a.index() - o.index() + angleCount) % angleCount) }

// Opposite returns the direction rotated by 180 degrees.
func (a Angle) Opposite() Angle { return a.Add(angleCount / 2) }

// IsParallel reports whether a and o lie on the same line.
func (a Angle) IsParallel(o Angle) bool { return a == o || a == o.Opposite() }

// IsSimilar reports whether a and o are at most one step apart.
func (a Angle) IsSimilar(o Angle) bool {
	d := a.Sub(o).index()
	return d <= 1 || d == angleCount-1
}

// Steps returns the signed number of steps (-7..8) to rotate a onto o.
func (a Angle) Steps(o Angle) int {
	d := o.Sub(a).index()
	if d > angleCount/2 {
		d -= angleCount
	}
	return d
}

func (a Angle) unit() flat { return flat{a.Cos(), a.Sin()} }

func (a Angle) String() string { return angleNames[a.index()] }

// MarshalJSON encodes the angle as degrees.
func (a Angle) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Degrees())
}

// UnmarshalJSON accepts degrees that are a multiple of 22.5.
func (a *Angle) UnmarshalJSON(data []byte) error {
	var deg float64
	if err := json.Unmarshal(data, &deg); err != nil {
		return fmt.Errorf("angle: %w", err)
	}
	return a.setDegrees(deg)
}

// MarshalYAML encodes the angle as degrees.
func (a Angle) MarshalYAML() (any, error) { return a.Degrees(), nil }

// UnmarshalYAML accepts degrees that are a multiple of 22.5.
func (a *Angle) UnmarshalYAML(value *yaml.Node) error {
	var deg float64
	if err := value.Decode(&deg); err != nil {
		return fmt.Errorf("angle: %w", err)
	}
	return a.setDegrees(deg)
}

func (a *Angle) setDegrees(deg float64) error {
	if r := math.Mod(deg, angleStep); math.Abs(r) > 1e-6 && math.Abs(r-angleStep) > 1e-6 {
		return fmt.Errorf("angle %g is not a multiple of %g degrees", deg, angleStep)
	}
	*a = AngleFromDegrees(deg)
	return nil
}
