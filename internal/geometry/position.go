// Package geometry fits rail centrelines between two oriented endpoints and answers
// length and position-at-distance queries along them.
//
// Coordinates follow the world grid: X east, Y up, Z south. Horizontal maths is done in
// the X/Z plane; elevation is computed separately by a vertical profile.
package geometry

import (
	"cmp"
	"fmt"
	"math"
)

// Position is an integer grid coordinate.
type Position struct {
	X int64 `json:"x" yaml:"x"`
	Y int64 `json:"y" yaml:"y"`
	Z int64 `json:"z" yaml:"z"`
}

// Compare orders positions lexicographically by X, then Y, then Z.
func (p Position) Compare(o Position) int {
	if c := cmp.Compare(p.X, o.X); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Y, o.Y); c != 0 {
		return c
	}
	return cmp.Compare(p.Z, o.Z)
}

// Less reports whether p sorts before o.
func (p Position) Less(o Position) bool { return p.Compare(o) < 0 }

// Vec converts p to floating point.
func (p Position) Vec() Vec3 {
	return Vec3{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// Distance is the straight-line distance between two positions.
func (p Position) Distance(o Position) float64 {
	return p.Vec().Distance(o.Vec())
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Vec3 is a floating point world coordinate.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Length() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Length() }

// Round snaps v to the nearest grid position.
func (v Vec3) Round() Position {
	return Position{X: int64(math.Round(v.X)), Y: int64(math.Round(v.Y)), Z: int64(math.Round(v.Z))}
}

// flat is a point or direction in the horizontal X/Z plane.
type flat struct {
	x, z float64
}

func (a flat) add(b flat) flat { return flat{a.x + b.x, a.z + b.z} }
func (a flat) sub(b flat) flat { return flat{a.x - b.x, a.z - b.z} }
func (a flat) scale(f float64) flat { return flat{a.x * f, a.z * f} }
func (a flat) dot(b flat) float64 { return a.x*b.x + a.z*b.z }
func (a flat) length() float64 { return math.Hypot(a.x, a.z) }
func (a flat) normal() flat { return flat{-a.z, a.x} }
func (a flat) cross(b flat) float64 { return a.x*b.z - a.z*b.x }
func flatOf(p Position) flat { return flat{float64(p.X), float64(p.Z)} }
