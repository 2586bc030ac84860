// Package rail holds track segments, the network adjacency rebuilt on each sync and
// the signal block reservation protocol.
package rail

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/cxd309/railsim/internal/geometry"
)

// ErrRailNotFound is returned when a rail id or endpoint pair has no rail.
var ErrRailNotFound = errors.New("rail not found")

// TransportMode classifies what runs on a rail.
type TransportMode string

const (
	ModeTrain    TransportMode = "train"
	ModeBoat     TransportMode = "boat"
	ModeCableCar TransportMode = "cable_car"
	ModeAirplane TransportMode = "airplane"
)

// ContinuousMovement reports whether vehicles of this mode run on a fixed interval
// without a timetable.
func (m TransportMode) ContinuousMovement() bool { return m == ModeCableCar }

// Endpoint is one end of a rail. Angle points from the end into the rail.
type Endpoint struct {
	Pos   geometry.Position `json:"pos" yaml:"pos"`
	Angle geometry.Angle    `json:"angle" yaml:"angle"`
}

// Data is the serialisable input representation of a rail. Speed limits are in m/s;
// a zero limit closes that direction.
type Data struct {
	ID                 string         `json:"id" yaml:"id" validate:"required"`
	Start              Endpoint       `json:"start" yaml:"start"`
	End                Endpoint       `json:"end" yaml:"end"`
	Shape              geometry.Shape `json:"shape,omitempty" yaml:"shape"`
	VerticalRadius     float64        `json:"vertical_radius,omitempty" yaml:"verticalRadius" validate:"gte=0"` // metres
	SpeedForward       float64        `json:"speed_forward" yaml:"speedForward" validate:"gte=0"`               // start -> end
	SpeedBackward      float64        `json:"speed_backward" yaml:"speedBackward" validate:"gte=0"`             // end -> start
	Platform           bool           `json:"platform,omitempty" yaml:"platform"`
	Siding             bool           `json:"siding,omitempty" yaml:"siding"`
	CanTurnBack        bool           `json:"can_turn_back,omitempty" yaml:"canTurnBack"`
	CanConnectRemotely bool           `json:"can_connect_remotely,omitempty" yaml:"canConnectRemotely"`
	CanAccelerate      bool           `json:"can_accelerate,omitempty" yaml:"canAccelerate"`
	Mode               TransportMode  `json:"mode,omitempty" yaml:"mode"`
	Colors             []string       `json:"colors,omitempty" yaml:"colors"`
}

// Rail is a track segment usable in both directions. Start sorts before End; the
// geometry is always fitted in that order.
type Rail struct {
	Data

	geo *geometry.Geometry
	// signal colour -> holder, this tick and the previous one
	blocked     map[string]uuid.UUID
	blockedPrev map[string]uuid.UUID
	connected   []*Rail
}

// New canonicalises d so that Start < End and fits its geometry. Unresolvable
// geometry is not an error; check IsValid before moving over the rail.
func New(d Data) (*Rail, error) {
	if d.ID == "" {
		return nil, errors.New("rail id is required")
	}
	if d.Start.Pos == d.End.Pos {
		return nil, fmt.Errorf("rail %q: start and end are both %s", d.ID, d.Start.Pos)
	}
	if d.SpeedForward < 0 || d.SpeedBackward < 0 {
		return nil, fmt.Errorf("rail %q: negative speed limit", d.ID)
	}
	if d.End.Pos.Less(d.Start.Pos) {
		d.Start, d.End = d.End, d.Start
		d.SpeedForward, d.SpeedBackward = d.SpeedBackward, d.SpeedForward
	}
	if d.Shape == "" {
		d.Shape = geometry.ShapeQuadratic
	}
	if d.Mode == "" {
		d.Mode = ModeTrain
	}
	d.Colors = slices.Clone(d.Colors)
	slices.Sort(d.Colors)
	d.Colors = slices.Compact(d.Colors)
	geo := geometry.Fit(d.Start.Pos, d.Start.Angle, d.End.Pos, d.End.Angle, d.Shape, d.VerticalRadius)
	return newRail(d, geo), nil
}

// NewConnector builds an uncoloured rail that is not part of any network, used to
// bridge gaps in generated paths. It falls back to a straight when the endpoints
// cannot be fitted.
func NewConnector(id string, start, end Endpoint, speed float64, mode TransportMode) *Rail {
	d := Data{ID: id, Start: start, End: end, Shape: geometry.ShapeQuadratic, SpeedForward: speed, SpeedBackward: speed, Mode: mode}
	if d.End.Pos.Less(d.Start.Pos) {
		d.Start, d.End = d.End, d.Start
	}
	geo := geometry.Fit(d.Start.Pos, d.Start.Angle, d.End.Pos, d.End.Angle, d.Shape, 0)
	if !geo.IsValid() {
		geo = geometry.Straight(d.Start.Pos, d.End.Pos)
	}
	return newRail(d, geo)
}

func newRail(d Data, geo *geometry.Geometry) *Rail {
	return &Rail{
		Data:        d,
		geo:         geo,
		blocked:     make(map[string]uuid.UUID),
		blockedPrev: make(map[string]uuid.UUID),
	}
}

// Geometry returns the fitted centreline.
func (r *Rail) Geometry() *geometry.Geometry { return r.geo }

// Length returns the centreline length in metres.
func (r *Rail) Length() float64 { return r.geo.Length() }

// IsValid reports whether the rail can carry vehicles.
func (r *Rail) IsValid() bool { return r.geo.IsValid() }

// Has reports whether pos is one of the rail's ends.
func (r *Rail) Has(pos geometry.Position) bool {
	return pos == r.Start.Pos || pos == r.End.Pos
}

// Other returns the end opposite to from.
func (r *Rail) Other(from geometry.Position) geometry.Position {
	if from == r.End.Pos {
		return r.Start.Pos
	}
	return r.End.Pos
}

// ReversedFrom reports whether travelling away from from runs against the canonical
// direction.
func (r *Rail) ReversedFrom(from geometry.Position) bool { return from == r.End.Pos }

// SpeedLimit returns the limit in m/s for the given traversal direction.
func (r *Rail) SpeedLimit(reversed bool) float64 {
	if reversed {
		return r.SpeedBackward
	}
	return r.SpeedForward
}

// Headings returns the direction of travel when leaving from and when arriving at
// the other end.
func (r *Rail) Headings(from geometry.Position) (leave, arrive geometry.Angle) {
	if r.ReversedFrom(from) {
		return r.End.Angle, r.Start.Angle.Opposite()
	}
	return r.Start.Angle, r.End.Angle.Opposite()
}

// Connected returns the rails sharing an end with r as of the last sync.
func (r *Rail) Connected() []*Rail { return r.connected }

func (r *Rail) String() string {
	return fmt.Sprintf("rail %s %s-%s", r.ID, r.Start.Pos, r.End.Pos)
}
