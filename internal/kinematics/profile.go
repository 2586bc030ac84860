package kinematics

import (
	"math"
	"sort"
)

// Segment is a stretch of constant acceleration starting at Distance and Time.
type Segment struct {
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
	Speed    float64 `json:"speed"`
	Accel    float64 `json:"accel"`
}

// Profile is a piecewise constant-acceleration run, built forward in time. A new
// segment starts whenever the acceleration changes, so distance and time lookups
// are binary searches over the breakpoints.
type Profile struct {
	segments []Segment
	distance float64
	time     float64
	speed    float64
	split    bool
}

// Advance extends the run by dt seconds at constant accel from the current speed.
func (p *Profile) Advance(accel, dt float64) {
	if dt <= 0 {
		return
	}
	if n := len(p.segments); n == 0 || p.split || p.segments[n-1].Accel != accel {
		p.split = false
		p.segments = append(p.segments, Segment{Distance: p.distance, Time: p.time, Speed: p.speed, Accel: accel})
	}
	p.distance += math.Max(0, p.speed*dt+0.5*accel*dt*dt)
	p.speed = math.Max(0, p.speed+accel*dt)
	p.time += dt
}

// Wait holds the vehicle stationary for dt seconds.
func (p *Profile) Wait(dt float64) {
	if dt <= 0 {
		return
	}
	p.segments = append(p.segments, Segment{Distance: p.distance, Time: p.time})
	p.speed = 0
	p.time += dt
	p.split = true
}

// Jump changes the speed without taking time, for track where acceleration is not
// modelled.
func (p *Profile) Jump(v float64) {
	p.speed = math.Max(0, v)
	p.split = true
}

// Distance is the distance covered so far.
func (p *Profile) Distance() float64 { return p.distance }

// Duration is the time elapsed so far.
func (p *Profile) Duration() float64 { return p.time }

// Speed is the current speed.
func (p *Profile) Speed() float64 { return p.speed }

// Segments returns the breakpoints.
func (p *Profile) Segments() []Segment { return p.segments }

func (p *Profile) end(i int) Segment {
	if i+1 < len(p.segments) {
		return p.segments[i+1]
	}
	return Segment{Distance: p.distance, Time: p.time, Speed: p.speed}
}

// TimeAt returns the first time the run reaches distance.
func (p *Profile) TimeAt(distance float64) float64 {
	if len(p.segments) == 0 || distance <= 0 {
		return 0
	}
	if distance >= p.distance {
		distance = p.distance
	}
	i := sort.Search(len(p.segments), func(i int) bool { return p.end(i).Distance >= distance })
	if i == len(p.segments) {
		return p.time
	}
	s := p.segments[i]
	dd := distance - s.Distance
	if dd <= 0 {
		return s.Time
	}
	var t float64
	switch {
	case s.Accel == 0 && s.Speed > 0:
		t = dd / s.Speed
	case s.Accel != 0:
		t = (-s.Speed + math.Sqrt(math.Max(0, s.Speed*s.Speed+2*s.Accel*dd))) / s.Accel
	}
	return math.Min(s.Time+t, p.end(i).Time)
}

// DistanceAt returns the distance covered at time t.
func (p *Profile) DistanceAt(t float64) float64 {
	s, dt, ok := p.at(t)
	if !ok {
		return 0
	}
	return s.Distance + math.Max(0, s.Speed*dt+0.5*s.Accel*dt*dt)
}

// SpeedAt returns the speed at time t.
func (p *Profile) SpeedAt(t float64) float64 {
	s, dt, ok := p.at(t)
	if !ok {
		return 0
	}
	return math.Max(0, s.Speed+s.Accel*dt)
}

func (p *Profile) at(t float64) (Segment, float64, bool) {
	if len(p.segments) == 0 {
		return Segment{}, 0, false
	}
	t = math.Min(math.Max(t, 0), p.time)
	i := sort.Search(len(p.segments), func(i int) bool { return p.end(i).Time > t })
	if i == len(p.segments) {
		i--
	}
	s := p.segments[i]
	return s, t - s.Time, true
}
