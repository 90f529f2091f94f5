package drive

import "math"

// Deadzone applies a radial dead zone to a stick pair and rescales the
// remaining range so output is continuous at the boundary: magnitude below
// the zone is exactly zero, magnitude just above it stays close to zero.
type Deadzone struct {
	Radius float64 // typically 0.10-0.20
}

// Apply filters one stick's (x, y) pair.
func (d Deadzone) Apply(x, y float64) (float64, float64) {
	mag := math.Hypot(x, y)
	if mag < d.Radius {
		return 0, 0
	}
	// Remap [radius, 1] onto [0, 1] so there is no jump at the edge.
	scale := (mag - d.Radius) / (1 - d.Radius)
	scale = math.Min(1, scale/mag)
	return x * scale, y * scale
}

// ApplyAxis filters a single axis (triggers, rotation).
func (d Deadzone) ApplyAxis(v float64) float64 {
	if math.Abs(v) < d.Radius {
		return 0
	}
	sign := 1.0
	if v < 0 {
		sign = -1
	}
	return sign * (math.Abs(v) - d.Radius) / (1 - d.Radius)
}

// Smoother is an exponential moving average over stick intents, taming
// jitter from cheap analog hardware. Alpha 0 passes input through.
type Smoother struct {
	Alpha float64 // weight of the previous sample, in [0, 1)
	prev  Intent
}

// Smooth blends the new intent with the previous output.
func (s *Smoother) Smooth(in Intent) Intent {
	if s.Alpha <= 0 {
		s.prev = in
		return in
	}
	out := Intent{
		VX: (1-s.Alpha)*in.VX + s.Alpha*s.prev.VX,
		VY: (1-s.Alpha)*in.VY + s.Alpha*s.prev.VY,
		VZ: (1-s.Alpha)*in.VZ + s.Alpha*s.prev.VZ,
	}
	s.prev = out
	return out
}

// Reset clears the smoother's history, e.g. after a reconnect.
func (s *Smoother) Reset() {
	s.prev = Intent{}
}
