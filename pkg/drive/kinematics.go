// Package drive converts 3-axis velocity intents into bounded mecanum wheel
// commands. The mixer is pure math: it never talks to hardware and never
// blocks, so the actuation loop can call it under its lock.
package drive

import "math"

// MaxPWM is the default duty bound of the PCA9685 motor driver.
const MaxPWM = 4095

// Intent is a normalized velocity request: vx forward, vy strafe right,
// vz rotate clockwise, each in [-1, 1].
type Intent struct {
	VX, VY, VZ float64
}

// Clamp returns the intent with each axis limited to [-1, 1].
func (i Intent) Clamp() Intent {
	return Intent{
		VX: clamp(i.VX, -1, 1),
		VY: clamp(i.VY, -1, 1),
		VZ: clamp(i.VZ, -1, 1),
	}
}

// IsZero reports whether all axes are exactly zero.
func (i Intent) IsZero() bool {
	return i.VX == 0 && i.VY == 0 && i.VZ == 0
}

// Forward reports whether the intent includes forward translation. The
// obstacle gate only blocks forward motion; reversing away is allowed.
func (i Intent) Forward() bool {
	return i.VX > 0
}

// Frame holds the four wheel duty values sent to the motor driver.
// A frame is always applied as a unit, never one wheel at a time.
type Frame struct {
	FL, BL, FR, BR int
}

// IsZero reports whether every wheel is stopped.
func (f Frame) IsZero() bool {
	return f.FL == 0 && f.BL == 0 && f.FR == 0 && f.BR == 0
}

// Values returns the frame in fl, bl, fr, br order.
func (f Frame) Values() [4]int {
	return [4]int{f.FL, f.BL, f.FR, f.BR}
}

// Mixer maps intents to wheel frames. InvertLeft and InvertRight compensate
// for physical motor wiring; they are deployment calibration, set once from
// config, not a kinematics concern.
type Mixer struct {
	MaxPWM      int
	InvertLeft  bool
	InvertRight bool
}

// NewMixer returns a mixer with the default PWM bound.
func NewMixer() Mixer {
	return Mixer{MaxPWM: MaxPWM}
}

// Mix computes the wheel frame for an intent. The blend is computed first
// and each wheel clamped after, so diagonal and rotation mixes saturate
// gracefully instead of being rejected.
func (m Mixer) Mix(in Intent) Frame {
	in = in.Clamp()
	pwm := float64(m.MaxPWM)

	fl := math.Round(pwm * (in.VX + in.VY + in.VZ))
	bl := math.Round(pwm * (in.VX - in.VY + in.VZ))
	fr := math.Round(pwm * (in.VX - in.VY - in.VZ))
	br := math.Round(pwm * (in.VX + in.VY - in.VZ))

	f := Frame{
		FL: clampInt(int(fl), m.MaxPWM),
		BL: clampInt(int(bl), m.MaxPWM),
		FR: clampInt(int(fr), m.MaxPWM),
		BR: clampInt(int(br), m.MaxPWM),
	}
	if m.InvertLeft {
		f.FL, f.BL = -f.FL, -f.BL
	}
	if m.InvertRight {
		f.FR, f.BR = -f.FR, -f.BR
	}
	return f
}

// Stop returns the zero frame. It is the mandatory fallback whenever the
// safety controller blocks a command.
func (m Mixer) Stop() Frame {
	return Frame{}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, bound int) int {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
