package drive

import (
	"math"
	"testing"
)

func TestMix_PureForward(t *testing.T) {
	m := NewMixer()
	f := m.Mix(Intent{VX: 1})

	want := Frame{FL: MaxPWM, BL: MaxPWM, FR: MaxPWM, BR: MaxPWM}
	if f != want {
		t.Errorf("Mix(forward) = %+v, want %+v", f, want)
	}
}

func TestMix_PureRotation(t *testing.T) {
	m := NewMixer()
	f := m.Mix(Intent{VZ: 1})

	want := Frame{FL: MaxPWM, BL: MaxPWM, FR: -MaxPWM, BR: -MaxPWM}
	if f != want {
		t.Errorf("Mix(rotate) = %+v, want %+v", f, want)
	}
}

func TestMix_PureStrafe(t *testing.T) {
	m := NewMixer()
	f := m.Mix(Intent{VY: 1})

	want := Frame{FL: MaxPWM, BL: -MaxPWM, FR: -MaxPWM, BR: MaxPWM}
	if f != want {
		t.Errorf("Mix(strafe) = %+v, want %+v", f, want)
	}
}

func TestMix_SaturatesNeverExceedsBound(t *testing.T) {
	m := NewMixer()
	// Sweep the full intent cube; every output must stay within ±MaxPWM.
	for vx := -1.0; vx <= 1.0; vx += 0.25 {
		for vy := -1.0; vy <= 1.0; vy += 0.25 {
			for vz := -1.0; vz <= 1.0; vz += 0.25 {
				f := m.Mix(Intent{VX: vx, VY: vy, VZ: vz})
				for _, w := range f.Values() {
					if w > MaxPWM || w < -MaxPWM {
						t.Fatalf("Mix(%v,%v,%v) wheel %d out of bounds", vx, vy, vz, w)
					}
				}
			}
		}
	}
}

func TestMix_ClampsInputAxes(t *testing.T) {
	m := NewMixer()
	// Out-of-range input behaves as if clamped to the unit cube.
	if got, want := m.Mix(Intent{VX: 5}), m.Mix(Intent{VX: 1}); got != want {
		t.Errorf("Mix(vx=5) = %+v, want %+v", got, want)
	}
}

func TestMix_Inversion(t *testing.T) {
	m := Mixer{MaxPWM: MaxPWM, InvertLeft: true}
	f := m.Mix(Intent{VX: 1})
	if f.FL != -MaxPWM || f.BL != -MaxPWM {
		t.Errorf("left wheels not inverted: %+v", f)
	}
	if f.FR != MaxPWM || f.BR != MaxPWM {
		t.Errorf("right wheels should be untouched: %+v", f)
	}
}

func TestStop_IsZeroFrame(t *testing.T) {
	m := Mixer{MaxPWM: MaxPWM, InvertLeft: true, InvertRight: true}
	if f := m.Stop(); !f.IsZero() {
		t.Errorf("Stop() = %+v, want zero frame", f)
	}
	if f := m.Mix(Intent{}); !f.IsZero() {
		t.Errorf("Mix(zero) = %+v, want zero frame", f)
	}
}

func TestDeadzone_ZeroBelowRadius(t *testing.T) {
	d := Deadzone{Radius: 0.15}
	x, y := d.Apply(0.05, 0.05)
	if x != 0 || y != 0 {
		t.Errorf("Apply inside deadzone = (%v, %v), want (0, 0)", x, y)
	}
}

func TestDeadzone_ContinuousAtBoundary(t *testing.T) {
	d := Deadzone{Radius: 0.15}
	// Just past the edge the output must be small, not a jump to 0.15.
	x, _ := d.Apply(0.15+1e-6, 0)
	if math.Abs(x) > 1e-4 {
		t.Errorf("Apply at boundary+eps = %v, want ~0 (no discontinuity)", x)
	}
}

func TestDeadzone_FullDeflectionPreserved(t *testing.T) {
	d := Deadzone{Radius: 0.15}
	x, _ := d.Apply(1, 0)
	if math.Abs(x-1) > 1e-9 {
		t.Errorf("Apply(1,0) = %v, want 1", x)
	}
}

func TestSmoother_PassThroughWhenDisabled(t *testing.T) {
	var s Smoother
	in := Intent{VX: 0.7, VY: -0.2, VZ: 0.1}
	if out := s.Smooth(in); out != in {
		t.Errorf("Smooth() = %+v, want %+v", out, in)
	}
}

func TestSmoother_ConvergesToInput(t *testing.T) {
	s := Smoother{Alpha: 0.5}
	target := Intent{VX: 1}
	var out Intent
	for i := 0; i < 50; i++ {
		out = s.Smooth(target)
	}
	if math.Abs(out.VX-1) > 1e-9 {
		t.Errorf("Smooth did not converge: %v", out.VX)
	}
}
