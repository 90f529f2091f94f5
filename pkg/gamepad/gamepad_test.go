package gamepad

import (
	"testing"
	"time"

	"github.com/teslashibe/go-eva/pkg/protocol"
)

// mockSink records every envelope offered to it.
type mockSink struct {
	envs []*protocol.CommandEnvelope
}

func (m *mockSink) Offer(env *protocol.CommandEnvelope) {
	m.envs = append(m.envs, env)
}

func (m *mockSink) last() *protocol.CommandEnvelope {
	if len(m.envs) == 0 {
		return nil
	}
	return m.envs[len(m.envs)-1]
}

func newTestReader(sink *mockSink) *Reader {
	cfg := DefaultConfig()
	cfg.Smoothing = 0 // deterministic values in tests
	return NewReader(nil, sink, cfg)
}

func TestSample_ForwardStickEmitsDrive(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)

	r.Sample(State{LeftY: -1.0}, time.Now())

	env := sink.last()
	if env == nil || env.Cmd != protocol.CmdDrive {
		t.Fatalf("expected drive command, got %+v", env)
	}
	if env.Source != protocol.SourceManual {
		t.Errorf("expected manual source, got %q", env.Source)
	}
	if env.Drive.VX != normalScale {
		t.Errorf("expected vx=%v at normal speed, got %v", normalScale, env.Drive.VX)
	}
	if env.Drive.VY != 0 || env.Drive.VZ != 0 {
		t.Errorf("expected pure forward, got %+v", env.Drive)
	}
}

func TestSample_DeadzoneSuppressesDrift(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)

	r.Sample(State{LeftX: 0.05, LeftY: -0.05}, time.Now())

	if len(sink.envs) != 0 {
		t.Fatalf("expected no commands from drift, got %d", len(sink.envs))
	}
}

func TestSample_StickReleaseEmitsSingleStop(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)
	now := time.Now()

	r.Sample(State{LeftY: -1.0}, now)
	r.Sample(State{}, now)
	r.Sample(State{}, now)
	r.Sample(State{}, now)

	stops := 0
	for _, env := range sink.envs {
		if env.Cmd == protocol.CmdStop {
			stops++
		}
	}
	if stops != 1 {
		t.Fatalf("expected exactly one stop after release, got %d", stops)
	}
	if sink.last().Cmd != protocol.CmdStop {
		t.Errorf("expected stop to be the final command, got %v", sink.last().Cmd)
	}
}

func TestSample_TriggersScaleSpeed(t *testing.T) {
	cases := []struct {
		name  string
		st    State
		scale float64
	}{
		{"slow", State{LeftY: -1.0, LeftTrigger: 1.0}, slowScale},
		{"turbo", State{LeftY: -1.0, RightTrigger: 1.0}, turboScale},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &mockSink{}
			r := newTestReader(sink)
			r.Sample(tc.st, time.Now())
			env := sink.last()
			if env == nil || env.Drive == nil {
				t.Fatal("expected drive command")
			}
			if env.Drive.VX != tc.scale {
				t.Errorf("expected vx=%v, got %v", tc.scale, env.Drive.VX)
			}
		})
	}
}

func TestSample_BumpersRotate(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)

	r.Sample(State{RightBumper: true}, time.Now())

	env := sink.last()
	if env == nil || env.Drive == nil {
		t.Fatal("expected drive command from bumper")
	}
	if env.Drive.VZ <= 0 {
		t.Errorf("expected positive rotation, got %v", env.Drive.VZ)
	}
}

func TestSample_RightStickIntegratesHead(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)
	now := time.Now()

	r.Sample(State{RightX: 1.0}, now)
	r.Sample(State{RightX: 1.0}, now)

	env := sink.last()
	if env == nil || env.Cmd != protocol.CmdHead {
		t.Fatalf("expected head command, got %+v", env)
	}
	want := 90 + 2*DefaultConfig().PanSensitivity
	if env.Head.Yaw == nil || *env.Head.Yaw != want {
		t.Errorf("expected yaw %v after two samples, got %+v", want, env.Head.Yaw)
	}
}

func TestSample_EstopButtonEdgeTriggered(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)
	now := time.Now()

	r.Sample(State{ButtonB: true}, now)
	r.Sample(State{ButtonB: true}, now) // held, no repeat
	r.Sample(State{}, now)
	r.Sample(State{ButtonB: true}, now) // pressed again

	estops := 0
	for _, env := range sink.envs {
		if env.Cmd == protocol.CmdEStop {
			estops++
			if env.Priority != 10 {
				t.Errorf("expected estop priority 10, got %d", env.Priority)
			}
		}
	}
	if estops != 2 {
		t.Fatalf("expected 2 estops from 2 presses, got %d", estops)
	}
}

func TestSample_HomeButtonResetsHeadTarget(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)
	now := time.Now()

	r.Sample(State{RightX: 1.0}, now)
	r.Sample(State{ButtonX: true}, now)

	env := sink.last()
	if env == nil || env.Cmd != protocol.CmdBehavior || env.Behavior.Name != "home" {
		t.Fatalf("expected home behavior, got %+v", env)
	}

	// Next head motion integrates from home again.
	sink.envs = nil
	r.Sample(State{RightX: 1.0}, now)
	head := sink.last()
	if head == nil || head.Head == nil || head.Head.Yaw == nil {
		t.Fatal("expected head command")
	}
	if *head.Head.Yaw != 90+DefaultConfig().PanSensitivity {
		t.Errorf("expected yaw integrated from home, got %v", *head.Head.Yaw)
	}
}

func TestSample_CameraButtonEmitsToggle(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)
	now := time.Now()

	r.Sample(State{ButtonA: true}, now)
	r.Sample(State{ButtonA: true}, now) // held, no repeat
	r.Sample(State{}, now)

	toggles := 0
	for _, env := range sink.envs {
		if env.Cmd == protocol.CmdBehavior && env.Behavior.Name == "camera_toggle" {
			toggles++
		}
	}
	if toggles != 1 {
		t.Fatalf("expected 1 camera toggle from held press, got %d", toggles)
	}
}

func TestSample_SequenceMonotonic(t *testing.T) {
	sink := &mockSink{}
	r := newTestReader(sink)
	now := time.Now()

	r.Sample(State{LeftY: -1.0}, now)
	r.Sample(State{LeftY: -0.8}, now)
	r.Sample(State{RightBumper: true}, now)

	var prev int64
	for i, env := range sink.envs {
		if env.Seq <= prev {
			t.Fatalf("seq not monotonic at %d: %d after %d", i, env.Seq, prev)
		}
		prev = env.Seq
	}
}
