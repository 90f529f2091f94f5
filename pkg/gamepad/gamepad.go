// Package gamepad turns a local controller into manual-source command
// envelopes. It owns no hardware: a Source supplies the raw stick and
// button state and the Reader normalizes it, applies deadzone and
// smoothing, and offers envelopes to the actuation core.
package gamepad

import (
	"context"
	"math"
	"time"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/drive"
	"github.com/teslashibe/go-eva/pkg/protocol"
)

// State is one sample of the controller. Stick axes are normalized to
// [-1, 1] with up/left negative, triggers to [0, 1].
type State struct {
	LeftX, LeftY   float64
	RightX, RightY float64

	LeftTrigger  float64
	RightTrigger float64

	LeftBumper  bool
	RightBumper bool

	ButtonA bool // switch camera
	ButtonB bool // emergency stop
	ButtonX bool // head home
	ButtonY bool // head center
}

// Source supplies controller samples. Poll returns the latest state;
// it must not block on hardware for longer than a sample period.
type Source interface {
	Poll() (State, error)
}

// Sink receives the envelopes the reader produces. *robot.LatestCommand
// satisfies it.
type Sink interface {
	Offer(env *protocol.CommandEnvelope)
}

// Heartbeater receives liveness signals. A connected controller counts
// as operator presence even while the sticks are idle.
type Heartbeater interface {
	Heartbeat(now time.Time)
}

// Speed scaling chosen by the triggers.
const (
	slowScale   = 0.3
	normalScale = 0.7
	turboScale  = 1.0
)

// Config tunes input shaping and the emit rate.
type Config struct {
	Deadzone  float64 // radial stick deadzone, 0..0.5
	Smoothing float64 // EMA alpha, 0 disables
	Rate      time.Duration

	DriveSensitivity float64
	PanSensitivity   float64 // degrees per sample at full deflection
	TiltSensitivity  float64

	HeadYawHome   float64
	HeadPitchHome float64
}

// DefaultConfig mirrors the tuning the robot ships with.
func DefaultConfig() Config {
	return Config{
		Deadzone:         0.15,
		Smoothing:        0.2,
		Rate:             50 * time.Millisecond,
		DriveSensitivity: 1.0,
		PanSensitivity:   2.0,
		TiltSensitivity:  1.6,
		HeadYawHome:      90,
		HeadPitchHome:    90,
	}
}

// Reader polls a Source and emits drive, head, behavior, and stop
// envelopes with source "manual".
type Reader struct {
	src Source
	out Sink
	hb  Heartbeater
	cfg Config

	deadzone drive.Deadzone
	smoother *drive.Smoother

	// Head targets are integrated locally: the right stick is a rate
	// control, the wire protocol carries absolute angles.
	headYaw   float64
	headPitch float64

	prev State
	seq  int64

	wasDriving bool
}

// NewReader wires a source to a sink.
func NewReader(src Source, out Sink, cfg Config) *Reader {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultConfig().Rate
	}
	return &Reader{
		src:       src,
		out:       out,
		cfg:       cfg,
		deadzone:  drive.Deadzone{Radius: cfg.Deadzone},
		smoother:  &drive.Smoother{Alpha: cfg.Smoothing},
		headYaw:   cfg.HeadYawHome,
		headPitch: cfg.HeadPitchHome,
	}
}

// SetHeartbeater wires a liveness sink; each successful poll feeds it.
func (r *Reader) SetHeartbeater(hb Heartbeater) {
	r.hb = hb
}

// Run polls until the context is cancelled.
func (r *Reader) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Rate)
	defer ticker.Stop()

	log.Info("gamepad reader started", "rate", r.cfg.Rate)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			st, err := r.src.Poll()
			if err != nil {
				log.Warn("gamepad poll failed", "error", err)
				continue
			}
			if r.hb != nil {
				r.hb.Heartbeat(now)
			}
			r.Sample(st, now)
		}
	}
}

// Sample processes one controller state. Split out from Run for tests.
func (r *Reader) Sample(st State, now time.Time) {
	r.handleButtons(st, now)
	r.handleDrive(st, now)
	r.handleHead(st, now)
	r.prev = st
}

func (r *Reader) handleDrive(st State, now time.Time) {
	x, y := r.deadzone.Apply(st.LeftX, st.LeftY)

	// Stick up is negative Y but means forward.
	in := drive.Intent{
		VX: -y * r.cfg.DriveSensitivity,
		VY: x * r.cfg.DriveSensitivity,
	}
	if st.LeftBumper {
		in.VZ = -0.5
	} else if st.RightBumper {
		in.VZ = 0.5
	}
	in = r.smoother.Smooth(in)

	scale := normalScale
	switch {
	case st.LeftTrigger > 0.5:
		scale = slowScale
	case st.RightTrigger > 0.5:
		scale = turboScale
	}
	in.VX *= scale
	in.VY *= scale
	in.VZ *= scale

	idle := math.Abs(in.VX) < 0.05 && math.Abs(in.VY) < 0.05 && math.Abs(in.VZ) < 0.05
	if idle {
		// One explicit stop when the sticks release, then silence so
		// another source can take the slot.
		if r.wasDriving {
			r.smoother.Reset()
			r.offer(protocol.CmdStop, nil, nil, nil, now)
			r.wasDriving = false
		}
		return
	}

	r.wasDriving = true
	r.offer(protocol.CmdDrive, &protocol.DriveParams{VX: in.VX, VY: in.VY, VZ: in.VZ}, nil, nil, now)
}

func (r *Reader) handleHead(st State, now time.Time) {
	pan := st.RightX * r.cfg.PanSensitivity
	tilt := -st.RightY * r.cfg.TiltSensitivity

	moved := false
	if math.Abs(st.RightX) > 0.05 {
		r.headYaw += pan
		moved = true
	}
	if math.Abs(st.RightY) > 0.05 {
		r.headPitch += tilt
		moved = true
	}
	if !moved {
		return
	}

	yaw, pitch := r.headYaw, r.headPitch
	r.offer(protocol.CmdHead, nil, &protocol.HeadParams{Yaw: &yaw, Pitch: &pitch}, nil, now)
}

func (r *Reader) handleButtons(st State, now time.Time) {
	pressed := func(cur, prev bool) bool { return cur && !prev }

	if pressed(st.ButtonB, r.prev.ButtonB) {
		log.Warn("gamepad emergency stop pressed")
		r.offer(protocol.CmdEStop, nil, nil, nil, now)
	}
	if pressed(st.ButtonX, r.prev.ButtonX) {
		r.headYaw, r.headPitch = r.cfg.HeadYawHome, r.cfg.HeadPitchHome
		r.offer(protocol.CmdBehavior, nil, nil, &protocol.BehaviorParams{Name: "home"}, now)
	}
	if pressed(st.ButtonY, r.prev.ButtonY) {
		r.headYaw, r.headPitch = r.cfg.HeadYawHome, r.cfg.HeadPitchHome
		r.offer(protocol.CmdBehavior, nil, nil, &protocol.BehaviorParams{Name: "look_center"}, now)
	}
	if pressed(st.ButtonA, r.prev.ButtonA) {
		r.offer(protocol.CmdBehavior, nil, nil, &protocol.BehaviorParams{Name: "camera_toggle"}, now)
	}
}

func (r *Reader) offer(cmd protocol.CmdType, d *protocol.DriveParams, h *protocol.HeadParams, b *protocol.BehaviorParams, now time.Time) {
	r.seq++
	prio := 1
	if cmd == protocol.CmdEStop {
		prio = 10
	}
	r.out.Offer(&protocol.CommandEnvelope{
		Source:     protocol.SourceManual,
		Priority:   prio,
		Seq:        r.seq,
		Cmd:        cmd,
		Drive:      d,
		Head:       h,
		Behavior:   b,
		ReceivedAt: now,
	})
}
