package robot

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/camera"
	"github.com/teslashibe/go-eva/pkg/drive"
	"github.com/teslashibe/go-eva/pkg/protocol"
	"github.com/teslashibe/go-eva/pkg/safety"
	"github.com/teslashibe/go-eva/pkg/servo"
)

// Head servo channel assignment, matching the chassis wiring.
const (
	HeadYawChannel   = 0
	HeadPitchChannel = 1
)

// Default loop rates.
const (
	DefaultTickRate     = 50 * time.Millisecond  // 20 Hz actuation
	DefaultWatchdogRate = 250 * time.Millisecond // watchdog + sensor poll
)

// ResultKind classifies what one actuation cycle did.
type ResultKind string

const (
	// ResultIdle means no motion was requested this cycle.
	ResultIdle ResultKind = "idle"
	// ResultApplied means the requested frame reached the hardware.
	ResultApplied ResultKind = "applied"
	// ResultBlocked means safety gated the request; the zero frame was
	// written instead of the requested one.
	ResultBlocked ResultKind = "safety_blocked"
	// ResultFault means the hardware write failed; motors were zeroed.
	ResultFault ResultKind = "hardware_fault"
)

// Result is the visible outcome of a cycle, surfaced in telemetry rather
// than thrown as an error.
type Result struct {
	Kind   ResultKind
	Reason string
}

// Diagnostics counts what the core has seen since start.
type Diagnostics struct {
	Ticks     uint64 `json:"ticks"`
	Expired   uint64 `json:"expired_commands"`
	Malformed uint64 `json:"malformed_commands"`
	Blocked   uint64 `json:"safety_blocked"`
	Faults    uint64 `json:"hardware_faults"`
}

// Config wires a Core together.
type Config struct {
	Mixer        drive.Mixer
	Motors       MotorDriver
	Servos       *servo.Controller
	Cameras      *camera.Selector
	Safety       *safety.Controller
	Sensors      SensorReader
	TickRate     time.Duration
	WatchdogRate time.Duration
}

// Core is the actuation core. All hardware writes funnel through it; the
// rest of the system only ever sees read-only snapshots.
type Core struct {
	mixer    drive.Mixer
	motors   MotorDriver
	servos   *servo.Controller
	cameras  *camera.Selector
	safety   *safety.Controller
	sensors  SensorReader
	commands *LatestCommand

	tickRate     time.Duration
	watchdogRate time.Duration

	mu          sync.RWMutex
	intent      drive.Intent // held drive intent, re-gated every tick
	intentUntil time.Time    // deadline for behavior-driven intents; zero = open
	lastFrame   drive.Frame
	lastWritten drive.Frame
	writeOK     bool
	lastSummary string
	lastResult  Result
	diag        Diagnostics

	behaviors map[string]Behavior
}

// New builds a Core and wires the safety controller's stop callback to
// ForceStop, so an emergency stop zeroes the motors without waiting for
// the next tick.
func New(cfg Config) *Core {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.WatchdogRate <= 0 {
		cfg.WatchdogRate = DefaultWatchdogRate
	}
	c := &Core{
		mixer:        cfg.Mixer,
		motors:       cfg.Motors,
		servos:       cfg.Servos,
		cameras:      cfg.Cameras,
		safety:       cfg.Safety,
		sensors:      cfg.Sensors,
		commands:     &LatestCommand{},
		tickRate:     cfg.TickRate,
		watchdogRate: cfg.WatchdogRate,
		lastResult:   Result{Kind: ResultIdle},
	}
	c.behaviors = defaultBehaviors()
	if c.safety != nil {
		c.safety.SetStopFunc(c.ForceStop)
	}
	return c
}

// Commands returns the ingress register input loops publish into.
func (c *Core) Commands() *LatestCommand {
	return c.commands
}

// Safety returns the safety controller, for transports that need to feed
// heartbeats or service an explicit emergency reset.
func (c *Core) Safety() *safety.Controller {
	return c.safety
}

// Cameras returns the camera selector, for transports that expose mode
// control.
func (c *Core) Cameras() *camera.Selector {
	return c.cameras
}

// ForceStop zeroes the motors immediately, outside the tick cycle. The
// safety controller calls this the instant an emergency stop triggers.
// The write happens under c.mu so it serializes against applyFrame and
// cannot be overtaken by a cycle that was already in flight.
func (c *Core) ForceStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intent = drive.Intent{}
	c.intentUntil = time.Time{}
	if err := c.motors.SetMotor(0, 0, 0, 0); err != nil {
		log.Error("force stop motor write failed", "error", err)
		c.writeOK = false
		return
	}
	c.lastWritten = drive.Frame{}
	c.lastFrame = drive.Frame{}
	c.writeOK = true
}

// Run drives the actuation tick at a fixed rate until ctx is cancelled.
// On exit it abandons in-flight servo motion in place and zeroes the motors.
func (c *Core) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tickRate)
	defer ticker.Stop()

	log.Info("actuation core started", "rate", c.tickRate)
	for {
		select {
		case <-ctx.Done():
			c.servos.Abandon()
			c.ForceStop()
			log.Info("actuation core stopped")
			return
		case <-ticker.C:
			c.Tick(time.Now())
		}
	}
}

// RunWatchdog runs the independent watchdog/sensor loop: poll the chassis
// sensors into the safety controller and check the heartbeat deadline.
func (c *Core) RunWatchdog(ctx context.Context) {
	ticker := time.NewTicker(c.watchdogRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			c.PollSensors(now)
			c.safety.Tick(now)
		}
	}
}

// PollSensors reads the chassis sensors and feeds the safety controller.
// Read errors are logged and skipped; a dead sensor must not kill the loop.
func (c *Core) PollSensors(now time.Time) {
	if c.sensors == nil {
		return
	}
	var r safety.Readings
	r.At = now

	cm, err := c.sensors.ReadUltrasonic()
	if err != nil {
		log.Debug("ultrasonic read failed", "error", err)
	} else {
		r.UltrasonicCM = cm
	}
	v, err := c.sensors.ReadBattery()
	if err != nil {
		log.Debug("battery read failed", "error", err)
	} else {
		r.BatteryV = v
	}
	c.safety.UpdateSensors(r, now)
}

// Tick executes one actuation cycle: drain the winning command, validate
// it, gate it through safety, dispatch, and apply exactly one wheel frame.
// The safety check for a cycle always happens before that cycle's write.
func (c *Core) Tick(now time.Time) {
	env := c.commands.Take()
	if env != nil {
		switch protocol.Validate(env, now) {
		case protocol.Expired:
			c.mu.Lock()
			c.diag.Expired++
			c.lastSummary = env.Summary() + " (expired)"
			c.mu.Unlock()
			env = nil
		case protocol.Malformed:
			c.mu.Lock()
			c.diag.Malformed++
			c.mu.Unlock()
			env = nil
		case protocol.Accepted:
			// Every accepted command counts as a heartbeat.
			c.safety.Heartbeat(now)
		}
	}
	if env != nil {
		c.dispatch(env, now)
	}

	c.mu.Lock()
	c.diag.Ticks++
	if !c.intentUntil.IsZero() && now.After(c.intentUntil) {
		c.intent = drive.Intent{}
		c.intentUntil = time.Time{}
	}
	intent := c.intent
	c.mu.Unlock()

	// Safety verdict for this cycle, strictly before the hardware write.
	frame := c.mixer.Stop()
	result := Result{Kind: ResultIdle}
	switch {
	case c.safety.State() == safety.EmergencyStop:
		if !intent.IsZero() {
			result = Result{Kind: ResultBlocked, Reason: "emergency stop"}
		}
	case intent.IsZero():
		// Nothing requested; the zero frame stands.
	default:
		if ok, reason := c.safety.CheckSafeToMove(intent.Forward()); !ok {
			result = Result{Kind: ResultBlocked, Reason: reason}
		} else {
			frame = c.mixer.Mix(intent)
			result = Result{Kind: ResultApplied}
		}
	}

	// Advance servo smoothing, then track head motion for camera selection.
	if c.servos != nil {
		c.servos.Tick()
		if c.cameras != nil {
			yaw, _ := c.servos.Angle(HeadYawChannel)
			pitch, _ := c.servos.Angle(HeadPitchChannel)
			c.cameras.OnHeadPosition(yaw, pitch, now)
		}
	}

	c.applyFrame(frame, result)
}

// applyFrame writes the frame as a unit, with dead-zone style suppression
// of redundant writes: an unchanged frame that already landed is skipped.
func (c *Core) applyFrame(frame drive.Frame, result Result) {
	// An emergency stop can latch between this cycle's safety verdict and
	// its write. Re-check here, before taking c.mu: the latch's own zero
	// write runs under c.mu, so whichever write lands second is the zero.
	if !frame.IsZero() && c.safety.State() == safety.EmergencyStop {
		frame = drive.Frame{}
		result = Result{Kind: ResultBlocked, Reason: "emergency stop"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if result.Kind == ResultBlocked {
		c.diag.Blocked++
	}

	if frame != c.lastWritten || !c.writeOK {
		if err := c.motors.SetMotor(frame.FL, frame.BL, frame.FR, frame.BR); err != nil {
			// Write boundary: zero the motors, record the fault, carry on.
			c.diag.Faults++
			c.writeOK = false
			c.lastFrame = drive.Frame{}
			c.lastResult = Result{Kind: ResultFault, Reason: err.Error()}
			log.Error("motor write failed", "error", err)
			if err := c.motors.SetMotor(0, 0, 0, 0); err != nil {
				log.Error("motor zero after fault failed", "error", err)
			}
			return
		}
		c.lastWritten = frame
		c.writeOK = true
	}
	c.lastFrame = frame
	c.lastResult = result
}

// dispatch routes an accepted envelope to the right subsystem.
func (c *Core) dispatch(env *protocol.CommandEnvelope, now time.Time) {
	c.mu.Lock()
	c.lastSummary = env.Summary()
	c.mu.Unlock()

	switch env.Cmd {
	case protocol.CmdDrive:
		c.setIntent(drive.Intent{VX: env.Drive.VX, VY: env.Drive.VY, VZ: env.Drive.VZ}, time.Time{})

	case protocol.CmdStop:
		c.setIntent(drive.Intent{}, time.Time{})

	case protocol.CmdEStop:
		c.safety.TriggerEmergencyStop("operator estop")

	case protocol.CmdHead:
		if c.safety.State() == safety.EmergencyStop {
			c.refuseEStop(env)
			return
		}
		if env.Head.Yaw != nil {
			if err := c.servos.SetTarget(HeadYawChannel, *env.Head.Yaw, env.Head.Smooth); err != nil {
				log.Warn("head yaw command failed", "error", err)
			}
		}
		if env.Head.Pitch != nil {
			if err := c.servos.SetTarget(HeadPitchChannel, *env.Head.Pitch, env.Head.Smooth); err != nil {
				log.Warn("head pitch command failed", "error", err)
			}
		}

	case protocol.CmdBehavior:
		if c.safety.State() == safety.EmergencyStop {
			c.refuseEStop(env)
			return
		}
		b, ok := c.behaviors[env.Behavior.Name]
		if !ok {
			log.Warn("unknown behavior", "name", env.Behavior.Name)
			return
		}
		b.Apply(c, now)

	case protocol.CmdGetState:
		// Answered at the transport; nothing to actuate.
	}
}

// refuseEStop records a command refused while the emergency stop latch is
// set. Drive intents are re-gated per cycle; servo and behavior actuation
// is refused outright at dispatch.
func (c *Core) refuseEStop(env *protocol.CommandEnvelope) {
	c.mu.Lock()
	c.diag.Blocked++
	c.lastSummary = env.Summary() + " (refused: emergency stop)"
	c.mu.Unlock()
	log.Warn("command refused during emergency stop", "cmd", env.Cmd)
}

func (c *Core) setIntent(in drive.Intent, until time.Time) {
	c.mu.Lock()
	c.intent = in.Clamp()
	c.intentUntil = until
	c.mu.Unlock()
}

// Diagnostics returns a copy of the counters.
func (c *Core) Diagnostics() Diagnostics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.diag
}

// LastFrame returns the frame computed by the most recent cycle.
func (c *Core) LastFrame() drive.Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFrame
}

// LastResult returns the most recent cycle's outcome.
func (c *Core) LastResult() Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastResult
}
