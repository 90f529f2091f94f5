// Package safety owns the robot's safety state machine: the heartbeat
// watchdog, the obstacle and battery gates, and the emergency stop. Every
// drive command passes through here before it can reach the wheels.
package safety

import (
	"sync"
	"time"

	"github.com/teslashibe/go-eva/internal/log"
)

// State is the safety level gating actuation.
type State string

const (
	// Normal allows all motion.
	Normal State = "normal"
	// Caution allows motion subject to the obstacle/battery gate.
	Caution State = "caution"
	// EmergencyStop forces the zero frame every cycle. The only way out
	// is an explicit ResetEmergency call, never command traffic.
	EmergencyStop State = "estop"
)

// Thresholds are the gate limits, tuned for the Freenove chassis.
type Thresholds struct {
	MinDistanceCM    float64       // forward motion blocked below this
	EStopDistanceCM  float64       // critical proximity forces estop
	LowBatteryV      float64       // all motion blocked, state -> caution
	CriticalBatteryV float64       // forces estop
	HeartbeatTimeout time.Duration // watchdog lapse forces estop
}

// DefaultThresholds mirrors the deployed calibration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDistanceCM:    15.0,
		EStopDistanceCM:  10.0,
		LowBatteryV:      6.5,
		CriticalBatteryV: 6.0,
		HeartbeatTimeout: 5 * time.Second,
	}
}

// Readings is the most recent sensor sample the gates evaluate.
type Readings struct {
	UltrasonicCM float64
	BatteryV     float64
	At           time.Time
}

// WarningLevel classifies a safety warning.
type WarningLevel string

const (
	LevelWarning   WarningLevel = "warning"
	LevelCritical  WarningLevel = "critical"
	LevelEmergency WarningLevel = "emergency"
)

// Warning is one entry in the diagnostics ring.
type Warning struct {
	At      time.Time
	Level   WarningLevel
	Message string
	Sensor  string
	Value   float64
}

const warningRingSize = 100

// Watchdog tracks heartbeat freshness against an injectable clock, so
// tests tick it with fake time instead of sleeping.
type Watchdog struct {
	timeout       time.Duration
	lastHeartbeat time.Time
}

// NewWatchdog starts fed as of now.
func NewWatchdog(timeout time.Duration, now time.Time) *Watchdog {
	return &Watchdog{timeout: timeout, lastHeartbeat: now}
}

// Feed records a heartbeat.
func (w *Watchdog) Feed(now time.Time) {
	w.lastHeartbeat = now
}

// Expired reports whether the heartbeat lapsed, and by how much.
func (w *Watchdog) Expired(now time.Time) (bool, time.Duration) {
	elapsed := now.Sub(w.lastHeartbeat)
	return elapsed > w.timeout, elapsed
}

// StopFunc zeroes actuation immediately. The controller calls it the
// moment an emergency stop triggers, independent of the actuation tick.
type StopFunc func()

// Controller is the safety state machine. It owns State exclusively;
// everyone else reads it through State() or the telemetry snapshot.
type Controller struct {
	mu sync.Mutex

	state      State
	reason     string
	thresholds Thresholds
	watchdog   *Watchdog
	sensors    Readings
	haveSensor bool

	warnings []Warning
	onStop   StopFunc
}

// NewController starts in Normal with a freshly fed watchdog.
func NewController(th Thresholds, now time.Time, onStop StopFunc) *Controller {
	return &Controller{
		state:      Normal,
		thresholds: th,
		watchdog:   NewWatchdog(th.HeartbeatTimeout, now),
		onStop:     onStop,
	}
}

// SetStopFunc wires the actuation-zeroing callback. The safety controller
// is built before the actuation core, so the hookup happens after.
func (c *Controller) SetStopFunc(fn StopFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStop = fn
}

// Heartbeat feeds the watchdog. Every accepted command counts as one.
func (c *Controller) Heartbeat(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchdog.Feed(now)
}

// Tick runs the periodic watchdog check. On a lapse it forces
// EmergencyStop and fires the stop callback at once.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	expired, elapsed := c.watchdog.Expired(now)
	if !expired || c.state == EmergencyStop {
		c.mu.Unlock()
		return
	}
	c.triggerLocked("watchdog timeout", now)
	c.addWarningLocked(Warning{
		At: now, Level: LevelEmergency, Sensor: "watchdog",
		Message: "heartbeat lapsed", Value: elapsed.Seconds(),
	})
	c.mu.Unlock()
}

// UpdateSensors feeds the latest readings and applies level transitions:
// low battery raises Caution, critical battery or critical proximity
// forces EmergencyStop.
func (c *Controller) UpdateSensors(r Readings, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sensors = r
	c.haveSensor = true

	if r.BatteryV > 0 && r.BatteryV < c.thresholds.CriticalBatteryV {
		c.addWarningLocked(Warning{
			At: now, Level: LevelCritical, Sensor: "battery",
			Message: "battery critical", Value: r.BatteryV,
		})
		c.triggerLocked("battery critical", now)
		return
	}
	if r.UltrasonicCM > 0 && r.UltrasonicCM < c.thresholds.EStopDistanceCM {
		c.addWarningLocked(Warning{
			At: now, Level: LevelCritical, Sensor: "ultrasonic",
			Message: "obstacle critical", Value: r.UltrasonicCM,
		})
		c.triggerLocked("obstacle critical", now)
		return
	}
	if r.BatteryV > 0 && r.BatteryV < c.thresholds.LowBatteryV {
		if c.state == Normal {
			c.state = Caution
			c.reason = "battery low"
		}
		c.addWarningLocked(Warning{
			At: now, Level: LevelWarning, Sensor: "battery",
			Message: "battery low", Value: r.BatteryV,
		})
	}
}

// CheckSafeToMove gates a drive request. Forward motion is blocked when
// the most recent ultrasonic reading is under the minimum distance; all
// motion is blocked on low battery or while stopped.
func (c *Controller) CheckSafeToMove(forward bool) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == EmergencyStop {
		return false, "emergency stop active: " + c.reason
	}
	if c.haveSensor && c.sensors.BatteryV > 0 && c.sensors.BatteryV < c.thresholds.LowBatteryV {
		return false, "battery low"
	}
	if forward && c.haveSensor && c.sensors.UltrasonicCM > 0 &&
		c.sensors.UltrasonicCM < c.thresholds.MinDistanceCM {
		return false, "obstacle ahead"
	}
	return true, ""
}

// TriggerEmergencyStop forces EmergencyStop. Idempotent: a second trigger
// while stopped changes nothing.
func (c *Controller) TriggerEmergencyStop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggerLocked(reason, time.Now())
}

func (c *Controller) triggerLocked(reason string, now time.Time) {
	if c.state == EmergencyStop {
		return
	}
	c.state = EmergencyStop
	c.reason = reason
	c.addWarningLocked(Warning{
		At: now, Level: LevelEmergency, Sensor: "system",
		Message: "emergency stop: " + reason,
	})
	log.Warn("emergency stop", "reason", reason)
	if c.onStop != nil {
		c.onStop()
	}
}

// ResetEmergency is the only transition out of EmergencyStop. It refuses
// while the condition that caused the stop still holds.
func (c *Controller) ResetEmergency(now time.Time) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != EmergencyStop {
		return true, ""
	}
	if c.haveSensor {
		if c.sensors.BatteryV > 0 && c.sensors.BatteryV < c.thresholds.CriticalBatteryV {
			return false, "battery still critical"
		}
		if c.sensors.UltrasonicCM > 0 && c.sensors.UltrasonicCM < c.thresholds.EStopDistanceCM {
			return false, "obstacle still present"
		}
	}

	c.state = Normal
	c.reason = ""
	c.watchdog.Feed(now)
	log.Info("emergency stop reset")
	return true, ""
}

// State returns the current safety state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns why the current state was entered, if any.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Sensors returns the last readings fed in.
func (c *Controller) Sensors() Readings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sensors
}

// RecentWarnings returns up to n most recent warnings, newest last.
func (c *Controller) RecentWarnings(n int) []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.warnings) {
		n = len(c.warnings)
	}
	out := make([]Warning, n)
	copy(out, c.warnings[len(c.warnings)-n:])
	return out
}

func (c *Controller) addWarningLocked(w Warning) {
	c.warnings = append(c.warnings, w)
	if len(c.warnings) > warningRingSize {
		c.warnings = c.warnings[len(c.warnings)-warningRingSize:]
	}
}
