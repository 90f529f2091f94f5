// Package servo provides bounded, optionally smoothed angle control for the
// head and arm joints. Targets are always clamped to the channel's limits
// before use: an out-of-range request lands exactly on the nearest bound,
// it is never rejected.
package servo

import (
	"fmt"
	"sync"

	"github.com/teslashibe/go-eva/internal/log"
)

// HysteresisDeg is the minimum move worth sending. Smaller deltas are
// no-ops so floating-point jitter never causes hardware churn.
const HysteresisDeg = 2.0

// Driver is the hardware boundary: one synchronous write per angle.
type Driver interface {
	SetServo(channel int, angle float64) error
}

// Channel is one servo joint. Current and Target stay within [Min, Max]
// at all times; only the Controller mutates them.
type Channel struct {
	ID      int
	Current float64
	Target  float64
	Min     float64
	Max     float64
	Home    float64
	Step    float64 // degrees per tick when smoothing; 0 = instantaneous
}

func (c *Channel) clampAngle(a float64) float64 {
	if a < c.Min {
		return c.Min
	}
	if a > c.Max {
		return c.Max
	}
	return a
}

// settled reports whether the channel has reached its target.
func (c *Channel) settled() bool {
	return c.Current == c.Target
}

// Config describes one channel at construction time.
type Config struct {
	ID   int
	Min  float64
	Max  float64
	Home float64
	Step float64
}

// Controller owns every servo channel and serializes hardware writes.
// Smooth moves advance one step per Tick; instantaneous moves write once.
type Controller struct {
	driver Driver

	mu       sync.RWMutex
	channels map[int]*Channel
}

// NewController builds a controller with each channel parked at its home
// angle. No hardware writes happen here; the first Tick or SetTarget does.
func NewController(driver Driver, configs []Config) *Controller {
	c := &Controller{
		driver:   driver,
		channels: make(map[int]*Channel, len(configs)),
	}
	for _, cfg := range configs {
		ch := &Channel{
			ID:   cfg.ID,
			Min:  cfg.Min,
			Max:  cfg.Max,
			Home: cfg.Home,
			Step: cfg.Step,
		}
		ch.Home = ch.clampAngle(ch.Home)
		ch.Current = ch.Home
		ch.Target = ch.Home
		c.channels[cfg.ID] = ch
	}
	return c
}

// SetTarget points a channel at an angle. The angle is clamped to the
// channel limits before anything else. Targets within HysteresisDeg of the
// one already set are dropped; the comparison is against Target, not
// Current, so a command back toward the present pose still cancels a
// smoothing move in flight. With smooth=false the write happens
// immediately; with smooth=true motion proceeds step by step on
// subsequent Ticks.
func (c *Controller) SetTarget(channel int, angle float64, smooth bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[channel]
	if !ok {
		return fmt.Errorf("servo: unknown channel %d", channel)
	}

	angle = ch.clampAngle(angle)
	if abs(angle-ch.Target) < HysteresisDeg {
		return nil
	}

	ch.Target = angle
	if smooth && ch.Step > 0 {
		// Motion continues on Tick.
		return nil
	}

	if err := c.driver.SetServo(ch.ID, angle); err != nil {
		return fmt.Errorf("servo: write channel %d: %w", ch.ID, err)
	}
	ch.Current = angle
	return nil
}

// Tick advances every smoothing channel by one step. The final step lands
// exactly on target. Returns the first hardware error; remaining channels
// still get their step.
func (c *Controller) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, ch := range c.channels {
		if ch.settled() {
			continue
		}
		next := ch.Target
		if ch.Step > 0 && abs(ch.Target-ch.Current) > ch.Step {
			if ch.Target > ch.Current {
				next = ch.Current + ch.Step
			} else {
				next = ch.Current - ch.Step
			}
		}
		if err := c.driver.SetServo(ch.ID, next); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("servo: write channel %d: %w", ch.ID, err)
			}
			log.Warn("servo write failed", "channel", ch.ID, "error", err)
			continue
		}
		ch.Current = next
	}
	return firstErr
}

// Home drives every channel to its home angle with smoothing enabled.
func (c *Controller) Home() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.channels {
		ch.Target = ch.Home
	}
}

// Abandon freezes all in-flight motion in place: each target becomes the
// current position and no further steps are issued. Called on shutdown;
// the current position is safe by construction.
func (c *Controller) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.channels {
		ch.Target = ch.Current
	}
}

// Busy reports whether any channel is still moving toward its target.
func (c *Controller) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.channels {
		if !ch.settled() {
			return true
		}
	}
	return false
}

// Angle returns a channel's current angle.
func (c *Controller) Angle(channel int) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[channel]
	if !ok {
		return 0, false
	}
	return ch.Current, true
}

// Angles returns a copy of every channel's current angle, for telemetry.
func (c *Controller) Angles() map[int]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]float64, len(c.channels))
	for id, ch := range c.channels {
		out[id] = ch.Current
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
