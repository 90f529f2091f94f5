package robot

import (
	"time"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/camera"
	"github.com/teslashibe/go-eva/pkg/drive"
)

// Behavior is a named, scripted motion primitive. Behaviors run through
// the same servo and drive paths as direct commands, so every safety gate
// still applies; what triggers them (an operator or the decision source)
// is not this package's business.
type Behavior struct {
	Name  string
	Apply func(c *Core, now time.Time)
}

// Head pose presets, degrees. Center is the servo home position.
const (
	lookOffsetYaw   = 45.0
	lookOffsetPitch = 30.0
	headCenter      = 90.0
)

const spinDuration = 2 * time.Second

func defaultBehaviors() map[string]Behavior {
	list := []Behavior{
		{Name: "look_left", Apply: func(c *Core, _ time.Time) {
			c.headPreset(headCenter+lookOffsetYaw, headCenter)
		}},
		{Name: "look_right", Apply: func(c *Core, _ time.Time) {
			c.headPreset(headCenter-lookOffsetYaw, headCenter)
		}},
		{Name: "look_up", Apply: func(c *Core, _ time.Time) {
			c.headPreset(headCenter, headCenter+lookOffsetPitch)
		}},
		{Name: "look_down", Apply: func(c *Core, _ time.Time) {
			c.headPreset(headCenter, headCenter-lookOffsetPitch)
		}},
		{Name: "look_center", Apply: func(c *Core, _ time.Time) {
			c.headPreset(headCenter, headCenter)
		}},
		{Name: "home", Apply: func(c *Core, _ time.Time) {
			if c.servos != nil {
				c.servos.Home()
			}
		}},
		{Name: "spin", Apply: func(c *Core, now time.Time) {
			c.setIntent(drive.Intent{VZ: 0.5}, now.Add(spinDuration))
		}},
		{Name: "camera_toggle", Apply: func(c *Core, _ time.Time) {
			if c.cameras == nil {
				return
			}
			// Toggle pins the other camera; POST /api/camera/mode with
			// "auto" hands selection back to head motion.
			if c.cameras.Active() == camera.Nav {
				c.cameras.ForceMode(camera.ForcedHead)
			} else {
				c.cameras.ForceMode(camera.ForcedNav)
			}
		}},
	}
	m := make(map[string]Behavior, len(list))
	for _, b := range list {
		m[b.Name] = b
	}
	return m
}

// headPreset points both head axes with smoothing enabled.
func (c *Core) headPreset(yaw, pitch float64) {
	if c.servos == nil {
		return
	}
	if err := c.servos.SetTarget(HeadYawChannel, yaw, true); err != nil {
		log.Warn("behavior yaw failed", "error", err)
	}
	if err := c.servos.SetTarget(HeadPitchChannel, pitch, true); err != nil {
		log.Warn("behavior pitch failed", "error", err)
	}
}

// Behaviors lists the registered behavior names.
func (c *Core) Behaviors() []string {
	names := make([]string, 0, len(c.behaviors))
	for name := range c.behaviors {
		names = append(names, name)
	}
	return names
}
