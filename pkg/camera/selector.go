// Package camera arbitrates which of the two onboard cameras is live and
// owns the capture devices. The navigation camera faces forward from the
// chassis; the head camera rides the pan/tilt arm. Only one source feeds
// the video stream at a time.
package camera

import (
	"sync"
	"time"

	"github.com/teslashibe/go-eva/internal/log"
)

// ID names a physical camera.
type ID string

const (
	Nav  ID = "nav"
	Head ID = "head"
)

// Mode controls the selection policy.
type Mode string

const (
	// Auto follows head motion: movement selects the head camera,
	// sustained idle falls back to navigation.
	Auto Mode = "auto"
	// ForcedNav pins the navigation camera.
	ForcedNav Mode = "forced_nav"
	// ForcedHead pins the head camera.
	ForcedHead Mode = "forced_head"
)

// Defaults match the tuning the robot shipped with.
const (
	DefaultMovementThreshold = 5.0 // degrees of combined yaw+pitch delta
	DefaultIdleTimeout       = 3 * time.Second
)

// SwitchFunc performs the physical switch (release one capture device,
// acquire the other). It runs outside the selector lock and may block
// briefly; the selector reports switching=true until it returns.
type SwitchFunc func(to ID) error

// Selector is the camera selection state machine. In Auto mode transitions
// are one-directional per detection window: motion forces Head, sustained
// idle forces Nav. Re-selecting the active camera is a no-op.
type Selector struct {
	mu sync.Mutex

	active    ID
	mode      Mode
	switching bool

	movementThreshold float64
	idleTimeout       time.Duration

	lastYaw      float64
	lastPitch    float64
	havePos      bool
	lastMotionAt time.Time

	onSwitch SwitchFunc
}

// NewSelector starts on the navigation camera in Auto mode.
func NewSelector(onSwitch SwitchFunc) *Selector {
	return &Selector{
		active:            Nav,
		mode:              Auto,
		movementThreshold: DefaultMovementThreshold,
		idleTimeout:       DefaultIdleTimeout,
		onSwitch:          onSwitch,
	}
}

// SetThresholds overrides the auto-switch tuning.
func (s *Selector) SetThresholds(movementDeg float64, idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if movementDeg > 0 {
		s.movementThreshold = movementDeg
	}
	if idle > 0 {
		s.idleTimeout = idle
	}
}

// OnHeadPosition feeds a head pose sample into the state machine. In
// forced modes it only updates motion bookkeeping and never switches.
func (s *Selector) OnHeadPosition(yaw, pitch float64, now time.Time) {
	s.mu.Lock()

	if !s.havePos {
		s.lastYaw, s.lastPitch = yaw, pitch
		s.havePos = true
		s.lastMotionAt = now
		s.mu.Unlock()
		return
	}

	delta := abs(yaw-s.lastYaw) + abs(pitch-s.lastPitch)
	s.lastYaw, s.lastPitch = yaw, pitch

	moving := delta >= s.movementThreshold
	if moving {
		s.lastMotionAt = now
	}

	if s.mode != Auto {
		s.mu.Unlock()
		return
	}

	var target ID
	switch {
	case moving:
		target = Head
	case now.Sub(s.lastMotionAt) >= s.idleTimeout:
		target = Nav
	default:
		s.mu.Unlock()
		return
	}

	s.switchLocked(target)
}

// ForceMode pins or releases the selection. Entering a forced mode switches
// to that camera immediately; returning to Auto leaves the current camera
// live until motion or idle says otherwise.
func (s *Selector) ForceMode(mode Mode) {
	s.mu.Lock()
	s.mode = mode
	switch mode {
	case ForcedNav:
		s.switchLocked(Nav)
	case ForcedHead:
		s.switchLocked(Head)
	default:
		s.mu.Unlock()
	}
}

// switchLocked starts an idempotent switch. The caller holds s.mu; the
// hardware handover can take 100ms or more, so it runs on its own
// goroutine and the caller returns immediately. The switching flag stays
// true until the handover finishes, which keeps frame producers and
// re-selects out of the window. Always unlocks.
func (s *Selector) switchLocked(to ID) {
	if s.active == to || s.switching {
		s.mu.Unlock()
		return
	}
	from := s.active
	s.switching = true
	s.mu.Unlock()

	go func() {
		var err error
		if s.onSwitch != nil {
			err = s.onSwitch(to)
		}

		s.mu.Lock()
		s.switching = false
		if err != nil {
			log.Warn("camera switch failed", "from", from, "to", to, "error", err)
		} else {
			s.active = to
			log.Info("camera switched", "from", from, "to", to)
		}
		s.mu.Unlock()
	}()
}

// Active returns the currently selected camera.
func (s *Selector) Active() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Mode returns the current selection mode.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Switching reports whether a device handover is in progress. Frame
// producers must skip encoding while this is true so the stream never
// interleaves frames from two sources.
func (s *Selector) Switching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switching
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
