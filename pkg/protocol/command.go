// Package protocol defines the wire format between go-eva and its command
// sources: the command envelope pushed by operators and the decision source,
// the outbound telemetry state message, and the binary video framing.
//
// Every inbound message is normalized into a CommandEnvelope with typed
// parameters. Unknown or missing commands degrade to Stop, never to motion.
package protocol

import (
	"fmt"
	"time"
)

// Source identifies who issued a command.
type Source string

const (
	SourceManual     Source = "manual"
	SourceAutonomous Source = "eva"
	SourceScript     Source = "script"
	SourceUnknown    Source = "unknown"
)

// CmdType identifies the command variant carried by an envelope.
type CmdType string

const (
	CmdDrive     CmdType = "drive"
	CmdHead      CmdType = "head"
	CmdBehavior  CmdType = "behavior"
	CmdStop      CmdType = "stop"
	CmdEStop     CmdType = "estop"
	CmdHeartbeat CmdType = "heartbeat"
	CmdGetState  CmdType = "get_state"
)

// DriveParams is a 3-axis velocity intent. Values are clamped to [-1, 1]
// at parse time, before anything downstream sees them.
type DriveParams struct {
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
}

// HeadParams targets the pan/tilt head. Nil fields leave that axis alone.
type HeadParams struct {
	Yaw    *float64 `json:"yaw,omitempty"`
	Pitch  *float64 `json:"pitch,omitempty"`
	Smooth bool     `json:"smooth,omitempty"`
}

// BehaviorParams names a scripted behavior (nod, look_around, spin, ...).
type BehaviorParams struct {
	Name string `json:"name"`
}

// CommandEnvelope is the canonical, validated form of an inbound command.
// Exactly one of Drive/Head/Behavior is non-nil, matching Cmd.
type CommandEnvelope struct {
	Source   Source  `json:"source"`
	Priority int     `json:"priority"`
	Seq      int64   `json:"seq"`
	TTL      time.Duration
	Cmd      CmdType `json:"cmd"`

	Drive    *DriveParams
	Head     *HeadParams
	Behavior *BehaviorParams

	// SentTS is the sender's clock, if it provided one. Zero means absent.
	SentTS time.Time
	// ReceivedAt is stamped at ingress and used for expiry when the sender
	// did not include a timestamp.
	ReceivedAt time.Time
}

// IssueTime returns the effective issue time used for TTL accounting.
func (e *CommandEnvelope) IssueTime() time.Time {
	if !e.SentTS.IsZero() {
		return e.SentTS
	}
	return e.ReceivedAt
}

// Expired reports whether the envelope's age exceeds its TTL.
// TTL 0 means the command never expires.
func (e *CommandEnvelope) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.IssueTime()) > e.TTL
}

// IsHeartbeat reports whether this envelope only feeds the watchdog.
// Heartbeats never compete for actuation.
func (e *CommandEnvelope) IsHeartbeat() bool {
	return e.Cmd == CmdHeartbeat
}

// Summary returns a short human-readable description for telemetry.
func (e *CommandEnvelope) Summary() string {
	switch e.Cmd {
	case CmdDrive:
		return fmt.Sprintf("drive(%.2f,%.2f,%.2f) from %s", e.Drive.VX, e.Drive.VY, e.Drive.VZ, e.Source)
	case CmdHead:
		return fmt.Sprintf("head from %s", e.Source)
	case CmdBehavior:
		return fmt.Sprintf("behavior %q from %s", e.Behavior.Name, e.Source)
	default:
		return fmt.Sprintf("%s from %s", e.Cmd, e.Source)
	}
}

// Arbitrate picks the winner between two envelopes arriving within the same
// actuation tick. Higher priority wins; ties go to the higher sequence from
// the same source, otherwise the incumbent keeps its slot. Heartbeats never
// win a slot; they are handled before arbitration.
func Arbitrate(current, incoming *CommandEnvelope) *CommandEnvelope {
	if current == nil {
		return incoming
	}
	if incoming == nil {
		return current
	}
	if incoming.Priority != current.Priority {
		if incoming.Priority > current.Priority {
			return incoming
		}
		return current
	}
	if incoming.Source == current.Source && incoming.Seq > current.Seq {
		return incoming
	}
	if incoming.Source == current.Source {
		return current
	}
	// Different sources at equal priority: most recent arrival wins.
	return incoming
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
