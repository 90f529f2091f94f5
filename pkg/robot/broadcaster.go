package robot

import (
	"context"
	"time"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/protocol"
	"github.com/teslashibe/go-eva/pkg/safety"
)

// DefaultBroadcastRate is the telemetry publish period (10 Hz).
const DefaultBroadcastRate = 100 * time.Millisecond

// Snapshot builds an immutable point-in-time state message. State is read
// under short-held locks per subsystem; the assembled message is a copy
// the caller owns outright, so no subscriber can observe a partial update.
func (c *Core) Snapshot(now time.Time) *protocol.StateMessage {
	msg := protocol.NewStateMessage(now)

	c.mu.RLock()
	msg.Motor = c.lastFrame.Values()
	msg.LastCommand = c.lastSummary
	if c.lastResult.Kind == ResultBlocked || c.lastResult.Kind == ResultFault {
		msg.SafetyReason = c.lastResult.Reason
	}
	c.mu.RUnlock()

	if c.servos != nil {
		msg.Servos = c.servos.Angles()
	}
	if c.safety != nil {
		msg.Safety = string(c.safety.State())
		if msg.SafetyReason == "" {
			msg.SafetyReason = c.safety.Reason()
		}
		r := c.safety.Sensors()
		msg.Sensors = protocol.SensorReadings{
			UltrasonicCM: r.UltrasonicCM,
			BatteryV:     r.BatteryV,
		}
	} else {
		msg.Safety = string(safety.Normal)
	}
	if c.cameras != nil {
		msg.ActiveCamera = string(c.cameras.Active())
	}
	return msg
}

// Publisher receives encoded telemetry. The hub's broadcast channel
// satisfies this: publishing never blocks on a slow subscriber.
type Publisher interface {
	BroadcastJSON(v any) error
}

// Broadcaster fans out telemetry snapshots at a fixed rate.
type Broadcaster struct {
	core *Core
	pub  Publisher
	rate time.Duration
}

// NewBroadcaster publishes c's snapshots to pub every rate interval.
func NewBroadcaster(c *Core, pub Publisher, rate time.Duration) *Broadcaster {
	if rate <= 0 {
		rate = DefaultBroadcastRate
	}
	return &Broadcaster{core: c, pub: pub, rate: rate}
}

// Run blocks until ctx is cancelled. Snapshots are built under the core's
// read lock but published outside it.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := b.core.Snapshot(time.Now())
			if err := b.pub.BroadcastJSON(msg); err != nil {
				log.Debug("telemetry broadcast failed", "error", err)
			}
		}
	}
}
