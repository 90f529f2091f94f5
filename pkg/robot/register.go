package robot

import (
	"sync"

	"github.com/teslashibe/go-eva/pkg/protocol"
)

// LatestCommand is a single-slot, intentionally lossy command register.
// Input loops publish envelopes into it; the actuation tick drains it.
// Only the freshest winning command per tick matters: a superseded command
// is dropped, never buffered, so stale input can't queue up behind the
// actuation loop.
type LatestCommand struct {
	mu      sync.Mutex
	slot    *protocol.CommandEnvelope
	offered uint64
	dropped uint64
}

// Offer publishes an envelope. Arbitration against the current occupant
// follows the envelope protocol: higher priority wins, ties go to the
// newer sequence from the same source. Heartbeats never take the slot.
func (r *LatestCommand) Offer(env *protocol.CommandEnvelope) {
	if env == nil || env.IsHeartbeat() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offered++
	winner := protocol.Arbitrate(r.slot, env)
	if winner != env {
		r.dropped++
	} else if r.slot != nil {
		r.dropped++
	}
	r.slot = winner
}

// Take drains the slot, returning nil when no command arrived since the
// last tick.
func (r *LatestCommand) Take() *protocol.CommandEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	env := r.slot
	r.slot = nil
	return env
}

// Stats returns how many envelopes were offered and how many lost
// arbitration or were superseded.
func (r *LatestCommand) Stats() (offered, dropped uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offered, r.dropped
}
