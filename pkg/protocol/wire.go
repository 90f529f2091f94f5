package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireCommand is the raw JSON shape accepted on the control channel.
// It is transport-agnostic: the same shape arrives over websocket or a
// TCP-framed connection.
type wireCommand struct {
	Type     string          `json:"type"`
	Source   string          `json:"source"`
	Priority int             `json:"priority"`
	Seq      int64           `json:"seq"`
	TTLMs    int64           `json:"ttl_ms"`
	Cmd      string          `json:"cmd"`
	Params   json.RawMessage `json:"params,omitempty"`
	SentTS   float64         `json:"sent_ts,omitempty"` // unix seconds, fractional
}

// ParseError reports an unparseable or structurally invalid message.
// It is never fatal to the caller: a malformed command is logged, counted,
// and treated as Stop upstream.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse command: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse command: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a raw control message into a canonical CommandEnvelope.
// now is stamped as the receipt time. Fail-safe defaults apply: an unknown
// source becomes SourceUnknown and an unknown or missing cmd becomes Stop.
// Malformed JSON or malformed params return a *ParseError.
func Parse(raw []byte, now time.Time) (*CommandEnvelope, error) {
	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &ParseError{Reason: "invalid json", Err: err}
	}
	if w.Type != "" && w.Type != "command" {
		return nil, &ParseError{Reason: fmt.Sprintf("unexpected type %q", w.Type)}
	}

	env := &CommandEnvelope{
		Source:     parseSource(w.Source),
		Priority:   w.Priority,
		Seq:        w.Seq,
		TTL:        time.Duration(w.TTLMs) * time.Millisecond,
		ReceivedAt: now,
	}
	if w.SentTS > 0 {
		sec := int64(w.SentTS)
		nsec := int64((w.SentTS - float64(sec)) * 1e9)
		env.SentTS = time.Unix(sec, nsec)
	}

	switch CmdType(w.Cmd) {
	case CmdDrive:
		var p DriveParams
		if len(w.Params) > 0 {
			if err := json.Unmarshal(w.Params, &p); err != nil {
				return nil, &ParseError{Reason: "invalid drive params", Err: err}
			}
		}
		p.VX = clamp(p.VX, -1, 1)
		p.VY = clamp(p.VY, -1, 1)
		p.VZ = clamp(p.VZ, -1, 1)
		env.Cmd = CmdDrive
		env.Drive = &p
	case CmdHead:
		var p HeadParams
		if len(w.Params) > 0 {
			if err := json.Unmarshal(w.Params, &p); err != nil {
				return nil, &ParseError{Reason: "invalid head params", Err: err}
			}
		}
		env.Cmd = CmdHead
		env.Head = &p
	case CmdBehavior:
		var p BehaviorParams
		if len(w.Params) > 0 {
			if err := json.Unmarshal(w.Params, &p); err != nil {
				return nil, &ParseError{Reason: "invalid behavior params", Err: err}
			}
		}
		if p.Name == "" {
			return nil, &ParseError{Reason: "behavior without a name"}
		}
		env.Cmd = CmdBehavior
		env.Behavior = &p
	case CmdStop, CmdEStop, CmdHeartbeat, CmdGetState:
		env.Cmd = CmdType(w.Cmd)
	default:
		// Unknown or missing command: fail safe to Stop, never to motion.
		env.Cmd = CmdStop
	}

	return env, nil
}

func parseSource(s string) Source {
	switch Source(s) {
	case SourceManual, SourceAutonomous, SourceScript:
		return Source(s)
	default:
		return SourceUnknown
	}
}

// Verdict is the result of validating an envelope against the clock.
type Verdict int

const (
	// Accepted means the envelope may proceed to arbitration and actuation.
	Accepted Verdict = iota
	// Expired means the envelope's TTL elapsed before it could be applied.
	// Expired commands produce no actuation side effect but are counted.
	Expired
	// Malformed means the envelope is structurally unusable.
	Malformed
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Expired:
		return "expired"
	default:
		return "malformed"
	}
}

// Validate checks an envelope at the point of use. Parse already guarantees
// structure, so the remaining checks are expiry and internal consistency.
func Validate(env *CommandEnvelope, now time.Time) Verdict {
	if env == nil {
		return Malformed
	}
	switch env.Cmd {
	case CmdDrive:
		if env.Drive == nil {
			return Malformed
		}
	case CmdHead:
		if env.Head == nil {
			return Malformed
		}
	case CmdBehavior:
		if env.Behavior == nil {
			return Malformed
		}
	}
	if env.Expired(now) {
		return Expired
	}
	return Accepted
}

// Encode serializes an envelope back to the wire shape. Encode then Parse
// reproduces every field.
func Encode(env *CommandEnvelope) ([]byte, error) {
	w := wireCommand{
		Type:     "command",
		Source:   string(env.Source),
		Priority: env.Priority,
		Seq:      env.Seq,
		TTLMs:    env.TTL.Milliseconds(),
		Cmd:      string(env.Cmd),
	}
	if !env.SentTS.IsZero() {
		w.SentTS = float64(env.SentTS.UnixNano()) / 1e9
	}

	var params any
	switch env.Cmd {
	case CmdDrive:
		params = env.Drive
	case CmdHead:
		params = env.Head
	case CmdBehavior:
		params = env.Behavior
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode command params: %w", err)
		}
		w.Params = raw
	}

	return json.Marshal(w)
}
