package protocol

import (
	"encoding/json"
	"time"
)

// SensorReadings is the sensor block of a state message.
type SensorReadings struct {
	UltrasonicCM float64 `json:"ultrasonic_cm"`
	BatteryV     float64 `json:"battery_v"`
}

// StateMessage is the outbound telemetry snapshot shape.
type StateMessage struct {
	Type         string          `json:"type"`      // always "state"
	Timestamp    int64           `json:"timestamp"` // unix milliseconds
	Motor        [4]int          `json:"motor"`     // fl, bl, fr, br
	Servos       map[int]float64 `json:"servos"`
	Safety       string          `json:"safety"` // normal | caution | estop
	SafetyReason string          `json:"safety_reason,omitempty"`
	Sensors      SensorReadings  `json:"sensors"`
	ActiveCamera string          `json:"active_camera"` // nav | head
	LastCommand  string          `json:"last_command,omitempty"`
}

// NewStateMessage stamps a state message with the given time.
func NewStateMessage(t time.Time) *StateMessage {
	return &StateMessage{
		Type:      "state",
		Timestamp: t.UnixMilli(),
		Servos:    make(map[int]float64),
	}
}

// Bytes returns the JSON-encoded message.
func (m *StateMessage) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseState decodes a state message, for client-side consumers.
func ParseState(raw []byte) (*StateMessage, error) {
	var m StateMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
