package hw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teslashibe/go-eva/internal/httpc"
)

// Board talks to the chassis controller daemon over its local HTTP API.
// The daemon owns the I2C bus; this bridge keeps bus access out of the
// Go process entirely.
type Board struct {
	baseURL string
	client  *http.Client
}

// NewBoard points the bridge at the controller daemon, e.g.
// "http://127.0.0.1:8000". Calls time out fast so a wedged daemon reads
// as a hardware fault instead of a stalled actuation tick.
func NewBoard(baseURL string) *Board {
	return &Board{
		baseURL: baseURL,
		client:  httpc.NewClient(2 * time.Second),
	}
}

type motorRequest struct {
	FL int `json:"fl"`
	BL int `json:"bl"`
	FR int `json:"fr"`
	BR int `json:"br"`
}

type servoRequest struct {
	Channel int     `json:"channel"`
	Angle   float64 `json:"angle"`
}

type sensorResponse struct {
	DistanceCM float64 `json:"distance_cm"`
	BatteryV   float64 `json:"battery_v"`
}

// SetMotor applies one wheel frame.
func (b *Board) SetMotor(fl, bl, fr, br int) error {
	return b.post("/motor", motorRequest{FL: fl, BL: bl, FR: fr, BR: br})
}

// SetServo moves one servo channel.
func (b *Board) SetServo(channel int, angle float64) error {
	return b.post("/servo", servoRequest{Channel: channel, Angle: angle})
}

// ReadUltrasonic reads the forward distance sensor.
func (b *Board) ReadUltrasonic() (float64, error) {
	s, err := b.sensors()
	if err != nil {
		return 0, err
	}
	return s.DistanceCM, nil
}

// ReadBattery reads the pack voltage.
func (b *Board) ReadBattery() (float64, error) {
	s, err := b.sensors()
	if err != nil {
		return 0, err
	}
	return s.BatteryV, nil
}

func (b *Board) post(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hw: encode %s: %w", path, err)
	}
	resp, err := b.client.Post(b.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hw: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hw: post %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (b *Board) sensors() (sensorResponse, error) {
	var s sensorResponse
	resp, err := b.client.Get(b.baseURL + "/sensors")
	if err != nil {
		return s, fmt.Errorf("hw: get /sensors: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return s, fmt.Errorf("hw: get /sensors: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return s, fmt.Errorf("hw: decode /sensors: %w", err)
	}
	return s, nil
}
