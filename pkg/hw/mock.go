// Package hw provides hardware backends for the actuation core: a mock
// board for development machines and an HTTP bridge to the motor
// controller daemon on the chassis.
package hw

import (
	"sync"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/camera"
)

// MockBoard satisfies every hardware interface the core needs, so the
// full daemon runs on a laptop with no robot attached. Writes are
// logged at debug level and remembered for inspection.
type MockBoard struct {
	mu sync.Mutex

	motors [4]int
	servos map[int]float64

	// Sensor values returned to the safety controller. Defaults are
	// comfortably inside every threshold.
	DistanceCM float64
	BatteryV   float64
}

// NewMockBoard returns a board reporting a clear path and a full battery.
func NewMockBoard() *MockBoard {
	return &MockBoard{
		servos:     make(map[int]float64),
		DistanceCM: 100,
		BatteryV:   7.4,
	}
}

// SetMotor records the wheel frame.
func (b *MockBoard) SetMotor(fl, bl, fr, br int) error {
	b.mu.Lock()
	b.motors = [4]int{fl, bl, fr, br}
	b.mu.Unlock()
	log.Debug("mock motors", "fl", fl, "bl", bl, "fr", fr, "br", br)
	return nil
}

// SetServo records the servo angle.
func (b *MockBoard) SetServo(channel int, angle float64) error {
	b.mu.Lock()
	b.servos[channel] = angle
	b.mu.Unlock()
	log.Debug("mock servo", "channel", channel, "angle", angle)
	return nil
}

// ReadUltrasonic returns the configured distance.
func (b *MockBoard) ReadUltrasonic() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.DistanceCM, nil
}

// ReadBattery returns the configured voltage.
func (b *MockBoard) ReadBattery() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.BatteryV, nil
}

// Motors returns the last written wheel frame.
func (b *MockBoard) Motors() [4]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motors
}

// minimal valid JPEG: SOI marker, a comment segment, EOI marker. Enough
// for clients that only check magic bytes.
var mockJPEG = []byte{
	0xFF, 0xD8, // SOI
	0xFF, 0xFE, 0x00, 0x06, 'm', 'o', 'c', 'k', // COM
	0xFF, 0xD9, // EOI
}

// MockCapture produces placeholder JPEG frames without a camera.
type MockCapture struct{}

// CaptureFrame returns a tiny static JPEG for any camera.
func (MockCapture) CaptureFrame(_ camera.ID) ([]byte, error) {
	return mockJPEG, nil
}

// Close is a no-op.
func (MockCapture) Close() error { return nil }
