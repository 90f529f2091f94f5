package hw

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/teslashibe/go-eva/pkg/gamepad"
)

// Linux joystick API event records, 8 bytes each (linux/joystick.h).
const (
	jsEventButton = 0x01
	jsEventAxis   = 0x02
	jsEventInit   = 0x80 // synthetic replay of current state on open
)

// Axis and button numbers as the xpad driver maps an Xbox-style pad.
const (
	axisLeftX        = 0
	axisLeftY        = 1
	axisLeftTrigger  = 2
	axisRightX       = 3
	axisRightY       = 4
	axisRightTrigger = 5

	buttonA           = 0
	buttonB           = 1
	buttonX           = 2
	buttonY           = 3
	buttonLeftBumper  = 4
	buttonRightBumper = 5
)

// Joystick reads /dev/input/js* and maintains the latest controller
// state. A background goroutine drains the kernel event queue; Poll is
// non-blocking and satisfies gamepad.Source.
type Joystick struct {
	path string
	f    *os.File

	mu    sync.Mutex
	state gamepad.State
	err   error
}

// OpenJoystick opens the device and starts the reader goroutine. The
// kernel replays the current state as init events, so the first polls
// already see held buttons and stick positions.
func OpenJoystick(path string) (*Joystick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hw: open joystick %s: %w", path, err)
	}
	j := &Joystick{path: path, f: f}
	go j.readLoop()
	return j, nil
}

func (j *Joystick) readLoop() {
	buf := make([]byte, 8)
	for {
		if _, err := io.ReadFull(j.f, buf); err != nil {
			j.mu.Lock()
			j.err = fmt.Errorf("hw: joystick %s: %w", j.path, err)
			j.mu.Unlock()
			return
		}
		j.apply(decodeJSEvent(buf))
	}
}

// Poll returns the latest state. After a read failure it keeps
// returning the error; the caller decides whether to give up.
func (j *Joystick) Poll() (gamepad.State, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.err
}

// Close stops the reader by closing the device.
func (j *Joystick) Close() error {
	return j.f.Close()
}

type jsEvent struct {
	value  int16
	typ    uint8
	number uint8
}

func decodeJSEvent(buf []byte) jsEvent {
	// u32 timestamp, s16 value, u8 type, u8 number.
	return jsEvent{
		value:  int16(binary.LittleEndian.Uint16(buf[4:6])),
		typ:    buf[6],
		number: buf[7],
	}
}

func (j *Joystick) apply(e jsEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch e.typ &^ jsEventInit {
	case jsEventAxis:
		switch e.number {
		case axisLeftX:
			j.state.LeftX = normAxis(e.value)
		case axisLeftY:
			j.state.LeftY = normAxis(e.value)
		case axisRightX:
			j.state.RightX = normAxis(e.value)
		case axisRightY:
			j.state.RightY = normAxis(e.value)
		case axisLeftTrigger:
			j.state.LeftTrigger = normTrigger(e.value)
		case axisRightTrigger:
			j.state.RightTrigger = normTrigger(e.value)
		}
	case jsEventButton:
		on := e.value != 0
		switch e.number {
		case buttonA:
			j.state.ButtonA = on
		case buttonB:
			j.state.ButtonB = on
		case buttonX:
			j.state.ButtonX = on
		case buttonY:
			j.state.ButtonY = on
		case buttonLeftBumper:
			j.state.LeftBumper = on
		case buttonRightBumper:
			j.state.RightBumper = on
		}
	}
}

func normAxis(v int16) float64 {
	return float64(v) / 32767.0
}

// Triggers rest at -32767 on the js interface; map to [0, 1].
func normTrigger(v int16) float64 {
	return (float64(v) + 32767.0) / 65534.0
}
