package hw

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
	"time"

	"github.com/teslashibe/go-eva/pkg/gamepad"
)

func jsBytes(value int16, typ, number uint8) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], 12345) // timestamp, ignored
	binary.LittleEndian.PutUint16(buf[4:6], uint16(value))
	buf[6] = typ
	buf[7] = number
	return buf
}

func waitState(t *testing.T, j *Joystick, ok func(gamepad.State) bool) gamepad.State {
	t.Helper()
	var st gamepad.State
	for i := 0; i < 200; i++ {
		st, _ = j.Poll()
		if ok(st) {
			return st
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state never settled, last = %+v", st)
	return st
}

func TestJoystick_EventStreamUpdatesState(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	j := &Joystick{path: "pipe", f: r}
	go j.readLoop()

	w.Write(jsBytes(-32767, jsEventAxis, axisLeftY)) // stick full up
	w.Write(jsBytes(1, jsEventButton, buttonB))
	// Init replays must fold into state like live events.
	w.Write(jsBytes(16384, jsEventAxis|jsEventInit, axisRightX))

	st := waitState(t, j, func(st gamepad.State) bool {
		return st.ButtonB && st.LeftY != 0 && st.RightX != 0
	})
	if st.LeftY != -1 {
		t.Errorf("LeftY = %v, want -1 (full up)", st.LeftY)
	}
	if math.Abs(st.RightX-0.5) > 0.001 {
		t.Errorf("RightX = %v, want ~0.5", st.RightX)
	}

	w.Write(jsBytes(0, jsEventButton, buttonB)) // release
	st = waitState(t, j, func(st gamepad.State) bool { return !st.ButtonB })
	if st.ButtonB {
		t.Error("ButtonB still pressed after release event")
	}
}

func TestJoystick_TriggerMapsToUnitRange(t *testing.T) {
	j := &Joystick{}

	j.apply(jsEvent{value: -32767, typ: jsEventAxis, number: axisLeftTrigger})
	if st, _ := j.Poll(); st.LeftTrigger != 0 {
		t.Errorf("resting trigger = %v, want 0", st.LeftTrigger)
	}
	j.apply(jsEvent{value: 32767, typ: jsEventAxis, number: axisRightTrigger})
	if st, _ := j.Poll(); st.RightTrigger != 1 {
		t.Errorf("full trigger = %v, want 1", st.RightTrigger)
	}
}

func TestJoystick_PollReportsReadFailure(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}

	j := &Joystick{path: "pipe", f: r}
	go j.readLoop()
	w.Close() // device unplugged

	for i := 0; i < 200; i++ {
		if _, err := j.Poll(); err != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Poll never surfaced the read failure")
}
