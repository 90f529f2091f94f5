package servo

import (
	"errors"
	"sync"
	"testing"
)

// mockDriver records every hardware write.
type mockDriver struct {
	mu     sync.Mutex
	writes []struct {
		channel int
		angle   float64
	}
	failing bool
}

func (m *mockDriver) SetServo(channel int, angle float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("i2c write failed")
	}
	m.writes = append(m.writes, struct {
		channel int
		angle   float64
	}{channel, angle})
	return nil
}

func (m *mockDriver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *mockDriver) last() (int, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return -1, 0
	}
	w := m.writes[len(m.writes)-1]
	return w.channel, w.angle
}

func headConfigs() []Config {
	return []Config{
		{ID: 0, Min: 0, Max: 180, Home: 90, Step: 2}, // yaw
		{ID: 1, Min: 30, Max: 150, Home: 90, Step: 2}, // pitch
	}
}

func TestSetTarget_Immediate(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	if err := c.SetTarget(0, 120, false); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}

	ch, angle := d.last()
	if ch != 0 || angle != 120 {
		t.Errorf("last write = (%d, %v), want (0, 120)", ch, angle)
	}
	if got, _ := c.Angle(0); got != 120 {
		t.Errorf("Angle(0) = %v, want 120", got)
	}
}

func TestSetTarget_ClampsToBounds(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	if err := c.SetTarget(1, 500, false); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if got, _ := c.Angle(1); got != 150 {
		t.Errorf("Angle(1) = %v, want 150 (upper bound)", got)
	}

	if err := c.SetTarget(1, -45, false); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if got, _ := c.Angle(1); got != 30 {
		t.Errorf("Angle(1) = %v, want 30 (lower bound)", got)
	}
}

func TestSetTarget_HysteresisSkipsTinyMoves(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	if err := c.SetTarget(0, 90.5, false); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if d.count() != 0 {
		t.Errorf("writes = %d, want 0 (move below hysteresis)", d.count())
	}
	if got, _ := c.Angle(0); got != 90 {
		t.Errorf("Angle(0) = %v, want 90 (unchanged)", got)
	}
}

func TestSetTarget_HoldCancelsSmoothMove(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	c.SetTarget(0, 140, true)
	c.Tick() // 92
	c.Tick() // 94

	// Command back to the present pose mid-move. It is far from the 140
	// target even though it matches Current, so it must retarget rather
	// than be dropped as jitter.
	if err := c.SetTarget(0, 94, true); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	for i := 0; i < 100 && c.Busy(); i++ {
		c.Tick()
	}
	if got, _ := c.Angle(0); got != 94 {
		t.Errorf("final angle = %v, want 94 (hold command ignored)", got)
	}
}

func TestSetTarget_UnknownChannel(t *testing.T) {
	c := NewController(&mockDriver{}, headConfigs())
	if err := c.SetTarget(7, 90, false); err == nil {
		t.Fatal("SetTarget(unknown) did not error")
	}
}

func TestSmoothMotion_StepsToTarget(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	// 90 -> 97 at 2 degrees per tick: 95 is within one step of 97,
	// so the walk is 92, 94, 96, 97.
	if err := c.SetTarget(0, 97, true); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if d.count() != 0 {
		t.Fatalf("smooth SetTarget wrote immediately (%d writes)", d.count())
	}

	var angles []float64
	for c.Busy() {
		if err := c.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		_, a := d.last()
		angles = append(angles, a)
	}

	want := []float64{92, 94, 96, 97}
	if len(angles) != len(want) {
		t.Fatalf("steps = %v, want %v", angles, want)
	}
	for i := range want {
		if angles[i] != want[i] {
			t.Fatalf("steps = %v, want %v", angles, want)
		}
	}
}

func TestSmoothMotion_FinalStepLandsExactly(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	if err := c.SetTarget(0, 101, true); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	for i := 0; i < 100 && c.Busy(); i++ {
		c.Tick()
	}
	if got, _ := c.Angle(0); got != 101 {
		t.Errorf("final angle = %v, want exactly 101", got)
	}
}

func TestHome_AllChannelsSmooth(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	c.SetTarget(0, 150, false)
	c.SetTarget(1, 40, false)
	c.Home()

	if !c.Busy() {
		t.Fatal("Home() should start smooth motion")
	}
	for i := 0; i < 200 && c.Busy(); i++ {
		c.Tick()
	}
	if got, _ := c.Angle(0); got != 90 {
		t.Errorf("channel 0 = %v, want home 90", got)
	}
	if got, _ := c.Angle(1); got != 90 {
		t.Errorf("channel 1 = %v, want home 90", got)
	}
}

func TestAbandon_FreezesInPlace(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	c.SetTarget(0, 150, true)
	c.Tick()
	c.Tick()
	before, _ := c.Angle(0)

	c.Abandon()
	if c.Busy() {
		t.Fatal("Abandon() left motion pending")
	}
	writes := d.count()
	c.Tick()
	if d.count() != writes {
		t.Error("Tick() after Abandon() issued a write")
	}
	if after, _ := c.Angle(0); after != before {
		t.Errorf("angle moved after Abandon: %v -> %v", before, after)
	}
}

func TestTick_DriverFaultDoesNotAdvance(t *testing.T) {
	d := &mockDriver{}
	c := NewController(d, headConfigs())

	c.SetTarget(0, 120, true)
	d.failing = true
	if err := c.Tick(); err == nil {
		t.Fatal("Tick() swallowed driver error")
	}
	if got, _ := c.Angle(0); got != 90 {
		t.Errorf("angle advanced past failed write: %v", got)
	}

	// Recovery: the next good tick resumes the walk.
	d.failing = false
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick() error after recovery = %v", err)
	}
	if got, _ := c.Angle(0); got != 92 {
		t.Errorf("angle = %v, want 92 after recovery", got)
	}
}
