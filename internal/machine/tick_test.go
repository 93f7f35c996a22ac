package machine

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

// testBoard is a minimal Board for exercising Tick in isolation.
type testBoard struct {
	held   [3]bool
	leds   [3]bool
	boiler bool
	pump   bool
}

func (b *testBoard) Pressed(btn Button) bool { return b.held[btn] }
func (b *testBoard) SetBoiler(on bool) { b.boiler = on }
func (b *testBoard) SetPump(fire bool) { b.pump = fire }
func (b *testBoard) SetLED(c Color, on bool) { b.leds[c] = on }
func (b *testBoard) Read(s Sensor) uint16 { return 0 }
func (b *testBoard) Enable(func()) {}
func (b *testBoard) Disable() {}
func (b *testBoard) Pause(context.Context) error { return nil }
func (b *testBoard) Halt(context.Context) error { return nil }
func (b *testBoard) Delay(context.Context, time.Duration) error { return nil }

func newTestController(t *testing.T) (*Controller, *testBoard) {
	t.Helper()
	b := &testBoard{}
	return New(DefaultConfig(), b, b, b), b
}

func TestDebounceSaturates(t *testing.T) {
	if got := debounce(0, false, 255); got != 0 {
		t.Errorf("released at 0: got %d, want 0", got)
	}
	if got := debounce(255, true, 255); got != 255 {
		t.Errorf("pressed at max: got %d, want 255", got)
	}
	if got := debounce(10, true, 255); got != 11 {
		t.Errorf("pressed: got %d, want 11", got)
	}
	if got := debounce(10, false, 255); got != 9 {
		t.Errorf("released: got %d, want 9", got)
	}
}

func TestDebounceBoundedRandomWalk(t *testing.T) {
	c, b := newTestController(t)
	rng := rand.New(rand.NewSource(1))

	var prev [3]uint32
	for i := 0; i < 200000; i++ {
		for _, btn := range Buttons {
			// Long runs of the same state so the counters reach both bounds.
			if rng.Intn(400) == 0 {
				b.held[btn] = !b.held[btn]
			}
		}
		c.Tick()
		for _, btn := range Buttons {
			v := c.counters[btn].Load()
			if v > counterMax(btn) {
				t.Fatalf("tick %d: %s counter %d above max %d", i, btn, v, counterMax(btn))
			}
			diff := int64(v) - int64(prev[btn])
			if diff > 1 || diff < -1 {
				t.Fatalf("tick %d: %s counter jumped from %d to %d", i, btn, prev[btn], v)
			}
			prev[btn] = v
		}
	}
}

func TestPowerCounterSaturatesAt255(t *testing.T) {
	c, b := newTestController(t)
	b.held[ButtonPower] = true
	b.held[ButtonOneCup] = true

	for i := 0; i < 1000; i++ {
		c.Tick()
	}
	if got := c.counters[ButtonPower].Load(); got != 255 {
		t.Errorf("power counter: got %d, want 255", got)
	}
	if got := c.counters[ButtonOneCup].Load(); got != 1000 {
		t.Errorf("1-cup counter: got %d, want 1000", got)
	}
}

func TestReleaseDecays(t *testing.T) {
	c, b := newTestController(t)
	b.held[ButtonOneCup] = true
	for i := 0; i < 50; i++ {
		c.Tick()
	}
	b.held[ButtonOneCup] = false
	c.Tick()
	if got := c.counters[ButtonOneCup].Load(); got != 49 {
		t.Errorf("one tick after release: got %d, want 49", got)
	}
	// A short bounce only costs a step.
	b.held[ButtonOneCup] = true
	c.Tick()
	if got := c.counters[ButtonOneCup].Load(); got != 50 {
		t.Errorf("after bounce: got %d, want 50", got)
	}
}

func TestTickSecondRollover(t *testing.T) {
	c, _ := newTestController(t)

	for i := 0; i < 999; i++ {
		c.Tick()
	}
	if c.timeCounter.Load() != 999 || c.secCounter.Load() != 0 {
		t.Fatalf("after 999 ticks: time=%d sec=%d", c.timeCounter.Load(), c.secCounter.Load())
	}
	c.Tick()
	if c.timeCounter.Load() != 0 || c.secCounter.Load() != 1 {
		t.Errorf("after 1000 ticks: time=%d sec=%d, want 0 and 1", c.timeCounter.Load(), c.secCounter.Load())
	}
	for i := 0; i < 2000; i++ {
		c.Tick()
	}
	if c.secCounter.Load() != 3 {
		t.Errorf("after 3000 ticks: sec=%d, want 3", c.secCounter.Load())
	}
	if c.userTime.Load() != 3000 {
		t.Errorf("user time: got %d, want 3000", c.userTime.Load())
	}
}

func TestTickLEDs(t *testing.T) {
	c, b := newTestController(t)
	c.setLED(LEDMode{Red: ChannelOn, Blue: ChannelBlink})

	// time counter 1..498 is the lit half of the blink period
	c.Tick()
	if !b.leds[Red] || b.leds[Green] || !b.leds[Blue] {
		t.Errorf("lit phase: got %v", b.leds)
	}

	for c.timeCounter.Load() != blinkOnTicks {
		c.Tick()
	}
	if !b.leds[Red] {
		t.Error("steady red should stay lit in the dark phase")
	}
	if b.leds[Blue] {
		t.Error("blinking blue should be dark at time counter 499")
	}

	c.setLED(LEDOff)
	c.Tick()
	if b.leds != [3]bool{} {
		t.Errorf("LEDOff: got %v", b.leds)
	}
}

func TestTickBlinkDutyCycle(t *testing.T) {
	c, b := newTestController(t)
	c.setLED(LEDGreenBlink)

	lit := 0
	for i := 0; i < ticksPerSecond; i++ {
		c.Tick()
		if b.leds[Green] {
			lit++
		}
	}
	if lit != blinkOnTicks {
		t.Errorf("lit ticks per second: got %d, want %d", lit, blinkOnTicks)
	}
}
