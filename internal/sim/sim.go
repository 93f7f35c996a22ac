// Package sim provides a deterministic time base for the controller.
//
// Clock implements machine.Clock against a scripted timeline of button
// presses and sensor levels. Simulated time advances one millisecond per
// busy-wait pass and by the requested amount on Delay; each elapsed
// millisecond runs the tick handler exactly as the hardware timer would
// while it is enabled. Nothing sleeps, so minutes of machine time run in
// milliseconds of test time.
package sim

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/senseo-control/internal/adc"
	"github.com/sweeney/senseo-control/internal/gpio"
	"github.com/sweeney/senseo-control/internal/machine"
)

// ErrEnd is returned once simulated time reaches Script.End.
var ErrEnd = errors.New("sim: end of script")

// Press holds button b down during [From, To).
type Press struct {
	Button   machine.Button
	From, To time.Duration
}

// Level sets a sensor to Raw from At onwards.
type Level struct {
	At  time.Duration
	Raw uint16
}

// Script is the timeline of the simulated world.
type Script struct {
	Presses     []Press
	Water       []Level
	Temperature []Level

	// ZeroCrossing returns the raw zero-crossing sample at t.
	// Nil means the mains is always at a crossing.
	ZeroCrossing func(t time.Duration) uint16

	End time.Duration
}

// Clock is a scripted machine.Clock.
type Clock struct {
	script Script
	board  *gpio.FakeBoard
	adc    *adc.FakeReader

	now  time.Duration
	tick func()

	// Ticks counts tick handler invocations.
	Ticks int
	// Halts counts entries into the low-power halt.
	Halts int
	// Wakes records when each halt ended.
	Wakes []time.Duration

	// Watch, if set, is called after every simulated millisecond.
	Watch func(now time.Duration)
}

// New creates a clock driving board and sensors from script.
func New(script Script, board *gpio.FakeBoard, sensors *adc.FakeReader) *Clock {
	c := &Clock{script: script, board: board, adc: sensors}
	c.apply()
	return c
}

// Now returns the simulated time.
func (c *Clock) Now() time.Duration {
	return c.now
}

// Enabled reports whether the tick is running.
func (c *Clock) Enabled() bool {
	return c.tick != nil
}

// Enable starts running tick every simulated millisecond.
func (c *Clock) Enable(tick func()) {
	c.tick = tick
}

// Disable stops the tick.
func (c *Clock) Disable() {
	c.tick = nil
}

// Pause advances one millisecond.
func (c *Clock) Pause(ctx context.Context) error {
	return c.advance(ctx, machine.TickPeriod)
}

// Delay advances d, rounded up to whole ticks.
func (c *Clock) Delay(ctx context.Context, d time.Duration) error {
	return c.advance(ctx, d)
}

// Halt advances with the tick disabled until the power button is held.
func (c *Clock) Halt(ctx context.Context) error {
	c.Halts++
	for !c.board.Pressed(machine.ButtonPower) {
		if err := c.advance(ctx, machine.TickPeriod); err != nil {
			return err
		}
	}
	c.Wakes = append(c.Wakes, c.now)
	return nil
}

func (c *Clock) advance(ctx context.Context, d time.Duration) error {
	for elapsed := time.Duration(0); elapsed < d; elapsed += machine.TickPeriod {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.now >= c.script.End {
			return ErrEnd
		}
		c.now += machine.TickPeriod
		c.apply()
		if c.tick != nil {
			c.tick()
			c.Ticks++
		}
		if c.Watch != nil {
			c.Watch(c.now)
		}
	}
	return nil
}

// apply sets the fake inputs to the script at the current time.
func (c *Clock) apply() {
	for _, b := range machine.Buttons {
		c.board.Press(b, c.held(b))
	}
	if v, ok := levelAt(c.script.Water, c.now); ok {
		c.adc.Set(machine.SensorWater, v)
	}
	if v, ok := levelAt(c.script.Temperature, c.now); ok {
		c.adc.Set(machine.SensorTemperature, v)
	}
	zc := uint16(0)
	if c.script.ZeroCrossing != nil {
		zc = c.script.ZeroCrossing(c.now)
	}
	c.adc.Set(machine.SensorZeroCrossing, zc)
}

func (c *Clock) held(b machine.Button) bool {
	for _, p := range c.script.Presses {
		if p.Button == b && c.now >= p.From && c.now < p.To {
			return true
		}
	}
	return false
}

// levelAt returns the latest level set at or before t.
func levelAt(levels []Level, t time.Duration) (uint16, bool) {
	var (
		raw   uint16
		found bool
		at    time.Duration
	)
	for _, l := range levels {
		if l.At <= t && (!found || l.At >= at) {
			raw, at, found = l.Raw, l.At, true
		}
	}
	return raw, found
}

var _ machine.Clock = (*Clock)(nil)
