package machine

import "sync/atomic"

const (
	ticksPerSecond = 1000
	blinkOnTicks   = 499 // LEDs lit for time counter 0..498 of each second

	maxCupCounter   = 65535
	maxPowerCounter = 255
)

// counterMax returns the saturation value of b's debounce counter.
func counterMax(b Button) uint32 {
	if b == ButtonPower {
		return maxPowerCounter
	}
	return maxCupCounter
}

// debounce moves a counter one step towards limit while pressed and towards 0
// while released.
func debounce(v uint32, pressed bool, limit uint32) uint32 {
	if pressed {
		if v < limit {
			return v + 1
		}
		return limit
	}
	if v > 0 {
		return v - 1
	}
	return 0
}

// Tick is the periodic timer handler. It advances the time counters,
// refreshes the LED outputs and samples the buttons. It never blocks.
func (c *Controller) Tick() {
	tc := c.timeCounter.Load() + 1
	if tc >= ticksPerSecond {
		tc = 0
		c.secCounter.Add(1)
	}
	c.timeCounter.Store(tc)
	c.userTime.Add(1)

	blinkOn := tc < blinkOnTicks
	mode := unpackLED(c.led.Load())
	for _, col := range Colors {
		c.board.SetLED(col, mode.Lit(col, blinkOn))
	}

	for _, b := range Buttons {
		step(&c.counters[b], c.board.Pressed(b), counterMax(b))
	}
}

func step(counter *atomic.Uint32, pressed bool, limit uint32) {
	counter.Store(debounce(counter.Load(), pressed, limit))
}
