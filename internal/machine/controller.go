package machine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Controller owns the shared machine state and runs the brew control loop.
//
// The counters are written by Tick and read by the loop; the loop only
// force-sets them (idle reset, synthetic power press, consumed long press).
// The flags and the LED mode are written by the loop and read by Tick and
// Snapshot. All fields are atomics so both contexts may run concurrently.
type Controller struct {
	cfg     Config
	board   Board
	sensors Sensors
	clock   Clock

	reporter Reporter
	now      func() time.Time
	newID    func() string

	pressTicks     uint32
	cleanTicks     uint32
	longTicks      uint32
	autoOffSeconds uint32

	// Written by Tick.
	timeCounter atomic.Uint32
	secCounter  atomic.Uint32
	userTime    atomic.Uint32
	counters    [len(Buttons)]atomic.Uint32

	// Written by the control loop.
	led         atomic.Uint32
	water       atomic.Bool
	temperature atomic.Bool
	clean       atomic.Bool
	brew        atomic.Int32
	powered     atomic.Bool
	boiler      atomic.Bool
	pumping     atomic.Bool
}

// New creates a controller. The machine is powered off until Run is called
// and the wake source fires.
func New(cfg Config, board Board, sensors Sensors, clock Clock) *Controller {
	return &Controller{
		cfg:            cfg,
		board:          board,
		sensors:        sensors,
		clock:          clock,
		now:            time.Now,
		newID:          uuid.NewString,
		pressTicks:     ticks(cfg.ButtonPress),
		cleanTicks:     ticks(cfg.ButtonClean),
		longTicks:      ticks(cfg.ButtonLong),
		autoOffSeconds: uint32(cfg.AutoOff / time.Second),
	}
}

// SetReporter installs the receiver of state-transition events.
func (c *Controller) SetReporter(r Reporter) {
	c.reporter = r
}

// Run executes the control loop until ctx is cancelled or the clock fails.
// The machine starts in the powered-off halt, exactly as after a shutdown.
// On return the boiler, pump and LEDs are off and the tick is disabled.
func (c *Controller) Run(ctx context.Context) error {
	defer c.safeOff()

	if err := c.sleep(ctx); err != nil {
		return err
	}
	for {
		if err := c.iterate(ctx); err != nil {
			return err
		}
		if err := c.clock.Pause(ctx); err != nil {
			return err
		}
	}
}

// iterate is one pass of the control loop.
func (c *Controller) iterate(ctx context.Context) error {
	reason := ReasonButton
	if c.secCounter.Load() >= c.autoOffSeconds {
		c.counters[ButtonPower].Store(c.pressTicks)
		reason = ReasonAutoOff
	}

	water := c.readWater()
	temperature := c.readTemperature()

	if c.counters[ButtonPower].Load() >= c.pressTicks {
		// The next pass re-reads every sensor after wake-up.
		return c.shutdown(ctx, reason)
	}

	if err := c.selectMode(ctx, water && temperature); err != nil {
		return err
	}
	return c.execute(ctx, water, temperature)
}

// selectMode translates the cup button counters into a clean or brew request.
func (c *Controller) selectMode(ctx context.Context, ready bool) error {
	one := c.counters[ButtonOneCup].Load()
	two := c.counters[ButtonTwoCup].Load()

	switch {
	case one >= c.cleanTicks && two >= c.cleanTicks:
		return c.enterClean(ctx)
	case one >= c.pressTicks && two < c.pressTicks:
		return c.request(ctx, ButtonOneCup, ButtonTwoCup, ready, BrewOneEspresso, BrewOneCoffee)
	case one < c.pressTicks && two >= c.pressTicks:
		return c.request(ctx, ButtonTwoCup, ButtonOneCup, ready, BrewTwoEspresso, BrewTwoCoffee)
	}
	return nil
}

// enterClean sets clean mode and waits until both cup buttons are released.
func (c *Controller) enterClean(ctx context.Context) error {
	c.clean.Store(true)
	c.setLED(LEDBlue)
	for c.counters[ButtonOneCup].Load() > 0 || c.counters[ButtonTwoCup].Load() > 0 {
		if err := c.clock.Pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// request handles a press of cup button b. A press held past the long
// threshold selects long and is consumed at once; a shorter press selects
// short on release.
func (c *Controller) request(ctx context.Context, b, other Button, ready bool, long, short Brew) error {
	c.secCounter.Store(0)

	if !ready {
		if c.cfg.CoffeeWish && Brew(c.brew.Load()) != short {
			c.brew.Store(int32(short))
			c.report(Event{Type: EventBrewQueued, Brew: short})
		}
		return nil
	}

	chosen := BrewNone
	for c.counters[b].Load() > 0 {
		if c.counters[b].Load() >= c.cleanTicks && c.counters[other].Load() >= c.cleanTicks {
			c.brew.Store(int32(BrewNone))
			return c.enterClean(ctx)
		}
		if c.counters[b].Load() > c.longTicks {
			chosen = long
			c.brew.Store(int32(long))
			c.counters[b].Store(0)
		}
		if err := c.clock.Pause(ctx); err != nil {
			return err
		}
	}
	if chosen != long {
		c.brew.Store(int32(short))
	}
	return nil
}

// execute drives the boiler, pump and LED from the current readiness.
func (c *Controller) execute(ctx context.Context, water, temperature bool) error {
	pending := Brew(c.brew.Load())

	switch {
	case !water:
		c.setBoiler(false)
		c.board.SetPump(false)
		c.setLED(LEDBlueBlink)
		return nil
	case c.clean.Load():
		return c.runClean(ctx)
	case !temperature:
		c.setBoiler(true)
		if pending != BrewNone {
			c.setLED(LEDVioletBlink)
		} else {
			c.setLED(LEDRedBlink)
		}
		return nil
	}

	c.setBoiler(false)
	if pending == BrewNone {
		c.setLED(LEDGreen)
		return nil
	}
	return c.runBrew(ctx, pending)
}

// runClean pumps with the boiler off until the tank is empty or the power
// button is pressed.
func (c *Controller) runClean(ctx context.Context) error {
	c.setBoiler(false)
	id := c.newID()
	c.report(Event{Type: EventCleanStart, CycleID: id})

	c.pumping.Store(true)
	defer c.pumping.Store(false)
	c.userTime.Store(0)

	pulses := 0
	escape := false
	for c.water.Load() && !escape {
		fired, err := c.fire(ctx)
		if err != nil {
			return err
		}
		if fired {
			pulses++
		}
		c.readWater()
		if c.counters[ButtonPower].Load() > c.pressTicks {
			escape = true
		}
		if err := c.clock.Pause(ctx); err != nil {
			return err
		}
	}
	c.board.SetPump(false)
	c.clean.Store(false)

	outcome := OutcomeWaterEmpty
	if escape {
		outcome = OutcomeCancelled
	}
	c.report(Event{
		Type:    EventCleanEnd,
		Outcome: outcome,
		Elapsed: c.elapsed(),
		Pulses:  pulses,
		CycleID: id,
	})
	return nil
}

// runBrew runs the pump for the time of b, aborting when the tank runs dry
// or the power button is pressed.
func (c *Controller) runBrew(ctx context.Context, b Brew) error {
	if b.IsEspresso() {
		c.setLED(LEDOrangeBlink)
	} else {
		c.setLED(LEDGreenBlink)
	}

	d := c.cfg.PumpTime(b)
	if d <= 0 {
		c.brew.Store(int32(BrewNone))
		return nil
	}
	limit := ticks(d)

	id := c.newID()
	c.report(Event{Type: EventBrewStart, Brew: b, Duration: d, CycleID: id})

	c.pumping.Store(true)
	defer c.pumping.Store(false)
	c.userTime.Store(0)

	pulses := 0
	escape := false
	for c.userTime.Load() < limit && c.water.Load() && !escape {
		if !c.preInfusionBreak(b, c.userTime.Load()) {
			fired, err := c.fire(ctx)
			if err != nil {
				return err
			}
			if fired {
				pulses++
			}
		}
		c.readWater()
		if c.counters[ButtonPower].Load() > c.pressTicks {
			escape = true
		}
		if err := c.clock.Pause(ctx); err != nil {
			return err
		}
	}
	c.board.SetPump(false)

	elapsed := c.elapsed()
	c.brew.Store(int32(BrewNone))
	c.secCounter.Store(0)

	outcome := OutcomeComplete
	switch {
	case elapsed >= d:
	case escape:
		outcome = OutcomeCancelled
	default:
		outcome = OutcomeWaterEmpty
	}
	c.report(Event{
		Type:     EventBrewEnd,
		Brew:     b,
		Outcome:  outcome,
		Duration: d,
		Elapsed:  elapsed,
		Pulses:   pulses,
		CycleID:  id,
	})
	return nil
}

// preInfusionBreak reports whether the pump rests at elapsed tick t.
func (c *Controller) preInfusionBreak(b Brew, t uint32) bool {
	if !b.IsEspresso() {
		return false
	}
	return t >= ticks(c.cfg.PreInfusionStart) && t < ticks(c.cfg.PreInfusionEnd)
}

// fire pulses the pump triac gate if the mains is at a zero crossing.
func (c *Controller) fire(ctx context.Context) (bool, error) {
	if c.readZeroCrossing() > c.cfg.ZeroCrossingMax {
		return false, nil
	}
	c.board.SetPump(true)
	err := c.clock.Delay(ctx, c.cfg.TriggerPulse)
	c.board.SetPump(false)
	if err != nil {
		return false, err
	}
	return true, nil
}

// shutdown handles a power press: boiler off, request dropped, then the
// power-off halt once the button is released. A pending clean is kept, so a
// clean requested on an empty tank starts as soon as the machine wakes with
// water.
func (c *Controller) shutdown(ctx context.Context, reason string) error {
	c.setBoiler(false)
	c.brew.Store(int32(BrewNone))

	if err := c.waitPowerRelease(ctx); err != nil {
		return err
	}
	c.report(Event{Type: EventPowerOff, Reason: reason})
	return c.sleep(ctx)
}

// sleep disables the tick, blanks the LED and halts until woken. After
// wake-up the counters restart and the waking press is debounced so it
// cannot trigger another shutdown.
func (c *Controller) sleep(ctx context.Context) error {
	c.clock.Disable()
	c.powered.Store(false)
	c.setLED(LEDOff)
	for _, col := range Colors {
		c.board.SetLED(col, false)
	}

	// Contact bounce on the wake line can end the halt without a press.
	for {
		if err := c.clock.Halt(ctx); err != nil {
			return err
		}
		if c.board.Pressed(ButtonPower) {
			break
		}
	}

	c.timeCounter.Store(0)
	c.secCounter.Store(0)
	c.clock.Enable(c.Tick)
	c.powered.Store(true)
	c.report(Event{Type: EventPowerOn})

	c.counters[ButtonPower].Store(c.pressTicks)
	return c.waitPowerRelease(ctx)
}

func (c *Controller) waitPowerRelease(ctx context.Context) error {
	for c.counters[ButtonPower].Load() > 0 {
		if err := c.clock.Pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// safeOff leaves every actuator de-energized.
func (c *Controller) safeOff() {
	c.clock.Disable()
	c.powered.Store(false)
	c.setBoiler(false)
	c.board.SetPump(false)
	for _, col := range Colors {
		c.board.SetLED(col, false)
	}
}

func (c *Controller) setBoiler(on bool) {
	c.boiler.Store(on)
	c.board.SetBoiler(on)
}

func (c *Controller) setLED(m LEDMode) {
	c.led.Store(m.pack())
}

func (c *Controller) elapsed() time.Duration {
	return time.Duration(c.userTime.Load()) * TickPeriod
}

func (c *Controller) report(e Event) {
	if c.reporter == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}
	c.reporter.Report(e)
}

// Snapshot returns the current machine state. Safe to call from any
// goroutine while Run is active.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Powered:     c.powered.Load(),
		Water:       c.water.Load(),
		Temperature: c.temperature.Load(),
		Clean:       c.clean.Load(),
		Brew:        Brew(c.brew.Load()),
		LED:         unpackLED(c.led.Load()),
		Boiler:      c.boiler.Load(),
		Pumping:     c.pumping.Load(),
		IdleSeconds: c.secCounter.Load(),
	}
	if s.Pumping {
		s.BrewElapsed = c.elapsed()
	}
	for _, b := range Buttons {
		s.Counters[b] = c.counters[b].Load()
	}
	return s
}
