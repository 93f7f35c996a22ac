package machine

import "time"

// Config holds the tunable parameters of the controller.
// Time thresholds are converted to ticks of TickPeriod by New.
type Config struct {
	OneEspresso time.Duration // pump times, pre-infusion break included
	TwoEspresso time.Duration
	OneCoffee   time.Duration
	TwoCoffee   time.Duration

	PreInfusionStart time.Duration // espresso pump break window [start, end)
	PreInfusionEnd   time.Duration

	TemperatureOK   uint16 // raw ADC; ready at or above
	WaterLow        uint16 // raw ADC; a ready tank drops out at or below
	WaterOK         uint16 // raw ADC; an empty tank is ready again at or above
	ZeroCrossingMax uint16 // raw ADC; at or below counts as a zero crossing

	TriggerPulse time.Duration // pump triac gate pulse

	ButtonPress time.Duration // debounce threshold, also used for the power button
	ButtonClean time.Duration // both cup buttons held: clean mode
	ButtonLong  time.Duration // cup button held: espresso instead of coffee

	AutoOff time.Duration // idle time before the synthetic power press

	// CoffeeWish latches a brew request while the machine is heating or
	// short of water instead of discarding it.
	CoffeeWish bool
}

// DefaultConfig returns the factory settings.
func DefaultConfig() Config {
	return Config{
		OneEspresso:      15 * time.Second,
		TwoEspresso:      28 * time.Second,
		OneCoffee:        26 * time.Second,
		TwoCoffee:        52 * time.Second,
		PreInfusionStart: 2 * time.Second,
		PreInfusionEnd:   4 * time.Second,
		TemperatureOK:    125,
		WaterLow:         30,
		WaterOK:          100,
		ZeroCrossingMax:  100,
		TriggerPulse:     3 * time.Millisecond,
		ButtonPress:      100 * time.Millisecond,
		ButtonClean:      30 * time.Millisecond,
		ButtonLong:       1500 * time.Millisecond,
		AutoOff:          180 * time.Second,
	}
}

// PumpTime returns the pump duration for b, or 0 for BrewNone.
func (c Config) PumpTime(b Brew) time.Duration {
	switch b {
	case BrewOneEspresso:
		return c.OneEspresso
	case BrewTwoEspresso:
		return c.TwoEspresso
	case BrewOneCoffee:
		return c.OneCoffee
	case BrewTwoCoffee:
		return c.TwoCoffee
	}
	return 0
}

func ticks(d time.Duration) uint32 {
	return uint32(d / TickPeriod)
}
