// Package machine contains the brewing state machine of the coffee machine
// controller and the periodic tick handler that feeds it.
// This package has NO hardware dependencies (no GPIO, ADC, MQTT or OS).
// Buttons, actuators, sensors and the time base are reached through the
// interfaces declared in this file.
package machine

import (
	"context"
	"time"
)

// TickPeriod is the period of the hardware timer driving Tick.
const TickPeriod = time.Millisecond

// Button identifies one of the three momentary buttons.
type Button int

const (
	ButtonOneCup Button = iota // left
	ButtonTwoCup               // right
	ButtonPower
)

// Buttons lists every button in sampling order.
var Buttons = [...]Button{ButtonOneCup, ButtonTwoCup, ButtonPower}

func (b Button) String() string {
	switch b {
	case ButtonOneCup:
		return "1-cup"
	case ButtonTwoCup:
		return "2-cup"
	case ButtonPower:
		return "power"
	default:
		return "unknown"
	}
}

// Color identifies one channel of the tri-color status LED.
type Color int

const (
	Red Color = iota
	Green
	Blue
)

// Colors lists every LED channel.
var Colors = [...]Color{Red, Green, Blue}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return "unknown"
	}
}

// Sensor identifies an analog input channel.
type Sensor int

const (
	SensorZeroCrossing Sensor = iota
	SensorTemperature
	SensorWater
)

// SensorChannels lists every analog channel.
var SensorChannels = [...]Sensor{SensorZeroCrossing, SensorTemperature, SensorWater}

func (s Sensor) String() string {
	switch s {
	case SensorZeroCrossing:
		return "zero_crossing"
	case SensorTemperature:
		return "temperature"
	case SensorWater:
		return "water"
	default:
		return "unknown"
	}
}

// Brew is the outstanding brew request.
type Brew int32

const (
	BrewNone Brew = iota
	BrewOneEspresso
	BrewTwoEspresso
	BrewOneCoffee
	BrewTwoCoffee
)

func (b Brew) String() string {
	switch b {
	case BrewNone:
		return "none"
	case BrewOneEspresso:
		return "1-espresso"
	case BrewTwoEspresso:
		return "2-espresso"
	case BrewOneCoffee:
		return "1-coffee"
	case BrewTwoCoffee:
		return "2-coffee"
	default:
		return "unknown"
	}
}

// IsEspresso reports whether b is brewed with the pre-infusion break.
func (b Brew) IsEspresso() bool {
	return b == BrewOneEspresso || b == BrewTwoEspresso
}

// IsCoffee reports whether b is a plain coffee.
func (b Brew) IsCoffee() bool {
	return b == BrewOneCoffee || b == BrewTwoCoffee
}

// ButtonReader is the digital input side of the board, sampled by Tick.
type ButtonReader interface {
	// Pressed returns the instantaneous (undebounced) state of b.
	Pressed(b Button) bool
}

// Actuators is the digital output side of the board.
// Implementations translate the logical level to the line polarity.
type Actuators interface {
	// SetBoiler energizes (true) or de-energizes the boiler triac.
	SetBoiler(on bool)
	// SetPump drives the pump triac trigger: true starts a trigger pulse.
	SetPump(fire bool)
	// SetLED drives one LED channel.
	SetLED(c Color, on bool)
}

// Board combines the digital inputs and outputs.
type Board interface {
	ButtonReader
	Actuators
}

// Sensors reads raw analog values.
type Sensors interface {
	Read(s Sensor) uint16
}

// Clock is the time base of the controller.
type Clock interface {
	// Enable starts invoking tick once per TickPeriod.
	Enable(tick func())
	// Disable stops the tick. No tick runs after Disable returns.
	Disable()
	// Pause is one pass of a busy-wait loop, roughly one tick long.
	Pause(ctx context.Context) error
	// Delay blocks for d of wall-clock time.
	Delay(ctx context.Context, d time.Duration) error
	// Halt blocks in low-power mode until the wake source fires.
	Halt(ctx context.Context) error
}

// Reporter receives state-transition events from the control loop.
// Report is called on the control loop; it must not block.
type Reporter interface {
	Report(e Event)
}

// EventType represents a state transition of the machine.
type EventType string

const (
	EventPowerOn    EventType = "POWER_ON"
	EventPowerOff   EventType = "POWER_OFF"
	EventBrewQueued EventType = "BREW_QUEUED"
	EventBrewStart  EventType = "BREW_START"
	EventBrewEnd    EventType = "BREW_END"
	EventCleanStart EventType = "CLEAN_START"
	EventCleanEnd   EventType = "CLEAN_END"
	EventWaterLow   EventType = "WATER_LOW"
	EventWaterOK    EventType = "WATER_OK"
)

// Outcome is how a pump operation ended.
type Outcome string

const (
	OutcomeComplete   Outcome = "COMPLETE"
	OutcomeWaterEmpty Outcome = "WATER_EMPTY"
	OutcomeCancelled  Outcome = "CANCELLED"
)

// Power-off reasons.
const (
	ReasonButton  = "BUTTON"
	ReasonAutoOff = "AUTO_OFF"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Brew      Brew
	Reason    string        // POWER_OFF only
	Outcome   Outcome       // BREW_END and CLEAN_END
	Duration  time.Duration // planned pump time (BREW_START, BREW_END)
	Elapsed   time.Duration // pump time actually spent
	Pulses    int           // triac trigger pulses fired
	CycleID   string        // shared by the START/END pair
}

// Snapshot is a point-in-time view of the machine.
type Snapshot struct {
	Powered     bool
	Water       bool
	Temperature bool
	Clean       bool
	Brew        Brew
	LED         LEDMode
	Boiler      bool
	Pumping     bool
	IdleSeconds uint32
	BrewElapsed time.Duration
	Counters    [3]uint32 // debounce counters indexed by Button
}
