package gpio

import (
	"time"

	"github.com/sweeney/senseo-control/internal/machine"
)

// FakeBoard is a test double that holds scripted button states and records
// every actuator write.
type FakeBoard struct {
	// Held is the instantaneous state of each button, indexed by machine.Button.
	Held [3]bool

	// Boiler, Pump and LEDs hold the last written logical levels.
	Boiler bool
	Pump   bool
	LEDs   [3]bool

	// BoilerOnWrites counts writes that energized the boiler.
	BoilerOnWrites int

	// Pulses records the stamp of every pump trigger pulse.
	Pulses []time.Duration

	// Stamp, if set, timestamps Pulses. Defaults to the pulse index.
	Stamp func() time.Duration

	// PumpWithBoiler counts pulses fired while the boiler was energized.
	PumpWithBoiler int
}

// NewFakeBoard creates a FakeBoard with every button released.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{}
}

// Press sets the state of b.
func (f *FakeBoard) Press(b machine.Button, held bool) {
	f.Held[b] = held
}

// Pressed returns the scripted state of b.
func (f *FakeBoard) Pressed(b machine.Button) bool {
	return f.Held[b]
}

// SetBoiler records the boiler level.
func (f *FakeBoard) SetBoiler(on bool) {
	f.Boiler = on
	if on {
		f.BoilerOnWrites++
	}
}

// SetPump records the pump trigger level and the start of each pulse.
func (f *FakeBoard) SetPump(fire bool) {
	if fire && !f.Pump {
		stamp := time.Duration(len(f.Pulses))
		if f.Stamp != nil {
			stamp = f.Stamp()
		}
		f.Pulses = append(f.Pulses, stamp)
		if f.Boiler {
			f.PumpWithBoiler++
		}
	}
	f.Pump = fire
}

// SetLED records an LED channel level.
func (f *FakeBoard) SetLED(c machine.Color, on bool) {
	f.LEDs[c] = on
}

// Reset releases every button and clears recorded writes.
func (f *FakeBoard) Reset() {
	*f = FakeBoard{Stamp: f.Stamp}
}
