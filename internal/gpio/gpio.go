// Package gpio provides the digital side of the machine with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/senseo-control/internal/machine"

// Pins holds the line offsets on the GPIO chip (BCM numbering on a Pi).
type Pins struct {
	OneCup int `yaml:"one_cup"`
	TwoCup int `yaml:"two_cup"`
	Power  int `yaml:"power"`
	Boiler int `yaml:"boiler"`
	Pump   int `yaml:"pump"`
	Red    int `yaml:"red"`
	Green  int `yaml:"green"`
	Blue   int `yaml:"blue"`
}

// DefaultPins is the wiring of the retrofit board.
var DefaultPins = Pins{
	OneCup: 17,
	TwoCup: 27,
	Power:  22,
	Boiler: 23,
	Pump:   24,
	Red:    5,
	Green:  6,
	Blue:   13,
}

// button returns the line offset of b.
func (p Pins) button(b machine.Button) int {
	switch b {
	case machine.ButtonOneCup:
		return p.OneCup
	case machine.ButtonTwoCup:
		return p.TwoCup
	default:
		return p.Power
	}
}

// led returns the line offset of c.
func (p Pins) led(c machine.Color) int {
	switch c {
	case machine.Red:
		return p.Red
	case machine.Green:
		return p.Green
	default:
		return p.Blue
	}
}

// Ensure the boards satisfy the controller's view of the hardware.
var (
	_ machine.Board = (*FakeBoard)(nil)
	_ machine.Board = (*RealBoard)(nil)
)
