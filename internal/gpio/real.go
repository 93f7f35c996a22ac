//go:build linux

package gpio

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/senseo-control/internal/machine"
)

const consumer = "senseo-control"

// output is a requested output line with a cache of the last written level,
// so the 1 ms tick only touches the chip when an LED actually changes.
type output struct {
	name  string
	line  *gpiocdev.Line
	level atomic.Int32
}

func (o *output) set(v int) error {
	if int(o.level.Load()) == v {
		return nil
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", o.name, err)
	}
	o.level.Store(int32(v))
	return nil
}

// RealBoard drives the machine through the Linux GPIO character device.
// Buttons and triac gates are requested active-low, so every value seen by
// this type is the logical one.
type RealBoard struct {
	chip    *gpiocdev.Chip
	buttons [3]*gpiocdev.Line
	boiler  *output
	pump    *output
	leds    [3]*output

	wake    chan struct{}
	failing atomic.Bool
}

// NewRealBoard requests every line of pins on the named chip.
// Outputs start de-energized.
func NewRealBoard(chipName string, pins Pins) (*RealBoard, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealBoard{
		chip: chip,
		wake: make(chan struct{}, 1),
	}

	for _, b := range machine.Buttons {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow}
		if b == machine.ButtonPower {
			// Edge events only wake the halted controller.
			opts = append(opts, gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(r.onWake))
		}
		line, err := chip.RequestLine(pins.button(b), opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s button pin %d: %w", b, pins.button(b), err)
		}
		r.buttons[b] = line
	}

	if r.boiler, err = r.requestOutput("boiler", pins.Boiler, true); err != nil {
		r.Close()
		return nil, err
	}
	if r.pump, err = r.requestOutput("pump", pins.Pump, true); err != nil {
		r.Close()
		return nil, err
	}
	for _, c := range machine.Colors {
		if r.leds[c], err = r.requestOutput(c.String()+" led", pins.led(c), false); err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

func (r *RealBoard) requestOutput(name string, pin int, activeLow bool) (*output, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := r.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s pin %d: %w", name, pin, err)
	}
	return &output{name: name, line: line}, nil
}

func (r *RealBoard) onWake(gpiocdev.LineEvent) {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Wake fires on any edge of the power button.
func (r *RealBoard) Wake() <-chan struct{} {
	return r.wake
}

// Pressed returns the logical state of button b.
func (r *RealBoard) Pressed(b machine.Button) bool {
	v, err := r.buttons[b].Value()
	r.check(err)
	return err == nil && v == 1
}

// SetBoiler energizes or de-energizes the boiler triac.
func (r *RealBoard) SetBoiler(on bool) {
	r.check(r.boiler.set(level(on)))
}

// SetPump drives the pump triac gate.
func (r *RealBoard) SetPump(fire bool) {
	r.check(r.pump.set(level(fire)))
}

// SetLED drives one LED channel.
func (r *RealBoard) SetLED(c machine.Color, on bool) {
	r.check(r.leds[c].set(level(on)))
}

// check logs the first error of a failure streak.
func (r *RealBoard) check(err error) {
	if err == nil {
		r.failing.Store(false)
		return
	}
	if !r.failing.Swap(true) {
		log.Printf("gpio: %v", err)
	}
}

// Close de-energizes every output and releases GPIO resources.
func (r *RealBoard) Close() error {
	var errs []error

	outputs := []*output{r.boiler, r.pump, r.leds[0], r.leds[1], r.leds[2]}
	for _, o := range outputs {
		if o == nil {
			continue
		}
		if err := o.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", o.name, err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", o.name, err))
		}
	}
	for b, line := range r.buttons {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s button: %w", machine.Button(b), err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
