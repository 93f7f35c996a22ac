package gpio

import (
	"testing"
	"time"

	"github.com/sweeney/senseo-control/internal/machine"
)

func TestFakeBoardPressed(t *testing.T) {
	f := NewFakeBoard()

	for _, b := range machine.Buttons {
		if f.Pressed(b) {
			t.Errorf("%s: expected released initially", b)
		}
	}

	f.Press(machine.ButtonPower, true)
	if !f.Pressed(machine.ButtonPower) {
		t.Error("expected power pressed")
	}
	if f.Pressed(machine.ButtonOneCup) || f.Pressed(machine.ButtonTwoCup) {
		t.Error("cup buttons should stay released")
	}

	f.Press(machine.ButtonPower, false)
	if f.Pressed(machine.ButtonPower) {
		t.Error("expected power released")
	}
}

func TestFakeBoardRecordsPulses(t *testing.T) {
	f := NewFakeBoard()
	now := 10 * time.Millisecond
	f.Stamp = func() time.Duration { return now }

	f.SetPump(true)
	f.SetPump(true) // still the same pulse
	f.SetPump(false)

	now = 20 * time.Millisecond
	f.SetPump(true)
	f.SetPump(false)

	if len(f.Pulses) != 2 {
		t.Fatalf("expected 2 pulses, got %d", len(f.Pulses))
	}
	if f.Pulses[0] != 10*time.Millisecond || f.Pulses[1] != 20*time.Millisecond {
		t.Errorf("unexpected pulse stamps: %v", f.Pulses)
	}
	if f.Pump {
		t.Error("pump trigger should be released")
	}
}

func TestFakeBoardPumpWithBoiler(t *testing.T) {
	f := NewFakeBoard()

	f.SetBoiler(true)
	f.SetPump(true)
	f.SetPump(false)
	f.SetBoiler(false)
	f.SetPump(true)
	f.SetPump(false)

	if f.PumpWithBoiler != 1 {
		t.Errorf("expected 1 pulse with boiler on, got %d", f.PumpWithBoiler)
	}
	if f.BoilerOnWrites != 1 {
		t.Errorf("expected 1 boiler-on write, got %d", f.BoilerOnWrites)
	}
}

func TestFakeBoardLEDs(t *testing.T) {
	f := NewFakeBoard()

	f.SetLED(machine.Red, true)
	f.SetLED(machine.Blue, true)
	if !f.LEDs[machine.Red] || f.LEDs[machine.Green] || !f.LEDs[machine.Blue] {
		t.Errorf("unexpected LED levels: %v", f.LEDs)
	}
}

func TestFakeBoardReset(t *testing.T) {
	f := NewFakeBoard()
	stamp := func() time.Duration { return time.Second }
	f.Stamp = stamp

	f.Press(machine.ButtonOneCup, true)
	f.SetBoiler(true)
	f.SetPump(true)
	f.Reset()

	if f.Pressed(machine.ButtonOneCup) {
		t.Error("buttons should be released after Reset")
	}
	if f.Boiler || f.Pump || len(f.Pulses) != 0 {
		t.Error("recorded writes should be cleared after Reset")
	}
	if f.Stamp == nil {
		t.Error("Stamp should survive Reset")
	}
}

func TestDefaultPinsDistinct(t *testing.T) {
	p := DefaultPins
	seen := map[int]string{}
	for name, pin := range map[string]int{
		"one_cup": p.OneCup, "two_cup": p.TwoCup, "power": p.Power,
		"boiler": p.Boiler, "pump": p.Pump,
		"red": p.Red, "green": p.Green, "blue": p.Blue,
	} {
		if other, ok := seen[pin]; ok {
			t.Errorf("pin %d used by both %s and %s", pin, name, other)
		}
		seen[pin] = name
	}

	if p.button(machine.ButtonTwoCup) != p.TwoCup {
		t.Errorf("button(2-cup): got %d, want %d", p.button(machine.ButtonTwoCup), p.TwoCup)
	}
	if p.led(machine.Green) != p.Green {
		t.Errorf("led(green): got %d, want %d", p.led(machine.Green), p.Green)
	}
}
