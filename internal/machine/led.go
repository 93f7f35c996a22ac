package machine

import "strings"

// Channel is the drive pattern of a single LED color.
type Channel uint8

const (
	ChannelOff Channel = iota
	ChannelOn
	ChannelBlink
)

// LEDMode is the desired status LED pattern. Each color is independent,
// so mixed colors are expressed by driving several channels.
type LEDMode struct {
	Red   Channel
	Green Channel
	Blue  Channel
}

// Named LED patterns used by the control loop.
var (
	LEDOff         = LEDMode{}
	LEDGreen       = LEDMode{Green: ChannelOn}
	LEDGreenBlink  = LEDMode{Green: ChannelBlink}
	LEDBlue        = LEDMode{Blue: ChannelOn}
	LEDBlueBlink   = LEDMode{Blue: ChannelBlink}
	LEDRedBlink    = LEDMode{Red: ChannelBlink}
	LEDOrangeBlink = LEDMode{Red: ChannelBlink, Green: ChannelBlink}
	LEDVioletBlink = LEDMode{Red: ChannelBlink, Blue: ChannelBlink}
)

// Channel returns the pattern of color c.
func (m LEDMode) Channel(c Color) Channel {
	switch c {
	case Red:
		return m.Red
	case Green:
		return m.Green
	case Blue:
		return m.Blue
	}
	return ChannelOff
}

// Lit reports whether color c is driven high in the current blink phase.
func (m LEDMode) Lit(c Color, blinkOn bool) bool {
	switch m.Channel(c) {
	case ChannelOn:
		return true
	case ChannelBlink:
		return blinkOn
	}
	return false
}

// String returns a readable name such as "green" or "red+blue blink".
func (m LEDMode) String() string {
	var steady, blink []string
	for _, c := range Colors {
		switch m.Channel(c) {
		case ChannelOn:
			steady = append(steady, c.String())
		case ChannelBlink:
			blink = append(blink, c.String())
		}
	}
	var parts []string
	if len(steady) > 0 {
		parts = append(parts, strings.Join(steady, "+"))
	}
	if len(blink) > 0 {
		parts = append(parts, strings.Join(blink, "+")+" blink")
	}
	if len(parts) == 0 {
		return "off"
	}
	return strings.Join(parts, ", ")
}

// pack encodes m for lock-free sharing with the tick handler.
func (m LEDMode) pack() uint32 {
	return uint32(m.Red) | uint32(m.Green)<<2 | uint32(m.Blue)<<4
}

func unpackLED(v uint32) LEDMode {
	return LEDMode{
		Red:   Channel(v & 0x3),
		Green: Channel((v >> 2) & 0x3),
		Blue:  Channel((v >> 4) & 0x3),
	}
}
