// Package adc provides the analog inputs of the machine (water level,
// boiler temperature, mains zero crossing).
//
// The controller has no ADC of its own: a small co-processor samples the
// three channels and streams frames over a serial link. A frame is one line
// of decimal raw values in the order zero_crossing,temperature,water.
package adc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/senseo-control/internal/machine"
)

// MaxRaw is the largest value of the co-processor's 10-bit converter.
const MaxRaw = 1023

// Frame holds one raw sample per channel, indexed by machine.Sensor.
type Frame [len(machine.SensorChannels)]uint16

// ParseFrame parses one line from the co-processor.
// Format: zero_crossing,temperature,water
// Example: 512,130,120
func ParseFrame(line string) (Frame, error) {
	var f Frame

	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != len(f) {
		return f, fmt.Errorf("invalid frame: expected %d comma-separated values, got %d", len(f), len(parts))
	}

	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return f, fmt.Errorf("invalid %s value: %w", machine.Sensor(i), err)
		}
		if v > MaxRaw {
			return f, fmt.Errorf("%s out of range: %d (max %d)", machine.Sensor(i), v, MaxRaw)
		}
		f[i] = uint16(v)
	}
	return f, nil
}

// Ensure the readers satisfy the controller's view of the sensors.
var (
	_ machine.Sensors = (*FakeReader)(nil)
	_ machine.Sensors = (*SerialReader)(nil)
)
