package adc

import "github.com/sweeney/senseo-control/internal/machine"

// FakeReader is a test double returning settable raw values.
type FakeReader struct {
	// Values holds the raw value returned for each channel.
	Values Frame

	// Reads counts reads per channel.
	Reads [len(machine.SensorChannels)]int
}

// NewFakeReader creates a FakeReader returning the given frame.
func NewFakeReader(f Frame) *FakeReader {
	return &FakeReader{Values: f}
}

// Set changes the raw value of channel s.
func (f *FakeReader) Set(s machine.Sensor, raw uint16) {
	f.Values[s] = raw
}

// Read returns the current raw value of channel s.
func (f *FakeReader) Read(s machine.Sensor) uint16 {
	f.Reads[s]++
	return f.Values[s]
}
