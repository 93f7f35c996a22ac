//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/senseo-control/internal/machine"
)

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(chip string, pins Pins) (*RealBoard, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Pressed is not implemented on non-Linux platforms.
func (r *RealBoard) Pressed(b machine.Button) bool { return false }

// SetBoiler is not implemented on non-Linux platforms.
func (r *RealBoard) SetBoiler(on bool) {}

// SetPump is not implemented on non-Linux platforms.
func (r *RealBoard) SetPump(fire bool) {}

// SetLED is not implemented on non-Linux platforms.
func (r *RealBoard) SetLED(c machine.Color, on bool) {}

// Wake returns a channel that never fires.
func (r *RealBoard) Wake() <-chan struct{} { return nil }

// Close is not implemented on non-Linux platforms.
func (r *RealBoard) Close() error {
	return nil
}
