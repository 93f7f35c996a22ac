package adc

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/sweeney/senseo-control/internal/machine"
)

// DefaultBaudRate is the link speed of the co-processor.
const DefaultBaudRate = 115200

// SerialReader keeps the latest frame received from the co-processor.
// Read never blocks; it returns the most recent value of the channel.
type SerialReader struct {
	conn   io.ReadCloser
	values [len(machine.SensorChannels)]atomic.Uint32

	frames    atomic.Uint64
	malformed atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// OpenSerial opens the named port and starts reading frames.
func OpenSerial(name string, baudRate int) (*SerialReader, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return newReader(port), nil
}

// newReader starts reading frames from conn.
func newReader(conn io.ReadCloser) *SerialReader {
	r := &SerialReader{
		conn: conn,
		done: make(chan struct{}),
	}
	go r.readFrames()
	return r
}

func (r *SerialReader) readFrames() {
	defer close(r.done)

	scanner := bufio.NewScanner(r.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f, err := ParseFrame(line)
		if err != nil {
			// Log the first malformed frame and then every 1000th.
			if n := r.malformed.Add(1); n == 1 || n%1000 == 0 {
				log.Printf("adc: skipping frame %q: %v (%d malformed)", line, err, n)
			}
			continue
		}
		r.store(f)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		log.Printf("adc: read error: %v", err)
	}
}

func (r *SerialReader) store(f Frame) {
	for i, v := range f {
		r.values[i].Store(uint32(v))
	}
	r.frames.Add(1)
}

// Read returns the latest raw value of channel s.
func (r *SerialReader) Read(s machine.Sensor) uint16 {
	return uint16(r.values[s].Load())
}

// Frames returns the number of frames received and skipped.
func (r *SerialReader) Frames() (received, malformed uint64) {
	return r.frames.Load(), r.malformed.Load()
}

// Close closes the port and waits for the reader goroutine to exit.
func (r *SerialReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.conn.Close()
		<-r.done
	})
	if err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}
