package channel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/cjeanneret/SpiderGo/internal/debug"
)

// SerialConfig holds the serial port configuration.
type SerialConfig struct {
	Device      string        // e.g. "/dev/ttyUSB0", "COM10"
	Baud        int           // controller firmware runs at 9600
	ReadTimeout time.Duration // per query line
}

// DefaultSerialConfig returns the configuration used by the winch controllers.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:      device,
		Baud:        9600,
		ReadTimeout: 5 * time.Second,
	}
}

// Port is the serial line below a SerialChannel. *serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	// Flush discards received but unread data.
	Flush() error
}

// SerialChannel sends command lines over a serial port.
type SerialChannel struct {
	port    Port
	name    string
	pending []byte // bytes received after the last returned line

	closeOnce sync.Once
	closeErr  error
}

// Open opens the serial port described by cfg.
func Open(cfg SerialConfig) (*SerialChannel, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("%w: no serial device configured", ErrCannotConnect)
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w on port %s: %v", ErrCannotConnect, cfg.Device, err)
	}
	debug.Info("Connection opened to spider port %s", cfg.Device)
	return NewSerialChannel(port, cfg.Device), nil
}

// NewSerialChannel wraps an already opened port. The port must return from
// Read with no data once its read timeout expires.
func NewSerialChannel(port Port, name string) *SerialChannel {
	return &SerialChannel{port: port, name: name}
}

// Send writes cmd terminated by a newline and, for queries, reads one line.
// Input left from an earlier query, such as an answer that arrived after
// its timeout, is dropped before a query is written.
func (s *SerialChannel) Send(cmd string) (string, error) {
	if IsQuery(cmd) {
		if err := s.dropInput(); err != nil {
			return "", fmt.Errorf("flush %s: %w", s.name, err)
		}
	}
	if _, err := s.port.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("write %q to %s: %w", cmd, s.name, err)
	}
	if !IsQuery(cmd) {
		debug.Command(cmd, "")
		return "", nil
	}
	raw, err := s.readLine()
	if err != nil {
		return "", fmt.Errorf("read response to %q from %s: %w", cmd, s.name, err)
	}
	resp := Sanitize(raw)
	debug.Command(cmd, resp)
	return resp, nil
}

func (s *SerialChannel) dropInput() error {
	if len(s.pending) > 0 {
		debug.Trace("Dropping stale input %q", Sanitize(s.pending))
		s.pending = nil
	}
	return s.port.Flush()
}

// readLine returns the bytes up to the next newline, or what was received
// when the port stops delivering data.
func (s *SerialChannel) readLine() ([]byte, error) {
	buf := make([]byte, 64)
	timedOut := false
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := s.pending[:i]
			s.pending = append([]byte(nil), s.pending[i+1:]...)
			return line, nil
		}
		if timedOut {
			line := s.pending
			s.pending = nil
			return line, nil
		}
		n, err := s.port.Read(buf)
		s.pending = append(s.pending, buf[:n]...)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		timedOut = n == 0 || err != nil
	}
}

// Close closes the port. Further calls return the first result.
func (s *SerialChannel) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
		debug.Info("Connection closed to spider port %s", s.name)
	})
	return s.closeErr
}
