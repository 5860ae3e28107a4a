package channel

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/SpiderGo/internal/debug"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("channel closed")

// Simulator emulates the motor controllers in process. Each position query
// advances the reported angle of a powered axis toward its commanded angle
// by rate * Tick, as if Tick elapsed between two queries.
type Simulator struct {
	mu     sync.Mutex
	tick   time.Duration
	format NumberFormat
	axes   map[int]*simAxis
	closed bool
}

type simAxis struct {
	powered bool
	rate    float64 // degrees per second
	pos     float64 // reported angle
	target  float64 // commanded angle
}

// NewSimulator creates a simulated controller. A non positive tick defaults to 50ms.
func NewSimulator(tick time.Duration, format NumberFormat) *Simulator {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	debug.Info("Using SIMULATED motor controller (development mode)")
	return &Simulator{
		tick:   tick,
		format: format,
		axes:   make(map[int]*simAxis),
	}
}

func (s *Simulator) axis(id int) *simAxis {
	a, ok := s.axes[id]
	if !ok {
		a = &simAxis{}
		s.axes[id] = a
	}
	return a
}

// Send executes cmd against the simulated axes.
func (s *Simulator) Send(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	c, err := ParseCommand(cmd)
	if err != nil {
		debug.Trace("simulator: %v", err)
		if IsQuery(cmd) {
			return "ERR", nil
		}
		return "", nil
	}

	a := s.axis(c.Axis)
	resp := ""
	switch {
	case c.Verb == VerbPower && c.Query:
		resp = "OFF"
		if a.powered {
			resp = "ON"
		}
	case c.Verb == VerbPower:
		a.powered = c.Arg == "ON"
	case c.Verb == VerbRate && !c.Query:
		a.rate = parseArg(c.Arg, a.rate)
	case c.Verb == VerbPos && c.Query:
		s.advance(a)
		resp = s.format.Format(a.pos)
	case c.Verb == VerbPos:
		a.target = parseArg(c.Arg, a.target)
	}
	if c.OPC {
		resp = "1"
	}
	debug.Command(cmd, resp)
	return resp, nil
}

func (s *Simulator) advance(a *simAxis) {
	if !a.powered {
		return
	}
	step := math.Abs(a.rate) * s.tick.Seconds()
	delta := a.target - a.pos
	if math.Abs(delta) <= step {
		a.pos = a.target
		return
	}
	a.pos += math.Copysign(step, delta)
}

// Position returns the current simulated angle of an axis.
func (s *Simulator) Position(id int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.axis(id).pos
}

// Close marks the simulator closed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func parseArg(arg string, fallback float64) float64 {
	v, err := ParseNumber(arg)
	if err != nil {
		return fallback
	}
	return v
}
