package motion

import (
	"fmt"
	"strings"
	"time"

	"github.com/cjeanneret/SpiderGo/internal/hw/channel"
)

// UnreachablePolicy selects what MoveToPos returns when axes were given up.
type UnreachablePolicy int

const (
	// UnreachableWarn logs unreachable axes and reports the move as done.
	UnreachableWarn UnreachablePolicy = iota
	// UnreachableError completes the move, then returns the unreachable axes as error.
	UnreachableError
)

// ParseUnreachablePolicy maps a config value to a policy.
func ParseUnreachablePolicy(s string) (UnreachablePolicy, error) {
	switch strings.ToLower(s) {
	case "", "warn":
		return UnreachableWarn, nil
	case "error":
		return UnreachableError, nil
	default:
		return UnreachableWarn, fmt.Errorf("unknown unreachable policy %q (want warn or error)", s)
	}
}

func (p UnreachablePolicy) String() string {
	if p == UnreachableError {
		return "error"
	}
	return "warn"
}

// Options tunes the command and polling behavior of a Positioner.
type Options struct {
	QueryAttempts    int               // attempts per query before ErrQueryExhausted
	StuckPolls       int               // unsatisfied polls before commands are re-sent once
	UnreachablePolls int               // unsatisfied polls before an axis is given up
	Unreachable      UnreachablePolicy // result of a move with given up axes
	MinRate          float64           // degrees per second
	MaxRate          float64           // degrees per second
	ResolutionDeg    float64           // mechanical angle resolution of the axes
	PollInterval     time.Duration     // wait between two polling rounds
	CommandDelay     time.Duration     // wait after each rate/position command
	Format           channel.NumberFormat
	AwaitCompletion  bool // suffix commands with ;*OPC? and wait for the acknowledgement
}

// DefaultOptions returns the options matching the controller firmware.
func DefaultOptions() Options {
	return Options{
		QueryAttempts:    3,
		StuckPolls:       20,
		UnreachablePolls: 200,
		Unreachable:      UnreachableWarn,
		MinRate:          1,
		MaxRate:          1000,
		ResolutionDeg:    1,
		PollInterval:     50 * time.Millisecond,
		CommandDelay:     10 * time.Millisecond,
		Format:           channel.FormatInteger,
	}
}

// withDefaults replaces unset counters and limits. Durations are kept, zero is valid.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QueryAttempts <= 0 {
		o.QueryAttempts = d.QueryAttempts
	}
	if o.StuckPolls <= 0 {
		o.StuckPolls = d.StuckPolls
	}
	if o.UnreachablePolls <= 0 {
		o.UnreachablePolls = d.UnreachablePolls
	}
	if o.MinRate <= 0 {
		o.MinRate = d.MinRate
	}
	if o.MaxRate <= 0 {
		o.MaxRate = d.MaxRate
	}
	if o.ResolutionDeg <= 0 {
		o.ResolutionDeg = d.ResolutionDeg
	}
	return o
}
