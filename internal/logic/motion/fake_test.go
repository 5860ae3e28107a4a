package motion

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cjeanneret/SpiderGo/internal/hw/channel"
	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
)

// fakeController answers like the winch firmware and records every command.
// Axes report their commanded angle plus their offset on the first
// position query unless they lag or are frozen.
type fakeController struct {
	mu          sync.Mutex
	sent        []string
	powered     map[int]bool
	powerResp   string // replaces the POW? answer when set
	commanded   map[int]float64
	reported    map[int]float64
	offset      map[int]float64 // constant error of the reported angle
	lag         map[int]int     // POS? answers with the old angle before following
	frozen      map[int]bool
	failQueries int // next queries answered with ERR
	closes      int
}

func newFakeController() *fakeController {
	return &fakeController{
		powered:   make(map[int]bool),
		commanded: make(map[int]float64),
		reported:  make(map[int]float64),
		offset:    make(map[int]float64),
		lag:       make(map[int]int),
		frozen:    make(map[int]bool),
	}
}

func (f *fakeController) Send(cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)

	if channel.IsQuery(cmd) && f.failQueries > 0 {
		f.failQueries--
		return "ERR", nil
	}
	c, err := channel.ParseCommand(cmd)
	if err != nil {
		return "", fmt.Errorf("fake: %w", err)
	}
	resp := ""
	switch {
	case c.Verb == channel.VerbPower && c.Query:
		resp = "OFF"
		if f.powered[c.Axis] {
			resp = "ON"
		}
		if f.powerResp != "" {
			resp = f.powerResp
		}
	case c.Verb == channel.VerbPower:
		f.powered[c.Axis] = c.Arg == "ON"
	case c.Verb == channel.VerbPos && c.Query:
		switch {
		case f.frozen[c.Axis]:
		case f.lag[c.Axis] > 0:
			f.lag[c.Axis]--
		default:
			f.reported[c.Axis] = f.commanded[c.Axis] + f.offset[c.Axis]
		}
		resp = strconv.FormatFloat(f.reported[c.Axis], 'f', -1, 64)
	case c.Verb == channel.VerbPos:
		v, err := channel.ParseNumber(c.Arg)
		if err != nil {
			return "", err
		}
		f.commanded[c.Axis] = v
	}
	if c.OPC {
		resp = "1"
	}
	return resp, nil
}

func (f *fakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeController) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeController) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func (f *fakeController) count(prefix string) int {
	n := 0
	for _, cmd := range f.log() {
		if strings.HasPrefix(cmd, prefix) {
			n++
		}
	}
	return n
}

// recordLogger keeps the messages of each level.
type recordLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *recordLogger) Debugf(string, ...interface{}) {}

func (l *recordLogger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

var (
	testStart   = geometry.Point3{X: 1, Y: 1, Z: 0}
	testAnchors = []geometry.Point3{
		{X: 0, Y: 0, Z: 2},
		{X: 2, Y: 0, Z: 2},
		{X: 0, Y: 2, Z: 2},
		{X: 2, Y: 2, Z: 2},
	}
)

const testDiameter = 0.05

func testOptions() Options {
	opts := DefaultOptions()
	opts.PollInterval = 0
	opts.CommandDelay = 0
	return opts
}
