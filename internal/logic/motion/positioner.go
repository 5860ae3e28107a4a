package motion

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/cjeanneret/SpiderGo/internal/hw/channel"
	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
	"github.com/cjeanneret/SpiderGo/internal/logic/kinematics"
)

// Positioner moves a cable-suspended platform by driving one winch per axis.
//
// Usage:
//  1. define the coordinate system the platform moves in
//  2. create the Positioner with an open channel and the platform start position
//  3. register each winch with AddAxis
//  4. move the platform with MoveToPos or MoveOnLine
//
// All operations block until the controllers answered. Channel access is
// serialized; Target may be read while a move is running.
type Positioner struct {
	ch   channel.Channel
	log  Logger
	opts Options

	busMu sync.Mutex // serializes channel use and guards axes
	axes  []*kinematics.Axis

	posMu  sync.RWMutex
	tarPos geometry.Point3

	closeOnce sync.Once
	closeErr  error
}

// AxisSpec describes a winch to register.
type AxisSpec struct {
	ID       int
	Placed   geometry.Point3 // anchor position in meters
	Diameter float64         // winch diameter in meters
	Attached geometry.Point3 // cable attachment offset from the platform center
}

// AxisState is a snapshot of a registered axis.
type AxisState struct {
	ID     int             `json:"id"`
	Target geometry.Point3 `json:"target"`
	Length float64         `json:"length"` // cable length in meters
	Angle  float64         `json:"angle"`  // relative angle in degrees
}

// NewPositioner creates a positioner owning ch. A nil log discards diagnostics.
func NewPositioner(ch channel.Channel, start geometry.Point3, opts Options, log Logger) *Positioner {
	if log == nil {
		log = NopLogger{}
	}
	return &Positioner{
		ch:     ch,
		log:    log,
		opts:   opts.withDefaults(),
		tarPos: start,
	}
}

// Target returns the platform position of the last completed move.
func (p *Positioner) Target() geometry.Point3 {
	p.posMu.RLock()
	defer p.posMu.RUnlock()
	return p.tarPos
}

func (p *Positioner) setTarget(pos geometry.Point3) {
	p.posMu.Lock()
	p.tarPos = pos
	p.posMu.Unlock()
}

// Options returns the effective options.
func (p *Positioner) Options() Options {
	return p.opts
}

// Axes returns a snapshot of the registered axes in registration order.
// It waits for a running move to finish.
func (p *Positioner) Axes() []AxisState {
	p.busMu.Lock()
	defer p.busMu.Unlock()
	states := make([]AxisState, len(p.axes))
	for i, ax := range p.axes {
		states[i] = AxisState{ID: ax.ID(), Target: ax.Target(), Length: ax.Dist(), Angle: ax.Angle()}
	}
	return states
}

// AddAxis registers a winch and powers it on. Invalid specs are rejected
// before anything is sent. A controller that does not confirm the power
// state is logged; the axis is registered anyway.
func (p *Positioner) AddAxis(ctx context.Context, spec AxisSpec) error {
	p.busMu.Lock()
	defer p.busMu.Unlock()

	for _, ax := range p.axes {
		if ax.ID() == spec.ID {
			return fmt.Errorf("axis %d: %w", spec.ID, ErrDuplicateAxis)
		}
	}
	ax, err := kinematics.NewAxis(spec.ID, spec.Diameter, spec.Placed, spec.Attached, p.Target())
	if err != nil {
		return err
	}

	if _, err := p.ch.Send(channel.PowerOn(spec.ID)); err != nil {
		p.log.Errorf("Axis %d power on failed: %v", spec.ID, err)
	}
	resp, err := p.query(ctx, channel.PowerQuery(spec.ID), nil)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		p.log.Errorf("Axis %d is not powered: %v", spec.ID, err)
	case strings.Contains(resp, "ON"):
		p.log.Infof("Axis %d is ready", spec.ID)
	default:
		p.log.Errorf("Axis %d is not powered (%s)", spec.ID, resp)
	}

	p.axes = append(p.axes, ax)
	return nil
}

// GetAxisAngle queries the current angle of an axis in degrees.
func (p *Positioner) GetAxisAngle(ctx context.Context, id int) (float64, error) {
	p.busMu.Lock()
	defer p.busMu.Unlock()

	if p.axis(id) == nil {
		return 0, fmt.Errorf("axis %d: %w", id, ErrUnknownAxis)
	}
	return p.readAngle(ctx, id)
}

func (p *Positioner) axis(id int) *kinematics.Axis {
	for _, ax := range p.axes {
		if ax.ID() == id {
			return ax
		}
	}
	return nil
}

// axisMove is the per-axis part of a platform move.
type axisMove struct {
	axis  *kinematics.Axis
	rate  float64 // degrees per second
	angle float64 // commanded angle, as written on the wire
}

// MoveToPos moves the platform to pos with a cable speed of vel m/s and
// blocks until the platform is within tol meters of pos, or every axis is
// within its mechanical resolution.
//
// Axes that do not converge are given up after Options.UnreachablePolls
// polls; the move still completes. With UnreachableError their
// *AxisUnreachableError values are returned combined.
func (p *Positioner) MoveToPos(ctx context.Context, pos geometry.Point3, vel, tol float64) error {
	if err := checkMove(pos, vel, tol); err != nil {
		return err
	}
	p.busMu.Lock()
	defer p.busMu.Unlock()

	if pos.Distance(p.Target()) <= tol {
		p.log.Debugf("Already on position")
		return nil
	}
	p.log.Infof("Moving target to x=%.3fm, y=%.3fm, z=%.3fm with %g mm/s", pos.X, pos.Y, pos.Z, vel*1000)

	moves := p.plan(pos, vel)
	for _, m := range moves {
		if err := p.dispatch(ctx, m); err != nil {
			return err
		}
	}

	unreachable, err := p.poll(ctx, moves, tol)
	if err != nil {
		return err
	}
	p.setTarget(pos)

	if len(unreachable) > 0 && p.opts.Unreachable == UnreachableError {
		return multierr.Combine(unreachable...)
	}
	return nil
}

func checkMove(pos geometry.Point3, vel, tol float64) error {
	if !pos.IsFinite() || math.IsNaN(vel) || math.IsInf(vel, 0) || math.IsNaN(tol) || math.IsInf(tol, 0) {
		return fmt.Errorf("move to %v at %g m/s within %g m: %w", pos, vel, tol, ErrInvalidMove)
	}
	return nil
}

// plan updates the axis targets and derives the rate and angle of each axis.
func (p *Positioner) plan(pos geometry.Point3, vel float64) []axisMove {
	moves := make([]axisMove, len(p.axes))
	diffs := make([]float64, len(p.axes))
	nominal := make([]float64, len(p.axes))
	for i, ax := range p.axes {
		oldAngle := ax.Angle()
		ax.SetTarget(pos)
		newAngle := ax.Angle()
		p.log.Debugf("Axis %d angle: %.2f -> %.2f", ax.ID(), oldAngle, newAngle)

		diffs[i] = newAngle - oldAngle
		nominal[i] = ax.LengthToRotation(vel)
		moves[i] = axisMove{axis: ax, angle: p.opts.Format.Quantize(newAngle)}
	}

	rates := RotationRates(diffs, nominal, p.opts.MinRate, p.opts.MaxRate)
	for i := range moves {
		moves[i].rate = rates[i]
		p.log.Debugf("Axis %d rotation speed: %.2f", moves[i].axis.ID(), rates[i])
	}
	return moves
}

// RotationRates shares the nominal rotation speed of each axis in
// proportion to its part of the total angle travel, so all axes arrive
// together. The total is the euclidean norm of all angle differences.
// Results are clamped to [minRate, maxRate].
func RotationRates(angleDiffs, nominal []float64, minRate, maxRate float64) []float64 {
	magnitude := geometry.Norm(angleDiffs)
	rates := make([]float64, len(angleDiffs))
	for i, diff := range angleDiffs {
		share := 0.0
		if magnitude > 0 {
			share = math.Abs(diff) / magnitude
		}
		rates[i] = geometry.Clamp(nominal[i]*share, minRate, maxRate)
	}
	return rates
}

// dispatch sends the rate then the position command of one axis.
func (p *Positioner) dispatch(ctx context.Context, m axisMove) error {
	id := m.axis.ID()
	if err := p.command(ctx, channel.Rate(id, m.rate, p.opts.Format)); err != nil {
		return err
	}
	return p.command(ctx, channel.Pos(id, m.angle, p.opts.Format))
}

func (p *Positioner) command(ctx context.Context, cmd string) error {
	if p.opts.AwaitCompletion {
		if _, err := p.query(ctx, channel.WithOPC(cmd), nil); err != nil {
			return err
		}
	} else if _, err := p.ch.Send(cmd); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	return sleep(ctx, p.opts.CommandDelay)
}

// poll waits until the move converged and returns the axes given up on the way.
func (p *Positioner) poll(ctx context.Context, moves []axisMove, tol float64) ([]error, error) {
	unsatisfied := make([]int, len(moves))
	resent := make([]bool, len(moves))
	lost := make([]bool, len(moves))
	var unreachable []error

	lenDiffs := make([]float64, 0, len(moves))
	for {
		lenDiffs = lenDiffs[:0]
		resolved := true

		for i, m := range moves {
			if lost[i] {
				continue
			}
			id := m.axis.ID()
			current, err := p.readAngle(ctx, id)
			if err != nil {
				return unreachable, err
			}
			delta := math.Abs(m.angle - current)
			if delta <= p.opts.ResolutionDeg {
				unsatisfied[i] = 0
				lenDiffs = append(lenDiffs, m.axis.RotationToLength(delta))
				continue
			}

			unsatisfied[i]++
			if unsatisfied[i] >= p.opts.UnreachablePolls {
				lost[i] = true
				uerr := &AxisUnreachableError{ID: id, RemainingDeg: delta}
				p.log.Warnf("%v", uerr)
				unreachable = append(unreachable, uerr)
				continue
			}
			if unsatisfied[i] == p.opts.StuckPolls && !resent[i] {
				resent[i] = true
				p.log.Warnf("Axis %d stuck %.1f deg from target, re-sending rate and position", id, delta)
				if err := p.dispatch(ctx, m); err != nil {
					return unreachable, err
				}
			}
			resolved = false
			lenDiffs = append(lenDiffs, m.axis.RotationToLength(delta))
		}

		if dist := geometry.Norm(lenDiffs); dist <= tol {
			p.log.Debugf("Error distance reached (%.4fm)", dist)
			return unreachable, nil
		}
		if resolved {
			p.log.Debugf("Motor angle resolution reached")
			return unreachable, nil
		}
		if err := sleep(ctx, p.opts.PollInterval); err != nil {
			return unreachable, err
		}
	}
}

func (p *Positioner) readAngle(ctx context.Context, id int) (float64, error) {
	var angle float64
	_, err := p.query(ctx, channel.PosQuery(id), func(resp string) error {
		v, err := channel.ParseNumber(resp)
		angle = v
		return err
	})
	return angle, err
}

// query sends cmd until a valid response arrives or the attempts are spent.
// accept may reject a response, which then counts as a failed attempt.
func (p *Positioner) query(ctx context.Context, cmd string, accept func(string) error) (string, error) {
	var last error
	for attempt := 1; attempt <= p.opts.QueryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := p.ch.Send(cmd)
		switch {
		case err != nil:
			last = err
		case channel.IsInvalidResponse(resp):
			last = fmt.Errorf("invalid response %q", resp)
		case accept != nil:
			if last = accept(resp); last == nil {
				return resp, nil
			}
		default:
			return resp, nil
		}
		p.log.Debugf("Query %s attempt %d/%d failed: %v", cmd, attempt, p.opts.QueryAttempts, last)
	}
	return "", &QueryExhaustedError{Command: cmd, Attempts: p.opts.QueryAttempts, Last: last}
}

// MeasuredPosition estimates the platform position from the angles reported
// by the first three axes.
func (p *Positioner) MeasuredPosition(ctx context.Context) (geometry.Point3, error) {
	p.busMu.Lock()
	defer p.busMu.Unlock()

	if len(p.axes) < 3 {
		return geometry.Point3{}, fmt.Errorf("measure position with %d axes: %w", len(p.axes), ErrTooFewAxes)
	}
	var anchors [3]geometry.Point3
	var lengths [3]float64
	for i, ax := range p.axes[:3] {
		angle, err := p.readAngle(ctx, ax.ID())
		if err != nil {
			return geometry.Point3{}, err
		}
		// the platform center is at cable length from the anchor shifted by the attachment
		anchors[i] = ax.Placed().Sub(ax.Attached())
		lengths[i] = ax.CableLength(angle)
	}
	return kinematics.Trilaterate(anchors, lengths, p.Target())
}

// Close releases the channel once the running operation, if any, returned.
// Only the first call closes it.
func (p *Positioner) Close() error {
	p.busMu.Lock()
	defer p.busMu.Unlock()
	p.closeOnce.Do(func() {
		p.closeErr = p.ch.Close()
	})
	return p.closeErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
