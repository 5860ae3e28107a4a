package motion

import (
	"context"
	"fmt"
	"strings"

	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
)

// Profile shapes the velocity along a line move.
type Profile int

const (
	// ProfileConstant moves every segment with the requested velocity.
	ProfileConstant Profile = iota
	// ProfileParabolic accelerates then decelerates along the line. Experimental.
	ProfileParabolic
)

const (
	// MinProfileFactor bounds the parabolic velocity factor so end segments still move.
	MinProfileFactor = 0.1
	// intermediateTolerance scales the resolution into the tolerance of inner segments.
	intermediateTolerance = 0.9
)

// ParseProfile maps a config value to a Profile.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(s) {
	case "", "constant":
		return ProfileConstant, nil
	case "parabolic":
		return ProfileParabolic, nil
	default:
		return ProfileConstant, fmt.Errorf("unknown velocity profile %q (want constant or parabolic)", s)
	}
}

func (p Profile) String() string {
	if p == ProfileParabolic {
		return "parabolic"
	}
	return "constant"
}

// Mover is the part of a Positioner used by line motion.
type Mover interface {
	Target() geometry.Point3
	MoveToPos(ctx context.Context, pos geometry.Point3, vel, tol float64) error
}

// LineParams configures a line move.
type LineParams struct {
	Velocity   float64 // cable speed in m/s
	Resolution float64 // segment length in meters, > 0
	Tolerance  float64 // tolerance of the final point in meters
	Profile    Profile
}

// MoveOnLine moves m to pos along the straight line from its current target,
// one MoveToPos per segment of length lp.Resolution. Inner segments are
// accepted within 90% of the resolution, the final point with lp.Tolerance.
func MoveOnLine(ctx context.Context, m Mover, pos geometry.Point3, lp LineParams) error {
	if !(lp.Resolution > 0) {
		return fmt.Errorf("resolution %g: %w", lp.Resolution, ErrInvalidResolution)
	}
	if err := checkMove(pos, lp.Velocity, lp.Tolerance); err != nil {
		return err
	}
	plan := geometry.NewLinePlan(m.Target(), pos, lp.Resolution)
	if plan.Steps <= 1 {
		return m.MoveToPos(ctx, pos, lp.Velocity, lp.Tolerance)
	}

	innerTol := lp.Resolution * intermediateTolerance
	for i := 1; i <= plan.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tol := innerTol
		if i == plan.Steps {
			tol = lp.Tolerance
		}
		vel := SegmentVelocity(lp.Velocity, i, plan.Steps, lp.Profile)
		if err := m.MoveToPos(ctx, plan.Point(i), vel, tol); err != nil {
			return fmt.Errorf("line segment %d/%d: %w", i, plan.Steps, err)
		}
	}
	return nil
}

// SegmentVelocity returns the velocity of segment i (1-based) out of n.
func SegmentVelocity(vel float64, i, n int, profile Profile) float64 {
	if profile != ProfileParabolic || n <= 0 {
		return vel
	}
	t := (float64(i) - 0.5) / float64(n)
	factor := 4 * t * (1 - t)
	if factor < MinProfileFactor {
		factor = MinProfileFactor
	}
	return vel * factor
}

// MoveOnLine moves the platform to pos along a straight line.
func (p *Positioner) MoveOnLine(ctx context.Context, pos geometry.Point3, lp LineParams) error {
	return MoveOnLine(ctx, p, pos, lp)
}
