// Package route runs a list of platform waypoints.
package route

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/SpiderGo/internal/config"
	"github.com/cjeanneret/SpiderGo/internal/debug"
	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
	"github.com/cjeanneret/SpiderGo/internal/logic/motion"
)

// Waypoint is one stop of a route.
type Waypoint struct {
	Pos      geometry.Point3
	Velocity float64       // m/s, 0 = route velocity
	Dwell    time.Duration // wait after arrival
}

// Route is an ordered list of waypoints.
type Route struct {
	Velocity  float64 // default m/s of the waypoints
	Waypoints []Waypoint
}

// FromConfig builds the route of the route section.
func FromConfig(rc config.RouteConfig) Route {
	r := Route{Velocity: rc.Velocity, Waypoints: make([]Waypoint, len(rc.Waypoints))}
	for i, wp := range rc.Waypoints {
		r.Waypoints[i] = Waypoint{Pos: wp.Pos, Velocity: wp.Velocity, Dwell: wp.Dwell()}
	}
	return r
}

// Progress is reported when a waypoint is reached.
type Progress struct {
	Index int             `json:"index"` // 1-based
	Total int             `json:"total"`
	Pos   geometry.Point3 `json:"pos"`
}

// Runner moves along routes with line motion.
type Runner struct {
	mover  motion.Mover
	params motion.LineParams

	// OnWaypoint, when set, is called after each waypoint is reached.
	OnWaypoint func(Progress)
}

// NewRunner creates a runner. params gives the resolution, tolerance and
// profile of every segment; its velocity is used when neither the route
// nor the waypoint set one.
func NewRunner(m motion.Mover, params motion.LineParams) *Runner {
	return &Runner{mover: m, params: params}
}

// Run visits every waypoint in order. It stops at the first failed move or
// when ctx is done, between waypoints and during dwell times.
func (r *Runner) Run(ctx context.Context, rt Route) error {
	total := len(rt.Waypoints)
	debug.Section(fmt.Sprintf("Route (%d waypoints)", total))

	for i, wp := range rt.Waypoints {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		debug.Waypoint(i+1, total)
		lp := r.params
		switch {
		case wp.Velocity > 0:
			lp.Velocity = wp.Velocity
		case rt.Velocity > 0:
			lp.Velocity = rt.Velocity
		}
		debug.Move(wp.Pos.X, wp.Pos.Y, wp.Pos.Z, lp.Velocity)

		if err := motion.MoveOnLine(ctx, r.mover, wp.Pos, lp); err != nil {
			return fmt.Errorf("waypoint %d/%d: %w", i+1, total, err)
		}
		if r.OnWaypoint != nil {
			r.OnWaypoint(Progress{Index: i + 1, Total: total, Pos: wp.Pos})
		}

		if wp.Dwell > 0 {
			debug.Verbose("Dwell %v at waypoint %d", wp.Dwell, i+1)
			t := time.NewTimer(wp.Dwell)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	debug.Live("Route complete")
	return nil
}
