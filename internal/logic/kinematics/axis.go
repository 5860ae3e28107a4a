// Package kinematics models the winches of a cable-suspended platform.
// Each axis converts the cable length between its anchor and the platform
// into a rotation angle of the winch, relative to the angle it had when it
// was registered.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
)

// ErrInvalidDiameter is returned for a winch diameter that is not a positive finite number.
var ErrInvalidDiameter = errors.New("winch diameter must be > 0")

// Axis tracks the rotation of one winch needed to hold the platform at its target.
type Axis struct {
	id        int
	diameter  float64         // winch diameter in meters
	placed    geometry.Point3 // anchor point of the cable
	attached  geometry.Point3 // cable attachment offset from the platform center
	target    geometry.Point3 // platform target + attached
	offsetRot float64         // absolute rotation at construction, zero reference of Angle
}

// NewAxis creates an axis for a platform currently targeted at platformTarget.
// The cable length at that moment becomes the zero reference of Angle.
func NewAxis(id int, diameter float64, placed, attached, platformTarget geometry.Point3) (*Axis, error) {
	if !(diameter > 0) || math.IsInf(diameter, 0) {
		return nil, fmt.Errorf("axis %d: %w, got %g", id, ErrInvalidDiameter, diameter)
	}
	a := &Axis{
		id:       id,
		diameter: diameter,
		placed:   placed,
		attached: attached,
	}
	a.SetTarget(platformTarget)
	a.offsetRot = a.Rot()
	return a, nil
}

func (a *Axis) ID() int                   { return a.id }
func (a *Axis) Placed() geometry.Point3   { return a.placed }
func (a *Axis) Attached() geometry.Point3 { return a.attached }
func (a *Axis) Target() geometry.Point3   { return a.target }

// SetTarget sets the new platform target position.
func (a *Axis) SetTarget(platformTarget geometry.Point3) {
	a.target = platformTarget.Add(a.attached)
}

// Dist returns the cable length in meters between the anchor and the target.
func (a *Axis) Dist() float64 {
	return a.target.Distance(a.placed)
}

// Rot returns the absolute winch rotation in degrees for the current cable length.
func (a *Axis) Rot() float64 {
	return a.LengthToRotation(a.Dist())
}

// Angle returns the rotation relative to the construction state, the value
// sent to the motor controller. It is not wrapped.
func (a *Axis) Angle() float64 {
	return a.Rot() - a.offsetRot
}

// LengthToRotation converts a cable length in meters to degrees of winch rotation.
func (a *Axis) LengthToRotation(length float64) float64 {
	return 360 * length / (math.Pi * a.diameter)
}

// RotationToLength converts degrees of winch rotation to a cable length in meters.
func (a *Axis) RotationToLength(deg float64) float64 {
	return math.Pi * a.diameter * deg / 360
}

// CableLength returns the absolute cable length implied by a relative angle
// reported by the motor controller.
func (a *Axis) CableLength(angle float64) float64 {
	return a.RotationToLength(a.offsetRot + angle)
}
