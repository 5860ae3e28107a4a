package kinematics

import (
	"errors"
	"math"

	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
)

// ErrDegenerateAnchors is returned when the anchors do not span a plane.
var ErrDegenerateAnchors = errors.New("anchors are coincident or collinear")

// Trilaterate returns the point located at lengths[i] from anchors[i].
// Of the two solutions mirrored by the anchor plane, the one closest to
// near is returned. Inconsistent lengths are projected onto the anchor plane.
func Trilaterate(anchors [3]geometry.Point3, lengths [3]float64, near geometry.Point3) (geometry.Point3, error) {
	p1, p2, p3 := anchors[0], anchors[1], anchors[2]

	ex := p2.Sub(p1)
	d := ex.Norm()
	if d == 0 {
		return geometry.Point3{}, ErrDegenerateAnchors
	}
	ex = ex.Scale(1 / d)

	p13 := p3.Sub(p1)
	i := ex.Dot(p13)
	ey := p13.Sub(ex.Scale(i))
	j := ey.Norm()
	if j < 1e-12 {
		return geometry.Point3{}, ErrDegenerateAnchors
	}
	ey = ey.Scale(1 / j)
	ez := ex.Cross(ey)

	r1, r2, r3 := lengths[0]*lengths[0], lengths[1]*lengths[1], lengths[2]*lengths[2]
	x := (r1 - r2 + d*d) / (2 * d)
	y := (r1 - r3 + i*i + j*j - 2*i*x) / (2 * j)
	z := 0.0
	if z2 := r1 - x*x - y*y; z2 > 0 {
		z = math.Sqrt(z2)
	}

	base := p1.Add(ex.Scale(x)).Add(ey.Scale(y))
	up := base.Add(ez.Scale(z))
	down := base.Sub(ez.Scale(z))
	if down.Distance(near) < up.Distance(near) {
		return down, nil
	}
	return up, nil
}
