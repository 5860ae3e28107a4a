package geometry

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Point3 is a position or offset in the platform coordinate system, in meters.
type Point3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Add returns p + q.
func (p Point3) Add(q Point3) Point3 {
	return Point3{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Sub returns p - q.
func (p Point3) Sub(q Point3) Point3 {
	return Point3{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Scale returns p multiplied by k.
func (p Point3) Scale(k float64) Point3 {
	return Point3{p.X * k, p.Y * k, p.Z * k}
}

// Dot returns the scalar product of p and q.
func (p Point3) Dot(q Point3) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Cross returns the vector product p x q.
func (p Point3) Cross(q Point3) Point3 {
	return Point3{
		p.Y*q.Z - p.Z*q.Y,
		p.Z*q.X - p.X*q.Z,
		p.X*q.Y - p.Y*q.X,
	}
}

// Norm returns the euclidean length of p.
func (p Point3) Norm() float64 {
	return math.Sqrt(p.Dot(p))
}

// Distance returns the euclidean distance between p and q.
func (p Point3) Distance(q Point3) float64 {
	return p.Sub(q).Norm()
}

// Lerp interpolates linearly between p (t=0) and q (t=1).
func (p Point3) Lerp(q Point3, t float64) Point3 {
	return p.Add(q.Sub(p).Scale(t))
}

// IsFinite reports whether no coordinate is NaN or infinite.
func (p Point3) IsFinite() bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p Point3) String() string {
	return fmt.Sprintf("(x=%.3fm, y=%.3fm, z=%.3fm)", p.X, p.Y, p.Z)
}

// UnmarshalYAML accepts both the flow sequence form [x, y, z]
// and the mapping form {x: .., y: .., z: ..}.
func (p *Point3) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var v []float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		if len(v) != 3 {
			return fmt.Errorf("line %d: point needs 3 coordinates, got %d", node.Line, len(v))
		}
		*p = Point3{v[0], v[1], v[2]}
		return nil
	case yaml.MappingNode:
		// alias type drops the method set to avoid recursing
		type plain Point3
		var v plain
		if err := node.Decode(&v); err != nil {
			return err
		}
		*p = Point3(v)
		return nil
	default:
		return fmt.Errorf("line %d: point must be a sequence or a mapping", node.Line)
	}
}

// Norm returns the euclidean norm of an arbitrary vector.
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
