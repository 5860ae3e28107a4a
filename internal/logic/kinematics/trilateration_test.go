package kinematics

import (
	"errors"
	"testing"

	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
)

func TestTrilaterate(t *testing.T) {
	anchors := [3]geometry.Point3{{X: 0, Y: 0, Z: 3}, {X: 4, Y: 0, Z: 3}, {X: 0, Y: 4, Z: 3}}
	cases := []struct {
		name string
		p    geometry.Point3
		near geometry.Point3
	}{
		{"below_plane", geometry.Point3{X: 1, Y: 1, Z: 0.5}, geometry.Point3{X: 2, Y: 2, Z: 0}},
		{"center", geometry.Point3{X: 2, Y: 2, Z: 1}, geometry.Point3{X: 2, Y: 2, Z: 0}},
		{"above_plane", geometry.Point3{X: 1, Y: 2, Z: 4}, geometry.Point3{X: 1, Y: 2, Z: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var lengths [3]float64
			for i, a := range anchors {
				lengths[i] = a.Distance(tc.p)
			}
			got, err := Trilaterate(anchors, lengths, tc.near)
			if err != nil {
				t.Fatalf("Trilaterate: %v", err)
			}
			if got.Distance(tc.p) > 1e-9 {
				t.Errorf("Trilaterate = %v, want %v", got, tc.p)
			}
		})
	}
}

func TestTrilaterate_Degenerate(t *testing.T) {
	cases := map[string][3]geometry.Point3{
		"coincident": {{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 0, Z: 0}},
		"collinear":  {{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}},
	}
	for name, anchors := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Trilaterate(anchors, [3]float64{1, 1, 1}, geometry.Point3{})
			if !errors.Is(err, ErrDegenerateAnchors) {
				t.Errorf("err = %v, want ErrDegenerateAnchors", err)
			}
		})
	}
}
