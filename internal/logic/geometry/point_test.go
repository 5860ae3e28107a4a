package geometry

import (
	"math"
	"testing"

	"gopkg.in/yaml.v3"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPoint3_Arithmetic(t *testing.T) {
	p := Point3{1, 2, 3}
	q := Point3{4, -1, 0.5}

	if got := p.Add(q); got != (Point3{5, 1, 3.5}) {
		t.Errorf("Add = %v", got)
	}
	if got := p.Sub(q); got != (Point3{-3, 3, 2.5}) {
		t.Errorf("Sub = %v", got)
	}
	if got := p.Scale(2); got != (Point3{2, 4, 6}) {
		t.Errorf("Scale = %v", got)
	}
	if got := p.Dot(q); !almostEqual(got, 4-2+1.5) {
		t.Errorf("Dot = %v", got)
	}
	x, y := Point3{1, 0, 0}, Point3{0, 1, 0}
	if got := x.Cross(y); got != (Point3{0, 0, 1}) {
		t.Errorf("Cross = %v, want z unit vector", got)
	}
}

func TestPoint3_Distance(t *testing.T) {
	cases := []struct {
		name string
		p, q Point3
		want float64
	}{
		{"same_point", Point3{1, 1, 1}, Point3{1, 1, 1}, 0},
		{"unit_x", Point3{}, Point3{1, 0, 0}, 1},
		{"pythagoras", Point3{}, Point3{3, 4, 0}, 5},
		{"3d", Point3{1, 2, 3}, Point3{3, 5, 9}, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Distance(tc.q); !almostEqual(got, tc.want) {
				t.Errorf("Distance = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPoint3_Lerp(t *testing.T) {
	p := Point3{0, 0, 0}
	q := Point3{2, -4, 1}
	if got := p.Lerp(q, 0); got != p {
		t.Errorf("Lerp(0) = %v, want %v", got, p)
	}
	if got := p.Lerp(q, 1); got != q {
		t.Errorf("Lerp(1) = %v, want %v", got, q)
	}
	if got := p.Lerp(q, 0.5); got != (Point3{1, -2, 0.5}) {
		t.Errorf("Lerp(0.5) = %v", got)
	}
}

func TestPoint3_IsFinite(t *testing.T) {
	if !(Point3{1, 2, 3}).IsFinite() {
		t.Error("regular point should be finite")
	}
	if (Point3{math.NaN(), 0, 0}).IsFinite() {
		t.Error("NaN coordinate should not be finite")
	}
	if (Point3{0, 0, math.Inf(-1)}).IsFinite() {
		t.Error("Inf coordinate should not be finite")
	}
}

func TestNorm(t *testing.T) {
	if got := Norm(nil); got != 0 {
		t.Errorf("Norm(nil) = %v, want 0", got)
	}
	if got := Norm([]float64{3, -4}); !almostEqual(got, 5) {
		t.Errorf("Norm = %v, want 5", got)
	}
	if got := Norm([]float64{2, 1}); !almostEqual(got, math.Sqrt(5)) {
		t.Errorf("Norm = %v, want sqrt(5)", got)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ v, want float64 }{
		{0, 1},
		{1, 1},
		{500, 500},
		{1000, 1000},
		{5000, 1000},
		{-3, 1},
	}
	for _, tc := range cases {
		if got := Clamp(tc.v, 1, 1000); got != tc.want {
			t.Errorf("Clamp(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestPoint3_UnmarshalYAML(t *testing.T) {
	var doc struct {
		Seq Point3 `yaml:"seq"`
		Map Point3 `yaml:"map"`
	}
	src := "seq: [1, 2.5, -3]\nmap: {x: 4, z: 6}\n"
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Seq != (Point3{1, 2.5, -3}) {
		t.Errorf("seq = %v", doc.Seq)
	}
	if doc.Map != (Point3{4, 0, 6}) {
		t.Errorf("map = %v", doc.Map)
	}
}

func TestPoint3_UnmarshalYAML_Invalid(t *testing.T) {
	cases := []string{
		"p: [1, 2]",
		"p: [1, 2, 3, 4]",
		"p: 7",
		"p: [a, b, c]",
	}
	for _, src := range cases {
		var doc struct {
			P Point3 `yaml:"p"`
		}
		if err := yaml.Unmarshal([]byte(src), &doc); err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}
