package motion

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
)

type moveCall struct {
	pos      geometry.Point3
	vel, tol float64
}

// recordingMover jumps to every requested position.
type recordingMover struct {
	target geometry.Point3
	calls  []moveCall
	failAt int // 1-based call that returns errMoveFailed, 0 = never
}

var errMoveFailed = errors.New("move failed")

func (m *recordingMover) Target() geometry.Point3 { return m.target }

func (m *recordingMover) MoveToPos(_ context.Context, pos geometry.Point3, vel, tol float64) error {
	m.calls = append(m.calls, moveCall{pos, vel, tol})
	if len(m.calls) == m.failAt {
		return errMoveFailed
	}
	m.target = pos
	return nil
}

func TestMoveOnLine_Segments(t *testing.T) {
	m := &recordingMover{}
	to := geometry.Point3{X: 1}
	lp := LineParams{Velocity: 0.05, Resolution: 0.25, Tolerance: 0.001}

	if err := MoveOnLine(context.Background(), m, to, lp); err != nil {
		t.Fatalf("MoveOnLine: %v", err)
	}
	if len(m.calls) != 4 {
		t.Fatalf("calls = %d, want 4", len(m.calls))
	}
	for i, c := range m.calls {
		wantX := 0.25 * float64(i+1)
		if math.Abs(c.pos.X-wantX) > 1e-9 {
			t.Errorf("call %d at %v, want x=%v", i+1, c.pos, wantX)
		}
		if c.vel != 0.05 {
			t.Errorf("call %d velocity = %v, want 0.05", i+1, c.vel)
		}
		wantTol := 0.25 * 0.9
		if i == 3 {
			wantTol = 0.001
		}
		if math.Abs(c.tol-wantTol) > 1e-12 {
			t.Errorf("call %d tolerance = %v, want %v", i+1, c.tol, wantTol)
		}
	}
	if m.calls[3].pos != to {
		t.Errorf("last point = %v, want exactly %v", m.calls[3].pos, to)
	}
}

func TestMoveOnLine_ShortLineSingleMove(t *testing.T) {
	m := &recordingMover{}
	lp := LineParams{Velocity: 0.05, Resolution: 0.25, Tolerance: 0.002}

	if err := MoveOnLine(context.Background(), m, geometry.Point3{Y: 0.3}, lp); err != nil {
		t.Fatalf("MoveOnLine: %v", err)
	}
	if len(m.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(m.calls))
	}
	if m.calls[0].tol != 0.002 || m.calls[0].pos != (geometry.Point3{Y: 0.3}) {
		t.Errorf("call = %+v, want direct move with tolerance 0.002", m.calls[0])
	}
}

func TestMoveOnLine_InvalidResolution(t *testing.T) {
	for _, res := range []float64{0, -0.1, math.NaN()} {
		m := &recordingMover{}
		err := MoveOnLine(context.Background(), m, geometry.Point3{X: 1}, LineParams{Velocity: 0.05, Resolution: res})
		if !errors.Is(err, ErrInvalidResolution) {
			t.Errorf("resolution %v: err = %v, want ErrInvalidResolution", res, err)
		}
		if len(m.calls) != 0 {
			t.Errorf("resolution %v: %d moves, want 0", res, len(m.calls))
		}
	}
}

func TestMoveOnLine_NonFiniteTarget(t *testing.T) {
	m := &recordingMover{}
	err := MoveOnLine(context.Background(), m, geometry.Point3{X: math.NaN()}, LineParams{Velocity: 0.05, Resolution: 0.1, Tolerance: 0.001})
	if !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("err = %v, want ErrInvalidMove", err)
	}
	if len(m.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(m.calls))
	}
}

func TestMoveOnLine_StopsOnError(t *testing.T) {
	m := &recordingMover{failAt: 2}
	err := MoveOnLine(context.Background(), m, geometry.Point3{X: 1}, LineParams{Velocity: 0.05, Resolution: 0.1, Tolerance: 0.001})
	if !errors.Is(err, errMoveFailed) {
		t.Fatalf("err = %v, want errMoveFailed", err)
	}
	if len(m.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(m.calls))
	}
}

func TestMoveOnLine_Cancelled(t *testing.T) {
	m := &recordingMover{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := MoveOnLine(ctx, m, geometry.Point3{X: 1}, LineParams{Velocity: 0.05, Resolution: 0.1, Tolerance: 0.001})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(m.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(m.calls))
	}
}

func TestSegmentVelocity(t *testing.T) {
	tests := []struct {
		name    string
		i, n    int
		profile Profile
		want    float64
	}{
		{"constant", 1, 4, ProfileConstant, 1},
		{"parabolic first", 1, 4, ProfileParabolic, 0.4375},
		{"parabolic inner", 2, 4, ProfileParabolic, 0.9375},
		{"parabolic symmetric", 3, 4, ProfileParabolic, 0.9375},
		{"parabolic floor", 1, 100, ProfileParabolic, MinProfileFactor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentVelocity(1, tt.i, tt.n, tt.profile); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SegmentVelocity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseProfile(t *testing.T) {
	for in, want := range map[string]Profile{"": ProfileConstant, "constant": ProfileConstant, "Parabolic": ProfileParabolic} {
		got, err := ParseProfile(in)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseProfile("trapezoid"); err == nil {
		t.Error("ParseProfile(trapezoid) should fail")
	}
}

func TestParseUnreachablePolicy(t *testing.T) {
	if p, err := ParseUnreachablePolicy("error"); err != nil || p != UnreachableError {
		t.Errorf("error policy = %v, %v", p, err)
	}
	if p, err := ParseUnreachablePolicy(""); err != nil || p != UnreachableWarn {
		t.Errorf("default policy = %v, %v", p, err)
	}
	if _, err := ParseUnreachablePolicy("abort"); err == nil {
		t.Error("ParseUnreachablePolicy(abort) should fail")
	}
}

func TestPositioner_MoveOnLine(t *testing.T) {
	p, fc, _ := newTestPositioner(t, 4, testOptions())
	pos := geometry.Point3{X: 1, Y: 1, Z: 0.5}

	if err := p.MoveOnLine(context.Background(), pos, LineParams{Velocity: 0.05, Resolution: 0.25, Tolerance: 0.001}); err != nil {
		t.Fatalf("MoveOnLine: %v", err)
	}
	if n := fc.count("AX1:RATE"); n != 2 {
		t.Errorf("AX1:RATE sent %d times, want 2", n)
	}
	if p.Target() != pos {
		t.Errorf("target = %v, want %v", p.Target(), pos)
	}
}
