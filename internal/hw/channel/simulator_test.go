package channel

import (
	"errors"
	"testing"
	"time"
)

func TestSimulator_Power(t *testing.T) {
	sim := NewSimulator(time.Second, FormatInteger)

	if resp, _ := sim.Send(PowerQuery(1)); resp != "OFF" {
		t.Errorf("before power on: %q, want OFF", resp)
	}
	if resp, _ := sim.Send(PowerOn(1)); resp != "" {
		t.Errorf("POW ON response = %q, want empty", resp)
	}
	if resp, _ := sim.Send(PowerQuery(1)); resp != "ON" {
		t.Errorf("after power on: %q, want ON", resp)
	}
}

func TestSimulator_MovesTowardTarget(t *testing.T) {
	sim := NewSimulator(time.Second, FormatInteger)
	sim.Send(PowerOn(1))
	sim.Send(Rate(1, 40, FormatInteger))
	sim.Send(Pos(1, 100, FormatInteger))

	want := []string{"40", "80", "100", "100"}
	for i, w := range want {
		resp, err := sim.Send(PosQuery(1))
		if err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
		if resp != w {
			t.Errorf("query %d = %q, want %q", i, resp, w)
		}
	}
}

func TestSimulator_NegativeTarget(t *testing.T) {
	sim := NewSimulator(time.Second, FormatInteger)
	sim.Send(PowerOn(2))
	sim.Send(Rate(2, 30, FormatInteger))
	sim.Send(Pos(2, -45, FormatInteger))

	sim.Send(PosQuery(2))
	if got := sim.Position(2); got != -30 {
		t.Errorf("Position = %v, want -30", got)
	}
}

func TestSimulator_UnpoweredAxisDoesNotMove(t *testing.T) {
	sim := NewSimulator(time.Second, FormatInteger)
	sim.Send(Rate(1, 40, FormatInteger))
	sim.Send(Pos(1, 100, FormatInteger))

	if resp, _ := sim.Send(PosQuery(1)); resp != "0" {
		t.Errorf("unpowered axis reported %q, want 0", resp)
	}
}

func TestSimulator_OPCAndInvalid(t *testing.T) {
	sim := NewSimulator(0, FormatInteger)
	if resp, _ := sim.Send(WithOPC(Rate(1, 5, FormatInteger))); resp != "1" {
		t.Errorf("OPC response = %q, want 1", resp)
	}
	if resp, _ := sim.Send("AX1:FLY?"); resp != "ERR" {
		t.Errorf("invalid query response = %q, want ERR", resp)
	}
}

func TestSimulator_Closed(t *testing.T) {
	sim := NewSimulator(0, FormatInteger)
	sim.Close()
	if _, err := sim.Send(PosQuery(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
