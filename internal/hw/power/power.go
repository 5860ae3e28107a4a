// Package power switches the supply of the winch controllers through a
// GPIO driven relay.
package power

import (
	"context"
	"time"

	"github.com/cjeanneret/SpiderGo/internal/debug"
	"github.com/cjeanneret/SpiderGo/internal/hw/gpio"
)

// Config holds the relay wiring.
type Config struct {
	Pin         int           // BCM pin. 0 = no relay, every call is a no-op.
	ActiveLow   bool          // relay energizes on LOW
	SettleDelay time.Duration // wait after switching on, controllers boot meanwhile
}

// Relay controls the controller supply. The relay is released at creation.
type Relay struct {
	gpio gpio.Driver
	cfg  Config
}

// NewRelay configures the relay pin as output and releases the relay.
func NewRelay(g gpio.Driver, cfg Config) (*Relay, error) {
	r := &Relay{gpio: g, cfg: cfg}
	if !r.Enabled() {
		return r, nil
	}
	if err := g.SetupPin(cfg.Pin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.WritePin(cfg.Pin, r.level(false)); err != nil {
		return nil, err
	}
	return r, nil
}

// Enabled reports whether a relay pin is configured.
func (r *Relay) Enabled() bool {
	return r.cfg.Pin > 0
}

func (r *Relay) level(on bool) gpio.Level {
	return gpio.Level(on != r.cfg.ActiveLow)
}

// On energizes the relay and waits for the controllers to settle.
func (r *Relay) On(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	debug.Info("Controller power ON (pin %d)", r.cfg.Pin)
	if err := r.gpio.WritePin(r.cfg.Pin, r.level(true)); err != nil {
		return err
	}
	if r.cfg.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(r.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Off releases the relay. Motors lose holding torque.
func (r *Relay) Off() error {
	if !r.Enabled() {
		return nil
	}
	debug.Info("Controller power OFF (pin %d)", r.cfg.Pin)
	return r.gpio.WritePin(r.cfg.Pin, r.level(false))
}
