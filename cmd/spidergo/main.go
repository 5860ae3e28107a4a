package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/cjeanneret/SpiderGo/internal/config"
	"github.com/cjeanneret/SpiderGo/internal/debug"
	"github.com/cjeanneret/SpiderGo/internal/hw/channel"
	"github.com/cjeanneret/SpiderGo/internal/hw/gpio"
	"github.com/cjeanneret/SpiderGo/internal/hw/power"
	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
	"github.com/cjeanneret/SpiderGo/internal/logic/motion"
	"github.com/cjeanneret/SpiderGo/internal/logic/route"
	"github.com/cjeanneret/SpiderGo/internal/web"
)

// relaySettleDelay is the boot time of the controllers after power on.
const relaySettleDelay = 500 * time.Millisecond

type mode int

const (
	modeReport mode = iota
	modeGoto
	modeRoute
	modeWeb
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	gotoFlag := flag.Bool("goto", false, "move on a straight line to -x -y -z and exit")
	x := flag.Float64("x", 0, "target x in meters (with -goto)")
	y := flag.Float64("y", 0, "target y in meters (with -goto)")
	z := flag.Float64("z", 0, "target z in meters (with -goto)")
	velocity := flag.Float64("velocity", 0, "cable speed in m/s (0 = config motion.velocity)")
	routeFlag := flag.Bool("route", false, "run the configured route and exit")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	m, err := selectMode(webPort.port(), *gotoFlag, *routeFlag)
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	var target geometry.Point3
	if m == modeGoto {
		if target, err = gotoTarget(set, *x, *y, *z); err != nil {
			log.Fatalf("invalid flags: %v", err)
		}
	}
	if err := validateVelocity(*velocity); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	var broadcaster *web.StatusBroadcaster
	if m == modeWeb {
		// before the rig so initialization shows up in the status stream
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	r, err := newRig(ctx, cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}

	switch m {
	case modeGoto:
		debug.Section("Move")
		err = r.positioner.MoveOnLine(ctx, target, cfg.LineParams(*velocity))
	case modeRoute:
		debug.Section("Route")
		err = r.runRoute(ctx, cfg, *velocity, nil)
	case modeWeb:
		err = serveWeb(ctx, cfg, r, broadcaster, webPort.port())
	default:
		err = report(ctx, r.positioner)
	}

	err = multierr.Append(err, r.Close())
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// selectMode picks the single operating mode requested on the command line.
func selectMode(webPort int, gotoPos, runRoute bool) (mode, error) {
	m := modeReport
	n := 0
	if webPort > 0 {
		m, n = modeWeb, n+1
	}
	if gotoPos {
		m, n = modeGoto, n+1
	}
	if runRoute {
		m, n = modeRoute, n+1
	}
	if n > 1 {
		return modeReport, errors.New("-web, -goto and -route are mutually exclusive")
	}
	return m, nil
}

// gotoTarget returns the -goto target. All of -x, -y and -z must be given.
func gotoTarget(set map[string]bool, x, y, z float64) (geometry.Point3, error) {
	for _, name := range []string{"x", "y", "z"} {
		if !set[name] {
			return geometry.Point3{}, fmt.Errorf("-goto requires -%s", name)
		}
	}
	p := geometry.Point3{X: x, Y: y, Z: z}
	if !p.IsFinite() {
		return geometry.Point3{}, fmt.Errorf("target %v is not finite", p)
	}
	return p, nil
}

// validateVelocity accepts 0 (use config) or a speed in (0, web.MaxVelocity].
func validateVelocity(v float64) error {
	if v == 0 {
		return nil
	}
	if math.IsNaN(v) || v < 0 || v > web.MaxVelocity {
		return fmt.Errorf("velocity must be between 0 and %g m/s, got %g", web.MaxVelocity, v)
	}
	return nil
}

// rig holds the initialized hardware.
type rig struct {
	driver     gpio.Driver
	relay      *power.Relay
	positioner *motion.Positioner
}

// newRig powers the controllers and registers the configured axes.
// On failure everything opened so far is released.
func newRig(ctx context.Context, cfg *config.Config) (_ *rig, err error) {
	r := &rig{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, r.Close())
		}
	}()

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	if r.driver, err = gpio.NewDriver(cfg.Defaults.MockGPIO); err != nil {
		return nil, fmt.Errorf("init GPIO: %w", err)
	}

	debug.Step(2, "Switching controller power")
	if r.relay, err = power.NewRelay(r.driver, relayConfig(cfg)); err != nil {
		return nil, fmt.Errorf("init relay: %w", err)
	}
	if err = r.relay.On(ctx); err != nil {
		return nil, fmt.Errorf("power on: %w", err)
	}

	debug.Value("Mock serial", cfg.Defaults.MockSerial)
	debug.Step(3, "Opening command channel")
	ch, err := openChannel(cfg)
	if err != nil {
		return nil, err
	}
	r.positioner = motion.NewPositioner(ch, cfg.Platform.Start, cfg.PositionerOptions(), debug.Sink{})
	debug.PrintStruct("Positioner options", r.positioner.Options())

	debug.Step(4, "Adding axes")
	for _, spec := range cfg.AxisSpecs() {
		if err = r.positioner.AddAxis(ctx, spec); err != nil {
			return nil, fmt.Errorf("add axis %d: %w", spec.ID, err)
		}
	}
	return r, nil
}

// Close closes the channel, releases the relay and the GPIO driver.
func (r *rig) Close() error {
	var err error
	if r.positioner != nil {
		err = multierr.Append(err, r.positioner.Close())
	}
	if r.relay != nil {
		err = multierr.Append(err, r.relay.Off())
	}
	if r.driver != nil {
		err = multierr.Append(err, r.driver.Close())
	}
	return err
}

// runRoute runs the configured route. A non zero vel overrides the route velocity.
// onWaypoint, when not nil, is called after each reached waypoint.
func (r *rig) runRoute(ctx context.Context, cfg *config.Config, vel float64, onWaypoint func(route.Progress)) error {
	rt := route.FromConfig(cfg.Route)
	if len(rt.Waypoints) == 0 {
		return errors.New("no route configured")
	}
	if vel > 0 {
		rt.Velocity = vel
	}
	runner := route.NewRunner(r.positioner, cfg.LineParams(0))
	runner.OnWaypoint = onWaypoint
	return runner.Run(ctx, rt)
}

func relayConfig(cfg *config.Config) power.Config {
	return power.Config{
		Pin:         cfg.Power.RelayPin,
		ActiveLow:   cfg.Power.ActiveLow,
		SettleDelay: relaySettleDelay,
	}
}

// openChannel opens the serial port, or the simulated controller in mock mode.
func openChannel(cfg *config.Config) (channel.Channel, error) {
	if cfg.Defaults.MockSerial {
		return channel.NewSimulator(cfg.PollInterval(), cfg.NumberFormat()), nil
	}
	return channel.Open(cfg.SerialChannel())
}

// formDefaults returns the values shown by the web form.
func formDefaults(cfg *config.Config) web.FormConfig {
	return web.FormConfig{
		Velocity:    cfg.Motion.Velocity,
		MaxVelocity: web.MaxVelocity,
		Tolerance:   cfg.Motion.Tolerance,
		Resolution:  cfg.Motion.Resolution,
		Profile:     cfg.Motion.Profile,
		Start:       cfg.Platform.Start,
		Waypoints:   len(cfg.Route.Waypoints),
	}
}

// serveWeb runs the web server until ctx is cancelled.
func serveWeb(ctx context.Context, cfg *config.Config, r *rig, b *web.StatusBroadcaster, port int) error {
	deps := web.Deps{
		Broadcaster: b,
		Move: func(ctx context.Context, req web.MoveRequest) error {
			return r.positioner.MoveOnLine(ctx, req.Pos(), cfg.LineParams(req.Velocity))
		},
		State:        r.positioner,
		FormDefaults: formDefaults(cfg),
	}
	if len(cfg.Route.Waypoints) > 0 {
		deps.RunRoute = func(ctx context.Context) error {
			return r.runRoute(ctx, cfg, 0, waypointBroadcaster(b))
		}
	}
	srv, err := web.NewServer(fmt.Sprintf(":%d", port), deps)
	if err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// waypointBroadcaster publishes route progress as position events.
func waypointBroadcaster(b *web.StatusBroadcaster) func(route.Progress) {
	return func(p route.Progress) {
		b.BroadcastPosition(fmt.Sprintf("Waypoint %d/%d reached", p.Index, p.Total), p.Pos)
	}
}

// report prints the platform position measured from the axis angles.
func report(ctx context.Context, p *motion.Positioner) error {
	pos, err := p.MeasuredPosition(ctx)
	if err != nil {
		return fmt.Errorf("measure position: %w", err)
	}
	fmt.Printf("target:   %v\nmeasured: %v\n", p.Target(), pos)
	for _, a := range p.Axes() {
		fmt.Printf("axis %d: angle=%.1f deg length=%.3f m\n", a.ID, a.Angle, a.Length)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
