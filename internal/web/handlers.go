package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/SpiderGo/internal/debug"
	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
	"github.com/cjeanneret/SpiderGo/internal/logic/motion"
)

// MaxBodyBytes limits the size of request bodies.
const MaxBodyBytes = 1 << 20

// MaxVelocity is the fastest cable speed accepted from the web in m/s.
const MaxVelocity = 1.0

// MoveRequest is the body of POST /move.
type MoveRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Velocity float64 `json:"velocity"` // m/s
}

// Pos returns the requested platform position.
func (m MoveRequest) Pos() geometry.Point3 {
	return geometry.Point3{X: m.X, Y: m.Y, Z: m.Z}
}

// ValidateMoveRequest checks that the coordinates are finite and the
// velocity lies in (0, MaxVelocity].
func ValidateMoveRequest(m MoveRequest) error {
	if !m.Pos().IsFinite() {
		return errors.New("x, y and z must be finite numbers")
	}
	if math.IsNaN(m.Velocity) || m.Velocity <= 0 || m.Velocity > MaxVelocity {
		return fmt.Errorf("velocity must be > 0 and <= %g m/s", MaxVelocity)
	}
	return nil
}

// MoveFunc moves the platform. It is called from the POST /move handler in a goroutine.
type MoveFunc func(ctx context.Context, req MoveRequest) error

// RouteFunc runs the configured route. It is called from the POST /route handler in a goroutine.
type RouteFunc func(ctx context.Context) error

// StateReader exposes the platform state. *motion.Positioner satisfies it.
type StateReader interface {
	Target() geometry.Point3
	Axes() []motion.AxisState
}

// PositionStatus is the response of GET /position.
// Axes are omitted while a move runs.
type PositionStatus struct {
	Target geometry.Point3    `json:"target"`
	Moving bool               `json:"moving"`
	Axes   []motion.AxisState `json:"axes,omitempty"`
}

// FormConfig holds default values for the move form (from config).
type FormConfig struct {
	Velocity    float64         `json:"velocity"`
	MaxVelocity float64         `json:"max_velocity"`
	Tolerance   float64         `json:"tolerance"`
	Resolution  float64         `json:"resolution"`
	Profile     string          `json:"profile"`
	Start       geometry.Point3 `json:"start"`
	Waypoints   int             `json:"waypoints"` // number of route waypoints
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	Move         MoveFunc
	RunRoute     RouteFunc
	State        StateReader
	FormDefaults FormConfig
	runningMu    sync.Mutex
	running      bool
	jobs         sync.WaitGroup
	baseCtx      context.Context
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If move is nil, POST /move returns 503 Service Unavailable; the same goes
// for a nil runRoute and POST /route. A nil state makes GET /position 503.
func NewHandlers(broadcaster *StatusBroadcaster, move MoveFunc, runRoute RouteFunc, state StateReader, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		Move:         move,
		RunRoute:     runRoute,
		State:        state,
		FormDefaults: formDefaults,
		baseCtx:      context.Background(),
		staticFS:     staticFS,
	}
}

// SetBaseContext sets the parent context of started moves; cancelling it aborts them.
func (h *Handlers) SetBaseContext(ctx context.Context) {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	h.baseCtx = ctx
}

// Running reports whether a move or route is in progress.
func (h *Handlers) Running() bool {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	return h.running
}

// Wait blocks until the running move or route, if any, returned.
func (h *Handlers) Wait() {
	h.jobs.Wait()
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// HandlePosition returns the platform target and, when idle, the axis states.
func (h *Handlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	if h.State == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}
	st := PositionStatus{Target: h.State.Target(), Moving: h.Running()}
	if !st.Moving {
		st.Axes = h.State.Axes()
	}
	writeJSON(w, http.StatusOK, st)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleMove handles POST /move to start a platform move.
func (h *Handlers) HandleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MoveRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateMoveRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.Move == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}

	name := fmt.Sprintf("Move to x=%.3f y=%.3f z=%.3f", req.X, req.Y, req.Z)
	if !h.start(w, name, func(ctx context.Context) error { return h.Move(ctx, req) }) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleRoute handles POST /route to run the configured route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.RunRoute == nil {
		http.Error(w, "no route configured", http.StatusServiceUnavailable)
		return
	}
	if !h.start(w, "Route", h.RunRoute) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// start runs job in a goroutine unless another one is running, in which
// case it answers 409 Conflict and returns false.
func (h *Handlers) start(w http.ResponseWriter, name string, job func(context.Context) error) bool {
	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "move already in progress", http.StatusConflict)
		return false
	}
	h.running = true
	h.jobs.Add(1)
	ctx := h.baseCtx
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer h.jobs.Done()
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		h.Broadcaster.Broadcast("info", name+" started")
		err := job(ctx)
		if err != nil {
			h.Broadcaster.Broadcast("error", name+" failed: "+err.Error())
			debug.Error(fmt.Errorf("%s: %w", name, err))
		} else {
			h.Broadcaster.Broadcast("info", name+" complete")
		}
		if h.State != nil {
			h.Broadcaster.BroadcastPosition("Platform target", h.State.Target())
		}
	}()
	return true
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
