package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/tankbot/odriveuart/comm"
	"github.com/tankbot/odriveuart/generichttp"
	"github.com/tankbot/odriveuart/generichttp/ascii"
	"github.com/tankbot/odriveuart/generichttp/axis"
	"github.com/tankbot/odriveuart/odrive"
	"github.com/tankbot/odriveuart/server/middleware/locker"
	"github.com/tankbot/odriveuart/session"
)

// node serializes every hardware access of the HTTP interface
type node struct {
	mu   sync.Mutex
	sess *session.Session
	ax   *odrive.Axis
}

func newNode(s *session.Session) *node {
	return &node{sess: s, ax: s.ODrive().Axis0()}
}

func (n *node) CurrentState() (odrive.AxisState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ax.CurrentState()
}

func (n *node) RequestState(s odrive.AxisState) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ax.RequestState(s)
}

func (n *node) Telemetry() (odrive.Telemetry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sess.ReadStatus()
}

func (n *node) VbusVoltage() (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sess.ODrive().VbusVoltage()
}

// Raw sends a line on the command UART
func (n *node) Raw(cmd string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sess.SendCommand(cmd)
}

func (n *node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sess.Close()
}

// mockDeps wires a session to an in-memory controller; the command UART
// and the discovered link both answer from the same property tree
func mockDeps(m *odrive.Mock) session.Deps {
	dial := func(comm.Config) (comm.Communicator, error) {
		return comm.NewChannel(m.Stream()), nil
	}
	return session.Deps{
		Open:   session.OpenFunc(dial),
		Finder: &odrive.Finder{Path: "mock", Dial: dial},
	}
}

func openNode(ctx context.Context, c Config) (*node, error) {
	deps := serialDeps(c, session.OpenSerial)
	if c.Mock {
		deps = mockDeps(odrive.NewMock())
	}
	s, err := session.Init(ctx, c.sessionConfig(), deps)
	if err != nil {
		return nil, err
	}
	return newNode(s), nil
}

// BuildMux mounts the axis, raw and lock routes for n under c.Endpoint.
// The root also serves /endpoints, listing every route as JSON.
func BuildMux(c Config, n *node) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)

	httper := axis.NewHTTPAxis(n)
	ascii.InjectRawComm(httper, n, c.RawRate)
	lock := locker.New()
	locker.Inject(httper, lock)

	stem := generichttp.SubMuxSanitize(c.Endpoint)
	supergraph := map[string][]string{stem: httper.RT().Endpoints()}

	r := chi.NewRouter()
	r.Use(lock.Check)
	httper.RT().Bind(r)
	root.Mount(stem, r)

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}
