// Package axis exposes an HTTP interface to one motor controller axis
package axis

import (
	"net/http"

	"github.com/tankbot/odriveuart/generichttp"
	"github.com/tankbot/odriveuart/odrive"
)

// Controller is the HTTP-exposed surface of an axis
type Controller interface {
	// CurrentState gets the axis state
	CurrentState() (odrive.AxisState, error)

	// RequestState asks the axis to enter a state
	RequestState(odrive.AxisState) error

	// Telemetry reads a snapshot of the axis
	Telemetry() (odrive.Telemetry, error)

	// VbusVoltage reads the controller's DC bus voltage
	VbusVoltage() (float64, error)
}

// GetTelemetry returns an HTTP handler func that replies with a telemetry snapshot
func GetTelemetry(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := c.Telemetry()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		generichttp.RespondJSON(w, t)
	}
}

// StateT is the JSON body of the state routes
type StateT struct {
	Int  int    `json:"int"`
	Name string `json:"name,omitempty"`
}

// GetState returns an HTTP handler func that replies with the axis state
func GetState(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := c.CurrentState()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		generichttp.RespondJSON(w, StateT{Int: int(s), Name: s.String()})
	}
}

// SetState returns an HTTP handler func that requests a state from {"int": n}
func SetState(c Controller) http.HandlerFunc {
	return generichttp.SetInt(func(i int) error {
		return c.RequestState(odrive.AxisState(i))
	})
}

// GetClosedLoop returns an HTTP handler func that replies {"bool": true}
// when the axis is in closed loop control
func GetClosedLoop(c Controller) http.HandlerFunc {
	return generichttp.GetBool(func() (bool, error) {
		s, err := c.CurrentState()
		return s == odrive.AxisStateClosedLoopControl, err
	})
}

// SetClosedLoop returns an HTTP handler func that enters closed loop control
// on {"bool": true} and idles the axis on {"bool": false}
func SetClosedLoop(c Controller) http.HandlerFunc {
	return generichttp.SetBool(func(b bool) error {
		if b {
			return c.RequestState(odrive.AxisStateClosedLoopControl)
		}
		return c.RequestState(odrive.AxisStateIdle)
	})
}

// HTTPAxis wraps a Controller in an HTTP interface
type HTTPAxis struct {
	Ctl Controller

	RouteTable generichttp.RouteTable
}

// NewHTTPAxis returns a new HTTP wrapper with the route table pre-configured
func NewHTTPAxis(c Controller) HTTPAxis {
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/telemetry"}: GetTelemetry(c),
		{Method: http.MethodGet, Path: "/state"}:     GetState(c),
		{Method: http.MethodPost, Path: "/state"}:    SetState(c),

		{Method: http.MethodGet, Path: "/closed-loop"}:  GetClosedLoop(c),
		{Method: http.MethodPost, Path: "/closed-loop"}: SetClosedLoop(c),

		{Method: http.MethodGet, Path: "/vbus"}: generichttp.GetFloat(c.VbusVoltage),
	}
	return HTTPAxis{Ctl: c, RouteTable: rt}
}

// RT satisfies generichttp.HTTPer
func (h HTTPAxis) RT() generichttp.RouteTable {
	return h.RouteTable
}
