// Package ascii contains injectable HTTP interfaces to ASCII hardware
package ascii

import (
	"encoding/json"
	"go/types"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/tankbot/odriveuart/generichttp"
)

// RawCommunicator has a single Raw method
type RawCommunicator interface {
	Raw(string) (string, error)
}

// RawWrapper is a wrapper around a raw communicator.  If Limiter is not nil,
// requests beyond its rate are refused with 429.
type RawWrapper struct {
	Comm    RawCommunicator
	Limiter *rate.Limiter
}

// HTTPRaw provides access to the raw function over http
func (rw *RawWrapper) HTTPRaw(w http.ResponseWriter, r *http.Request) {
	if rw.Limiter != nil && !rw.Limiter.Allow() {
		http.Error(w, "raw command rate exceeded", http.StatusTooManyRequests)
		return
	}
	str := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := rw.Comm.Raw(str.Str)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := generichttp.HumanPayload{T: types.String, String: resp}
	hp.EncodeAndRespond(w, r)
}

// InjectRawComm injects a /raw POST route into the route table of an HTTPer.
// perSecond <= 0 disables throttling.
func InjectRawComm(other generichttp.HTTPer, raw RawCommunicator, perSecond float64) {
	wrap := &RawWrapper{Comm: raw}
	if perSecond > 0 {
		wrap.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	other.RT()[generichttp.MethodPath{Method: http.MethodPost, Path: "/raw"}] = wrap.HTTPRaw
}
