package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"

	"github.com/tankbot/odriveuart/generichttp"
)

type table struct{ rt generichttp.RouteTable }

func (t table) RT() generichttp.RouteTable { return t.rt }

func TestLockBlocksProtectedRoutes(t *testing.T) {
	l := New()
	tbl := table{rt: generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/telemetry"}: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}}
	Inject(tbl, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	tbl.RT().Bind(r)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/telemetry", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/lock", `{"bool":true}`).Code)
	assert.True(t, l.Locked())
	assert.Equal(t, http.StatusLocked, do(http.MethodGet, "/telemetry", "").Code)
	assert.JSONEq(t, `{"bool":true}`, do(http.MethodGet, "/lock", "").Body.String())
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/lock", `{"bool":false}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/telemetry", "").Code)
}
