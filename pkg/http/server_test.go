package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := NewServer(routes(func(e *echo.Echo) {
		e.GET("/api/items/:id", func(c echo.Context) error {
			return SuccessResponse(c, map[string]string{"id": c.Param("id")})
		})
		e.GET("/api/boom", func(c echo.Context) error {
			panic("boom")
		})
		e.GET("/api/conflict", func(c echo.Context) error {
			return AppErrorResponse(c, ConflictError("busy"))
		})
	}),
		WithMetrics(reg, reg, "/metrics"),
		WithCORS(true, "http://dash.local"),
	)
	return s, reg
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerAssignsRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/items/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/api/items/1", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec = serve(s, req)
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
}

func TestServerRecoversFromPanic(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/items/2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerWritesAppErrorStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/conflict", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_CONFLICT"`)
}

func TestServerMetricsUseRouteTemplate(t *testing.T) {
	s, reg := newTestServer(t)

	serve(s, httptest.NewRequest(http.MethodGet, "/api/items/1", nil))
	serve(s, httptest.NewRequest(http.MethodGet, "/api/items/2", nil))

	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" {
					assert.Equal(t, "/api/items/:id", l.GetValue())
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, total)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServerCORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/items/1", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := serve(s, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, echo.HeaderOrigin, rec.Header().Get(echo.HeaderVary))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPut)

	req = httptest.NewRequest(http.MethodGet, "/api/items/1", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type layoutRequest struct {
	Width float64 `query:"width" default:"800" validate:"gt=0"`
	Mode  string  `json:"mode" query:"mode" validate:"omitempty,oneof=light dark"`
}

func TestReadAndValidateRequestReportsJSONFieldNames(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?mode=sepia", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	got := &layoutRequest{}
	errs := ReadAndValidateRequest(c, got)
	require.Len(t, errs, 1)
	assert.Equal(t, "mode", errs[0].Field)
	assert.Equal(t, "ERR_ONEOF", errs[0].Code)
	assert.Equal(t, []string{"light", "dark"}, errs[0].Params["options"])

	req = httptest.NewRequest(http.MethodGet, "/?mode=dark", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	got = &layoutRequest{}
	require.Nil(t, ReadAndValidateRequest(c, got))
	assert.Equal(t, 800.0, got.Width)
}
