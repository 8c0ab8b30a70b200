package observability

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/parkbeam/internal/logging"
	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/danmuck/parkbeam/internal/testutil/testlog"
	"github.com/danmuck/parkbeam/internal/zones"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeBackend struct {
	zones    []protocol.ZoneStatus
	cfg      protocol.Config
	ready    bool
	observed []zones.Detection
	fps      float64
	err      error
}

func (f *fakeBackend) Zones() []protocol.ZoneStatus { return f.zones }
func (f *fakeBackend) Config() protocol.Config      { return f.cfg }
func (f *fakeBackend) Ready() bool                  { return f.ready }

func (f *fakeBackend) ObserveDetections(dets []zones.Detection, fps float64) ([]protocol.ZoneStatus, error) {
	f.observed = dets
	f.fps = fps
	if f.err != nil {
		return nil, f.err
	}
	return f.zones[:1], nil
}

func newBackend() *fakeBackend {
	pts := []protocol.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}
	return &fakeBackend{
		zones: []protocol.ZoneStatus{
			{ZoneConfig: protocol.ZoneConfig{ZoneID: 3, Points: pts}, Status: protocol.ZoneOccupied, Count: 1},
			{ZoneConfig: protocol.ZoneConfig{ZoneID: 8, Points: pts}, Status: protocol.ZoneEmpty},
		},
		cfg:   protocol.DefaultConfig(),
		ready: true,
	}
}

func serve(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAdminHealthAndReady(t *testing.T) {
	testlog.Start(t)
	b := newBackend()
	r := NewAdminRouter(b, logging.Component("admin"), nil)

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/health", "200"))
	if w := serve(t, r, http.MethodGet, "/health", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/health", "200")); got != before+1 {
		t.Fatalf("request metric: got %v want %v", got, before+1)
	}

	if w := serve(t, r, http.MethodGet, "/ready", ""); w.Code != http.StatusOK {
		t.Fatalf("ready: %d", w.Code)
	}
	b.ready = false
	if w := serve(t, r, http.MethodGet, "/ready", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: %d", w.Code)
	}
}

func TestAdminZonesAndConfig(t *testing.T) {
	testlog.Start(t)
	r := NewAdminRouter(newBackend(), logging.Component("admin"), nil)

	w := serve(t, r, http.MethodGet, "/zones", "")
	var list struct {
		Zones []struct {
			ZoneID int    `json:"zone_id"`
			Status string `json:"status"`
			Count  int    `json:"count"`
		} `json:"zones"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode zones: %v (%s)", err, w.Body.String())
	}
	if len(list.Zones) != 2 || list.Zones[0].ZoneID != 3 || list.Zones[0].Status != "Occupied" {
		t.Fatalf("unexpected zones: %+v", list.Zones)
	}

	if w := serve(t, r, http.MethodGet, "/zones/8", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"Empty"`) {
		t.Fatalf("zone 8: %d %s", w.Code, w.Body.String())
	}
	if w := serve(t, r, http.MethodGet, "/zones/9", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing zone: %d", w.Code)
	}
	if w := serve(t, r, http.MethodGet, "/zones/x", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad zone id: %d", w.Code)
	}

	w = serve(t, r, http.MethodGet, "/config", "")
	var cfg protocol.Config
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil || cfg != protocol.DefaultConfig() {
		t.Fatalf("config: %+v err=%v", cfg, err)
	}

	if w := serve(t, r, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "parkbeam_http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestAdminDetections(t *testing.T) {
	testlog.Start(t)
	b := newBackend()
	r := NewAdminRouter(b, logging.Component("admin"), []string{"http://localhost:3000"})

	body := `{"fps": 12.5, "detections": [{"id": 4, "tracked": true, "box": {"x1": 1, "y1": 1, "x2": 9, "y2": 9}}]}`
	w := serve(t, r, http.MethodPost, "/detections", body)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"zone_id":3`) {
		t.Fatalf("detections: %d %s", w.Code, w.Body.String())
	}
	if b.fps != 12.5 || len(b.observed) != 1 || b.observed[0].Box.X2 != 9 || !b.observed[0].Tracked {
		t.Fatalf("backend saw fps=%v dets=%+v", b.fps, b.observed)
	}

	if w := serve(t, r, http.MethodPost, "/detections", `{"fps": -1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("negative fps: %d", w.Code)
	}
	if w := serve(t, r, http.MethodPost, "/detections", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", w.Code)
	}
	b.err = errors.New("store offline")
	if w := serve(t, r, http.MethodPost, "/detections", `{"fps": 1}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("backend error: %d", w.Code)
	}
}

func TestAdminCORS(t *testing.T) {
	testlog.Start(t)
	r := NewAdminRouter(newBackend(), logging.Component("admin"), []string{" http://localhost:3000 ", ""})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin header %q", got)
	}
}
