package daemon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatewarden/internal/api"
	"gatewarden/internal/gate"
	"gatewarden/internal/logging"
	"gatewarden/internal/testsupport"
)

type apiHarness struct {
	daemon  *Daemon
	clock   *testsupport.FakeClock
	handler http.Handler
}

func newAPIHarness(t *testing.T, token string, opts ...testsupport.ConfigOption) *apiHarness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithThreshold(2), testsupport.WithAPIToken(token)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	j := testsupport.MustOpenJournal(t, cfg)
	clock := testsupport.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	gopts, err := gate.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	gopts.Journal = j
	gopts.Clock = clock
	g, err := gate.New(gopts)
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	t.Cleanup(g.Close)

	d, err := New(cfg, logging.NewNop(), Deps{Gate: g, Journal: j})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.now = clock.Now
	srv := &apiServer{daemon: d}
	return &apiHarness{daemon: d, clock: clock, handler: srv.routes(cfg.Paths.APIToken)}
}

func (h *apiHarness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func (h *apiHarness) detect(t *testing.T, camera, plateText string, times int) api.DetectionResponse {
	t.Helper()
	var resp api.DetectionResponse
	for i := 0; i < times; i++ {
		w := h.do(t, http.MethodPost, "/api/input/detection", api.DetectionRequest{CameraID: camera, Plate: plateText})
		if w.Code != http.StatusOK {
			t.Fatalf("detection returned %d: %s", w.Code, w.Body.String())
		}
		resp = decodeBody[api.DetectionResponse](t, w)
	}
	return resp
}

func TestAPIApproveFlow(t *testing.T) {
	h := newAPIHarness(t, "")

	resp := h.detect(t, "gate-in", "123 tun 45", 2)
	if !resp.Emitted || !resp.Enqueued || resp.Pending == nil || resp.Pending.Plate != "123TUN45" {
		t.Fatalf("expected enqueued detection, got %+v", resp)
	}

	pending := decodeBody[api.PendingListResponse](t, h.do(t, http.MethodGet, "/api/guard/pending", nil))
	if len(pending.Items) != 1 || pending.Items[0].Direction != "ENTER" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	w := h.do(t, http.MethodPost, "/api/guard/open?plate=123TUN45&operator=guard-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve returned %d: %s", w.Code, w.Body.String())
	}
	resolved := decodeBody[api.ResolveResponse](t, w)
	if resolved.Entry.Action != "ENTER" || resolved.Entry.ResolvedBy != "guard-1" {
		t.Fatalf("unexpected entry: %+v", resolved.Entry)
	}
	if resolved.Barrier.State != "OPEN" || resolved.Barrier.OpenedFor != "123TUN45" {
		t.Fatalf("unexpected barrier: %+v", resolved.Barrier)
	}

	occ := decodeBody[api.OccupancyResponse](t, h.do(t, http.MethodGet, "/api/guard/car-status?plate=123TUN45", nil))
	if occ.Plates["123TUN45"] != "INSIDE" {
		t.Fatalf("expected INSIDE, got %+v", occ)
	}
	pending = decodeBody[api.PendingListResponse](t, h.do(t, http.MethodGet, "/api/guard/pending", nil))
	if len(pending.Items) != 0 {
		t.Fatalf("expected empty queue, got %+v", pending)
	}

	logs := decodeBody[api.LogsResponse](t, h.do(t, http.MethodGet, "/api/guard/logs?plate=123tun45", nil))
	if len(logs.Entries) != 1 || logs.Entries[0].Action != "ENTER" {
		t.Fatalf("unexpected journal logs: %+v", logs)
	}

	h.clock.Advance(11 * time.Second)
	barrier := decodeBody[api.BarrierView](t, h.do(t, http.MethodGet, "/api/guard/barrier", nil))
	if barrier.State != "CLOSED" {
		t.Fatalf("expected auto-close, got %+v", barrier)
	}
}

func TestAPIRejectAndErrors(t *testing.T) {
	h := newAPIHarness(t, "")
	h.detect(t, "gate-out", "A1", 2)

	if w := h.do(t, http.MethodPost, "/api/guard/reject", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without plate, got %d", w.Code)
	}
	w := h.do(t, http.MethodPost, "/api/guard/reject?plate=ZZ9", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown plate, got %d", w.Code)
	}
	errResp := decodeBody[api.ErrorResponse](t, w)
	if errResp.Kind != "not_found" || errResp.RequestID == "" {
		t.Fatalf("unexpected error body: %+v", errResp)
	}

	w = h.do(t, http.MethodPost, "/api/guard/resolve", api.ResolveRequest{Plate: "A1", Decision: "maybe"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown decision, got %d", w.Code)
	}

	w = h.do(t, http.MethodPost, "/api/guard/resolve", api.ResolveRequest{Plate: "A1", Decision: "reject", Operator: "guard-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("reject returned %d: %s", w.Code, w.Body.String())
	}
	resolved := decodeBody[api.ResolveResponse](t, w)
	if resolved.Entry.Action != "REJECTED" || resolved.Entry.Direction != "EXIT" || resolved.Barrier.State != "CLOSED" {
		t.Fatalf("unexpected reject outcome: %+v", resolved)
	}

	if w := h.do(t, http.MethodGet, "/api/guard/open", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if w := h.do(t, http.MethodPost, "/api/input/detection", map[string]string{"camera_id": "side"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown camera without direction, got %d", w.Code)
	}
}

func TestAPIForceOpenAndClose(t *testing.T) {
	h := newAPIHarness(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/guard/open", nil)
	req.Header.Set(operatorHeader, "desk")
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("force open returned %d", w.Code)
	}
	if got := decodeBody[api.BarrierActionResponse](t, w); got.Barrier.State != "OPEN" {
		t.Fatalf("expected OPEN, got %+v", got)
	}

	w = h.do(t, http.MethodPost, "/api/guard/close", nil)
	if got := decodeBody[api.BarrierActionResponse](t, w); got.Barrier.State != "CLOSED" {
		t.Fatalf("expected CLOSED, got %+v", got)
	}

	logs := decodeBody[api.LogsResponse](t, h.do(t, http.MethodGet, "/api/guard/logs?limit=5", nil))
	if len(logs.Entries) != 2 || logs.Entries[0].Action != "FORCED_CLOSE" || logs.Entries[1].ResolvedBy != "desk" {
		t.Fatalf("unexpected override logs: %+v", logs.Entries)
	}
	if w := h.do(t, http.MethodGet, "/api/guard/logs?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestAPICredentialApproval(t *testing.T) {
	h := newAPIHarness(t, "", testsupport.WithCredential("badge-7", "B22"))
	h.detect(t, "gate-in", "B22", 2)

	if w := h.do(t, http.MethodPost, "/api/input/credential", api.CredentialRequest{UserID: "nobody"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown credential, got %d", w.Code)
	}
	w := h.do(t, http.MethodPost, "/api/input/credential", api.CredentialRequest{UserID: "badge-7"})
	if w.Code != http.StatusOK {
		t.Fatalf("credential returned %d: %s", w.Code, w.Body.String())
	}
	resolved := decodeBody[api.ResolveResponse](t, w)
	if resolved.Entry.ResolvedBy != gate.CredentialOperatorPrefix+"badge-7" || resolved.Barrier.State != "OPEN" {
		t.Fatalf("unexpected credential outcome: %+v", resolved)
	}
}

func TestAPIAuthAndRequestID(t *testing.T) {
	h := newAPIHarness(t, "s3cret")

	w := h.do(t, http.MethodGet, "/api/guard/pending", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/guard/pending", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	if body := decodeBody[api.PendingListResponse](t, w); body.Items == nil {
		t.Fatal("pending items must encode as an empty array")
	}
}

func TestAPIStatusAndLogStream(t *testing.T) {
	h := newAPIHarness(t, "")
	hub := logging.NewStreamHub(10)
	h.daemon.logHub = hub
	hub.Publish(logging.LogEvent{Message: "lane ready", Component: "gate", CameraID: "gate-in"})
	hub.Publish(logging.LogEvent{Message: "relay offline", Component: "actuator"})

	status := decodeBody[api.DaemonStatus](t, h.do(t, http.MethodGet, "/api/status", nil))
	if status.Barrier.State != "CLOSED" || len(status.Lanes) != 2 || status.JournalPath == "" {
		t.Fatalf("unexpected status: %+v", status)
	}

	stream := decodeBody[api.LogStreamResponse](t, h.do(t, http.MethodGet, "/api/logs?tail=1&component=gate", nil))
	if len(stream.Events) != 1 || stream.Events[0].Message != "lane ready" || stream.Next != 2 {
		t.Fatalf("unexpected log stream: %+v", stream)
	}
}
