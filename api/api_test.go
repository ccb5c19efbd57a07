package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/xraph/burst"
	"github.com/xraph/burst/api"
	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/engine"
	"github.com/xraph/burst/export"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/replay"
	"github.com/xraph/burst/run"
	"github.com/xraph/burst/stream"
	"github.com/xraph/burst/wire"
)

const scenario = `[
  {
    "payload": {"summary": "DB latency on {{ hostname }}", "severity": "critical", "source": "db", "custom_details": {}},
    "event_action": "trigger",
    "timing_metadata": {"schedule_offset": 0},
    "repeat_schedule": [{"repeat_count": 2, "repeat_offset": 20}]
  },
  {
    "payload": {"summary": "cache miss ratio high", "severity": "warning", "source": "redis", "custom_details": {}},
    "event_action": "trigger",
    "timing_metadata": {"schedule_offset": 10}
  }
]`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	eng     *engine.Engine
	rec     *delivery.Recorder
	replays *replay.Scheduler
	srv     *httptest.Server
}

func newFixture(t *testing.T, scale float64) *fixture {
	t.Helper()
	cfg := burst.DefaultConfig()
	cfg.TimeScale = scale
	cfg.ShutdownTimeout = 5 * time.Second

	rec := delivery.NewRecorder()
	eng, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithLogger(testLogger()),
		engine.WithSender(rec),
		engine.WithMeterProvider(sdkmetric.NewMeterProvider()),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	start := func(ctx context.Context, p *plan.Plan) (id.RunID, error) {
		rn, err := eng.Start(ctx, p)
		if err != nil {
			return id.RunID{}, err
		}
		return rn.ID(), nil
	}
	sched := replay.NewScheduler(start, eng.Extensions(), testLogger())

	a := api.New(eng,
		api.WithLogger(testLogger()),
		api.WithReplays(sched),
		api.WithEndpoints(export.Endpoints{Events: "https://events.example.test/v2/enqueue"}),
	)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = eng.Stop(context.Background())
	})
	return &fixture{eng: eng, rec: rec, replays: sched, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) postJSON(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return f.do(t, http.MethodPost, path, "application/json", body)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, want, body)
	}
}

type planJSON struct {
	Plan struct {
		ID      string `json:"id"`
		Entries []struct {
			Offset float64 `json:"offset"`
		} `json:"entries"`
	} `json:"plan"`
	Summary []struct {
		TotalSends int `json:"total_sends"`
	} `json:"summary"`
}

func (f *fixture) compile(t *testing.T) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/v1/plans", "text/plain", []byte(scenario))
	expectStatus(t, resp, http.StatusCreated)
	return decode[planJSON](t, resp).Plan.ID
}

func (f *fixture) waitRun(t *testing.T, runID string) *run.Report {
	t.Helper()
	rn, err := f.eng.Run(runID)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rep, err := rn.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return rep
}

func TestCompilePlan(t *testing.T) {
	f := newFixture(t, 1000)

	resp := f.do(t, http.MethodPost, "/v1/plans", "text/plain", []byte(scenario))
	expectStatus(t, resp, http.StatusCreated)
	p := decode[planJSON](t, resp)
	if p.Plan.ID == "" || len(p.Plan.Entries) != 4 {
		t.Fatalf("plan = %+v", p.Plan)
	}
	if len(p.Summary) != 2 || p.Summary[0].TotalSends != 3 {
		t.Fatalf("summary = %+v", p.Summary)
	}

	resp = f.postJSON(t, "/v1/plans", api.CompileRequest{Raw: scenario})
	expectStatus(t, resp, http.StatusCreated)

	resp = f.do(t, http.MethodGet, "/v1/plans/"+p.Plan.ID, "", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[planJSON](t, resp); got.Plan.ID != p.Plan.ID || len(got.Summary) != 2 {
		t.Fatalf("get plan = %+v", got)
	}
}

func TestCompilePlanErrors(t *testing.T) {
	f := newFixture(t, 1000)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", "no json here", http.StatusBadRequest},
		{"empty array", "[]", http.StatusUnprocessableEntity},
		{"offset out of range", `[{"payload": {"summary": "x", "severity": "info", "source": "x"}, "event_action": "trigger", "timing_metadata": {"schedule_offset": 1e12}}]`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/v1/plans", "text/plain", []byte(tt.body))
			expectStatus(t, resp, tt.want)
			if e := decode[api.ErrorResponse](t, resp); e.Error == "" {
				t.Error("empty error message")
			}
		})
	}

	resp := f.do(t, http.MethodGet, "/v1/plans/plan_missing", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(t, 1000)
	planID := f.compile(t)

	resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{PlanID: planID})
	expectStatus(t, resp, http.StatusAccepted)
	started := decode[run.Report](t, resp)
	if started.Totals.Scheduled != 4 {
		t.Fatalf("scheduled = %d, want 4", started.Totals.Scheduled)
	}

	rep := f.waitRun(t, started.RunID.String())
	if rep.State != run.StateCompleted || rep.Totals.Delivered != 4 {
		t.Fatalf("report = %+v", rep.Totals)
	}

	resp = f.do(t, http.MethodGet, "/v1/runs/"+started.RunID.String(), "", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[run.Report](t, resp); got.State != run.StateCompleted || len(got.Outcomes) != 4 {
		t.Fatalf("get run = %+v", got)
	}

	resp = f.do(t, http.MethodGet, "/v1/runs?state=completed", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[api.ListRunsResponse](t, resp); len(list.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(list.Runs))
	}
	resp = f.do(t, http.MethodGet, "/v1/runs?state=running", "", nil)
	if list := decode[api.ListRunsResponse](t, resp); len(list.Runs) != 0 {
		t.Fatalf("running = %d, want 0", len(list.Runs))
	}
}

func TestStartRunFromRaw(t *testing.T) {
	f := newFixture(t, 1000)
	resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{Raw: scenario})
	expectStatus(t, resp, http.StatusAccepted)
	rep := f.waitRun(t, decode[run.Report](t, resp).RunID.String())
	if rep.Totals.Delivered != 4 || f.rec.Len() != 4 {
		t.Fatalf("delivered = %d, recorder = %d", rep.Totals.Delivered, f.rec.Len())
	}
}

func TestStartRunErrors(t *testing.T) {
	f := newFixture(t, 1000)

	expectStatus(t, f.postJSON(t, "/v1/runs", api.StartRunRequest{}), http.StatusBadRequest)
	expectStatus(t, f.postJSON(t, "/v1/runs", api.StartRunRequest{PlanID: "plan_missing"}), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodPost, "/v1/runs", "application/json", []byte("{")), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodGet, "/v1/runs/not-a-run", "", nil), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodPost, "/v1/runs/not-a-run/abort", "", nil), http.StatusNotFound)

	_ = f.eng.Stop(context.Background())
	planResp := f.do(t, http.MethodPost, "/v1/plans", "text/plain", []byte(scenario))
	expectStatus(t, planResp, http.StatusCreated)
	planID := decode[planJSON](t, planResp).Plan.ID
	expectStatus(t, f.postJSON(t, "/v1/runs", api.StartRunRequest{PlanID: planID}), http.StatusServiceUnavailable)
}

func TestAbortRun(t *testing.T) {
	f := newFixture(t, 1)
	planID := f.compile(t)

	resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{PlanID: planID})
	expectStatus(t, resp, http.StatusAccepted)
	runID := decode[run.Report](t, resp).RunID.String()

	expectStatus(t, f.do(t, http.MethodPost, "/v1/runs/"+runID+"/abort", "", nil), http.StatusAccepted)

	rep := f.waitRun(t, runID)
	if rep.State != run.StateAborted {
		t.Fatalf("state = %s, want aborted", rep.State)
	}
	if rep.Totals.Delivered+rep.Totals.Skipped != 4 || rep.Totals.Skipped < 3 {
		t.Fatalf("totals = %+v", rep.Totals)
	}
}

func TestRunEventsSSE(t *testing.T) {
	f := newFixture(t, 100)
	planID := f.compile(t)

	resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{PlanID: planID})
	expectStatus(t, resp, http.StatusAccepted)
	runID := decode[run.Report](t, resp).RunID.String()

	events := f.do(t, http.MethodGet, "/v1/runs/"+runID+"/events", "", nil)
	expectStatus(t, events, http.StatusOK)
	if ct := events.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	var names []string
	sc := bufio.NewScanner(events.Body)
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event:"); ok {
			names = append(names, strings.TrimSpace(name))
		}
	}
	if len(names) == 0 || names[0] != string(stream.EventRunSnapshot) {
		t.Fatalf("events = %v, want run.snapshot first", names)
	}
	last := names[len(names)-1]
	if len(names) > 1 && last != string(stream.EventRunCompleted) {
		t.Fatalf("events = %v, want run.completed last", names)
	}
}

func TestRunEventsSSEFinishedRun(t *testing.T) {
	f := newFixture(t, 1000)
	resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{Raw: scenario})
	runID := decode[run.Report](t, resp).RunID.String()
	f.waitRun(t, runID)

	events := f.do(t, http.MethodGet, "/v1/runs/"+runID+"/events", "", nil)
	body, err := io.ReadAll(events.Body)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(body), "event:"); n != 1 {
		t.Fatalf("got %d events for a finished run, want 1 snapshot:\n%s", n, body)
	}
	if !strings.Contains(string(body), `"state":"completed"`) {
		t.Fatalf("snapshot does not report completion:\n%s", body)
	}
}

func dialRun(t *testing.T, f *fixture, runID, format string) (io.ReadWriter, wire.Codec) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/runs/" + runID + "/ws"
	if format != "" {
		url += "?format=" + format
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, wire.GetCodec(format)
}

func readUntilEnd(t *testing.T, conn io.ReadWriter, codec wire.Codec) []*wire.Frame {
	t.Helper()
	var frames []*wire.Frame
	for {
		data, _, err := wsutil.ReadServerData(conn)
		if err != nil {
			t.Fatalf("read after %d frames: %v", len(frames), err)
		}
		fr, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		frames = append(frames, fr)
		if fr.Type == wire.FrameEnd {
			return frames
		}
	}
}

func TestRunEventsWebSocket(t *testing.T) {
	for _, format := range []string{"", wire.CodecNameMsgpack} {
		t.Run("format="+format, func(t *testing.T) {
			f := newFixture(t, 100)
			planID := f.compile(t)
			resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{PlanID: planID})
			runID := decode[run.Report](t, resp).RunID.String()

			conn, codec := dialRun(t, f, runID, format)
			frames := readUntilEnd(t, conn, codec)

			first := frames[0]
			if first.Type != wire.FrameEvent || first.Event.Type != stream.EventRunSnapshot {
				t.Fatalf("first frame = %+v", first)
			}
			end := frames[len(frames)-1]
			if end.Channel != stream.RunTopic(runID) {
				t.Fatalf("end channel = %q", end.Channel)
			}
			if len(frames) > 2 {
				prev := frames[len(frames)-2]
				if prev.Event == nil || !prev.Event.Final() {
					t.Fatalf("frame before end = %+v", prev)
				}
				var d stream.RunEventData
				if err := prev.Decode(&d); err != nil {
					t.Fatal(err)
				}
				if d.Delivered != 4 {
					t.Fatalf("completed data = %+v", d)
				}
			}
		})
	}
}

func TestRunEventsWebSocketPing(t *testing.T) {
	f := newFixture(t, 1)
	planID := f.compile(t)
	resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{PlanID: planID})
	runID := decode[run.Report](t, resp).RunID.String()

	conn, codec := dialRun(t, f, runID, "")

	// Snapshot first, then the run.started event may or may not be
	// observed depending on timing. Send a ping and look for the pong.
	ping, err := codec.Encode(wire.NewPingFrame())
	if err != nil {
		t.Fatal(err)
	}
	if err := wsutil.WriteClientText(conn, ping); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		fr, err := codec.Decode(data)
		if err != nil {
			t.Fatal(err)
		}
		if fr.Type == wire.FramePong {
			return
		}
	}
	t.Fatal("no pong received")
}

func TestRunEventsUnknownRun(t *testing.T) {
	f := newFixture(t, 1000)
	expectStatus(t, f.do(t, http.MethodGet, "/v1/runs/"+id.NewRunID().String()+"/events", "", nil), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodGet, "/v1/runs/"+id.NewRunID().String()+"/ws", "", nil), http.StatusNotFound)
}

func TestExportPostman(t *testing.T) {
	f := newFixture(t, 1000)

	resp := f.postJSON(t, "/v1/export/postman", api.ExportRequest{Name: "demo", Raw: scenario})
	expectStatus(t, resp, http.StatusOK)
	col := decode[export.Collection](t, resp)
	if col.Info.Name != "demo" || len(col.Item) != 2 {
		t.Fatalf("collection = %+v", col.Info)
	}
	if !strings.Contains(col.Item[0].Request.Body.Raw, "{{ hostname }}") {
		t.Errorf("placeholder not kept verbatim: %s", col.Item[0].Request.Body.Raw)
	}
	if col.Item[0].Request.URL.Raw != "https://events.example.test/v2/enqueue" {
		t.Errorf("url = %q", col.Item[0].Request.URL.Raw)
	}

	planID := f.compile(t)
	resp = f.postJSON(t, "/v1/export/postman", api.ExportRequest{PlanID: planID, Resolve: true})
	expectStatus(t, resp, http.StatusOK)
	col = decode[export.Collection](t, resp)
	if strings.Contains(col.Item[0].Request.Body.Raw, "{{ hostname }}") {
		t.Errorf("placeholder not resolved: %s", col.Item[0].Request.Body.Raw)
	}

	expectStatus(t, f.postJSON(t, "/v1/export/postman", api.ExportRequest{}), http.StatusBadRequest)
}

func TestReplays(t *testing.T) {
	f := newFixture(t, 1000)
	c, err := f.eng.Compile(context.Background(), scenario)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.replays.Add("nightly", "@daily", c.Plan); err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodGet, "/v1/replays", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[[]replay.Entry](t, resp); len(list) != 1 || list[0].Name != "nightly" || !list[0].Enabled {
		t.Fatalf("replays = %+v", list)
	}

	resp = f.do(t, http.MethodPost, "/v1/replays/nightly/disable", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if e := decode[replay.Entry](t, resp); e.Enabled {
		t.Fatal("replay still enabled")
	}
	expectStatus(t, f.do(t, http.MethodPost, "/v1/replays/nightly/enable", "", nil), http.StatusOK)
	expectStatus(t, f.do(t, http.MethodGet, "/v1/replays/missing", "", nil), http.StatusNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t, 1000)
	resp := f.postJSON(t, "/v1/runs", api.StartRunRequest{Raw: scenario})
	f.waitRun(t, decode[run.Report](t, resp).RunID.String())

	resp = f.do(t, http.MethodGet, "/v1/stats", "", nil)
	expectStatus(t, resp, http.StatusOK)
	s := decode[api.StatsResponse](t, resp)
	if s.Runs != 1 || s.ActiveRuns != 0 {
		t.Fatalf("stats = %+v", s)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/healthz", "", nil), http.StatusNoContent)
}

func TestAuth(t *testing.T) {
	eng, err := engine.New(engine.WithLogger(testLogger()), engine.WithSender(delivery.NewRecorder()))
	if err != nil {
		t.Fatal(err)
	}
	auth := api.NewAPIKeyAuthenticator(
		api.APIKeyEntry{Token: "reader", Identity: api.Identity{Subject: "dash", Scopes: []string{api.ScopeRead}}},
		api.APIKeyEntry{Token: "writer", Identity: api.Identity{Subject: "ci", Scopes: []string{api.ScopeWrite}}},
	)
	srv := httptest.NewServer(api.New(eng, api.WithLogger(testLogger()), api.WithAuth(auth)).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = eng.Stop(context.Background())
	})

	call := func(method, path, token string) int {
		req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(scenario))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/v1/runs", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/v1/runs", "nope", http.StatusUnauthorized},
		{"reader reads", http.MethodGet, "/v1/runs", "reader", http.StatusOK},
		{"reader cannot compile", http.MethodPost, "/v1/plans", "reader", http.StatusForbidden},
		{"writer compiles", http.MethodPost, "/v1/plans", "writer", http.StatusCreated},
		{"writer reads", http.MethodGet, "/v1/stats", "writer", http.StatusOK},
		{"health is open", http.MethodGet, "/healthz", "", http.StatusNoContent},
		{"query token", http.MethodGet, "/v1/runs?token=reader", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := call(tt.method, tt.path, tt.token); got != tt.want {
				t.Fatalf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
