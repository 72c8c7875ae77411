package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/source"
)

func scenarioData() graph.GraphData {
	return graph.GraphData{
		Nodes: []graph.GraphNode{
			{ID: "n1", Label: "Vulnerability", Properties: map[string]any{"cveID": "CVE-2021-1"}},
			{ID: "n2", Label: "Exploit", Properties: map[string]any{"eid": "E1"}},
		},
		Links: []graph.GraphLink{{Source: "n1", Target: "n2", Type: "EXPLOITS"}},
	}
}

func singleNode(id string) graph.GraphData {
	return graph.GraphData{Nodes: []graph.GraphNode{
		{ID: id, Label: "Weakness", Properties: map[string]any{"cweID": "CWE-79"}},
	}}
}

type fakeQuerier struct {
	data   graph.GraphData
	err    error
	cypher chan string
}

func (f *fakeQuerier) Query(ctx context.Context, cypher string, params map[string]any) (graph.GraphData, error) {
	if f.cypher != nil {
		f.cypher <- cypher
	}
	return f.data, f.err
}

type fakeSearcher struct {
	data graph.GraphData
}

func (f *fakeSearcher) Similar(ctx context.Context, text string, k int) (graph.GraphData, []source.Match, error) {
	return f.data, nil, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithTickInterval(time.Millisecond), WithFrameRate(0)}, opts...)
	srv, err := NewServer(scenarioData(), opts...)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	return dialPath(t, ts, "/ws")
}

func dialPath(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one matches typ and accept.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, accept func(Outbound) bool) Outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Outbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if msg.Type == typ && (accept == nil || accept(msg)) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg Inbound) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON(%+v) error = %v", msg, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGeneratePage(t *testing.T) {
	html, err := GeneratePage(PageOptions{WebSocketPath: "/ws"})
	if err != nil {
		t.Fatalf("GeneratePage() error = %v", err)
	}
	for _, want := range []string{`<canvas id="graph">`, "/ws", "ResizeObserver", "fillText", "<title>vg console</title>"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}

	if _, err := GeneratePage(PageOptions{}); err == nil {
		t.Error("GeneratePage() with empty websocket path should fail")
	}
}

func TestRoutes_PageAndHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.Contains(body, []byte(`id="graph"`)) {
		t.Error("page has no canvas")
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Sessions != 0 {
		t.Errorf("health = %+v", health)
	}
}

func TestRoutes_Graph(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/graph")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got, err := graph.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding /api/graph: %v", err)
	}
	if len(got.Nodes) != 2 || len(got.Links) != 1 {
		t.Errorf("graph = %d nodes, %d links", len(got.Nodes), len(got.Links))
	}
}

func TestRoutes_Query(t *testing.T) {
	tests := []struct {
		name       string
		querier    Querier
		body       string
		wantStatus int
		wantNodes  int
	}{
		{
			name:       "replaces data",
			querier:    &fakeQuerier{data: singleNode("w1")},
			body:       `{"cypher":"MATCH (w:Weakness) RETURN w"}`,
			wantStatus: http.StatusOK,
			wantNodes:  1,
		},
		{
			name:       "no source",
			body:       `{"cypher":"MATCH (n) RETURN n"}`,
			wantStatus: http.StatusServiceUnavailable,
			wantNodes:  2,
		},
		{
			name:       "empty cypher",
			querier:    &fakeQuerier{},
			body:       `{"cypher":""}`,
			wantStatus: http.StatusBadRequest,
			wantNodes:  2,
		},
		{
			name:       "bad json",
			querier:    &fakeQuerier{},
			body:       `{"cypher":`,
			wantStatus: http.StatusBadRequest,
			wantNodes:  2,
		},
		{
			name:       "query error",
			querier:    &fakeQuerier{err: errors.New("syntax error")},
			body:       `{"cypher":"MATCH"}`,
			wantStatus: http.StatusBadGateway,
			wantNodes:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.querier != nil {
				opts = append(opts, WithQuerier(tt.querier))
			}
			srv, ts := newTestServer(t, opts...)

			resp, err := http.Post(ts.URL+"/api/query", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := len(srv.Data().Nodes); got != tt.wantNodes {
				t.Errorf("nodes after query = %d, want %d", got, tt.wantNodes)
			}
		})
	}
}

func TestRoutes_Metrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("vg_sessions_active")) {
		t.Errorf("metrics output missing vg_sessions_active:\n%s", body)
	}
}

func TestSession_FramesFollowResize(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts)

	loaded := readUntil(t, conn, MsgLoaded, nil)
	if loaded.Report == nil || loaded.Report.Nodes != 2 || loaded.Report.Links != 1 {
		t.Fatalf("loaded report = %+v", loaded.Report)
	}

	frame := readUntil(t, conn, MsgFrame, nil)
	if frame.Frame.Width != 800 || frame.Frame.Height != 600 {
		t.Errorf("first frame size = %vx%v, want 800x600", frame.Frame.Width, frame.Frame.Height)
	}
	if len(frame.Frame.Ops) == 0 {
		t.Error("frame has no ops")
	}
	waitFor(t, "session registration", func() bool { return srv.SessionCount() == 1 })

	send(t, conn, Inbound{Type: MsgResize, Width: 1000, Height: 500})
	readUntil(t, conn, MsgFrame, func(m Outbound) bool {
		return m.Frame.Width == 1000 && m.Frame.Height == 500
	})
}

func TestSession_WindowSizeFallback(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		follow string
		ignore string
	}{
		{name: "element observer", path: "/ws?observer=element", follow: SizeSourceElement, ignore: SizeSourceWindow},
		{name: "no observer reported", path: "/ws", follow: "", ignore: SizeSourceWindow},
		{name: "window fallback", path: "/ws?observer=window", follow: SizeSourceWindow, ignore: SizeSourceElement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t)
			conn := dialPath(t, ts, tt.path)
			readUntil(t, conn, MsgFrame, nil)

			send(t, conn, Inbound{Type: MsgResize, Width: 700, Height: 300, Source: tt.ignore})
			send(t, conn, Inbound{Type: MsgResize, Width: 1200, Height: 640, Source: tt.follow})

			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			for {
				var msg Outbound
				if err := conn.ReadJSON(&msg); err != nil {
					t.Fatalf("waiting for resized frame: %v", err)
				}
				if msg.Type != MsgFrame {
					continue
				}
				if msg.Frame.Width == 700 {
					t.Fatalf("frame followed the %q source", tt.ignore)
				}
				if msg.Frame.Width == 1200 && msg.Frame.Height == 640 {
					return
				}
			}
		})
	}
}

func TestGeneratePage_ReportsObserver(t *testing.T) {
	html, err := GeneratePage(PageOptions{WebSocketPath: "/ws"})
	if err != nil {
		t.Fatalf("GeneratePage() error = %v", err)
	}
	for _, want := range []string{"?observer=", "source: observer"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSession_Selection(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	readUntil(t, conn, MsgLoaded, nil)

	send(t, conn, Inbound{Type: MsgClick, ID: "n1"})
	got := readUntil(t, conn, MsgActivated, nil)
	if got.Node == nil || got.Node.ID != "n1" || got.Node.Properties["cveID"] != "CVE-2021-1" {
		t.Fatalf("activated node = %+v", got.Node)
	}

	// Clicking the same node again closes the detail view.
	send(t, conn, Inbound{Type: MsgClick, ID: "n1"})
	readUntil(t, conn, MsgCleared, nil)

	send(t, conn, Inbound{Type: MsgClick, ID: "n2"})
	got = readUntil(t, conn, MsgActivated, nil)
	if got.Node.ID != "n2" {
		t.Errorf("activated = %q, want n2", got.Node.ID)
	}
	send(t, conn, Inbound{Type: MsgDismiss})
	readUntil(t, conn, MsgCleared, nil)
}

func TestSession_QueryAndSearch(t *testing.T) {
	q := &fakeQuerier{data: singleNode("w1"), cypher: make(chan string, 1)}
	s := &fakeSearcher{data: graph.GraphData{Nodes: []graph.GraphNode{
		{ID: "v1", Label: "Vulnerability"}, {ID: "v2", Label: "Vulnerability"}, {ID: "v3", Label: "Vulnerability"},
	}}}
	srv, ts := newTestServer(t, WithQuerier(q), WithSearcher(s))
	conn := dial(t, ts)
	readUntil(t, conn, MsgLoaded, nil)

	send(t, conn, Inbound{Type: MsgQuery, Cypher: "MATCH (w:Weakness) RETURN w"})
	if got := <-q.cypher; got != "MATCH (w:Weakness) RETURN w" {
		t.Errorf("cypher = %q", got)
	}
	readUntil(t, conn, MsgLoaded, func(m Outbound) bool { return m.Report.Nodes == 1 })

	send(t, conn, Inbound{Type: MsgSearch, Text: "heap overflow in parser"})
	readUntil(t, conn, MsgLoaded, func(m Outbound) bool { return m.Report.Nodes == 3 })

	// Session queries do not touch the shared result set.
	if got := len(srv.Data().Nodes); got != 2 {
		t.Errorf("shared data nodes = %d, want 2", got)
	}
}

func TestSession_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  Inbound
		want string
	}{
		{"unknown type", Inbound{Type: "teleport"}, "unknown message type"},
		{"search unconfigured", Inbound{Type: MsgSearch, Text: "rce"}, ErrNoSearch.Error()},
		{"query unconfigured", Inbound{Type: MsgQuery, Cypher: "MATCH (n) RETURN n"}, ErrNoSource.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t)
			conn := dial(t, ts)
			readUntil(t, conn, MsgLoaded, nil)

			send(t, conn, tt.msg)
			got := readUntil(t, conn, MsgError, nil)
			if !strings.Contains(got.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", got.Error, tt.want)
			}
		})
	}
}

func TestServer_SetDataBroadcasts(t *testing.T) {
	srv, ts := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)
	readUntil(t, a, MsgLoaded, nil)
	readUntil(t, b, MsgLoaded, nil)
	waitFor(t, "two sessions", func() bool { return srv.SessionCount() == 2 })

	// Select on a, then replace the data: the selection must be cleared.
	send(t, a, Inbound{Type: MsgClick, ID: "n1"})
	readUntil(t, a, MsgActivated, nil)

	srv.SetData(context.Background(), singleNode("w1"))

	readUntil(t, a, MsgCleared, nil)
	for _, conn := range []*websocket.Conn{a, b} {
		readUntil(t, conn, MsgLoaded, func(m Outbound) bool { return m.Report.Nodes == 1 })
	}
}

func TestServer_SessionsUnregisterOnClose(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts)
	readUntil(t, conn, MsgLoaded, nil)
	waitFor(t, "registration", func() bool { return srv.SessionCount() == 1 })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitFor(t, "unregistration", func() bool { return srv.SessionCount() == 0 })
}

func TestServer_Watch(t *testing.T) {
	srv, _ := newTestServer(t)

	path := filepath.Join(t.TempDir(), "results.json")
	writeGraph := func(data graph.GraphData) {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, b, 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeGraph(singleNode("w1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Watch(ctx, path, 20*time.Millisecond); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	three := graph.GraphData{Nodes: []graph.GraphNode{
		{ID: "a", Label: "Vendor"}, {ID: "b", Label: "Product"}, {ID: "c", Label: "Vendor"},
	}}
	writeGraph(three)
	waitFor(t, "reload", func() bool { return len(srv.Data().Nodes) == 3 })
}

func TestServer_WatchMissingDirectory(t *testing.T) {
	srv, _ := newTestServer(t)
	err := srv.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "results.json"), 0)
	if err == nil {
		t.Error("Watch() on a missing directory should fail")
	}
}
