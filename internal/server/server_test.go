package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/browser-bridge/internal/config"
	"github.com/morezero/browser-bridge/pkg/commsutil"
	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/engine/enginefake"
)

const serverTestPrefix = "server:server_test"

type envelope struct {
	Error   bool            `json:"error"`
	Message json.RawMessage `json:"message"`
	Kind    string          `json:"kind"`
}

func testConfig() *config.Config {
	return &config.Config{
		COMMSName:       "browser-bridge-test",
		SubjectPrefix:   "bridge",
		HTTPAddr:        "127.0.0.1:0",
		Engine:          "chrome",
		Headless:        true,
		CommandTimeout:  5 * time.Second,
		LaunchTimeout:   5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "error",
	}
}

func testServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(context.Background(), cfg, enginefake.New())
	if err != nil {
		t.Fatalf("%s - New: %v", serverTestPrefix, err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close(context.Background())
	})
	return s, ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) envelope {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("%s - POST %s: %v", serverTestPrefix, path, err)
	}
	return readEnvelope(t, resp)
}

func get(t *testing.T, ts *httptest.Server, path string, query url.Values) envelope {
	t.Helper()
	resp, err := http.Get(ts.URL + path + "?" + query.Encode())
	if err != nil {
		t.Fatalf("%s - GET %s: %v", serverTestPrefix, path, err)
	}
	return readEnvelope(t, resp)
}

func readEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s - decode envelope: %v", serverTestPrefix, err)
	}
	return env
}

func TestHTTP_SessionAndCommands(t *testing.T) {
	_, ts := testServer(t, testConfig())

	env := post(t, ts, "/session", `{"type":"chrome"}`)
	if env.Error || string(env.Message) != `{"id":"Browser@1","type":"Browser"}` {
		t.Fatalf("%s - session = %+v (%s)", serverTestPrefix, env, env.Message)
	}

	env = post(t, ts, "/command", `{"type":"Browser","object":"Browser@1","command":"newPage"}`)
	if env.Error || string(env.Message) != `{"id":"Page@1","type":"Page"}` {
		t.Fatalf("%s - newPage = %+v (%s)", serverTestPrefix, env, env.Message)
	}

	env = get(t, ts, "/command", url.Values{"type": {"Page"}, "object": {"Page@1"}, "command": {"title"}})
	if env.Error || string(env.Message) != `"Example Domain"` {
		t.Errorf("%s - GET title = %+v (%s)", serverTestPrefix, env, env.Message)
	}

	env = post(t, ts, "/command", `{"type":"Page","object":"Page@1","command":"bogus"}`)
	if !env.Error || env.Kind != "capability" {
		t.Errorf("%s - bogus command = %+v, want capability error", serverTestPrefix, env)
	}

	env = post(t, ts, "/command", `{"type":"Page","object":"Page@9","command":"title"}`)
	if !env.Error || env.Kind != "resolution" {
		t.Errorf("%s - unknown object = %+v, want resolution error", serverTestPrefix, env)
	}
}

func TestHTTP_GetSession(t *testing.T) {
	_, ts := testServer(t, testConfig())
	env := get(t, ts, "/session", url.Values{"type": {"firefox"}, "args": {`[{"headless":false}]`}})
	if env.Error {
		t.Fatalf("%s - GET session = %+v (%s)", serverTestPrefix, env, env.Message)
	}
}

func TestHTTP_MalformedBody(t *testing.T) {
	_, ts := testServer(t, testConfig())
	for _, path := range []string{"/session", "/command"} {
		env := post(t, ts, path, `{"type":`)
		if !env.Error || env.Kind != "request" {
			t.Errorf("%s - %s malformed = %+v, want request error", serverTestPrefix, path, env)
		}
		var msg string
		_ = json.Unmarshal(env.Message, &msg)
		if !strings.Contains(msg, "invalid request") {
			t.Errorf("%s - %s message = %q", serverTestPrefix, path, msg)
		}
	}
}

func TestHTTP_UnsupportedEngine(t *testing.T) {
	_, ts := testServer(t, testConfig())
	env := post(t, ts, "/session", `{"type":"netscape"}`)
	if !env.Error || env.Kind != "launch" {
		t.Errorf("%s - unsupported engine = %+v, want launch error", serverTestPrefix, env)
	}
}

func TestHTTP_Shutdown(t *testing.T) {
	s, ts := testServer(t, testConfig())
	post(t, ts, "/session", "")

	env := post(t, ts, "/shutdown", "")
	var msg string
	if err := json.Unmarshal(env.Message, &msg); err != nil || env.Error || msg != "shutdown acknowledged" {
		t.Fatalf("%s - shutdown = %+v", serverTestPrefix, env)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("%s - Done not closed after shutdown request", serverTestPrefix)
	}

	env = post(t, ts, "/command", `{"type":"Browser","object":"Browser@1","command":"version"}`)
	if !env.Error || env.Kind != "resolution" {
		t.Errorf("%s - command after shutdown = %+v, want resolution error", serverTestPrefix, env)
	}
}

func TestHTTP_HealthMetricsHome(t *testing.T) {
	_, ts := testServer(t, testConfig())
	post(t, ts, "/session", "")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("%s - GET /health: %v", serverTestPrefix, err)
	}
	var health struct {
		Status  string         `json:"status"`
		Objects int            `json:"objects"`
		ByType  map[string]int `json:"byType"`
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil || health.Status != "healthy" || health.Objects != 1 {
		t.Errorf("%s - health = %+v, %v", serverTestPrefix, health, err)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("%s - GET /metrics: %v", serverTestPrefix, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "bridge_launches_total") {
		t.Errorf("%s - metrics missing bridge_launches_total", serverTestPrefix)
	}

	resp, err = http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("%s - GET /: %v", serverTestPrefix, err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"Browser Bridge", "Browser@1", "newPage"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("%s - home page should contain %q", serverTestPrefix, want)
		}
	}
}

func startNATS(t *testing.T) *commsserver.Server {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   commsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create NATS server: %v", serverTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - NATS server failed to start", serverTestPrefix)
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func request(t *testing.T, nc *comms.Conn, subject, body string) envelope {
	t.Helper()
	msg, err := nc.Request(subject, []byte(body), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request %s: %v", serverTestPrefix, subject, err)
	}
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("%s - decode reply: %v", serverTestPrefix, err)
	}
	return env
}

func TestComms_RequestReply(t *testing.T) {
	ns := startNATS(t)
	cfg := testConfig()
	cfg.COMMSURL = ns.ClientURL()

	s, err := New(context.Background(), cfg, enginefake.New())
	if err != nil {
		t.Fatalf("%s - New: %v", serverTestPrefix, err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("%s - Start: %v", serverTestPrefix, err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	if s.Addr() == "" {
		t.Errorf("%s - Addr empty after Start", serverTestPrefix)
	}

	client, err := comms.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("%s - client connect: %v", serverTestPrefix, err)
	}
	defer client.Close()
	subjects := commsutil.NewSubjects(cfg.SubjectPrefix)

	env := request(t, client, subjects.Session, `{"type":"chromium"}`)
	if env.Error || string(env.Message) != `{"id":"Browser@1","type":"Browser"}` {
		t.Fatalf("%s - session = %+v (%s)", serverTestPrefix, env, env.Message)
	}
	env = request(t, client, subjects.Command, `{"type":"Browser","object":"Browser@1","command":"newPage"}`)
	if env.Error || string(env.Message) != `{"id":"Page@1","type":"Page"}` {
		t.Fatalf("%s - newPage = %+v (%s)", serverTestPrefix, env, env.Message)
	}
	env = request(t, client, subjects.Command, `not json`)
	if !env.Error || env.Kind != "request" {
		t.Errorf("%s - malformed = %+v, want request error", serverTestPrefix, env)
	}

	env = request(t, client, subjects.Shutdown, "")
	if env.Error {
		t.Errorf("%s - shutdown = %+v", serverTestPrefix, env)
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - Done not closed after shutdown request", serverTestPrefix)
	}
}

func TestComms_CommandOrdering(t *testing.T) {
	ns := startNATS(t)
	cfg := testConfig()
	cfg.COMMSURL = ns.ClientURL()

	s, err := New(context.Background(), cfg, enginefake.New())
	if err != nil {
		t.Fatalf("%s - New: %v", serverTestPrefix, err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("%s - Start: %v", serverTestPrefix, err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })

	client, err := comms.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("%s - client connect: %v", serverTestPrefix, err)
	}
	defer client.Close()
	subjects := commsutil.NewSubjects(cfg.SubjectPrefix)
	request(t, client, subjects.Session, "")
	request(t, client, subjects.Command, `{"type":"Browser","object":"Browser@1","command":"newPage"}`)

	// Fire navigations without waiting; the last one issued must win.
	inbox := comms.NewInbox()
	replies, err := client.SubscribeSync(inbox)
	if err != nil {
		t.Fatalf("%s - subscribe inbox: %v", serverTestPrefix, err)
	}
	const n = 10
	for i := 0; i < n; i++ {
		body := `{"type":"Page","object":"Page@1","command":"goto","args":["https://example.com/` + string(rune('a'+i)) + `"]}`
		if err := client.PublishRequest(subjects.Command, inbox, []byte(body)); err != nil {
			t.Fatalf("%s - publish: %v", serverTestPrefix, err)
		}
	}
	for i := 0; i < n; i++ {
		if _, err := replies.NextMsg(5 * time.Second); err != nil {
			t.Fatalf("%s - reply %d: %v", serverTestPrefix, i, err)
		}
	}

	env := request(t, client, subjects.Command, `{"type":"Page","object":"Page@1","command":"url"}`)
	if string(env.Message) != `"https://example.com/j"` {
		t.Errorf("%s - url = %s, want the last navigation", serverTestPrefix, env.Message)
	}
}

// blockingLauncher counts launches in flight and holds each one until released.
type blockingLauncher struct {
	*enginefake.Engine
	started chan struct{}
	release chan struct{}
}

func (b *blockingLauncher) Launch(ctx context.Context, kind engine.Kind, args engine.Args) (engine.Object, error) {
	b.started <- struct{}{}
	<-b.release
	return b.NewBrowser(), nil
}

func TestComms_SessionLaunchesDoNotBlockEachOther(t *testing.T) {
	ns := startNATS(t)
	cfg := testConfig()
	cfg.COMMSURL = ns.ClientURL()

	bl := &blockingLauncher{Engine: enginefake.New(), started: make(chan struct{}, 2), release: make(chan struct{})}
	s, err := New(context.Background(), cfg, bl)
	if err != nil {
		t.Fatalf("%s - New: %v", serverTestPrefix, err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("%s - Start: %v", serverTestPrefix, err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })

	client, err := comms.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("%s - client connect: %v", serverTestPrefix, err)
	}
	defer client.Close()
	subjects := commsutil.NewSubjects(cfg.SubjectPrefix)

	inbox := comms.NewInbox()
	replies, err := client.SubscribeSync(inbox)
	if err != nil {
		t.Fatalf("%s - subscribe inbox: %v", serverTestPrefix, err)
	}
	for i := 0; i < 2; i++ {
		if err := client.PublishRequest(subjects.Session, inbox, []byte(`{"type":"chrome"}`)); err != nil {
			t.Fatalf("%s - publish: %v", serverTestPrefix, err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-bl.started:
		case <-time.After(5 * time.Second):
			close(bl.release)
			t.Fatalf("%s - only %d of 2 launches started while the first was blocked", serverTestPrefix, i)
		}
	}
	close(bl.release)

	for i := 0; i < 2; i++ {
		msg, err := replies.NextMsg(5 * time.Second)
		if err != nil {
			t.Fatalf("%s - reply %d: %v", serverTestPrefix, i, err)
		}
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil || env.Error {
			t.Errorf("%s - launch reply = %s, %v", serverTestPrefix, msg.Data, err)
		}
	}
}
