package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/morezero/browser-bridge/pkg/capspec"
	"github.com/morezero/browser-bridge/pkg/db"
	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/engine/enginefake"
	"github.com/morezero/browser-bridge/pkg/events"
	"github.com/morezero/browser-bridge/pkg/queue"
	"github.com/morezero/browser-bridge/pkg/registry"
	"github.com/morezero/browser-bridge/pkg/script"
	"github.com/morezero/browser-bridge/pkg/session"
)

const testPrefix = "dispatcher:dispatcher_test"

type harness struct {
	d         *Dispatcher
	fake      *enginefake.Engine
	reg       *registry.Registry
	published chan *events.CallbackEvent
	journal   *memJournal
}

type memJournal struct {
	mu      sync.Mutex
	entries []db.CommandEntry
}

func (j *memJournal) Record(e db.CommandEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *memJournal) all() []db.CommandEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]db.CommandEntry(nil), j.entries...)
}

func newHarness(t *testing.T, allowScripts bool, timeout time.Duration) *harness {
	t.Helper()
	fake := enginefake.New()
	reg := registry.NewRegistry()
	q := queue.New(timeout)
	runner := script.NewRunner()
	t.Cleanup(runner.Close)

	h := &harness{
		fake:      fake,
		reg:       reg,
		published: make(chan *events.CallbackEvent, 16),
		journal:   &memJournal{},
	}
	h.d = NewDispatcher(Options{
		Spec:     capspec.Default(),
		Registry: reg,
		Session:  session.NewManager(fake, reg, q, session.Options{Headless: true}),
		Queue:    q,
		Runner:   runner,
		Publisher: events.NewCallbackPublisher(func(_ context.Context, e *events.CallbackEvent) error {
			h.published <- e
			return nil
		}),
		Journal:       h.journal,
		AllowScripts:  allowScripts,
		DefaultEngine: "chrome",
	})
	return h
}

func (h *harness) launch(t *testing.T) registry.ObjectRef {
	t.Helper()
	res := h.d.Launch(context.Background(), &SessionRequest{Type: "chrome"})
	if res.Error {
		t.Fatalf("%s - launch failed: %v", testPrefix, res.Message)
	}
	return res.Message.(registry.ObjectRef)
}

func (h *harness) cmd(t *testing.T, typ, object, command, args string) *Result {
	t.Helper()
	req := &CommandRequest{Type: typ, Object: object, Command: command}
	if args != "" {
		req.Args = json.RawMessage(args)
	}
	return h.d.Dispatch(context.Background(), req)
}

func (h *harness) newPage(t *testing.T) registry.ObjectRef {
	t.Helper()
	res := h.cmd(t, "Browser", "Browser@1", "newPage", "")
	if res.Error {
		t.Fatalf("%s - newPage failed: %v", testPrefix, res.Message)
	}
	return res.Message.(registry.ObjectRef)
}

func (h *harness) page(t *testing.T, id string) *enginefake.Object {
	t.Helper()
	hd, err := h.reg.Lookup(id)
	if err != nil {
		t.Fatalf("%s - lookup %s: %v", testPrefix, id, err)
	}
	return hd.Object.(*enginefake.Object)
}

func TestScenario_LaunchNewPageBogus(t *testing.T) {
	h := newHarness(t, false, time.Second)

	root := h.launch(t)
	if root != (registry.ObjectRef{ID: "Browser@1", Type: "Browser"}) {
		t.Fatalf("%s - root = %+v", testPrefix, root)
	}

	page := h.newPage(t)
	if page != (registry.ObjectRef{ID: "Page@1", Type: "Page"}) {
		t.Fatalf("%s - page = %+v", testPrefix, page)
	}

	res := h.cmd(t, "Page", "Page@1", "bogus", "[]")
	if !res.Error || res.Kind != KindCapability {
		t.Fatalf("%s - bogus = %+v, want capability error", testPrefix, res)
	}
	want := "no such object, or bogus is not a recognized command for Page"
	if res.Message != want {
		t.Errorf("%s - message = %q, want %q", testPrefix, res.Message, want)
	}
	if n := h.page(t, "Page@1").CallCount("bogus"); n != 0 {
		t.Errorf("%s - undeclared command reached the engine %d times", testPrefix, n)
	}

	data, err := json.Marshal(h.cmd(t, "Page", "Page@1", "title", ""))
	if err != nil {
		t.Fatalf("%s - marshal: %v", testPrefix, err)
	}
	if string(data) != `{"error":false,"message":"Example Domain"}` {
		t.Errorf("%s - title envelope = %s", testPrefix, data)
	}
}

func TestDispatch_UnknownObject(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	before := h.reg.Len()

	res := h.cmd(t, "Page", "Page@9", "title", "")
	if !res.Error || res.Kind != KindResolution || res.Message != "no such object: Page@9" {
		t.Errorf("%s - result = %+v", testPrefix, res)
	}
	if h.reg.Len() != before {
		t.Errorf("%s - registry changed: %d -> %d", testPrefix, before, h.reg.Len())
	}
}

func TestDispatch_InvalidRequest(t *testing.T) {
	h := newHarness(t, false, time.Second)
	for _, req := range []*CommandRequest{nil, {Type: "Page", Command: "title"}, {Type: "Page", Object: "Page@1"}} {
		res := h.d.Dispatch(context.Background(), req)
		if !res.Error || res.Kind != KindRequest {
			t.Errorf("%s - %+v gave %+v, want request error", testPrefix, req, res)
		}
	}

	h.launch(t)
	h.newPage(t)
	res := h.cmd(t, "Page", "Page@1", "goto", "[1, 2")
	if !res.Error || res.Kind != KindRequest {
		t.Errorf("%s - malformed args = %+v", testPrefix, res)
	}
}

func TestDispatch_UndeclaredTypeOrFacet(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)

	res := h.cmd(t, "Touchscreen", "Page@1", "tap", "[1, 1]")
	want := "no such object, or Touchscreen is not a facet of Page@1"
	if !res.Error || res.Kind != KindResolution || res.Message != want {
		t.Errorf("%s - result = %+v, want %q", testPrefix, res, want)
	}
}

func TestDispatch_FacetResolutionIsIdempotent(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)

	for i := 0; i < 2; i++ {
		res := h.cmd(t, "Mouse", "Page@1", "click", "[10, 20]")
		if res.Error {
			t.Fatalf("%s - mouse click: %+v", testPrefix, res)
		}
	}
	mouse, _ := h.page(t, "Page@1").Facet("Mouse")
	if n := mouse.(*enginefake.Object).CallCount("click"); n != 2 {
		t.Errorf("%s - both clicks must reach the same facet, got %d", testPrefix, n)
	}

	res := h.cmd(t, "Mouse", "Page@1", "goto", `["https://example.com"]`)
	if !res.Error || res.Kind != KindCapability {
		t.Errorf("%s - goto on Mouse = %+v", testPrefix, res)
	}
}

func TestDispatch_ListResultsRegisteredElementWise(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)

	res := h.cmd(t, "Page", "Page@1", "querySelectorAll", `["li"]`)
	if res.Error {
		t.Fatalf("%s - querySelectorAll: %+v", testPrefix, res)
	}
	items, ok := res.Message.([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("%s - message = %#v", testPrefix, res.Message)
	}
	for i, item := range items {
		ref := item.(registry.ObjectRef)
		want := fmt.Sprintf("ElementHandle@%d", i+1)
		if ref.ID != want || ref.Type != "ElementHandle" {
			t.Errorf("%s - item %d = %+v", testPrefix, i, ref)
		}
		text := h.cmd(t, "ElementHandle", ref.ID, "textContent", "")
		if text.Error || text.Message != fmt.Sprintf("item %d", i) {
			t.Errorf("%s - textContent of %s = %+v", testPrefix, ref.ID, text)
		}
	}
}

func TestDispatch_ObjectResultRegistered(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)

	res := h.cmd(t, "Page", "Page@1", "goto", `["https://example.com"]`)
	ref, ok := res.Message.(registry.ObjectRef)
	if res.Error || !ok || ref.ID != "Response@1" {
		t.Fatalf("%s - goto = %+v", testPrefix, res)
	}
	status := h.cmd(t, "Response", "Response@1", "status", "")
	if status.Error || status.Message != 200 {
		t.Errorf("%s - status = %+v", testPrefix, status)
	}
}

func TestDispatch_SyntheticIdentity(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)

	first := h.cmd(t, "Page", "Page@1", "video", "")
	second := h.cmd(t, "Page", "Page@1", "video", "")
	v1, ok1 := first.Message.(registry.ObjectRef)
	v2, ok2 := second.Message.(registry.ObjectRef)
	if first.Error || !ok1 || !ok2 || !strings.HasPrefix(v1.ID, "Video@") || v1.Type != "Video" {
		t.Fatalf("%s - video = %+v / %+v", testPrefix, first, second)
	}
	if v1 != v2 {
		t.Errorf("%s - the same video must keep its id: %s vs %s", testPrefix, v1.ID, v2.ID)
	}
	path := h.cmd(t, "Video", v1.ID, "path", "")
	if path.Error || path.Message != "/tmp/videos/page.webm" {
		t.Errorf("%s - path = %+v", testPrefix, path)
	}

	fc1 := h.cmd(t, "Page", "Page@1", "waitForEvent", `["filechooser"]`).Message.(registry.ObjectRef)
	fc2 := h.cmd(t, "Page", "Page@1", "waitForEvent", `["filechooser"]`).Message.(registry.ObjectRef)
	if !strings.HasPrefix(fc1.ID, "FileChooser@") || fc1.ID == fc2.ID {
		t.Errorf("%s - file choosers = %s, %s; want distinct synthetic ids", testPrefix, fc1.ID, fc2.ID)
	}
	multiple := h.cmd(t, "FileChooser", fc1.ID, "isMultiple", "")
	if multiple.Error || multiple.Message != false {
		t.Errorf("%s - isMultiple = %+v", testPrefix, multiple)
	}

	dl := h.cmd(t, "Page", "Page@1", "waitForEvent", `["download"]`).Message.(registry.ObjectRef)
	if !strings.HasPrefix(dl.ID, "Download@") {
		t.Errorf("%s - download = %+v", testPrefix, dl)
	}

	popup := h.cmd(t, "Page", "Page@1", "waitForEvent", `["popup"]`).Message.(registry.ObjectRef)
	if popup.ID != "Page@2" {
		t.Errorf("%s - popup keeps its natural id, got %s", testPrefix, popup.ID)
	}
}

func TestDispatch_UnidentifiedResultNotRegistered(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.fake.Unidentified = true
	before := h.reg.Len()

	res := h.cmd(t, "Browser", "Browser@1", "newPage", "")
	if res.Error {
		t.Fatalf("%s - newPage = %+v", testPrefix, res)
	}
	data, _ := json.Marshal(res.Message)
	if string(data) != `{"type":"Page"}` || h.reg.Len() != before {
		t.Errorf("%s - message = %s, registry %d -> %d", testPrefix, data, before, h.reg.Len())
	}
}

func TestDispatch_Scripts(t *testing.T) {
	disabled := newHarness(t, false, time.Second)
	disabled.launch(t)
	disabled.newPage(t)
	res := disabled.cmd(t, "Page", "Page@1", "evaluate", `["() => 1 + 1"]`)
	if !res.Error || res.Kind != KindCapability || res.Message != "script evaluation is disabled" {
		t.Errorf("%s - disabled evaluate = %+v", testPrefix, res)
	}
	if n := disabled.page(t, "Page@1").CallCount("evaluate"); n != 0 {
		t.Errorf("%s - disabled evaluate reached the engine", testPrefix)
	}

	h := newHarness(t, true, time.Second)
	h.launch(t)
	h.newPage(t)
	res = h.cmd(t, "Page", "Page@1", "evaluate", `["() => document.title"]`)
	if res.Error {
		t.Fatalf("%s - evaluate = %+v", testPrefix, res)
	}
	if m := res.Message.(map[string]any); m["evaluated"] != "() => document.title" {
		t.Errorf("%s - evaluate message = %v", testPrefix, m)
	}

	res = h.cmd(t, "Page", "Page@1", "evaluate", `["function( {"]`)
	if !res.Error || res.Kind != KindInvocation {
		t.Errorf("%s - syntax error = %+v", testPrefix, res)
	}
	if n := h.page(t, "Page@1").CallCount("evaluate"); n != 1 {
		t.Errorf("%s - evaluate calls = %d, want 1 (syntax errors stop before the engine)", testPrefix, n)
	}

	res = h.cmd(t, "Page", "Page@1", "addInitScript", `["window.__bridge = true; window.__n = 1;"]`)
	if res.Error {
		t.Errorf("%s - addInitScript = %+v", testPrefix, res)
	}
	res = h.cmd(t, "Page", "Page@1", "evaluate", `[42]`)
	if !res.Error || res.Kind != KindRequest {
		t.Errorf("%s - non-string source = %+v", testPrefix, res)
	}
}

func TestDispatch_EventCallbacks(t *testing.T) {
	h := newHarness(t, true, time.Second)
	h.launch(t)
	h.newPage(t)

	res := h.cmd(t, "Page", "Page@1", "on", `["console", "return event.text + '!'"]`)
	if res.Error {
		t.Fatalf("%s - on = %+v", testPrefix, res)
	}
	if res.Message != (Subscription{Object: "Page@1", Event: "console", Subscribed: true}) {
		t.Errorf("%s - on message = %+v", testPrefix, res.Message)
	}

	page := h.page(t, "Page@1")
	page.Emit("console", map[string]any{"text": "hello"})
	got := receive(t, h.published)
	if got.Object != "Page@1" || got.Event != "console" || got.Result != "hello!" || got.Error != "" {
		t.Errorf("%s - callback outcome = %+v", testPrefix, got)
	}

	if res := h.cmd(t, "Page", "Page@1", "on", `["download", "return event.type + ' ' + event.id.split('@')[0]"]`); res.Error {
		t.Fatalf("%s - on download = %+v", testPrefix, res)
	}
	page.Emit("download", enginefake.NewObject("Download", ""))
	got = receive(t, h.published)
	if got.Result != "Download Download" {
		t.Errorf("%s - download payload = %+v", testPrefix, got)
	}

	if res := h.cmd(t, "Page", "Page@1", "on", `["pageerror", "throw new Error('nope')"]`); res.Error {
		t.Fatalf("%s - on pageerror = %+v", testPrefix, res)
	}
	page.Emit("pageerror", "boom")
	got = receive(t, h.published)
	if !got.Failed() || !strings.Contains(got.Error, "nope") {
		t.Errorf("%s - failing callback = %+v", testPrefix, got)
	}

	res = h.cmd(t, "Browser", "Browser@1", "on", `["disconnected", "return 1"]`)
	if !res.Error || res.Kind != KindCapability {
		t.Errorf("%s - on Browser = %+v, want capability error", testPrefix, res)
	}
	res = h.cmd(t, "Page", "Page@1", "on", `["console", "return ("]`)
	if !res.Error || res.Kind != KindInvocation {
		t.Errorf("%s - bad callback body = %+v", testPrefix, res)
	}
}

func TestDispatch_EventsNeedScripts(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)
	res := h.cmd(t, "Page", "Page@1", "on", `["console", "return 1"]`)
	if !res.Error || res.Message != "script evaluation is disabled" {
		t.Errorf("%s - on without scripts = %+v", testPrefix, res)
	}
	if n := h.page(t, "Page@1").Listeners("console"); n != 0 {
		t.Errorf("%s - listener bound while scripts are disabled", testPrefix)
	}
}

func TestDispatch_SameObjectOrdering(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)

	var mu sync.Mutex
	var seen []int
	typist := enginefake.NewObject("Page", "Page@77")
	typist.Handle("type", func(ctx context.Context, o *enginefake.Object, args engine.Args) (any, error) {
		var n int
		if _, err := args.Decode(1, &n); err != nil {
			return nil, err
		}
		time.Sleep(time.Duration(5-n%5) * time.Millisecond)
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		return nil, nil
	})
	if err := h.reg.Insert(registry.Handle{ID: "Page@77", Type: "Page", Object: typist}); err != nil {
		t.Fatalf("%s - insert: %v", testPrefix, err)
	}

	const n = 20
	results := make([]<-chan *Result, n)
	for i := 0; i < n; i++ {
		results[i] = h.d.Submit(context.Background(), &CommandRequest{
			Type: "Page", Object: "Page@77", Command: "type", Args: json.RawMessage(fmt.Sprintf(`["#q", %d]`, i)),
		})
	}
	for i, ch := range results {
		if res := <-ch; res.Error {
			t.Fatalf("%s - command %d: %+v", testPrefix, i, res)
		}
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("%s - execution order = %v", testPrefix, seen)
		}
	}
}

func TestDispatch_WaitReleasedByElementClick(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)

	clicked := make(chan struct{})
	page := enginefake.NewObject("Page", "Page@88")
	page.Handle("waitForEvent", func(ctx context.Context, o *enginefake.Object, args engine.Args) (any, error) {
		select {
		case <-clicked:
			return enginefake.NewObject("FileChooser", ""), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	upload := enginefake.NewObject("ElementHandle", "ElementHandle@88")
	upload.Handle("click", func(context.Context, *enginefake.Object, engine.Args) (any, error) {
		close(clicked)
		return nil, nil
	})
	for _, hd := range []registry.Handle{
		{ID: "Page@88", Type: "Page", Object: page},
		{ID: "ElementHandle@88", Type: "ElementHandle", Object: upload},
	} {
		if err := h.reg.Insert(hd); err != nil {
			t.Fatalf("%s - insert: %v", testPrefix, err)
		}
	}

	wait := h.d.Submit(context.Background(), &CommandRequest{
		Type: "Page", Object: "Page@88", Command: "waitForEvent", Args: json.RawMessage(`["filechooser"]`),
	})
	if res := h.cmd(t, "ElementHandle", "ElementHandle@88", "click", ""); res.Error {
		t.Fatalf("%s - click behind a pending wait = %+v", testPrefix, res)
	}
	res := <-wait
	ref, ok := res.Message.(registry.ObjectRef)
	if res.Error || !ok || !strings.HasPrefix(ref.ID, "FileChooser@") {
		t.Errorf("%s - wait = %+v", testPrefix, res)
	}
}

func TestDispatch_FailuresAreRecovered(t *testing.T) {
	h := newHarness(t, false, 50*time.Millisecond)
	h.launch(t)
	h.newPage(t)
	page := h.page(t, "Page@1")

	page.Handle("reload", func(context.Context, *enginefake.Object, engine.Args) (any, error) {
		panic("driver exploded")
	})
	res := h.cmd(t, "Page", "Page@1", "reload", "")
	if !res.Error || res.Kind != KindInvocation || !strings.Contains(fmt.Sprint(res.Message), "driver exploded") {
		t.Errorf("%s - panic = %+v", testPrefix, res)
	}

	page.Fails("content", errors.New("Target closed"))
	res = h.cmd(t, "Page", "Page@1", "content", "")
	if !res.Error || res.Kind != KindInvocation || res.Message != "Target closed" {
		t.Errorf("%s - engine error = %+v", testPrefix, res)
	}

	page.Handle("waitForSelector", func(ctx context.Context, _ *enginefake.Object, _ engine.Args) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	res = h.cmd(t, "Page", "Page@1", "waitForSelector", `["#never"]`)
	if !res.Error || res.Kind != KindTimeout {
		t.Errorf("%s - slow command = %+v, want timeout", testPrefix, res)
	}

	if res := h.cmd(t, "Page", "Page@1", "title", ""); res.Error {
		t.Errorf("%s - page unusable after failures: %+v", testPrefix, res)
	}
}

func TestLaunch_Failures(t *testing.T) {
	h := newHarness(t, false, time.Second)

	res := h.d.Launch(context.Background(), &SessionRequest{Type: "netscape"})
	if !res.Error || res.Kind != KindLaunch {
		t.Errorf("%s - unsupported engine = %+v", testPrefix, res)
	}

	h.fake.LaunchErr = errors.New("browser executable not found")
	res = h.d.Launch(context.Background(), &SessionRequest{})
	if !res.Error || res.Kind != KindLaunch || !strings.Contains(fmt.Sprint(res.Message), "executable not found") {
		t.Errorf("%s - engine failure = %+v", testPrefix, res)
	}
	if launches := h.fake.Launches(); len(launches) != 1 || launches[0].Kind != engine.KindChromium {
		t.Errorf("%s - default engine not used: %+v", testPrefix, launches)
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)

	res := h.d.Shutdown(context.Background())
	if res.Error || res.Message != ShutdownMessage {
		t.Fatalf("%s - shutdown = %+v", testPrefix, res)
	}
	if h.reg.Len() != 0 || !h.fake.Closed() {
		t.Errorf("%s - registry %d objects, engine closed %v", testPrefix, h.reg.Len(), h.fake.Closed())
	}
	if n := h.fake.Browsers()[0].CallCount("close"); n != 1 {
		t.Errorf("%s - browser closed %d times", testPrefix, n)
	}

	if res := h.cmd(t, "Page", "Page@1", "title", ""); !res.Error || res.Kind != KindClosed {
		t.Errorf("%s - command after shutdown = %+v", testPrefix, res)
	}
	if res := h.d.Launch(context.Background(), &SessionRequest{Type: "chrome"}); !res.Error || res.Kind != KindLaunch {
		t.Errorf("%s - launch after shutdown = %+v", testPrefix, res)
	}
	if res := h.d.Shutdown(context.Background()); res.Error {
		t.Errorf("%s - second shutdown = %+v", testPrefix, res)
	}
}

func TestJournalAndErrorKinds(t *testing.T) {
	h := newHarness(t, false, time.Second)
	h.launch(t)
	h.newPage(t)
	h.cmd(t, "Page", "Page@1", "bogus", "")

	entries := h.journal.all()
	if len(entries) != 2 {
		t.Fatalf("%s - journal entries = %+v", testPrefix, entries)
	}
	if entries[0].ObjectID != "Browser@1" || entries[0].Command != "newPage" || entries[0].IsError {
		t.Errorf("%s - first entry = %+v", testPrefix, entries[0])
	}
	if !entries[1].IsError || entries[1].ErrorKind != string(KindCapability) || entries[1].Command != "unknown" {
		t.Errorf("%s - second entry = %+v", testPrefix, entries[1])
	}
}

func TestAsCommandError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{queue.ErrTimeout, KindTimeout},
		{queue.ErrClosed, KindClosed},
		{&session.LaunchError{Engine: "chrome", Err: errors.New("x")}, KindLaunch},
		{fmt.Errorf("wrapped: %w", notACommand("fly", "Page")), KindCapability},
		{errors.New("anything else"), KindInvocation},
	}
	for _, tt := range tests {
		if got := asCommandError(tt.err).Kind; got != tt.want {
			t.Errorf("%s - asCommandError(%v) = %s, want %s", testPrefix, tt.err, got, tt.want)
		}
	}
}

func receive(t *testing.T, ch <-chan *events.CallbackEvent) *events.CallbackEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - no callback outcome published", testPrefix)
		return nil
	}
}
