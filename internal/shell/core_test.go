package shell

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher returns canned data. Contracts blocks on gate when set.
type fakeFetcher struct {
	mu        sync.Mutex
	contracts []model.Contract
	failures  map[string]error
	gates     []chan []model.Contract
	calls     atomic.Int32
}

func (f *fakeFetcher) fail(what string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[what]
}

func (f *fakeFetcher) Health(context.Context) (*model.HealthStatus, error) {
	if err := f.fail("health"); err != nil {
		return nil, err
	}
	return &model.HealthStatus{Status: "healthy"}, nil
}

func (f *fakeFetcher) Contracts(ctx context.Context) ([]model.Contract, error) {
	if err := f.fail("contracts"); err != nil {
		f.calls.Add(1)
		return nil, err
	}
	f.mu.Lock()
	var gate chan []model.Contract
	if len(f.gates) > 0 {
		gate, f.gates = f.gates[0], f.gates[1:]
	}
	out := append([]model.Contract(nil), f.contracts...)
	f.mu.Unlock()
	f.calls.Add(1)

	if gate != nil {
		select {
		case v := <-gate:
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeFetcher) Templates(context.Context) ([]model.Template, error) {
	if err := f.fail("templates"); err != nil {
		return nil, err
	}
	return []model.Template{{ID: "t1"}}, nil
}

func (f *fakeFetcher) AnalysisResults(context.Context) ([]model.AnalysisResult, error) {
	if err := f.fail("analysis-results"); err != nil {
		return nil, err
	}
	return []model.AnalysisResult{}, nil
}

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.order = append(r.order, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

type fakeModule struct {
	name       string
	rec        *recorder
	initErr    error
	initPanic  bool
	eventPanic bool
	inits      atomic.Int32

	mu     sync.Mutex
	events []Event
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Init(ctx context.Context, host Host) error {
	m.inits.Add(1)
	if m.rec != nil {
		m.rec.add(m.name)
	}
	if m.initPanic {
		panic("boom")
	}
	return m.initErr
}

func (m *fakeModule) HandleEvent(ev Event) {
	if m.eventPanic {
		panic("handler boom")
	}
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func (m *fakeModule) received() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// fakeNotifier records reported errors.
type fakeNotifier struct {
	fakeModule
	reported []string
}

func (n *fakeNotifier) ReportError(msg string) {
	n.mu.Lock()
	n.reported = append(n.reported, msg)
	n.mu.Unlock()
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.reported...)
}

type fakeNav struct {
	fakeModule
	shown []TabID
}

func (n *fakeNav) ShowTab(tab TabID) bool {
	n.mu.Lock()
	n.shown = append(n.shown, tab)
	n.mu.Unlock()
	return true
}

func newTestCore(t *testing.T, f Fetcher, opts ...CoreOption) *Core {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Shell.PollInterval = "1h"
	c := NewCore(cfg, f, nil, opts...)
	t.Cleanup(c.Stop)
	return c
}

func TestInit_FixedOrderAndSkipsMissing(t *testing.T) {
	rec := &recorder{}
	c := newTestCore(t, &fakeFetcher{})

	// Registered out of order on purpose; utils and settings are absent.
	for _, name := range []string{ModulePrompts, ModuleUpload, ModuleNotifications, ModuleDashboard, ModuleNavigation} {
		require.NoError(t, c.Register(&fakeModule{name: name, rec: rec}))
	}

	require.NoError(t, c.Init(context.Background()))

	want := []string{ModuleNotifications, ModuleNavigation, ModuleDashboard, ModuleUpload, ModulePrompts}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("init order mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, c.State().Initialized)
}

func TestInit_Idempotent(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{})
	m := &fakeModule{name: ModuleDashboard}
	require.NoError(t, c.Register(m))

	require.NoError(t, c.Init(context.Background()))
	require.NoError(t, c.Init(context.Background()))

	if got := m.inits.Load(); got != 1 {
		t.Errorf("Expected module init to run once, got %d", got)
	}
}

func TestInit_FailuresAreNonFatal(t *testing.T) {
	rec := &recorder{}
	c := newTestCore(t, &fakeFetcher{})
	notifier := &fakeNotifier{fakeModule: fakeModule{name: ModuleNotifications, rec: rec}}

	require.NoError(t, c.Register(notifier))
	require.NoError(t, c.Register(&fakeModule{name: ModuleNavigation, rec: rec, initErr: errors.New("no panes")}))
	require.NoError(t, c.Register(&fakeModule{name: ModuleDashboard, rec: rec, initPanic: true}))
	require.NoError(t, c.Register(&fakeModule{name: ModulePrompts, rec: rec}))

	require.NoError(t, c.Init(context.Background()))

	assert.Equal(t, []string{ModuleNotifications, ModuleNavigation, ModuleDashboard, ModulePrompts}, rec.list())
	assert.Equal(t, []string{
		"Failed to initialize navigation module",
		"Failed to initialize dashboard module",
	}, notifier.messages())
}

func TestInit_ShowsDefaultTabAfterLoad(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{contracts: []model.Contract{{ID: "c1"}}})
	nav := &fakeNav{fakeModule: fakeModule{name: ModuleNavigation}}
	require.NoError(t, c.Register(nav))

	require.NoError(t, c.Init(context.Background()))

	assert.Equal(t, []TabID{TabDashboard}, nav.shown)
	events := nav.received()
	require.NotEmpty(t, events)
	du, ok := events[0].(DataUpdated)
	require.True(t, ok, "first event should be DataUpdated, got %T", events[0])
	assert.Len(t, du.Data.Contracts, 1)
}

func TestRegister_DuplicateName(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{})
	require.NoError(t, c.Register(&fakeModule{name: "x"}))
	assert.Error(t, c.Register(&fakeModule{name: "x"}))
}

func TestRefresh_PartialFailureYieldsNil(t *testing.T) {
	f := &fakeFetcher{
		contracts: []model.Contract{{ID: "c1"}},
		failures:  map[string]error{"templates": errors.New("timeout")},
	}
	c := newTestCore(t, f)

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "templates")

	s := c.State()
	assert.Nil(t, s.Data.Templates)
	assert.Len(t, s.Data.Contracts, 1)
	assert.NotNil(t, s.Data.SystemStatus)
	assert.NotNil(t, s.Data.AnalysisResults)
}

func TestRefresh_StaleResponseDiscarded(t *testing.T) {
	first := make(chan []model.Contract)
	second := make(chan []model.Contract)
	f := &fakeFetcher{gates: []chan []model.Contract{first, second}}
	c := newTestCore(t, f)
	m := &fakeModule{name: ModuleDashboard}
	require.NoError(t, c.Register(m))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)

	// The later-initiated refresh completes first.
	second <- []model.Contract{{ID: "new"}}
	require.Eventually(t, func() bool { return c.State().Seq == 2 }, time.Second, time.Millisecond)
	first <- []model.Contract{{ID: "old"}}
	wg.Wait()

	s := c.State()
	assert.Equal(t, uint64(2), s.Seq)
	require.Len(t, s.Data.Contracts, 1)
	assert.Equal(t, "new", s.Data.Contracts[0].ID)

	// Only the applied refresh was fanned out.
	events := m.received()
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].(DataUpdated).Seq)
}

func TestNotifyModules_IsolatesPanics(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{})
	bad := &fakeModule{name: "bad", eventPanic: true}
	good := &fakeModule{name: "good"}
	require.NoError(t, c.Register(bad))
	require.NoError(t, c.Register(good))

	assert.NotPanics(t, func() { c.NotifyModules(TabChanged{Current: TabUpload, Previous: TabDashboard}) })
	assert.Equal(t, []Event{TabChanged{Current: TabUpload, Previous: TabDashboard}}, good.received())
}

func TestReportError_FallsBackToAlert(t *testing.T) {
	var buf bytes.Buffer
	c := newTestCore(t, &fakeFetcher{}, WithAlertWriter(&buf))

	c.ReportError("backend down")
	assert.Equal(t, "alert: backend down\n", buf.String())
}

func TestGo_UnexpectedErrorsReported(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{})
	n := &fakeNotifier{fakeModule: fakeModule{name: ModuleNotifications}}
	require.NoError(t, c.Register(n))

	c.Go("panics", func(context.Context) error { panic("nil map") })
	c.Go("fails", func(context.Context) error { return errors.New("lost connection") })
	c.Go("handled", func(context.Context) error { return Handled(errors.New("already shown")) })
	c.Go("ok", func(context.Context) error { return nil })
	c.Wait()

	assert.Equal(t, []string{UnexpectedErrorMessage, UnexpectedErrorMessage}, n.messages())
}

func TestGo_RacingStop(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{})

	var started sync.WaitGroup
	for i := 0; i < 50; i++ {
		started.Add(1)
		go func() {
			defer started.Done()
			c.Go("racer", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			})
		}()
	}
	c.Stop()
	started.Wait()

	var ran atomic.Bool
	c.Go("late", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	c.Wait()
	assert.False(t, ran.Load())
}

func TestHandled(t *testing.T) {
	base := errors.New("x")
	assert.Nil(t, Handled(nil))
	assert.True(t, IsHandled(Handled(base)))
	assert.ErrorIs(t, Handled(base), base)
	assert.False(t, IsHandled(base))
}

func TestGlobalHandlersFanOut(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{})
	m := &fakeModule{name: "m"}
	require.NoError(t, c.Register(m))

	var changes atomic.Int32
	c.OnChange(func() { changes.Add(1) })

	c.HandleResize(80, 24)
	c.HandleEscape()

	assert.Equal(t, []Event{WindowResized{Width: 80, Height: 24}, EscapePressed{}}, m.received())
	assert.Equal(t, 80, c.State().Width)
	assert.GreaterOrEqual(t, changes.Load(), int32(2))
}

func TestSetVisible_RefreshesOnReturn(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestCore(t, f)
	m := &fakeModule{name: "m"}
	require.NoError(t, c.Register(m))

	c.SetVisible(true) // already visible: no event
	assert.Empty(t, m.received())

	c.SetVisible(false)
	c.SetVisible(true)
	c.Wait()

	events := m.received()
	require.Len(t, events, 3)
	assert.Equal(t, VisibilityChanged{Visible: false}, events[0])
	assert.Equal(t, VisibilityChanged{Visible: true}, events[1])
	assert.IsType(t, DataUpdated{}, events[2])
}

func TestPolling_OnlyWhileVisible(t *testing.T) {
	f := &fakeFetcher{}
	cfg := config.DefaultConfig()
	cfg.Shell.PollInterval = "10ms"
	c := NewCore(cfg, f, nil)

	c.StartPolling(context.Background())
	require.Eventually(t, func() bool { return f.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	c.visible.Store(false)
	time.Sleep(30 * time.Millisecond)
	paused := f.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, f.calls.Load(), paused+1)

	c.Stop()
}

func TestUpdateConfig(t *testing.T) {
	c := newTestCore(t, &fakeFetcher{})
	m := &fakeModule{name: "m"}
	require.NoError(t, c.Register(m))

	cfg := config.DefaultConfig()
	cfg.Notifications.MaxVisible = 2
	c.UpdateConfig(cfg)

	assert.Same(t, cfg, c.Config())
	require.Len(t, m.received(), 1)
	assert.Equal(t, 2, m.received()[0].(SettingsChanged).Config.Notifications.MaxVisible)
}
