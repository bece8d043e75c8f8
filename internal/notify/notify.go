// Package notify is the console's transient notification queue.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/shell"
)

// Kind is the severity of a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case Success, Error, Warning, Info:
		return true
	}
	return false
}

// Action is a button on a notification.
type Action struct {
	Label string
	Run   func()
}

// Notification is one entry in the queue.
type Notification struct {
	ID        string
	Kind      Kind
	Message   string
	Timestamp time.Time
	// Duration is the auto-dismiss delay; zero means pinned.
	Duration time.Duration
	Actions  []Action
	Closable bool
	Loading  bool
}

type showOptions struct {
	duration    time.Duration
	durationSet bool
	actions     []Action
	noClose     bool
	loading     bool
}

// Option customises Show.
type Option func(*showOptions)

// WithDuration overrides the kind's default duration. Zero pins the
// notification until it is closed.
func WithDuration(d time.Duration) Option {
	return func(o *showOptions) {
		o.duration = d
		o.durationSet = true
	}
}

// WithActions attaches action buttons.
func WithActions(actions ...Action) Option {
	return func(o *showOptions) { o.actions = append(o.actions, actions...) }
}

// NoClose hides the close button and ignores Escape.
func NoClose() Option {
	return func(o *showOptions) { o.noClose = true }
}

// WithSpinner marks the notification as an in-progress indicator.
func WithSpinner() Option {
	return func(o *showOptions) { o.loading = true }
}

// Module is the notifications module.
type Module struct {
	logger *zap.Logger

	mu        sync.Mutex
	host      shell.Host
	items     []Notification // oldest first
	timers    map[string]*time.Timer
	max       int
	durations map[Kind]time.Duration
	record    func(Notification)
}

// New creates the notifications module from the notifications config.
func New(cfg *config.Config, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Module{
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
	m.applyConfig(cfg)
	return m
}

func (m *Module) applyConfig(cfg *config.Config) {
	m.max = cfg.Notifications.MaxVisible
	if m.max <= 0 {
		m.max = 5
	}
	m.durations = make(map[Kind]time.Duration, 4)
	for k, d := range cfg.NotificationDurations() {
		m.durations[Kind(k)] = d
	}
}

func (m *Module) Name() string { return shell.ModuleNotifications }

func (m *Module) Init(_ context.Context, host shell.Host) error {
	m.mu.Lock()
	m.host = host
	m.mu.Unlock()
	return nil
}

func (m *Module) HandleEvent(ev shell.Event) {
	switch e := ev.(type) {
	case shell.EscapePressed:
		m.CloseNewest()
	case shell.SettingsChanged:
		m.mu.Lock()
		m.applyConfig(e.Config)
		var evicted []string
		for len(m.items) > m.max {
			evicted = append(evicted, m.removeLocked(0).ID)
		}
		m.mu.Unlock()
		if len(evicted) > 0 {
			m.changed()
		}
	}
}

// DefaultDuration returns the auto-dismiss delay for kind.
func (m *Module) DefaultDuration(kind Kind) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durations[kind]
}

// Record passes every notification shown from now on to fn, regardless of
// eviction or auto-dismiss. A nil fn stops recording.
func (m *Module) Record(fn func(Notification)) {
	m.mu.Lock()
	m.record = fn
	m.mu.Unlock()
}

// Show queues a notification and returns its id. An unknown kind is shown
// as info. When the queue is full the oldest notification is evicted first.
func (m *Module) Show(message string, kind Kind, opts ...Option) string {
	var o showOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !kind.Valid() {
		m.logger.Warn("unknown notification kind, using info", zap.String("kind", string(kind)))
		kind = Info
	}

	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Actions:   o.actions,
		Closable:  !o.noClose,
		Loading:   o.loading,
	}

	m.mu.Lock()
	if o.durationSet {
		n.Duration = o.duration
	} else {
		n.Duration = m.durations[kind]
	}
	for len(m.items) >= m.max {
		m.removeLocked(0)
	}
	m.items = append(m.items, n)
	if n.Duration > 0 {
		id := n.ID
		m.timers[id] = time.AfterFunc(n.Duration, func() { m.Close(id) })
	}
	record := m.record
	m.mu.Unlock()

	if record != nil {
		record(n)
	}

	m.logger.Debug("notification shown", zap.String("kind", string(kind)), zap.String("message", message))
	m.changed()
	return n.ID
}

// Success shows a success notification.
func (m *Module) Success(message string, opts ...Option) string {
	return m.Show(message, Success, opts...)
}

// Error shows an error notification.
func (m *Module) Error(message string, opts ...Option) string {
	return m.Show(message, Error, opts...)
}

// Warning shows a warning notification.
func (m *Module) Warning(message string, opts ...Option) string {
	return m.Show(message, Warning, opts...)
}

// Info shows an info notification.
func (m *Module) Info(message string, opts ...Option) string {
	return m.Show(message, Info, opts...)
}

// ReportError lets Core surface errors here.
func (m *Module) ReportError(message string) {
	m.Show(message, Error)
}

// Loading shows a pinned spinner notification. Close it with the returned id.
func (m *Module) Loading(message string) string {
	return m.Show(message, Info, WithDuration(0), WithSpinner(), NoClose())
}

// Confirm shows a pinned question with Confirm and Cancel actions. Either
// callback may be nil. The notification closes once an action fires.
func (m *Module) Confirm(message string, onConfirm, onCancel func()) string {
	return m.Show(message, Warning,
		WithDuration(0),
		NoClose(),
		WithActions(
			Action{Label: "Confirm", Run: onConfirm},
			Action{Label: "Cancel", Run: onCancel},
		))
}

// Trigger runs action index of notification id and closes it.
func (m *Module) Trigger(id string, index int) bool {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 || index < 0 || index >= len(m.items[i].Actions) {
		m.mu.Unlock()
		return false
	}
	run := m.items[i].Actions[index].Run
	m.removeLocked(i)
	m.mu.Unlock()

	m.changed()
	if run != nil {
		run()
	}
	return true
}

// PendingConfirm returns the newest notification that has actions.
func (m *Module) PendingConfirm() (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.items) - 1; i >= 0; i-- {
		if len(m.items[i].Actions) > 0 {
			return m.items[i], true
		}
	}
	return Notification{}, false
}

// Close removes a notification. It reports whether it was active.
func (m *Module) Close(id string) bool {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.removeLocked(i)
	m.mu.Unlock()

	m.changed()
	return true
}

// CloseNewest closes the most recent closable notification.
func (m *Module) CloseNewest() bool {
	m.mu.Lock()
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].Closable {
			m.removeLocked(i)
			m.mu.Unlock()
			m.changed()
			return true
		}
	}
	m.mu.Unlock()
	return false
}

// Clear removes every notification.
func (m *Module) Clear() {
	m.mu.Lock()
	for len(m.items) > 0 {
		m.removeLocked(0)
	}
	m.mu.Unlock()
	m.changed()
}

// Active returns the queued notifications, oldest first.
func (m *Module) Active() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.items...)
}

// Len returns the number of queued notifications.
func (m *Module) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Module) indexLocked(id string) int {
	for i, n := range m.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (m *Module) removeLocked(i int) Notification {
	n := m.items[i]
	m.items = append(m.items[:i], m.items[i+1:]...)
	if t, ok := m.timers[n.ID]; ok {
		t.Stop()
		delete(m.timers, n.ID)
	}
	return n
}

func (m *Module) changed() {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host != nil {
		host.Changed()
	}
}
