// Package shell is the console's orchestrator. Core owns the application
// state, initialises modules in a fixed order, fans events out to them and
// keeps data fresh.
package shell

import (
	"context"
	"errors"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
)

// Module names, in initialisation order.
const (
	ModuleUtils         = "utils"
	ModuleNotifications = "notifications"
	ModuleNavigation    = "navigation"
	ModuleDashboard     = "dashboard"
	ModuleUpload        = "upload"
	ModuleSettings      = "settings"
	ModulePrompts       = "prompts"
)

// InitOrder is the order Core initialises modules in. Later modules may
// assume earlier ones are registered.
var InitOrder = []string{
	ModuleUtils,
	ModuleNotifications,
	ModuleNavigation,
	ModuleDashboard,
	ModuleUpload,
	ModuleSettings,
	ModulePrompts,
}

// TabID names a top-level view.
type TabID string

const (
	TabDashboard TabID = "dashboard"
	TabUpload    TabID = "upload"
	TabPrompts   TabID = "prompts"
	TabSettings  TabID = "settings"
)

// Tabs lists the known tabs in menu order.
func Tabs() []TabID {
	return []TabID{TabDashboard, TabUpload, TabPrompts, TabSettings}
}

// Module is an independently initialised unit of the console.
type Module interface {
	Name() string
	// Init runs once, in InitOrder. A returned error is logged and
	// reported; the remaining modules still initialise.
	Init(ctx context.Context, host Host) error
	// HandleEvent receives every fanned-out event. It must not block and
	// must not call Host.Refresh synchronously; use Host.Go instead.
	HandleEvent(ev Event)
}

// TabActivator is implemented by modules that own a tab and want to know
// when it is shown.
type TabActivator interface {
	OnTabActivated()
}

// ErrorReporter surfaces an error message to the user.
type ErrorReporter interface {
	ReportError(message string)
}

// TabShower switches the visible tab.
type TabShower interface {
	ShowTab(tab TabID) bool
}

// ConfigUpdater is implemented by hosts that can apply a reloaded
// configuration to every module.
type ConfigUpdater interface {
	UpdateConfig(cfg *config.Config)
}

// Host is the view of Core that modules receive.
type Host interface {
	// State returns a copy of the application state.
	State() Snapshot
	// Module looks up a registered module by name.
	Module(name string) (Module, bool)
	// NotifyModules fans ev out to every module synchronously.
	NotifyModules(ev Event)
	// Refresh refetches all data and fans out DataUpdated.
	Refresh(ctx context.Context) error
	// Go runs fn asynchronously with unexpected-error capture.
	Go(name string, fn func(ctx context.Context) error)
	// ReportError shows message through the notifications module, falling
	// back to the alert writer.
	ReportError(message string)
	// SetCurrentTab records the active tab in the application state.
	SetCurrentTab(tab TabID)
	// Changed asks the front end to redraw.
	Changed()
}

// Snapshot is a read-only copy of the application state.
type Snapshot struct {
	Initialized bool
	CurrentTab  TabID
	Data        model.Data
	Seq         uint64
	Width       int
	Height      int
	Visible     bool
}

// Event is the closed set of fanned-out events.
type Event interface {
	isEvent()
}

// DataUpdated carries a freshly applied data set. Seq is the refresh's
// sequence number. Receivers must treat Data as read-only.
type DataUpdated struct {
	Data model.Data
	Seq  uint64
}

// TabChanged reports a completed tab switch.
type TabChanged struct {
	Current  TabID
	Previous TabID
}

// WindowResized reports a new terminal size in cells.
type WindowResized struct {
	Width  int
	Height int
}

// EscapePressed reports the escape key.
type EscapePressed struct{}

// VisibilityChanged reports the terminal gaining or losing focus.
type VisibilityChanged struct {
	Visible bool
}

// SettingsChanged carries a reloaded configuration.
type SettingsChanged struct {
	Config *config.Config
}

func (DataUpdated) isEvent()       {}
func (TabChanged) isEvent()        {}
func (WindowResized) isEvent()     {}
func (EscapePressed) isEvent()     {}
func (VisibilityChanged) isEvent() {}
func (SettingsChanged) isEvent()   {}

type handledError struct {
	err error
}

func (h *handledError) Error() string { return h.err.Error() }
func (h *handledError) Unwrap() error { return h.err }

// Handled marks err as already shown to the user, so Core.Go does not
// report it again.
func Handled(err error) error {
	if err == nil {
		return nil
	}
	return &handledError{err: err}
}

// IsHandled reports whether err was marked with Handled.
func IsHandled(err error) bool {
	var h *handledError
	return errors.As(err, &h)
}
