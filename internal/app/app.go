package app

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speech-to-data/internal/config"
	"speech-to-data/internal/observability/logging"
)

// StatusFunc reports the live state of one component.
type StatusFunc func() map[string]any

// Application holds process-wide state for one command.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	// RunID scopes result records and events to one process run.
	RunID string
	Name  string

	mu       sync.RWMutex
	statuses map[string]StatusFunc
	ready    atomic.Bool
}

// New initialises logging from cfg and constructs an Application.
func New(cfg *config.Config, name string) *Application {
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Output: cfg.Observability.LogOutput,
	})

	a := &Application{
		Cfg:      cfg,
		RunID:    uuid.NewString(),
		Name:     name,
		statuses: make(map[string]StatusFunc),
	}
	a.Logger = logging.WithComponent("application").With().
		Str("service", name).
		Str("runId", a.RunID).
		Logger()

	for _, w := range cfg.Warnings() {
		a.Logger.Warn().Msg(w)
	}
	a.Logger.Info().Msg("Application created")
	return a
}

// RegisterStatus adds a component to the status report.
func (a *Application) RegisterStatus(component string, fn StatusFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[component] = fn
}

// Status returns a JSON-friendly snapshot of the application and every
// registered component.
func (a *Application) Status() map[string]any {
	a.mu.RLock()
	names := make([]string, 0, len(a.statuses))
	for name := range a.statuses {
		names = append(names, name)
	}
	fns := make(map[string]StatusFunc, len(a.statuses))
	for k, v := range a.statuses {
		fns[k] = v
	}
	a.mu.RUnlock()
	sort.Strings(names)

	components := make(map[string]any, len(names))
	for _, name := range names {
		components[name] = fns[name]()
	}

	out := map[string]any{
		"service":    a.Name,
		"runId":      a.RunID,
		"ready":      a.Ready(),
		"components": components,
	}
	if !a.StartupTime.IsZero() {
		out["startupTime"] = a.StartupTime.Format(time.RFC3339)
		out["uptimeSeconds"] = time.Since(a.StartupTime).Seconds()
	}
	return out
}

// Ready reports whether Start completed and Shutdown has not begun.
func (a *Application) Ready() bool { return a.ready.Load() }

// Start marks the application as serving.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Application starting")
	return nil
}

// Shutdown marks the application as draining.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().Msg("Application shutting down")
}
