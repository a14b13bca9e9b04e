// Package app implements the module core: the base unit every bot feature
// extends. A module registers settings, commands, parsers and rollback
// handlers, and its effective enabled state folds the stored flag with
// environment overrides and cached transitive dependency health.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/msmafra/sogeBot/adapters/metrics"
	"github.com/msmafra/sogeBot/domain/command"
	"github.com/msmafra/sogeBot/domain/permission"
	"github.com/msmafra/sogeBot/domain/setting"
	"github.com/msmafra/sogeBot/ports"
)

// ErrAlwaysOn is returned when toggling a module in an always-on area.
var ErrAlwaysOn = errors.New("app: module is always on and cannot be toggled")

// Areas whose modules report enabled unconditionally. Their dependency
// health is never consulted and toggling them is rejected.
var alwaysOnAreas = map[string]bool{
	"core":       true,
	"overlays":   true,
	"widgets":    true,
	"stats":      true,
	"registries": true,
}

// Runtime carries the per-process collaborators shared by every module.
// The closures read live cluster and environment state so that config hot
// reloads take effect without restarting modules.
type Runtime struct {
	Store   ports.SettingsStore
	Tiers   permission.Catalog
	Clock   ports.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Collector

	// Primary reports whether this process is the designated side-effecting
	// node. Secondaries mirror state in memory but never write the store or
	// run on-change hooks.
	Primary func() bool

	// Disabled returns the current process-wide module disable list.
	Disabled func() []string

	// StrictGating reports whether commands with unhealthy declared
	// dependencies are excluded from assembly instead of merely recorded.
	StrictGating func() bool

	// Process-wide lifecycle defaults, applied to modules that do not
	// declare their own. Zero values fall back to the built-in defaults.
	HealthPeriod time.Duration
	StartupGrace time.Duration
	LoadingPoll  time.Duration
}

func (rt Runtime) normalized() Runtime {
	if rt.Primary == nil {
		rt.Primary = func() bool { return true }
	}
	if rt.Disabled == nil {
		rt.Disabled = func() []string { return nil }
	}
	if rt.StrictGating == nil {
		rt.StrictGating = func() bool { return false }
	}
	return rt
}

// Hooks are module lifecycle callbacks.
type Hooks struct {
	// OnEnabledChange runs after a successful SetEnabled on the primary.
	OnEnabledChange func(enabled bool)

	// OnStartup runs once the deferred settings load has applied.
	OnStartup func(ctx context.Context)
}

// Options are the static declarations a feature module supplies.
type Options struct {
	Area      string
	Name      string
	DependsOn []string // canonical ids of required modules

	Commands  []command.Decl
	Parsers   []command.ParserDecl
	Rollbacks []command.RollbackDecl
	Fields    []Field
	UI        map[string]UIElement
	Hooks     Hooks

	// HealthPeriod is the dependency-health recompute interval (default 1s).
	HealthPeriod time.Duration
	// StartupGrace defers the persisted-settings load after construction
	// (default 5s).
	StartupGrace time.Duration
	// LoadingPoll is the interval at which the deferred load waits for the
	// registry loading counter to drain (default 100ms).
	LoadingPoll time.Duration
}

// Module is the live state of one registered feature module. Instances are
// created once at startup and live for the process lifetime; background
// tasks stop when the context passed to Start is cancelled.
type Module struct {
	rt   Runtime
	opts Options
	id   string
	log  zerolog.Logger

	mu         sync.RWMutex
	enabled    bool // stored flag, default true
	healthy    bool // cached dependency health
	deps       map[string]ports.StatusProber
	renames    map[string]string // command id -> invocable override
	permOvr    map[string]string // command id -> permission override
	fields     map[string]*Field // by dotted key path
	lastHealth time.Time
}

// NewModule validates the declarations and builds the module. Duplicate or
// empty command, parser or rollback names are fatal configuration errors.
func NewModule(rt Runtime, opts Options) (*Module, error) {
	if opts.Area == "" || opts.Name == "" {
		return nil, errors.New("app: module area and name are required")
	}
	if opts.HealthPeriod <= 0 {
		opts.HealthPeriod = rt.HealthPeriod
	}
	if opts.HealthPeriod <= 0 {
		opts.HealthPeriod = time.Second
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = rt.StartupGrace
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 5 * time.Second
	}
	if opts.LoadingPoll <= 0 {
		opts.LoadingPoll = rt.LoadingPoll
	}
	if opts.LoadingPoll <= 0 {
		opts.LoadingPoll = 100 * time.Millisecond
	}

	id := opts.Area + "/" + opts.Name
	m := &Module{
		rt:      rt.normalized(),
		opts:    opts,
		id:      id,
		log:     rt.Logger.With().Str("module", id).Logger(),
		enabled: true,
		healthy: len(opts.DependsOn) == 0,
		renames: make(map[string]string),
		permOvr: make(map[string]string),
		fields:  make(map[string]*Field, len(opts.Fields)),
	}

	if err := m.checkDeclarations(); err != nil {
		return nil, err
	}

	for i := range opts.Fields {
		f := &m.opts.Fields[i]
		if f.Get == nil || f.Set == nil {
			return nil, fmt.Errorf("app: field %q of %s has no accessor", f.Key.Path(), id)
		}
		if f.Default == nil {
			f.Default = f.Get()
		}
		path := f.Key.Path()
		if _, dup := m.fields[path]; dup {
			return nil, fmt.Errorf("app: duplicate field %q on %s", path, id)
		}
		m.fields[path] = f
	}

	return m, nil
}

func (m *Module) checkDeclarations() error {
	seen := make(map[string]bool)
	for _, d := range m.opts.Commands {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("app: %s: %w", m.id, command.ErrEmptyName)
		}
		if seen["c:"+d.Name] {
			return fmt.Errorf("app: %s: duplicate command %q", m.id, d.Name)
		}
		seen["c:"+d.Name] = true
	}
	for _, d := range m.opts.Parsers {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("app: %s: parser %w", m.id, command.ErrEmptyName)
		}
		if seen["p:"+d.Name] {
			return fmt.Errorf("app: %s: duplicate parser %q", m.id, d.Name)
		}
		seen["p:"+d.Name] = true
	}
	for _, d := range m.opts.Rollbacks {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("app: %s: rollback %w", m.id, command.ErrEmptyName)
		}
		if seen["r:"+d.Name] {
			return fmt.Errorf("app: %s: duplicate rollback %q", m.id, d.Name)
		}
		seen["r:"+d.Name] = true
	}
	return nil
}

// ID returns the canonical module path "<area>/<name>".
func (m *Module) ID() string { return m.id }

// Area returns the module's area segment.
func (m *Module) Area() string { return m.opts.Area }

// Name returns the module's type name.
func (m *Module) Name() string { return m.opts.Name }

// AlwaysOn reports whether the module belongs to an always-on area.
func (m *Module) AlwaysOn() bool { return alwaysOnAreas[m.opts.Area] }

// RegisteredKeys returns every registered setting key, scoped and plain.
func (m *Module) RegisteredKeys() []setting.Key {
	out := make([]setting.Key, 0, len(m.opts.Fields))
	for _, f := range m.opts.Fields {
		out = append(out, f.Key)
	}
	return out
}

// DisabledByEnv reports whether a process-wide disable directive matches
// this module, by canonical path or bare name, case-insensitively. A "*"
// entry disables every module outside the always-on set.
func (m *Module) DisabledByEnv() bool {
	for _, entry := range m.rt.Disabled() {
		entry = strings.TrimSpace(entry)
		if entry == "*" {
			return true
		}
		if strings.EqualFold(entry, m.id) || strings.EqualFold(entry, m.opts.Name) {
			return true
		}
	}
	return false
}

// DependenciesHealthy returns the cached dependency health. The cache is
// refreshed by the background health task; synchronous readers never block
// on a dependency probe.
func (m *Module) DependenciesHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// RefreshHealth recomputes dependency health now and caches the result.
// Vacuously true without dependencies. A declared dependency that has not
// been resolved yields false: at steady state a missing dependency disables
// the module, it is fatal only during construction-time resolution.
func (m *Module) RefreshHealth() bool {
	healthy := true
	m.mu.RLock()
	deps := m.deps
	m.mu.RUnlock()

	for _, depID := range m.opts.DependsOn {
		prober, ok := deps[depID]
		if !ok || !prober.Enabled() {
			healthy = false
			break
		}
	}

	m.mu.Lock()
	m.healthy = healthy
	if m.rt.Clock != nil {
		m.lastHealth = m.rt.Clock.Now()
	}
	m.mu.Unlock()

	if c := m.rt.Metrics; c != nil {
		c.HealthChecks.WithLabelValues(m.id, fmt.Sprintf("%t", healthy)).Inc()
	}
	m.updateEnabledGauge()
	return healthy
}

// LastHealthCheck returns the time of the last health recomputation.
func (m *Module) LastHealthCheck() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHealth
}

// StoredEnabled returns the raw stored flag, before folding in dependency
// health and environment overrides.
func (m *Module) StoredEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Enabled reports the effective status. Always-on modules report true
// unconditionally; everything else requires the stored flag, cached
// dependency health and no environment disable.
func (m *Module) Enabled() bool {
	if m.AlwaysOn() {
		return true
	}
	return m.StoredEnabled() && m.DependenciesHealthy() && !m.DisabledByEnv()
}

// SetEnabled stores a new enabled flag. Setting the current value is a
// no-op and suppresses the persistence write. Only the primary node
// persists and runs on-change hooks; secondaries reflect state in memory.
func (m *Module) SetEnabled(ctx context.Context, v bool) error {
	if m.AlwaysOn() {
		return ErrAlwaysOn
	}

	m.mu.Lock()
	if m.enabled == v {
		m.mu.Unlock()
		return nil
	}
	m.enabled = v
	m.mu.Unlock()

	m.updateEnabledGauge()

	if !m.rt.Primary() {
		return nil
	}

	// Enabled defaults to true, so the record exists only while disabled.
	var err error
	if v {
		err = m.rt.Store.Delete(ctx, m.id, setting.RootEnabled)
	} else {
		err = m.rt.Store.Put(ctx, setting.Record{
			Namespace: m.id,
			Name:      setting.RootEnabled,
			Value:     "false",
		})
	}
	if err != nil {
		return fmt.Errorf("persist enabled flag of %s: %w", m.id, err)
	}

	m.log.Info().Bool("enabled", v).Msg("module toggled")
	if hook := m.opts.Hooks.OnEnabledChange; hook != nil {
		hook(v)
	}
	return nil
}

func (m *Module) updateEnabledGauge() {
	if c := m.rt.Metrics; c != nil {
		v := 0.0
		if m.Enabled() {
			v = 1
		}
		c.ModuleEnabled.WithLabelValues(m.id).Set(v)
	}
}

// Start launches the module's background tasks: the periodic dependency
// health recompute and the deferred persisted-settings load. Both stop
// when ctx is cancelled.
func (m *Module) Start(ctx context.Context, reg *Registry) {
	go m.healthLoop(ctx)
	go m.deferredLoad(ctx, reg)
}

func (m *Module) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(m.opts.HealthPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshHealth()
		}
	}
}

// deferredLoad waits out the bootstrap grace period, then polls until no
// sibling module is still loading before applying persisted state and
// running the startup hook. The delay avoids loading settings before
// sibling modules registered their on-load handlers.
func (m *Module) deferredLoad(ctx context.Context, reg *Registry) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.opts.StartupGrace):
	}

	for reg != nil && reg.Loading() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.opts.LoadingPoll):
		}
	}

	if err := m.LoadPersisted(ctx); err != nil {
		m.log.Error().Err(err).Msg("persisted settings load failed")
		return
	}
	if hook := m.opts.Hooks.OnStartup; hook != nil {
		hook(ctx)
	}
}

// LoadPersisted reads every record in the module's namespace and applies
// it onto live state: the stored enabled flag, command renames, command
// permission overrides and plain field values. A value that fails to parse
// is logged and treated as absent so the compiled-in default applies.
func (m *Module) LoadPersisted(ctx context.Context) error {
	recs, err := m.rt.Store.FindAll(ctx, m.id)
	if err != nil {
		return fmt.Errorf("load settings of %s: %w", m.id, err)
	}

	for _, rec := range recs {
		switch {
		case rec.Name == setting.RootEnabled:
			var v bool
			if err := json.Unmarshal([]byte(rec.Value), &v); err != nil {
				m.warnCorrupt(rec, err)
				continue
			}
			m.mu.Lock()
			m.enabled = v
			m.mu.Unlock()

		case strings.HasPrefix(rec.Name, setting.RootCommands+"."):
			var text string
			if err := json.Unmarshal([]byte(rec.Value), &text); err != nil {
				m.warnCorrupt(rec, err)
				continue
			}
			id := strings.TrimPrefix(rec.Name, setting.RootCommands+".")
			m.mu.Lock()
			m.renames[id] = text
			m.mu.Unlock()

		case strings.HasPrefix(rec.Name, setting.RootPermissions+"."):
			var ovr struct {
				Name       string `json:"name"`
				Permission string `json:"permission"`
			}
			if err := json.Unmarshal([]byte(rec.Value), &ovr); err != nil {
				m.warnCorrupt(rec, err)
				continue
			}
			m.mu.Lock()
			m.permOvr[ovr.Name] = ovr.Permission
			m.mu.Unlock()

		case strings.HasPrefix(rec.Name, setting.RootPermissionBased+"."):
			// Tier-scoped overrides are resolved on read through the
			// waterfall; nothing to apply here.

		default:
			f, ok := m.fields[rec.Name]
			if !ok {
				continue
			}
			var v any
			if err := json.Unmarshal([]byte(rec.Value), &v); err != nil {
				m.warnCorrupt(rec, err)
				continue
			}
			if err := f.Set(v); err != nil {
				m.log.Warn().Err(err).Str("name", rec.Name).Msg("persisted value rejected by setter, default applies")
			}
		}
	}

	m.log.Debug().Int("records", len(recs)).Msg("persisted settings loaded")
	m.updateEnabledGauge()
	return nil
}

func (m *Module) warnCorrupt(rec setting.Record, err error) {
	m.log.Warn().Err(err).Str("name", rec.Name).Str("value", rec.Value).
		Msg("corrupt persisted value ignored, default applies")
}

// commandRename returns the current invocable text override for a command.
func (m *Module) commandRename(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.renames[id]
	return v, ok
}

// permissionOverride returns the persisted permission override for a
// command.
func (m *Module) permissionOverride(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.permOvr[id]
	return v, ok
}

var _ ports.StatusProber = (*Module)(nil)
