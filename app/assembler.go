package app

import (
	"fmt"
	"sort"

	"github.com/msmafra/sogeBot/domain/command"
)

// Commands assembles the live command list. The list is recomputed on
// every call, never cached: a module that is not effectively enabled
// yields an empty list. Declared per-command dependencies are probed and
// recorded; by default an unhealthy dependency does not exclude the
// command (the historical behavior), unless strict gating is switched on.
func (m *Module) Commands() ([]command.Command, error) {
	if !m.Enabled() {
		return nil, nil
	}

	defaultPerm := m.defaultPermission()
	out := make([]command.Command, 0, len(m.opts.Commands))
	for _, decl := range m.opts.Commands {
		d, err := decl.Normalize(defaultPerm)
		if err != nil {
			return nil, fmt.Errorf("app: %s: %w", m.id, err)
		}

		if !m.commandDependenciesHealthy(d) && m.rt.StrictGating() {
			continue
		}

		text := d.Command
		if renamed, ok := m.commandRename(d.Name); ok {
			text = renamed
		}
		perm := d.Permission
		if ovr, ok := m.permissionOverride(d.Name); ok {
			perm = ovr
		}

		out = append(out, command.Command{
			Module:     m.id,
			ID:         d.Name,
			Command:    text,
			Handler:    d.Handler,
			Permission: perm,
			IsHelper:   d.IsHelper,
		})
	}
	return out, nil
}

// commandDependenciesHealthy probes a declaration's dependencies and
// records misses. The result feeds the strict-gating switch only.
func (m *Module) commandDependenciesHealthy(d command.Decl) bool {
	healthy := true
	m.mu.RLock()
	deps := m.deps
	m.mu.RUnlock()

	for _, depID := range d.DependsOn {
		prober, ok := deps[depID]
		if ok && prober.Enabled() {
			continue
		}
		healthy = false
		m.log.Debug().Str("command", d.Name).Str("dependency", depID).
			Msg("command dependency unhealthy")
		if c := m.rt.Metrics; c != nil {
			c.CommandGateHits.WithLabelValues(m.id, d.Name).Inc()
		}
	}
	return healthy
}

// Parsers assembles the live parser list, ordered by priority, highest
// first. Empty when the module is not effectively enabled.
func (m *Module) Parsers() ([]command.Parser, error) {
	if !m.Enabled() {
		return nil, nil
	}

	defaultPerm := m.defaultPermission()
	out := make([]command.Parser, 0, len(m.opts.Parsers))
	for _, decl := range m.opts.Parsers {
		d, err := decl.Normalize(defaultPerm)
		if err != nil {
			return nil, fmt.Errorf("app: %s: %w", m.id, err)
		}

		if !m.parserDependenciesHealthy(d) && m.rt.StrictGating() {
			continue
		}

		out = append(out, command.Parser{
			Module:        m.id,
			ID:            d.Name,
			Permission:    d.Permission,
			Priority:      d.Priority,
			FireAndForget: d.FireAndForget,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (m *Module) parserDependenciesHealthy(d command.ParserDecl) bool {
	return m.commandDependenciesHealthy(command.Decl{Name: d.Name, DependsOn: d.DependsOn})
}

// Rollbacks assembles the live rollback list. Mirrors Commands minus
// permission and helper fields.
func (m *Module) Rollbacks() ([]command.Rollback, error) {
	if !m.Enabled() {
		return nil, nil
	}

	out := make([]command.Rollback, 0, len(m.opts.Rollbacks))
	for _, decl := range m.opts.Rollbacks {
		if decl.Name == "" {
			return nil, fmt.Errorf("app: %s: rollback %w", m.id, command.ErrEmptyName)
		}
		out = append(out, command.Rollback{
			Module:  m.id,
			ID:      decl.Name,
			Handler: command.DeriveHandler(decl.Name),
		})
	}
	return out, nil
}

func (m *Module) defaultPermission() string {
	if lowest, ok := m.rt.Tiers.Lowest(); ok {
		return lowest.ID
	}
	return ""
}
