// Package metrics provides Prometheus metrics collection for the bot core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the module core.
type Collector struct {
	// Module state
	ModuleEnabled *prometheus.GaugeVec
	HealthChecks  *prometheus.CounterVec

	// Settings protocol
	SettingsUpdates      *prometheus.CounterVec
	SettingsUpdateErrors *prometheus.CounterVec
	SettingsDropped      *prometheus.CounterVec

	// Command assembly
	CommandGateHits *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new metrics collector with all metrics registered on a
// private registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		ModuleEnabled: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sogebot",
				Name:      "module_enabled",
				Help:      "Effective enabled state per module (1 enabled, 0 disabled)",
			},
			[]string{"module"},
		),
		HealthChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sogebot",
				Name:      "module_health_checks_total",
				Help:      "Dependency health recomputations per module and outcome",
			},
			[]string{"module", "healthy"},
		),
		SettingsUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sogebot",
				Name:      "settings_updates_total",
				Help:      "Settings update batches applied per module",
			},
			[]string{"module"},
		),
		SettingsUpdateErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sogebot",
				Name:      "settings_update_errors_total",
				Help:      "Settings update entries that failed to apply",
			},
			[]string{"module"},
		),
		SettingsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sogebot",
				Name:      "settings_dropped_paths_total",
				Help:      "Update paths dropped because they matched no registered key",
			},
			[]string{"module"},
		),
		CommandGateHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sogebot",
				Name:      "command_dependency_gate_total",
				Help:      "Commands whose declared dependency was unhealthy at assembly",
			},
			[]string{"module", "command"},
		),
	}

	reg.MustRegister(
		c.ModuleEnabled,
		c.HealthChecks,
		c.SettingsUpdates,
		c.SettingsUpdateErrors,
		c.SettingsDropped,
		c.CommandGateHits,
	)

	return c
}

// Registry returns the backing registry for HTTP exposition.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
