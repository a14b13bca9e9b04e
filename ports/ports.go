// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/msmafra/sogeBot/domain/setting"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// SettingsStore persists module settings addressed by (namespace, name).
// Values are JSON-encoded strings. Store calls carry no implicit timeout;
// callers wrap the context when they need cancellation.
type SettingsStore interface {
	// Find retrieves a single record. ok is false when absent.
	Find(ctx context.Context, namespace, name string) (setting.Record, bool, error)

	// FindAll retrieves every record in a namespace.
	FindAll(ctx context.Context, namespace string) ([]setting.Record, error)

	// Put creates or replaces a record.
	Put(ctx context.Context, rec setting.Record) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, namespace, name string) error
}

// StatusProber exposes the effective enabled state of a module. The
// registry hands resolved probers to dependent modules so that dependency
// health never requires an ambient lookup at call time.
type StatusProber interface {
	// ID returns the module's canonical path ("<area>/<name>").
	ID() string

	// Enabled reports the module's effective status: stored flag folded
	// with cached dependency health and environment overrides.
	Enabled() bool
}
