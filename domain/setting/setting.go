// Package setting provides value types for persisted module settings and
// the pure path algorithms used by the settings-update protocol: lossless
// flattening of nested trees and remapping of partially-qualified update
// paths onto registered setting keys.
package setting

import "strings"

// Record is a single persisted setting. Namespace is the owning module's
// canonical path ("<area>/<name>"), Name the dotted setting key and Value
// the JSON-encoded payload.
type Record struct {
	Namespace string
	Name      string
	Value     string
}

// Key identifies a registered setting on a module. Category is empty for
// top-level fields.
type Key struct {
	Category string
	Name     string
}

// Path returns the dotted form of the key.
func (k Key) Path() string {
	if k.Category == "" {
		return k.Name
	}
	return k.Category + "." + k.Name
}

// Reserved root segments that bypass remapping. Update paths rooted at one
// of these are structurally fixed parts of the protocol.
const (
	RootCommands        = "commands"
	RootEnabled         = "enabled"
	RootPermissions     = "_permissions"
	RootPermissionBased = "__permission_based__"
)

// IsReservedRoot reports whether the first segment of a dotted path is one
// of the structurally fixed protocol roots.
func IsReservedRoot(path string) bool {
	root, _, _ := strings.Cut(path, ".")
	switch root {
	case RootCommands, RootEnabled, RootPermissions, RootPermissionBased:
		return true
	}
	return false
}
