package app

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msmafra/sogeBot/domain/command"
	"github.com/msmafra/sogeBot/domain/permission"
	"github.com/msmafra/sogeBot/domain/setting"
)

// SettingsService computes effective settings snapshots and applies
// partial updates back onto live modules and the store.
type SettingsService struct {
	rt Runtime
}

// NewSettingsService creates a settings service sharing the module
// runtime.
func NewSettingsService(rt Runtime) *SettingsService {
	return &SettingsService{rt: rt.normalized()}
}

// UpdateReport is the outcome of one ApplyUpdate call. Application is
// best-effort and not transactional: entries that failed are listed in
// Errors while entries applied before or after them stay applied.
type UpdateReport struct {
	ID        string        `json:"id"`
	Applied   int           `json:"applied"`
	Dropped   int           `json:"dropped"`
	Errors    []UpdateError `json:"errors,omitempty"`
	AppliedAt time.Time     `json:"applied_at"`
}

// UpdateError describes one failed top-level update entry.
type UpdateError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// OK reports whether every entry applied.
func (r *UpdateReport) OK() bool { return len(r.Errors) == 0 }

// Snapshot computes the module's effective settings tree and its UI
// descriptor tree. With fillDefaults set, permission-scoped keys resolve
// through the waterfall so every tier carries a value; without it the raw
// per-tier overrides surface with explicit nulls for inspection APIs.
func (s *SettingsService) Snapshot(ctx context.Context, m *Module, fillDefaults bool) (map[string]any, map[string]any, error) {
	recs, err := s.rt.Store.FindAll(ctx, m.ID())
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", m.ID(), err)
	}

	out := make(map[string]any)
	for i := range m.opts.Fields {
		f := &m.opts.Fields[i]
		if f.Key.Category == "" {
			out[f.Key.Name] = f.Get()
			continue
		}
		cat, ok := out[f.Key.Category].(map[string]any)
		if !ok {
			cat = make(map[string]any)
			out[f.Key.Category] = cat
		}
		cat[f.Key.Name] = f.Get()
	}

	out[setting.RootEnabled] = m.Enabled()

	if len(m.opts.Commands) > 0 {
		perms := make(map[string]any, len(m.opts.Commands))
		texts := make(map[string]any, len(m.opts.Commands))
		defaultPerm := m.defaultPermission()
		for _, decl := range m.opts.Commands {
			d, err := decl.Normalize(defaultPerm)
			if err != nil {
				return nil, nil, fmt.Errorf("snapshot %s: %w", m.ID(), err)
			}
			perm := d.Permission
			if ovr, ok := m.permissionOverride(d.Name); ok {
				perm = ovr
			}
			perms[d.Name] = perm

			text := d.Command
			if renamed, ok := m.commandRename(d.Name); ok {
				text = renamed
			}
			texts[d.Name] = text
		}
		out[setting.RootPermissions] = perms
		out[setting.RootCommands] = texts
	}

	if permBased := s.permissionBased(m, recs, fillDefaults); len(permBased) > 0 {
		out[setting.RootPermissionBased] = permBased
	}

	ui := make(map[string]any, len(m.opts.UI))
	for key, el := range m.opts.UI {
		if desc := el.Describe(); desc != nil {
			ui[key] = desc
		}
	}

	return out, ui, nil
}

// permissionBased resolves every permission-scoped key through the
// waterfall, seeding each key's broadest tier with the module's plain
// field value.
func (s *SettingsService) permissionBased(m *Module, recs []setting.Record, fillDefaults bool) map[string]any {
	out := make(map[string]any)
	for i := range m.opts.Fields {
		f := &m.opts.Fields[i]
		if !f.PermScoped {
			continue
		}
		path := f.Key.Path()
		prefix := setting.RootPermissionBased + "." + path + "."

		overrides := make(map[string]any)
		for _, rec := range recs {
			if !strings.HasPrefix(rec.Name, prefix) {
				continue
			}
			tier := strings.TrimPrefix(rec.Name, prefix)
			var v any
			if err := json.Unmarshal([]byte(rec.Value), &v); err != nil {
				m.warnCorrupt(rec, err)
				continue
			}
			if v != nil {
				overrides[tier] = v
			}
		}
		out[path] = permission.Waterfall(s.rt.Tiers, overrides, f.Get(), fillDefaults)
	}
	return out
}

// ApplyUpdate runs the settings-update protocol: flatten the payload,
// remap partially-qualified paths onto registered keys, drop what matches
// nothing, re-nest and apply entry by entry. Failures are contained per
// top-level entry; the report carries them back to the caller instead of
// an error return.
func (s *SettingsService) ApplyUpdate(ctx context.Context, m *Module, payload map[string]any) *UpdateReport {
	rep := &UpdateReport{ID: uuid.NewString()}
	if s.rt.Clock != nil {
		rep.AppliedAt = s.rt.Clock.Now()
	}

	flat := setting.Flatten(payload)
	remapped := setting.Remap(flat, m.RegisteredKeys())
	if d := len(flat) - len(remapped); d > 0 {
		rep.Dropped = d
		if c := s.rt.Metrics; c != nil {
			c.SettingsDropped.WithLabelValues(m.ID()).Add(float64(d))
		}
	}
	tree := setting.Nest(remapped)

	roots := make([]string, 0, len(tree))
	for k := range tree {
		roots = append(roots, k)
	}
	sort.Strings(roots)

	for _, root := range roots {
		if err := s.applyEntry(ctx, m, root, tree[root]); err != nil {
			m.log.Error().Err(err).Str("entry", root).Msg("settings update entry failed")
			rep.Errors = append(rep.Errors, UpdateError{Path: root, Err: err.Error()})
			if c := s.rt.Metrics; c != nil {
				c.SettingsUpdateErrors.WithLabelValues(m.ID()).Inc()
			}
			continue
		}
		rep.Applied++
	}

	if c := s.rt.Metrics; c != nil {
		c.SettingsUpdates.WithLabelValues(m.ID()).Inc()
	}
	return rep
}

// applyEntry applies one top-level entry of the re-nested update tree.
// Panics from setter closures are caught and reported as entry errors.
func (s *SettingsService) applyEntry(ctx context.Context, m *Module, root string, val any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			m.log.Error().Str("entry", root).Bytes("stack", debug.Stack()).
				Msgf("settings update panicked: %v", rec)
			err = fmt.Errorf("apply %s: panic: %v", root, rec)
		}
	}()

	switch root {
	case setting.RootEnabled:
		v, convErr := AsBool(val)
		if convErr != nil {
			return fmt.Errorf("apply enabled: %w", convErr)
		}
		if m.AlwaysOn() {
			m.log.Debug().Msg("enabled update ignored for always-on module")
			return nil
		}
		return m.SetEnabled(ctx, v)

	case setting.RootPermissions:
		return s.applyPermissions(ctx, m, val)

	case setting.RootCommands:
		return s.applyRenames(ctx, m, val)

	case setting.RootPermissionBased:
		return s.applyPermissionBased(ctx, m, val)

	default:
		return s.applyFields(ctx, m, root, val)
	}
}

// applyPermissions updates or deletes per-command permission overrides.
// A value equal to the command's compiled-in default, or null, deletes
// the override record.
func (s *SettingsService) applyPermissions(ctx context.Context, m *Module, val any) error {
	entries, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("apply _permissions: expected object, got %T", val)
	}
	defaultPerm := m.defaultPermission()

	for id, raw := range entries {
		decl, ok := m.commandDecl(id)
		if !ok {
			m.log.Debug().Str("command", id).Msg("permission override for unknown command dropped")
			continue
		}
		d, err := decl.Normalize(defaultPerm)
		if err != nil {
			return err
		}

		name := setting.RootPermissions + "." + id
		if raw == nil || raw == d.Permission {
			m.mu.Lock()
			delete(m.permOvr, id)
			m.mu.Unlock()
			if s.rt.Primary() {
				if err := s.rt.Store.Delete(ctx, m.ID(), name); err != nil {
					return fmt.Errorf("delete permission override %s: %w", id, err)
				}
			}
			continue
		}

		tier, err := AsString(raw)
		if err != nil {
			return fmt.Errorf("apply _permissions.%s: %w", id, err)
		}
		m.mu.Lock()
		m.permOvr[id] = tier
		m.mu.Unlock()
		if s.rt.Primary() {
			value, _ := json.Marshal(map[string]string{"name": id, "permission": tier})
			if err := s.rt.Store.Put(ctx, setting.Record{
				Namespace: m.ID(), Name: name, Value: string(value),
			}); err != nil {
				return fmt.Errorf("persist permission override %s: %w", id, err)
			}
		}
	}
	return nil
}

// applyRenames performs the command-rename operation: a text equal to the
// compiled-in invocation reverts to default and deletes the record.
func (s *SettingsService) applyRenames(ctx context.Context, m *Module, val any) error {
	entries, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("apply commands: expected object, got %T", val)
	}

	for id, raw := range entries {
		decl, ok := m.commandDecl(id)
		if !ok {
			m.log.Debug().Str("command", id).Msg("rename for unknown command dropped")
			continue
		}
		text, err := AsString(raw)
		if err != nil {
			return fmt.Errorf("apply commands.%s: %w", id, err)
		}

		defaultText := decl.Command
		if defaultText == "" {
			defaultText = decl.Name
		}

		name := setting.RootCommands + "." + id
		if text == defaultText {
			m.mu.Lock()
			delete(m.renames, id)
			m.mu.Unlock()
			if s.rt.Primary() {
				if err := s.rt.Store.Delete(ctx, m.ID(), name); err != nil {
					return fmt.Errorf("delete rename %s: %w", id, err)
				}
			}
			continue
		}

		m.mu.Lock()
		m.renames[id] = text
		m.mu.Unlock()
		if s.rt.Primary() {
			value, _ := json.Marshal(text)
			if err := s.rt.Store.Put(ctx, setting.Record{
				Namespace: m.ID(), Name: name, Value: string(value),
			}); err != nil {
				return fmt.Errorf("persist rename %s: %w", id, err)
			}
		}
	}
	return nil
}

// applyPermissionBased stores raw per-tier overrides verbatim, without
// the waterfall. Null clears an override.
func (s *SettingsService) applyPermissionBased(ctx context.Context, m *Module, val any) error {
	sub, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("apply __permission_based__: expected object, got %T", val)
	}
	if !s.rt.Primary() {
		return nil
	}

	for path, v := range setting.Flatten(sub) {
		name := setting.RootPermissionBased + "." + path
		if v == nil {
			if err := s.rt.Store.Delete(ctx, m.ID(), name); err != nil {
				return fmt.Errorf("delete %s: %w", name, err)
			}
			continue
		}
		value, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := s.rt.Store.Put(ctx, setting.Record{
			Namespace: m.ID(), Name: name, Value: string(value),
		}); err != nil {
			return fmt.Errorf("persist %s: %w", name, err)
		}
	}
	return nil
}

// applyFields routes plain setting paths through the typed setter table
// and persists non-default values.
func (s *SettingsService) applyFields(ctx context.Context, m *Module, root string, val any) error {
	for path, v := range setting.Flatten(map[string]any{root: val}) {
		f, target, err := m.mergeForField(path, v)
		if err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
		if err := f.Set(target); err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
		if err := s.persistField(ctx, m, f); err != nil {
			return err
		}
	}
	return nil
}

// persistField writes the field's current value, deleting the record when
// it reverted to the compiled-in default. Secondaries skip persistence.
func (s *SettingsService) persistField(ctx context.Context, m *Module, f *Field) error {
	if !s.rt.Primary() {
		return nil
	}
	path := f.Key.Path()
	cur, err := json.Marshal(f.Get())
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	def, err := json.Marshal(f.Default)
	if err != nil {
		return fmt.Errorf("encode default %s: %w", path, err)
	}

	if string(cur) == string(def) {
		if err := s.rt.Store.Delete(ctx, m.ID(), path); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
		return nil
	}
	if err := s.rt.Store.Put(ctx, setting.Record{
		Namespace: m.ID(), Name: path, Value: string(cur),
	}); err != nil {
		return fmt.Errorf("persist %s: %w", path, err)
	}
	return nil
}

// Value returns a single field's current value (get.value).
func (s *SettingsService) Value(m *Module, path string) (any, bool) {
	f, ok := m.fields[path]
	if !ok {
		return nil, false
	}
	return f.Get(), true
}

// SetValue sets a single field directly, bypassing the structured update
// pipeline (set.value).
func (s *SettingsService) SetValue(ctx context.Context, m *Module, path string, v any) error {
	f, ok := m.fields[path]
	if !ok {
		return fmt.Errorf("app: %s has no setting %q", m.ID(), path)
	}
	if err := f.Set(v); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return s.persistField(ctx, m, f)
}

// mergeForField locates the registered field addressed by path. A path
// that descends below a structured field is merged into the field's
// current map value so the setter always receives the whole value.
func (m *Module) mergeForField(path string, v any) (*Field, any, error) {
	if f, ok := m.fields[path]; ok {
		return f, v, nil
	}
	for p, f := range m.fields {
		if !strings.HasPrefix(path, p+".") {
			continue
		}
		cur, _ := f.Get().(map[string]any)
		flat := setting.Flatten(cur)
		flat[strings.TrimPrefix(path, p+".")] = v
		return f, setting.Nest(flat), nil
	}
	return nil, nil, fmt.Errorf("no registered field")
}

// commandDecl finds a command declaration by canonical id.
func (m *Module) commandDecl(id string) (command.Decl, bool) {
	for _, d := range m.opts.Commands {
		if d.Name == id {
			return d, true
		}
	}
	return command.Decl{}, false
}
