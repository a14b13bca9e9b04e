package app

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/msmafra/sogeBot/adapters/memory"
	"github.com/msmafra/sogeBot/domain/command"
	"github.com/msmafra/sogeBot/domain/setting"
)

// cooldownFixture is the mutable state a typical feature module exposes
// through field accessors.
type cooldownFixture struct {
	global   int
	notify   bool
	messages map[string]any
}

func cooldownModule(t *testing.T, rt Runtime, fx *cooldownFixture) *Module {
	t.Helper()
	return mustModule(t, rt, Options{
		Area: "systems", Name: "cooldown",
		Commands: []command.Decl{
			{Name: "cooldown", Permission: "moderators"},
			{Name: "cooldown unset"},
		},
		Fields: []Field{
			{
				Key:        setting.Key{Name: "global"},
				PermScoped: true,
				Get:        func() any { return fx.global },
				Set: func(v any) error {
					n, err := AsInt(v)
					if err != nil {
						return err
					}
					fx.global = n
					return nil
				},
			},
			{
				Key: setting.Key{Category: "options", Name: "notify"},
				Get: func() any { return fx.notify },
				Set: func(v any) error {
					b, err := AsBool(v)
					if err != nil {
						return err
					}
					fx.notify = b
					return nil
				},
			},
			{
				Key: setting.Key{Name: "messages"},
				Get: func() any { return fx.messages },
				Set: func(v any) error {
					m, ok := v.(map[string]any)
					if !ok {
						return errors.New("messages: expected object")
					}
					fx.messages = m
					return nil
				},
			},
		},
		UI: map[string]UIElement{
			"global": {Kind: "number-input"},
		},
	})
}

func TestSettingsService_Snapshot(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	fx := &cooldownFixture{global: 30, notify: true, messages: map[string]any{"warn": "cool it"}}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)
	ctx := context.Background()

	store.Put(ctx, setting.Record{
		Namespace: m.ID(), Name: "__permission_based__.global.moderators", Value: "0",
	})

	got, ui, err := svc.Snapshot(ctx, m, true)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if got[setting.RootEnabled] != true {
		t.Error("snapshot missing enabled=true")
	}
	if got["global"] != 30 {
		t.Errorf("global = %v, want 30", got["global"])
	}
	opts, _ := got["options"].(map[string]any)
	if opts["notify"] != true {
		t.Errorf("options.notify = %v, want true", opts["notify"])
	}

	perms, _ := got[setting.RootPermissions].(map[string]any)
	if perms["cooldown"] != "moderators" {
		t.Errorf("_permissions.cooldown = %v, want declared moderators", perms["cooldown"])
	}
	if perms["cooldown unset"] != "viewers" {
		t.Errorf("_permissions default = %v, want broadest tier viewers", perms["cooldown unset"])
	}

	texts, _ := got[setting.RootCommands].(map[string]any)
	if texts["cooldown"] != "cooldown" {
		t.Errorf("commands.cooldown = %v", texts["cooldown"])
	}

	// Permission-scoped key: broadest tier seeds from the field value,
	// moderators carry the stored override, the rest inherit upward.
	pb, _ := got[setting.RootPermissionBased].(map[string]any)
	want := map[string]any{
		"viewers":     30,
		"subscribers": 30,
		"moderators":  float64(0),
		"casters":     float64(0),
	}
	if !reflect.DeepEqual(pb["global"], want) {
		t.Errorf("__permission_based__.global = %v, want %v", pb["global"], want)
	}

	if _, ok := ui["global"]; !ok {
		t.Error("UI descriptor for global missing")
	}
}

func TestSettingsService_SnapshotRawSurfacesNil(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	fx := &cooldownFixture{global: 30}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)

	got, _, err := svc.Snapshot(context.Background(), m, false)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	pb, _ := got[setting.RootPermissionBased].(map[string]any)
	tiers, _ := pb["global"].(map[string]any)

	if tiers["viewers"] != 30 {
		t.Errorf("viewers = %v, want seeded field value", tiers["viewers"])
	}
	for _, id := range []string{"subscribers", "moderators", "casters"} {
		if v, present := tiers[id]; !present || v != nil {
			t.Errorf("%s = %v, want explicit nil", id, v)
		}
	}
}

func TestSettingsService_ApplyUpdateRemapsPrefixedPaths(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	fx := &cooldownFixture{global: 30}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)
	ctx := context.Background()

	rep := svc.ApplyUpdate(ctx, m, map[string]any{
		"settings": map[string]any{
			"cooldown": map[string]any{"global": float64(5)},
		},
	})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	if fx.global != 5 {
		t.Errorf("global = %d, want 5", fx.global)
	}
	if rec, ok, _ := store.Find(ctx, m.ID(), "global"); !ok || rec.Value != "5" {
		t.Errorf("persisted record = %+v ok=%v, want value 5", rec, ok)
	}
}

func TestSettingsService_ApplyUpdateDropsUnregisteredPaths(t *testing.T) {
	rt := testRuntime(memory.NewSettingsStore())
	fx := &cooldownFixture{global: 30}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)

	rep := svc.ApplyUpdate(context.Background(), m, map[string]any{
		"totally": map[string]any{"unknown": 1},
	})
	if !rep.OK() {
		t.Fatalf("unknown path must be dropped, not errored: %v", rep.Errors)
	}
	if rep.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", rep.Dropped)
	}
	if rep.Applied != 0 {
		t.Errorf("Applied = %d, want 0", rep.Applied)
	}
	if fx.global != 30 {
		t.Errorf("global mutated to %d by unknown path", fx.global)
	}
}

func TestSettingsService_ApplyUpdateRevertToDefaultDeletesRecord(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	fx := &cooldownFixture{global: 30}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)
	ctx := context.Background()

	svc.ApplyUpdate(ctx, m, map[string]any{"global": float64(5)})
	if _, ok, _ := store.Find(ctx, m.ID(), "global"); !ok {
		t.Fatal("non-default value not persisted")
	}

	svc.ApplyUpdate(ctx, m, map[string]any{"global": float64(30)})
	if _, ok, _ := store.Find(ctx, m.ID(), "global"); ok {
		t.Error("record survives revert to compiled-in default")
	}
	if fx.global != 30 {
		t.Errorf("global = %d, want 30", fx.global)
	}
}

func TestSettingsService_ApplyUpdatePermissionOverrides(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	m := cooldownModule(t, rt, &cooldownFixture{})
	svc := NewSettingsService(rt)
	ctx := context.Background()

	rep := svc.ApplyUpdate(ctx, m, map[string]any{
		setting.RootPermissions: map[string]any{"cooldown": "casters"},
	})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	rec, ok, _ := store.Find(ctx, m.ID(), "_permissions.cooldown")
	if !ok {
		t.Fatal("override record not persisted")
	}
	if rec.Value != `{"name":"cooldown","permission":"casters"}` {
		t.Errorf("record value = %s", rec.Value)
	}

	cmds, _ := m.Commands()
	if cmds[0].Permission != "casters" {
		t.Errorf("assembled permission = %q, want override casters", cmds[0].Permission)
	}

	// Setting the declared default deletes the record and the live override.
	svc.ApplyUpdate(ctx, m, map[string]any{
		setting.RootPermissions: map[string]any{"cooldown": "moderators"},
	})
	if _, ok, _ := store.Find(ctx, m.ID(), "_permissions.cooldown"); ok {
		t.Error("override record survives revert to declared default")
	}
	cmds, _ = m.Commands()
	if cmds[0].Permission != "moderators" {
		t.Errorf("assembled permission = %q after revert", cmds[0].Permission)
	}
}

func TestSettingsService_ApplyUpdateRenames(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	m := cooldownModule(t, rt, &cooldownFixture{})
	svc := NewSettingsService(rt)
	ctx := context.Background()

	rep := svc.ApplyUpdate(ctx, m, map[string]any{
		setting.RootCommands: map[string]any{"cooldown": "!cd"},
	})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	if rec, ok, _ := store.Find(ctx, m.ID(), "commands.cooldown"); !ok || rec.Value != `"!cd"` {
		t.Errorf("rename record = %+v ok=%v", rec, ok)
	}
	cmds, _ := m.Commands()
	if cmds[0].Command != "!cd" {
		t.Errorf("assembled text = %q, want !cd", cmds[0].Command)
	}
	if cmds[0].ID != "cooldown" {
		t.Errorf("canonical id changed by rename: %q", cmds[0].ID)
	}

	// Renaming back to the declared text reverts and deletes.
	svc.ApplyUpdate(ctx, m, map[string]any{
		setting.RootCommands: map[string]any{"cooldown": "cooldown"},
	})
	if _, ok, _ := store.Find(ctx, m.ID(), "commands.cooldown"); ok {
		t.Error("rename record survives revert to default text")
	}
}

func TestSettingsService_ApplyUpdatePermissionBasedStoredVerbatim(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	m := cooldownModule(t, rt, &cooldownFixture{global: 30})
	svc := NewSettingsService(rt)
	ctx := context.Background()

	rep := svc.ApplyUpdate(ctx, m, map[string]any{
		setting.RootPermissionBased: map[string]any{
			"global": map[string]any{"moderators": float64(0)},
		},
	})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	rec, ok, _ := store.Find(ctx, m.ID(), "__permission_based__.global.moderators")
	if !ok || rec.Value != "0" {
		t.Errorf("tier record = %+v ok=%v, want verbatim 0", rec, ok)
	}

	// Null clears the per-tier override.
	svc.ApplyUpdate(ctx, m, map[string]any{
		setting.RootPermissionBased: map[string]any{
			"global": map[string]any{"moderators": nil},
		},
	})
	if _, ok, _ := store.Find(ctx, m.ID(), "__permission_based__.global.moderators"); ok {
		t.Error("null did not clear tier override")
	}
}

func TestSettingsService_ApplyUpdateEnabledToggle(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	m := cooldownModule(t, rt, &cooldownFixture{})
	svc := NewSettingsService(rt)
	ctx := context.Background()

	rep := svc.ApplyUpdate(ctx, m, map[string]any{setting.RootEnabled: false})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	if m.Enabled() {
		t.Error("module still enabled after update")
	}
	if _, ok, _ := store.Find(ctx, m.ID(), "enabled"); !ok {
		t.Error("disabled flag not persisted")
	}
}

func TestSettingsService_ApplyUpdateIsolatesEntryFailures(t *testing.T) {
	rt := testRuntime(memory.NewSettingsStore())
	fx := &cooldownFixture{global: 30}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)

	rep := svc.ApplyUpdate(context.Background(), m, map[string]any{
		"global":            "not a number",
		setting.RootEnabled: false,
	})

	if rep.OK() {
		t.Fatal("report claims success despite a failed entry")
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Path != "global" {
		t.Errorf("Errors = %v, want single failure for global", rep.Errors)
	}
	if rep.Applied != 1 {
		t.Errorf("Applied = %d, want 1", rep.Applied)
	}
	if m.StoredEnabled() {
		t.Error("valid sibling entry not applied")
	}
	if fx.global != 30 {
		t.Errorf("failed entry mutated state: global = %d", fx.global)
	}
}

func TestSettingsService_ApplyUpdateRecoversSetterPanic(t *testing.T) {
	rt := testRuntime(memory.NewSettingsStore())
	m := mustModule(t, rt, Options{
		Area: "systems", Name: "bomb",
		Fields: []Field{{
			Key: setting.Key{Name: "fuse"},
			Get: func() any { return 0 },
			Set: func(any) error { panic("boom") },
		}},
	})
	svc := NewSettingsService(rt)

	rep := svc.ApplyUpdate(context.Background(), m, map[string]any{"fuse": float64(1)})
	if rep.OK() {
		t.Fatal("panicking setter reported as success")
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Path != "fuse" {
		t.Errorf("Errors = %v", rep.Errors)
	}
}

func TestSettingsService_ApplyUpdateStructuredFieldMerge(t *testing.T) {
	rt := testRuntime(memory.NewSettingsStore())
	fx := &cooldownFixture{messages: map[string]any{"warn": "cool it", "ok": "go"}}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)

	// A path below the registered key merges into the current map value.
	rep := svc.ApplyUpdate(context.Background(), m, map[string]any{
		"messages": map[string]any{"warn": "slow down"},
	})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	if fx.messages["warn"] != "slow down" {
		t.Errorf("messages.warn = %v", fx.messages["warn"])
	}
	if fx.messages["ok"] != "go" {
		t.Errorf("sibling entry lost in merge: %v", fx.messages)
	}
}

func TestSettingsService_SecondaryAppliesInMemoryOnly(t *testing.T) {
	store := &countingStore{SettingsStore: memory.NewSettingsStore()}
	rt := testRuntime(store)
	rt.Primary = func() bool { return false }
	fx := &cooldownFixture{global: 30}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)

	rep := svc.ApplyUpdate(context.Background(), m, map[string]any{"global": float64(5)})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	if fx.global != 5 {
		t.Errorf("global = %d, want in-memory apply on secondary", fx.global)
	}
	if store.puts != 0 || store.deletes != 0 {
		t.Errorf("secondary wrote to store: puts=%d deletes=%d", store.puts, store.deletes)
	}
}

func TestSettingsService_ValueAndSetValue(t *testing.T) {
	store := memory.NewSettingsStore()
	rt := testRuntime(store)
	fx := &cooldownFixture{global: 30}
	m := cooldownModule(t, rt, fx)
	svc := NewSettingsService(rt)
	ctx := context.Background()

	if v, ok := svc.Value(m, "global"); !ok || v != 30 {
		t.Errorf("Value() = %v, %v", v, ok)
	}
	if _, ok := svc.Value(m, "nope"); ok {
		t.Error("Value() found unregistered path")
	}

	if err := svc.SetValue(ctx, m, "global", float64(7)); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if fx.global != 7 {
		t.Errorf("global = %d, want 7", fx.global)
	}
	if _, ok, _ := store.Find(ctx, m.ID(), "global"); !ok {
		t.Error("SetValue did not persist non-default value")
	}

	if err := svc.SetValue(ctx, m, "nope", 1); err == nil {
		t.Error("SetValue() accepted unregistered path")
	}
}
