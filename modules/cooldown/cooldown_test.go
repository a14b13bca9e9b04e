package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/msmafra/sogeBot/adapters/clock"
	"github.com/msmafra/sogeBot/adapters/memory"
	"github.com/msmafra/sogeBot/app"
	"github.com/msmafra/sogeBot/domain/permission"
)

func testRuntime() app.Runtime {
	return app.Runtime{
		Store:  memory.NewSettingsStore(),
		Tiers:  permission.Default(),
		Clock:  clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		Logger: zerolog.Nop(),
	}
}

func TestNew_CommandHandlersDerived(t *testing.T) {
	c, err := New(testRuntime())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cmds, err := c.Module().Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}

	handlers := make(map[string]string, len(cmds))
	for _, cmd := range cmds {
		handlers[cmd.ID] = cmd.Handler
	}
	want := map[string]string{
		"cooldown":                   "main",
		"cooldown unset":             "unset",
		"cooldown toggle-moderators": "toggleModerators",
		"cooldown toggle-enabled":    "toggleEnabled",
	}
	for id, h := range want {
		if handlers[id] != h {
			t.Errorf("handler[%q] = %q, want %q", id, handlers[id], h)
		}
	}
}

func TestCooldown_PermissionScopedSetting(t *testing.T) {
	rt := testRuntime()
	c, err := New(rt)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	svc := app.NewSettingsService(rt)
	ctx := context.Background()

	// Moderators get a zero cooldown; everyone else inherits the default.
	rep := svc.ApplyUpdate(ctx, c.Module(), map[string]any{
		"__permission_based__": map[string]any{
			"defaultCooldownOfCommandsInSeconds": map[string]any{"moderators": float64(0)},
		},
	})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}

	snap, _, err := svc.Snapshot(ctx, c.Module(), true)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	pb := snap["__permission_based__"].(map[string]any)
	tiers := pb["defaultCooldownOfCommandsInSeconds"].(map[string]any)

	if tiers["viewers"] != 300 {
		t.Errorf("viewers = %v, want default 300", tiers["viewers"])
	}
	if tiers["moderators"] != float64(0) {
		t.Errorf("moderators = %v, want override 0", tiers["moderators"])
	}
	if tiers["casters"] != float64(0) {
		t.Errorf("casters = %v, want inherited 0", tiers["casters"])
	}
}

func TestCooldown_SettingsUpdateRemap(t *testing.T) {
	rt := testRuntime()
	c, err := New(rt)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	svc := app.NewSettingsService(rt)

	rep := svc.ApplyUpdate(context.Background(), c.Module(), map[string]any{
		"settings": map[string]any{
			"cooldown": map[string]any{
				"defaultCooldownOfCommandsInSeconds": float64(60),
			},
		},
	})
	if !rep.OK() {
		t.Fatalf("ApplyUpdate() errors = %v", rep.Errors)
	}
	if c.DefaultSeconds() != 60 {
		t.Errorf("DefaultSeconds() = %d, want 60", c.DefaultSeconds())
	}
}
