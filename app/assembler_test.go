package app

import (
	"context"
	"testing"

	"github.com/msmafra/sogeBot/adapters/memory"
	"github.com/msmafra/sogeBot/domain/command"
)

func TestCommands_DisabledModuleYieldsEmpty(t *testing.T) {
	m := mustModule(t, testRuntime(memory.NewSettingsStore()), Options{
		Area: "systems", Name: "cooldown",
		Commands: []command.Decl{{Name: "cooldown"}},
	})
	m.SetEnabled(context.Background(), false)

	cmds, err := m.Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	if len(cmds) != 0 {
		t.Errorf("Commands() len = %d, want 0 while disabled", len(cmds))
	}
}

func TestCommands_Defaults(t *testing.T) {
	m := mustModule(t, testRuntime(memory.NewSettingsStore()), Options{
		Area: "systems", Name: "cooldown",
		Commands: []command.Decl{
			{Name: "cooldown"},
			{Name: "cooldown toggle-moderators", Permission: "casters", IsHelper: true},
			{Name: "cooldown set", Command: "!cd set"},
		},
	})

	cmds, err := m.Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("Commands() len = %d, want 3", len(cmds))
	}

	tests := []struct {
		id, text, handler, perm string
		helper                  bool
	}{
		{"cooldown", "cooldown", "main", "viewers", false},
		{"cooldown toggle-moderators", "cooldown toggle-moderators", "toggleModerators", "casters", true},
		{"cooldown set", "!cd set", "set", "viewers", false},
	}
	for i, tt := range tests {
		c := cmds[i]
		if c.ID != tt.id || c.Command != tt.text || c.Handler != tt.handler ||
			c.Permission != tt.perm || c.IsHelper != tt.helper {
			t.Errorf("cmds[%d] = %+v, want %+v", i, c, tt)
		}
		if c.Module != "systems/cooldown" {
			t.Errorf("cmds[%d].Module = %q", i, c.Module)
		}
	}
}

func TestCommands_UnhealthyCommandDependencyKeptByDefault(t *testing.T) {
	rt := testRuntime(memory.NewSettingsStore())
	m := mustModule(t, rt, Options{
		Area: "systems", Name: "cooldown",
		Commands: []command.Decl{
			{Name: "cooldown points", DependsOn: []string{"systems/points"}},
		},
	})

	// systems/points is not resolved: the dependency is unhealthy but the
	// command still assembles.
	cmds, err := m.Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	if len(cmds) != 1 {
		t.Errorf("Commands() len = %d, want 1 without strict gating", len(cmds))
	}
}

func TestCommands_StrictGatingExcludesUnhealthy(t *testing.T) {
	rt := testRuntime(memory.NewSettingsStore())
	rt.StrictGating = func() bool { return true }
	m := mustModule(t, rt, Options{
		Area: "systems", Name: "cooldown",
		Commands: []command.Decl{
			{Name: "cooldown"},
			{Name: "cooldown points", DependsOn: []string{"systems/points"}},
		},
	})

	cmds, err := m.Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("Commands() len = %d, want 1 with strict gating", len(cmds))
	}
	if cmds[0].ID != "cooldown" {
		t.Errorf("surviving command = %q", cmds[0].ID)
	}
}

func TestCommands_StrictGatingKeepsHealthyDependency(t *testing.T) {
	rt := testRuntime(memory.NewSettingsStore())
	rt.StrictGating = func() bool { return true }
	reg := NewRegistry(rt.Logger)

	points := mustModule(t, rt, Options{Area: "systems", Name: "points"})
	m := mustModule(t, rt, Options{
		Area: "systems", Name: "cooldown",
		DependsOn: []string{"systems/points"},
		Commands: []command.Decl{
			{Name: "cooldown points", DependsOn: []string{"systems/points"}},
		},
	})
	reg.Register(points)
	reg.Register(m)
	if err := reg.ResolveDependencies(context.Background()); err != nil {
		t.Fatalf("ResolveDependencies() error = %v", err)
	}

	cmds, err := m.Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	if len(cmds) != 1 {
		t.Errorf("Commands() len = %d, want 1 with healthy dependency", len(cmds))
	}
}

func TestParsers_SortedByPriority(t *testing.T) {
	m := mustModule(t, testRuntime(memory.NewSettingsStore()), Options{
		Area: "systems", Name: "moderation",
		Parsers: []command.ParserDecl{
			{Name: "links"},
			{Name: "caps", Priority: command.PriorityHigh},
			{Name: "emotes", Priority: command.PriorityMedium, FireAndForget: true},
		},
	})

	parsers, err := m.Parsers()
	if err != nil {
		t.Fatalf("Parsers() error = %v", err)
	}
	if len(parsers) != 3 {
		t.Fatalf("Parsers() len = %d, want 3", len(parsers))
	}

	wantOrder := []string{"caps", "emotes", "links"}
	for i, id := range wantOrder {
		if parsers[i].ID != id {
			t.Errorf("parsers[%d] = %q, want %q", i, parsers[i].ID, id)
		}
	}
	if parsers[0].Permission != "viewers" {
		t.Errorf("default parser permission = %q, want viewers", parsers[0].Permission)
	}
	if !parsers[1].FireAndForget {
		t.Error("FireAndForget flag lost in assembly")
	}
}

func TestParsers_DisabledModuleYieldsEmpty(t *testing.T) {
	m := mustModule(t, testRuntime(memory.NewSettingsStore()), Options{
		Area: "systems", Name: "moderation",
		Parsers: []command.ParserDecl{{Name: "links"}},
	})
	m.SetEnabled(context.Background(), false)

	parsers, err := m.Parsers()
	if err != nil {
		t.Fatalf("Parsers() error = %v", err)
	}
	if len(parsers) != 0 {
		t.Errorf("Parsers() len = %d, want 0", len(parsers))
	}
}

func TestRollbacks_DerivedHandlers(t *testing.T) {
	m := mustModule(t, testRuntime(memory.NewSettingsStore()), Options{
		Area: "systems", Name: "points",
		Rollbacks: []command.RollbackDecl{
			{Name: "points"},
			{Name: "points undo-add"},
		},
	})

	rbs, err := m.Rollbacks()
	if err != nil {
		t.Fatalf("Rollbacks() error = %v", err)
	}
	if len(rbs) != 2 {
		t.Fatalf("Rollbacks() len = %d, want 2", len(rbs))
	}
	if rbs[0].Handler != "main" {
		t.Errorf("rbs[0].Handler = %q, want main", rbs[0].Handler)
	}
	if rbs[1].Handler != "undoAdd" {
		t.Errorf("rbs[1].Handler = %q, want undoAdd", rbs[1].Handler)
	}
}
