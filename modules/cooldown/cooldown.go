// Package cooldown is the command cooldown module. It throttles command
// invocations per viewer or globally, with the cooldown length
// resolvable per permission tier.
package cooldown

import (
	"sync"

	"github.com/msmafra/sogeBot/app"
	"github.com/msmafra/sogeBot/domain/command"
	"github.com/msmafra/sogeBot/domain/setting"
)

// Cooldown throttles command usage. The default cooldown length is
// permission-scoped: a stored per-tier override lets moderators bypass
// or shorten it.
type Cooldown struct {
	mod *app.Module

	mu             sync.RWMutex
	defaultSecs    int
	moderatorsSkip bool
	messages       map[string]any
}

// New constructs the module and registers its declarations.
func New(rt app.Runtime) (*Cooldown, error) {
	c := &Cooldown{
		defaultSecs:    300,
		moderatorsSkip: true,
		messages: map[string]any{
			"on-cooldown": "$command is on cooldown for $seconds more seconds",
		},
	}

	mod, err := app.NewModule(rt, app.Options{
		Area: "systems",
		Name: "cooldown",
		Commands: []command.Decl{
			{Name: "cooldown", Permission: "moderators"},
			{Name: "cooldown unset", Permission: "moderators"},
			{Name: "cooldown toggle-moderators", Permission: "casters"},
			{Name: "cooldown toggle-enabled", Permission: "moderators"},
		},
		Parsers: []command.ParserDecl{
			{Name: "cooldown check", Priority: command.PriorityHigh},
		},
		Rollbacks: []command.RollbackDecl{
			{Name: "cooldown revert-toggle"},
		},
		Fields: []app.Field{
			{
				Key:        setting.Key{Name: "defaultCooldownOfCommandsInSeconds"},
				PermScoped: true,
				Get:        func() any { c.mu.RLock(); defer c.mu.RUnlock(); return c.defaultSecs },
				Set: func(v any) error {
					n, err := app.AsInt(v)
					if err != nil {
						return err
					}
					c.mu.Lock()
					c.defaultSecs = n
					c.mu.Unlock()
					return nil
				},
			},
			{
				Key: setting.Key{Category: "options", Name: "moderatorsSkip"},
				Get: func() any { c.mu.RLock(); defer c.mu.RUnlock(); return c.moderatorsSkip },
				Set: func(v any) error {
					b, err := app.AsBool(v)
					if err != nil {
						return err
					}
					c.mu.Lock()
					c.moderatorsSkip = b
					c.mu.Unlock()
					return nil
				},
			},
			{
				Key: setting.Key{Name: "messages"},
				Get: func() any { c.mu.RLock(); defer c.mu.RUnlock(); return c.messages },
				Set: func(v any) error {
					m, ok := v.(map[string]any)
					if !ok {
						return app.ErrBadValue
					}
					c.mu.Lock()
					c.messages = m
					c.mu.Unlock()
					return nil
				},
			},
		},
		UI: map[string]app.UIElement{
			"defaultCooldownOfCommandsInSeconds": {Kind: "number-input"},
			"options.moderatorsSkip":             {Kind: "toggle"},
		},
	})
	if err != nil {
		return nil, err
	}

	c.mod = mod
	return c, nil
}

// Module exposes the underlying module for registration.
func (c *Cooldown) Module() *app.Module { return c.mod }

// DefaultSeconds returns the current plain (non tier-resolved) cooldown
// length.
func (c *Cooldown) DefaultSeconds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultSecs
}

// ModeratorsSkip reports whether moderators bypass cooldowns entirely.
func (c *Cooldown) ModeratorsSkip() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.moderatorsSkip
}
