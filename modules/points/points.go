// Package points is the loyalty points module. Viewers accrue points per
// chat message and per watched interval; moderators can grant or remove
// them by command.
package points

import (
	"sync"

	"github.com/msmafra/sogeBot/app"
	"github.com/msmafra/sogeBot/domain/command"
	"github.com/msmafra/sogeBot/domain/setting"
)

// Points tracks loyalty point accrual settings.
type Points struct {
	mod *app.Module

	mu              sync.RWMutex
	perMessage      int
	perInterval     int
	intervalMinutes int
	name            string
}

// New constructs the module and registers its declarations.
func New(rt app.Runtime) (*Points, error) {
	p := &Points{
		perMessage:      1,
		perInterval:     10,
		intervalMinutes: 10,
		name:            "points",
	}

	mod, err := app.NewModule(rt, app.Options{
		Area: "systems",
		Name: "points",
		Commands: []command.Decl{
			{Name: "points"},
			{Name: "points add", Permission: "casters"},
			{Name: "points remove", Permission: "casters"},
			{Name: "points give"},
			{Name: "points get-top", Permission: "moderators"},
		},
		Parsers: []command.ParserDecl{
			{Name: "points accrue", Priority: command.PriorityLow, FireAndForget: true},
		},
		Rollbacks: []command.RollbackDecl{
			{Name: "points"},
			{Name: "points undo-give"},
		},
		Fields: []app.Field{
			{
				Key: setting.Key{Category: "accrual", Name: "perMessage"},
				Get: func() any { p.mu.RLock(); defer p.mu.RUnlock(); return p.perMessage },
				Set: func(v any) error {
					n, err := app.AsInt(v)
					if err != nil {
						return err
					}
					p.mu.Lock()
					p.perMessage = n
					p.mu.Unlock()
					return nil
				},
			},
			{
				Key: setting.Key{Category: "accrual", Name: "perInterval"},
				Get: func() any { p.mu.RLock(); defer p.mu.RUnlock(); return p.perInterval },
				Set: func(v any) error {
					n, err := app.AsInt(v)
					if err != nil {
						return err
					}
					p.mu.Lock()
					p.perInterval = n
					p.mu.Unlock()
					return nil
				},
			},
			{
				Key: setting.Key{Category: "accrual", Name: "intervalMinutes"},
				Get: func() any { p.mu.RLock(); defer p.mu.RUnlock(); return p.intervalMinutes },
				Set: func(v any) error {
					n, err := app.AsInt(v)
					if err != nil {
						return err
					}
					p.mu.Lock()
					p.intervalMinutes = n
					p.mu.Unlock()
					return nil
				},
			},
			{
				Key: setting.Key{Name: "pointsName"},
				Get: func() any { p.mu.RLock(); defer p.mu.RUnlock(); return p.name },
				Set: func(v any) error {
					s, err := app.AsString(v)
					if err != nil {
						return err
					}
					p.mu.Lock()
					p.name = s
					p.mu.Unlock()
					return nil
				},
			},
		},
		UI: map[string]app.UIElement{
			"accrual.perMessage": {Kind: "number-input"},
			"pointsName":         {Kind: "text-input"},
		},
	})
	if err != nil {
		return nil, err
	}

	p.mod = mod
	return p, nil
}

// Module exposes the underlying module for registration.
func (p *Points) Module() *app.Module { return p.mod }

// Name returns the configured display name for points.
func (p *Points) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}
