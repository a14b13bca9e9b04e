// Package top is the leaderboard module. It depends on the points module
// and reports the chat leaders by points, messages or watch time.
package top

import (
	"sync"

	"github.com/msmafra/sogeBot/app"
	"github.com/msmafra/sogeBot/domain/command"
	"github.com/msmafra/sogeBot/domain/setting"
)

// Top renders chat leaderboards. Effectively enabled only while the
// points module it depends on is healthy.
type Top struct {
	mod *app.Module

	mu       sync.RWMutex
	listSize int
}

// New constructs the module and registers its declarations.
func New(rt app.Runtime) (*Top, error) {
	t := &Top{listSize: 10}

	mod, err := app.NewModule(rt, app.Options{
		Area:      "systems",
		Name:      "top",
		DependsOn: []string{"systems/points"},
		Commands: []command.Decl{
			{Name: "top points", Permission: "moderators", DependsOn: []string{"systems/points"}},
			{Name: "top messages", Permission: "moderators"},
			{Name: "top watch-time", Permission: "moderators"},
		},
		Fields: []app.Field{
			{
				Key: setting.Key{Name: "listSize"},
				Get: func() any { t.mu.RLock(); defer t.mu.RUnlock(); return t.listSize },
				Set: func(v any) error {
					n, err := app.AsInt(v)
					if err != nil {
						return err
					}
					t.mu.Lock()
					t.listSize = n
					t.mu.Unlock()
					return nil
				},
			},
		},
		UI: map[string]app.UIElement{
			"listSize": {Kind: "number-input"},
		},
	})
	if err != nil {
		return nil, err
	}

	t.mod = mod
	return t, nil
}

// Module exposes the underlying module for registration.
func (t *Top) Module() *app.Module { return t.mod }

// ListSize returns the configured leaderboard length.
func (t *Top) ListSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.listSize
}
