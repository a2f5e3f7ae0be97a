package app

import (
	"context"

	"github.com/Sternrassler/scripture-client/pkg/cache"
	"github.com/Sternrassler/scripture-client/pkg/preload"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/ratelimit"
)

// ServiceStatus reports whether an upstream can be called.
type ServiceStatus struct {
	Name       string   `json:"name"`
	Configured bool     `json:"configured"`
	Missing    []string `json:"missing,omitempty"`
}

// Status is a runtime report.
type Status struct {
	Scripture ServiceStatus `json:"scripture"`
	Chat      ServiceStatus `json:"chat"`

	Queue            queue.Stats             `json:"queue"`
	Cooldown         ratelimit.CooldownState `json:"cooldown"`
	CooldownStore    string                  `json:"cooldown_store"`
	LimiterRemaining int                     `json:"limiter_remaining"`

	Cache   cache.ContentStats `json:"cache"`
	Preload *preload.Stats     `json:"preload,omitempty"`
}

// Ready reports whether both upstreams are configured.
func (s Status) Ready() bool {
	return s.Scripture.Configured && s.Chat.Configured
}

// Status returns the configuration and runtime state.
func (a *App) Status(ctx context.Context) Status {
	s := Status{
		Scripture: ServiceStatus{
			Name:       "bible api",
			Configured: a.Scripture.Configured(),
			Missing:    a.Scripture.Missing(),
		},
		Chat: ServiceStatus{
			Name:       "chat provider",
			Configured: a.Chat.Configured(),
			Missing:    a.Chat.Missing(),
		},
		Queue:            a.Queue.Stats(ctx),
		Cooldown:         a.Cooldown.State(ctx),
		CooldownStore:    a.storeKind,
		LimiterRemaining: a.Limiter.Remaining(),
		Cache:            a.Content.Stats(),
	}
	if a.Preload != nil {
		ps := a.Preload.Stats()
		s.Preload = &ps
	}
	return s
}
