package orch

import (
	"time"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
)

// Options are the knobs New needs; zero values fall back to defaults.
type Options struct {
	Store            core.RoomStore
	MaxCapacity      int
	LockTimeout      time.Duration
	PriorityTimeout  time.Duration
	SubscriberBuffer int
	Policy           app.Policy
	MaxMessageLen    int
	RateLimit        int
	RateInterval     time.Duration
	Validator        app.SignalValidator
}

func New(opts Options) *Orchestrator {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 2 * time.Second
	}
	if opts.PriorityTimeout <= 0 {
		opts.PriorityTimeout = 10 * time.Second
	}
	locks := core.NewLocks(opts.LockTimeout, opts.PriorityTimeout)
	dir := app.NewDirectory()
	hub := app.NewHub(opts.SubscriberBuffer, opts.Policy)
	reg := app.NewRegistry(opts.Store, opts.MaxCapacity)
	sessions := app.NewSessions(locks, reg, hub, dir, app.SessionsConfig{
		MaxMessageLen: opts.MaxMessageLen,
		Limiter:       app.NewRoomRateLimiter(opts.RateLimit, opts.RateInterval),
		Validator:     opts.Validator,
	})
	return &Orchestrator{
		Directory: dir,
		Registry:  reg,
		Matching:  app.NewMatching(locks, reg, hub, sessions),
		Sessions:  sessions,
		Hub:       hub,
	}
}
