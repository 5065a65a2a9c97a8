// Package publish commits run state to a versioned store with optimistic
// concurrency and bounded retry.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kpwatch/internal/model"
)

// ErrPublishFailed is returned when every attempt to commit the state failed.
var ErrPublishFailed = errors.New("publish failed")

// Store is the versioned backend the gate commits to.
type Store interface {
	Load(ctx context.Context) (model.State, error)
	Save(ctx context.Context, st model.State) (model.State, error)
}

// Mirror receives a local durable copy of every state before it is committed.
type Mirror interface {
	Write(st model.State) error
}

// Rebase derives the state to commit from the latest committed state. It is
// called once per attempt and must not have side effects outside its result.
type Rebase func(base model.State) (model.State, error)

// Gate publishes state with a pull, rebase and save cycle.
type Gate struct {
	store    Store
	mirror   Mirror
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// New creates a Gate. mirror may be nil.
func New(store Store, mirror Mirror, attempts int, backoff time.Duration, log *slog.Logger) *Gate {
	if attempts < 1 {
		attempts = 1
	}
	return &Gate{
		store:    store,
		mirror:   mirror,
		attempts: attempts,
		backoff:  backoff,
		log:      log,
	}
}

// Publish commits rebase(base). When the save fails, the latest state is
// pulled from the store and rebase is applied again, up to the attempt
// bound. It returns the committed state, or an error wrapping
// ErrPublishFailed after the last attempt.
func (g *Gate) Publish(ctx context.Context, base model.State, rebase Rebase) (model.State, error) {
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, g.backoff*time.Duration(attempt-1)); err != nil {
				return model.State{}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
			}
			latest, err := g.store.Load(ctx)
			if err != nil {
				lastErr = fmt.Errorf("pull: %w", err)
				g.log.Warn("publish attempt failed", "attempt", attempt, "error", lastErr)
				continue
			}
			base = latest
		}

		committed, err := g.try(ctx, base, rebase)
		if err == nil {
			g.log.Debug("state published", "attempt", attempt, "version", committed.Version)
			return committed, nil
		}
		var rerr rebaseError
		if errors.As(err, &rerr) {
			return model.State{}, err
		}
		lastErr = err
		g.log.Warn("publish attempt failed", "attempt", attempt, "error", err)
	}
	return model.State{}, fmt.Errorf("%w: all %d attempts failed, last error: %w", ErrPublishFailed, g.attempts, lastErr)
}

func (g *Gate) try(ctx context.Context, base model.State, rebase Rebase) (model.State, error) {
	next, err := rebase(base.Clone())
	if err != nil {
		return model.State{}, rebaseError{err}
	}
	next.Version = base.Version

	if g.mirror != nil {
		if err := g.mirror.Write(next); err != nil {
			return model.State{}, fmt.Errorf("write local mirror: %w", err)
		}
	}

	committed, err := g.store.Save(ctx, next)
	if err != nil {
		return model.State{}, fmt.Errorf("save: %w", err)
	}
	return committed, nil
}

type rebaseError struct{ err error }

func (e rebaseError) Error() string { return "rebase: " + e.err.Error() }
func (e rebaseError) Unwrap() error { return e.err }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
