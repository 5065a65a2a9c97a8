package bot

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"kpwatch/internal/model"
)

// DefaultSeparator is sent after a search's alert has been delivered.
const DefaultSeparator = "SLEDECA PORUKA"

// Batch is the set of new listings found for one search.
type Batch struct {
	SearchID string
	Listings []model.Listing
}

// Delivery summarises what Dispatch did for one batch.
type Delivery struct {
	SearchID string
	Messages int
	Err      error
}

// Dispatcher sends one alert per search through a Sender, pacing calls
// to stay within the delivery rate limit.
type Dispatcher struct {
	sender    Sender
	limiter   *rate.Limiter
	limit     int
	separator string
	log       *slog.Logger
}

// DispatcherConfig holds the delivery limits.
type DispatcherConfig struct {
	Interval  time.Duration
	MaxLength int
	Separator string
}

// NewDispatcher creates a Dispatcher. Zero config values fall back to the
// Telegram defaults.
func NewDispatcher(sender Sender, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	limit := cfg.MaxLength
	if limit <= 0 || limit > MaxMessageLength {
		limit = MaxMessageLength
	}
	sep := cfg.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.Interval > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}
	return &Dispatcher{
		sender:    sender,
		limiter:   lim,
		limit:     limit,
		separator: sep,
		log:       log,
	}
}

// Dispatch sends the alerts for every non-empty batch in order. A failed
// delivery ends that batch only.
func (d *Dispatcher) Dispatch(ctx context.Context, batches []Batch) []Delivery {
	var out []Delivery
	for _, b := range batches {
		if len(b.Listings) == 0 {
			continue
		}
		if ctx.Err() != nil {
			out = append(out, Delivery{SearchID: b.SearchID, Err: ctx.Err()})
			continue
		}
		res := d.deliver(ctx, b)
		if res.Err != nil {
			d.log.Error("deliver alert", "search", b.SearchID, "sent", res.Messages, "error", res.Err)
		} else {
			d.log.Info("sent notifications", "search", b.SearchID, "count", len(b.Listings), "messages", res.Messages)
		}
		out = append(out, res)
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, b Batch) Delivery {
	res := Delivery{SearchID: b.SearchID}
	for _, msg := range FormatBatch(b.SearchID, b.Listings, d.limit) {
		if err := d.send(ctx, msg); err != nil {
			res.Err = err
			return res
		}
		res.Messages++
	}
	if err := d.send(ctx, d.separator); err != nil {
		res.Err = err
		return res
	}
	res.Messages++
	return res
}

func (d *Dispatcher) send(ctx context.Context, text string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.sender.Send(ctx, text)
}
