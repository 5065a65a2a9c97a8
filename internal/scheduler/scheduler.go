// Package scheduler runs the fetch, filter, publish and notify pipeline over
// every configured search, once or on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"kpwatch/internal/bot"
	"kpwatch/internal/dedup"
	"kpwatch/internal/filter"
	"kpwatch/internal/model"
	"kpwatch/internal/publish"
)

// Source returns the listings currently shown by a search.
type Source interface {
	Listings(ctx context.Context, search model.Search) ([]model.Listing, error)
}

// Loader reads the last committed state.
type Loader interface {
	Load(ctx context.Context) (model.State, error)
}

// Publisher commits the next state derived by rebase.
type Publisher interface {
	Publish(ctx context.Context, base model.State, rebase publish.Rebase) (model.State, error)
}

// Notifier delivers the alerts of a run.
type Notifier interface {
	Dispatch(ctx context.Context, batches []bot.Batch) []bot.Delivery
}

// Scheduler wires the pipeline together.
type Scheduler struct {
	searches  []model.Search
	source    Source
	loader    Loader
	publisher Publisher
	notifier  Notifier
	eviction  dedup.Eviction
	log       *slog.Logger
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Source    Source
	Loader    Loader
	Publisher Publisher
	Notifier  Notifier
}

// New creates a Scheduler for searches.
func New(searches []model.Search, deps Deps, eviction dedup.Eviction, log *slog.Logger) *Scheduler {
	return &Scheduler{
		searches:  searches,
		source:    deps.Source,
		loader:    deps.Loader,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		eviction:  eviction,
		log:       log,
	}
}

// Report summarises one run.
type Report struct {
	RunID          string
	Searches       int
	FetchErrors    int
	Candidates     int
	New            int
	Version        int64
	Published      bool
	Messages       int
	DeliveryErrors int
}

type searchResult struct {
	search     model.Search
	failed     bool
	links      []string
	candidates []model.Listing
}

// RunOnce performs a single run. Notifications are sent only after the
// state announcing them has been committed. The returned error wraps
// publish.ErrPublishFailed when the commit could not be made.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), Searches: len(s.searches)}
	log := s.log.With("run_id", report.RunID)
	log.Info("run started", "searches", len(s.searches))

	state, err := s.loader.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}

	results := make([]searchResult, 0, len(s.searches))
	for _, search := range s.searches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := s.collect(ctx, log, search)
		if res.failed {
			report.FetchErrors++
		}
		report.Candidates += len(res.candidates)
		results = append(results, res)
	}

	var batches []bot.Batch
	rebase := func(base model.State) (model.State, error) {
		batches = nil
		if base.Snapshots == nil {
			base.Snapshots = make(map[string][]string)
		}
		candidates := make([][]model.Listing, len(results))
		for i, res := range results {
			if !res.failed {
				base.Snapshots[res.search.ID()] = res.links
			}
			candidates[i] = res.candidates
		}
		fresh, reg := dedup.ClassifyEach(candidates, dedup.NewRegistry(base.Seen, s.eviction))
		for i, res := range results {
			if len(fresh[i]) > 0 {
				batches = append(batches, bot.Batch{SearchID: res.search.ID(), Listings: fresh[i]})
			}
		}
		base.Seen = reg.IDs()
		return base, nil
	}

	committed, err := s.publisher.Publish(ctx, state, rebase)
	if err != nil {
		log.Error("publish state, notifications suppressed", "error", err)
		return report, err
	}
	report.Published = true
	report.Version = committed.Version
	for _, b := range batches {
		report.New += len(b.Listings)
	}

	for _, d := range s.notifier.Dispatch(ctx, batches) {
		report.Messages += d.Messages
		if d.Err != nil {
			report.DeliveryErrors++
		}
	}

	log.Info("run finished",
		"version", report.Version,
		"candidates", report.Candidates,
		"new", report.New,
		"fetch_errors", report.FetchErrors,
		"delivery_errors", report.DeliveryErrors,
	)
	return report, nil
}

func (s *Scheduler) collect(ctx context.Context, log *slog.Logger, search model.Search) searchResult {
	res := searchResult{search: search}
	log.Debug("checking search", "search", search.ID(), "url", search.URL)

	listings, err := s.source.Listings(ctx, search)
	if err != nil {
		log.Error("fetch search", "search", search.ID(), "url", search.URL, "error", err)
		res.failed = true
		return res
	}

	res.links = make([]string, 0, len(listings))
	for _, l := range listings {
		res.links = append(res.links, l.Link)
	}
	res.candidates = filter.Apply(listings, search.Filters)
	log.Debug("search checked", "search", search.ID(), "listings", len(listings), "candidates", len(res.candidates))
	return res
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a cron expression or descriptor such as "@every 30m".
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Run executes RunOnce on schedule until ctx is cancelled. A run that is
// still in progress when the next one is due causes that one to be skipped.
func (s *Scheduler) Run(ctx context.Context, schedule string) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}

	logger := cronLogger{s.log}
	c := cron.New(cron.WithParser(parser), cron.WithLogger(logger))
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("run failed", "error", err)
		}
	}))
	c.Schedule(sched, job)

	s.log.Info("scheduler started", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
