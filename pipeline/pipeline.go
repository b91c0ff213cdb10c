// Package pipeline moves unread entries from the feed source to the chat
// destinations. An entry is marked as read only after every destination
// accepted the message that carries it, so a failure anywhere leaves it
// unread for the next cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fluxrelay/format"
	"fluxrelay/models"
	"fluxrelay/sink"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const DefaultInterval = 1800 * time.Second

var ErrNoSinks = errors.New("no chat destinations configured")

// Source is the feed reader holding the unread entries
type Source interface {
	RefreshFeeds(ctx context.Context) error
	ListUnread(ctx context.Context, limit int) ([]models.Entry, error)
	FetchContent(ctx context.Context, entryID uint64) (string, error)
	MarkRead(ctx context.Context, entryIDs []uint64) error
}

// Summarizer turns a batch of entries into the raw text of a digest
type Summarizer interface {
	Summarize(ctx context.Context, batch []models.SummaryInput) (string, error)
}

// Strategy decides how the fetched entries become messages
type Strategy interface {
	Name() string
	Process(ctx context.Context, c *Cycle, entries []models.Entry) error
}

type Pipeline struct {
	source   Source
	sinks    sink.Fanout
	strategy Strategy
	log      log.FieldLogger
	interval time.Duration
	limit    int
	observer func(Report)

	mu    sync.Mutex
	stats Stats
}

type Option func(*Pipeline)

func WithLogger(l log.FieldLogger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithInterval sets the pause between the end of a cycle and the start of
// the next one
func WithInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		p.interval = d
	}
}

// WithLimit caps the number of entries fetched per cycle. Zero means no cap.
func WithLimit(n int) Option {
	return func(p *Pipeline) {
		p.limit = n
	}
}

// WithObserver registers a function called with every finished report
func WithObserver(fn func(Report)) Option {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

func New(source Source, sinks []sink.Sink, strategy Strategy, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		sinks:    sink.Fanout(sinks),
		strategy: strategy,
		log:      log.StandardLogger(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stats.Mode = strategy.Name()
	return p
}

// Run executes cycles until ctx is cancelled. Cycles never overlap and a
// failed cycle never stops the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.WithFields(log.Fields{
		"mode":     p.strategy.Name(),
		"interval": p.interval,
		"sinks":    len(p.sinks),
	}).Info("Starting delivery loop")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Delivery loop stopped")
			return nil
		case <-timer.C:
		}

		p.RunCycle(ctx)

		p.log.WithFields(log.Fields{
			"next": time.Now().Add(p.interval).Format(time.RFC3339),
		}).Debug("Sleeping until next cycle")
		timer.Reset(p.interval)
	}
}

// RunCycle executes one refresh, fetch, deliver and acknowledge cycle
func (p *Pipeline) RunCycle(ctx context.Context) Report {
	report := Report{
		ID:        uuid.New().String(),
		Mode:      p.strategy.Name(),
		StartedAt: time.Now(),
	}
	c := &Cycle{
		Log:    p.log.WithField("cycle", report.ID),
		source: p.source,
		sinks:  p.sinks,
		report: &report,
	}

	report.Err = p.cycle(ctx, c)
	report.Duration = time.Since(report.StartedAt)
	if report.Err != nil {
		report.Error = report.Err.Error()
	}

	entry := c.Log.WithFields(log.Fields{
		"fetched":      report.Fetched,
		"delivered":    report.Delivered,
		"failed":       report.Failed,
		"acknowledged": report.Acknowledged,
		"duration":     report.Duration,
	})
	if report.Err != nil {
		entry.WithError(report.Err).Error("Cycle failed")
	} else {
		entry.Info("Cycle finished")
	}

	cyclesTotal.WithLabelValues(report.Result()).Inc()
	cycleDuration.Observe(report.Duration.Seconds())

	p.mu.Lock()
	p.stats.add(report)
	p.mu.Unlock()

	if p.observer != nil {
		p.observer(report)
	}

	return report
}

func (p *Pipeline) cycle(ctx context.Context, c *Cycle) error {
	if err := p.source.RefreshFeeds(ctx); err != nil {
		c.Log.WithError(err).Warn("Could not refresh feeds, continuing with current entries")
	}

	entries, err := p.source.ListUnread(ctx, p.limit)
	if err != nil {
		return fmt.Errorf("list unread entries: %w", err)
	}
	c.report.Fetched = len(entries)
	entriesFetched.Add(float64(len(entries)))

	c.Log.WithFields(log.Fields{
		"entries": len(entries),
	}).Debug("Fetched unread entries")

	return p.strategy.Process(ctx, c, entries)
}

// Stats returns a snapshot of the running totals
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

// Cycle is the state a strategy works with during one cycle
type Cycle struct {
	Log    log.FieldLogger
	source Source
	sinks  sink.Fanout
	report *Report
}

// Source is the feed reader of this cycle
func (c *Cycle) Source() Source {
	return c.source
}

// Deliver sends one message to every sink and records the outcome. It
// returns nil only when every sink accepted the message.
func (c *Cycle) Deliver(ctx context.Context, render func(format.Markup) string) error {
	if len(c.sinks) == 0 {
		c.report.Failed++
		return ErrNoSinks
	}
	results, err := c.sinks.Deliver(ctx, render)
	for _, r := range results {
		deliveriesTotal.WithLabelValues(r.Sink, resultLabel(r.Err)).Inc()
		if r.Err != nil {
			c.Log.WithFields(log.Fields{
				"sink": r.Sink,
			}).WithError(r.Err).Warn("Delivery failed")
		}
	}
	if err != nil {
		c.report.Failed++
		return err
	}
	c.report.Delivered++
	return nil
}

// Acknowledge marks the entries as read
func (c *Cycle) Acknowledge(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.source.MarkRead(ctx, ids); err != nil {
		c.Log.WithFields(log.Fields{
			"entry_ids": ids,
		}).WithError(err).Error("Could not mark entries as read, they will be delivered again")
		return fmt.Errorf("mark entries read: %w", err)
	}
	c.report.Acknowledged += len(ids)
	entriesAcknowledged.Add(float64(len(ids)))
	return nil
}
