package pipeline

import (
	"context"
	"errors"
	"fmt"

	"fluxrelay/format"
	"fluxrelay/models"
	"fluxrelay/summarizer"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	ModeDirect = "direct"
	ModeDigest = "digest"

	DefaultEmptyNotice = "No hay nuevas noticias"
)

// Direct sends one self-contained message per entry. Each entry is
// acknowledged on its own, so one failure never holds back the others.
type Direct struct{}

func (Direct) Name() string {
	return ModeDirect
}

func (Direct) Process(ctx context.Context, c *Cycle, entries []models.Entry) error {
	var errs []error
	for _, entry := range entries {
		entryLog := c.Log.WithFields(log.Fields{
			"entry_id": entry.ID,
			"title":    entry.Title,
		})

		content, err := c.Source().FetchContent(ctx, entry.ID)
		if err != nil {
			entryLog.WithError(err).Warn("Could not fetch full content, using entry content")
			content = ""
		}

		err = c.Deliver(ctx, func(m format.Markup) string {
			return format.Entry(m, entry, content)
		})
		if err != nil {
			entryLog.WithError(err).Error("Could not deliver entry, it stays unread")
			errs = append(errs, fmt.Errorf("entry %d: %w", entry.ID, err))
			continue
		}

		if err := c.Acknowledge(ctx, []uint64{entry.ID}); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", entry.ID, err))
			continue
		}
		entryLog.Debug("Entry delivered")
	}
	return errors.Join(errs...)
}

// Digest summarizes all fetched entries into one message. The entries are
// acknowledged together once that message was delivered.
type Digest struct {
	Summarizer Summarizer
	// EmptyNotice is sent when there is nothing unread or the model found
	// nothing worth a digest
	EmptyNotice string
}

func (Digest) Name() string {
	return ModeDigest
}

func (d Digest) Process(ctx context.Context, c *Cycle, entries []models.Entry) error {
	if len(entries) == 0 {
		return d.deliverNotice(ctx, c)
	}

	batch := lo.Map(entries, func(e models.Entry, _ int) models.SummaryInput {
		return e.ToSummaryInput()
	})

	text, err := d.Summarizer.Summarize(ctx, batch)
	summarizerRequests.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("summarize %d entries: %w", len(entries), err)
	}

	ids := lo.Map(entries, func(e models.Entry, _ int) uint64 {
		return e.ID
	})

	items, err := summarizer.ParseDigest(text)
	if errors.Is(err, summarizer.ErrEmptyDigest) {
		// the model read the batch and found nothing worth sending
		c.Log.WithFields(log.Fields{
			"entries": len(entries),
		}).Info("Digest has no news, sending the empty notice")
		if err := d.deliverNotice(ctx, c); err != nil {
			return err
		}
		return c.Acknowledge(ctx, ids)
	}
	if err != nil {
		c.Log.WithFields(log.Fields{
			"answer": text,
		}).Debug("Unusable digest")
		return fmt.Errorf("parse digest: %w", err)
	}

	if err := c.Deliver(ctx, func(m format.Markup) string {
		return format.Digest(m, items)
	}); err != nil {
		return fmt.Errorf("deliver digest: %w", err)
	}

	return c.Acknowledge(ctx, ids)
}

func (d Digest) deliverNotice(ctx context.Context, c *Cycle) error {
	notice := d.EmptyNotice
	if notice == "" {
		notice = DefaultEmptyNotice
	}
	if err := c.Deliver(ctx, func(m format.Markup) string {
		return format.Notice(m, notice)
	}); err != nil {
		return fmt.Errorf("deliver empty notice: %w", err)
	}
	return nil
}
