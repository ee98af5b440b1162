// Package feed submits new videos from subscribed YouTube channels, read
// through Miniflux, to the ingester.
package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ewintr.nl/conceptube/fetch"
	"ewintr.nl/conceptube/metrics"
	"ewintr.nl/conceptube/model"
	"ewintr.nl/conceptube/process"
	"golang.org/x/exp/slog"
)

const (
	resultIngested = "ingested"
	resultExisting = "existing"
	resultSkipped  = "skipped"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

type Ingester interface {
	Ingest(ctx context.Context, req process.IngestRequest) (process.Result, error)
}

type Poller struct {
	reader   fetch.FeedReader
	ingester Ingester
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewPoller(reader fetch.FeedReader, ingester Ingester, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Poller {
	return &Poller{
		reader:   reader,
		ingester: ingester,
		interval: interval,
		metrics:  m,
		logger:   logger.With(slog.String("component", "feed-poller")),
	}
}

// Run polls every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("started feed poller", slog.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopped feed poller")
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				p.logger.Error("failed to poll feeds", slog.String("error", err.Error()))
			}
		}
	}
}

// Poll ingests the unread entries. An entry is marked read when it is done
// with: ingested, already there, not a video or rejected for good. Entries
// that failed on an unavailable collaborator stay unread for the next poll.
func (p *Poller) Poll(ctx context.Context) error {
	entries, err := p.reader.Unread()
	if err != nil {
		return err
	}
	p.logger.Info("fetched unread entries", slog.Int("count", len(entries)))

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result := p.handle(ctx, entry)
		p.count(result)
		if result == resultFailed {
			continue
		}
		if err := p.reader.MarkRead(entry.EntryID); err != nil {
			p.logger.Error("failed to mark entry as read", slog.Int64("entry", entry.EntryID), slog.String("error", err.Error()))
		}
	}

	return nil
}

func (p *Poller) handle(ctx context.Context, entry fetch.FeedEntry) string {
	logger := p.logger.With(slog.Int64("entry", entry.EntryID), slog.String("url", entry.URL))

	ytID, err := model.ParseYoutubeID(entry.URL)
	if err != nil {
		logger.Info("entry is not a youtube video")
		return resultSkipped
	}

	res, err := p.ingester.Ingest(ctx, process.IngestRequest{
		VideoID:           string(ytID),
		IncludeTimestamps: true,
	})
	switch {
	case err == nil && res.Created:
		return resultIngested
	case err == nil:
		return resultExisting
	case permanent(err):
		logger.Warn("entry rejected", slog.String("error", err.Error()))
		return resultRejected
	default:
		logger.Error("failed to ingest entry", slog.String("error", err.Error()))
		return resultFailed
	}
}

func permanent(err error) bool {
	if errors.Is(err, fetch.ErrUpstreamUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *fetch.StatusError
	if errors.As(err, &se) && (se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests) {
		return false
	}
	return errors.Is(err, fetch.ErrMetadataNotFound) ||
		errors.Is(err, fetch.ErrTranscriptUnavailable) ||
		errors.Is(err, fetch.ErrInvalidVideoID) ||
		errors.Is(err, process.ErrValidation)
}

func (p *Poller) count(result string) {
	if p.metrics != nil {
		p.metrics.FeedEntriesTotal.WithLabelValues(result).Inc()
	}
}
