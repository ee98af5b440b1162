package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ewintr.nl/conceptube/config"
	"ewintr.nl/conceptube/fetch"
	"ewintr.nl/conceptube/metrics"
	"ewintr.nl/conceptube/model"
	"ewintr.nl/conceptube/storage"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/singleflight"
)

type IngestRequest struct {
	VideoID           string
	IncludeTimestamps bool
}

type Result struct {
	Video   *model.Video
	Created bool
}

// Ingester turns a YouTube id into a catalog record: check the catalog, look
// up the metadata, fetch the transcript, map the concepts and persist. Each
// stage must succeed before the next one starts. A failed stage aborts the
// ingest with an *IngestError and nothing is written.
type Ingester struct {
	videoRepo   storage.VideoRepository
	metadata    fetch.MetadataFetcher
	transcripts fetch.TranscriptFetcher
	mapper      fetch.ConceptMapper
	notifier    *Notifier
	timeouts    config.IngestConfig
	metrics     *metrics.Metrics
	group       singleflight.Group
	logger      *slog.Logger
	now         func() time.Time
}

func NewIngester(videoRepo storage.VideoRepository, metadata fetch.MetadataFetcher, transcripts fetch.TranscriptFetcher, mapper fetch.ConceptMapper, notifier *Notifier, timeouts config.IngestConfig, m *metrics.Metrics, logger *slog.Logger) *Ingester {
	return &Ingester{
		videoRepo:   videoRepo,
		metadata:    metadata,
		transcripts: transcripts,
		mapper:      mapper,
		notifier:    notifier,
		timeouts:    timeouts,
		metrics:     m,
		logger:      logger.With(slog.String("component", "ingester")),
		now:         time.Now,
	}
}

// Ingest runs the chain for req. Concurrent calls for the same id share one
// run. Only the caller that ran it sees Created, the others get the record
// as existing.
func (i *Ingester) Ingest(ctx context.Context, req IngestRequest) (Result, error) {
	raw := strings.TrimSpace(req.VideoID)
	if raw == "" {
		return Result{}, i.abort(StageIdle, "", ErrValidation)
	}
	ytID := model.YoutubeVideoID(raw)
	if parsed, err := model.ParseYoutubeID(raw); err == nil {
		ytID = parsed
	}

	leader := false
	val, err, _ := i.group.Do(string(ytID), func() (any, error) {
		leader = true
		return i.run(ctx, ytID, req.IncludeTimestamps)
	})
	if err != nil {
		return Result{}, err
	}
	res := val.(Result)
	if !leader {
		res = Result{Video: res.Video.Clone(), Created: false}
	}

	return res, nil
}

func (i *Ingester) run(ctx context.Context, ytID model.YoutubeVideoID, includeTimestamps bool) (Result, error) {
	logger := i.logger.With(slog.String("video", string(ytID)))

	var existing *model.Video
	err := i.stage(ctx, StageCheckExisting, i.timeouts.PersistTimeout, func(ctx context.Context) error {
		v, err := i.videoRepo.FindByYoutubeID(ctx, ytID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		existing = v
		return nil
	})
	if err != nil {
		return Result{}, i.abort(StageCheckExisting, ytID, err)
	}
	if existing != nil {
		logger.Info("video already in catalog", slog.String("id", existing.ID.String()))
		i.count(StageDone, metrics.OutcomeExisting)
		return Result{Video: existing}, nil
	}

	var md fetch.Metadata
	err = i.stage(ctx, StageResolvingMetadata, i.timeouts.MetadataTimeout, func(ctx context.Context) error {
		var err error
		md, err = i.metadata.FetchMetadata(ctx, ytID)
		return err
	})
	if err != nil {
		return Result{}, i.abort(StageResolvingMetadata, ytID, err)
	}

	var transcript string
	err = i.stage(ctx, StageFetchingTranscript, i.timeouts.TranscriptTimeout, func(ctx context.Context) error {
		var err error
		transcript, err = i.transcripts.FetchTranscript(ctx, ytID)
		return err
	})
	if err != nil {
		return Result{}, i.abort(StageFetchingTranscript, ytID, err)
	}

	var cm fetch.ConceptMap
	err = i.stage(ctx, StageMappingConcepts, i.timeouts.MappingTimeout, func(ctx context.Context) error {
		var err error
		cm, err = i.mapper.MapConcepts(ctx, transcript, includeTimestamps)
		return err
	})
	if err != nil {
		return Result{}, i.abort(StageMappingConcepts, ytID, err)
	}

	video := &model.Video{
		ID:                  uuid.New(),
		YoutubeID:           ytID,
		Title:               md.Title,
		Channel:             md.Channel,
		Thumbnail:           md.Thumbnail,
		Transcript:          transcript,
		ConceptTitle:        cm.Title,
		ConceptSummary:      cm.Summary,
		MappedConcepts:      cm.Concepts,
		TimestampedConcepts: cm.TimestampedConcepts,
		CreatedAt:           i.now().UTC().Truncate(time.Millisecond),
	}

	err = i.stage(ctx, StagePersisting, i.timeouts.PersistTimeout, func(ctx context.Context) error {
		err := i.videoRepo.Insert(ctx, video)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			return fmt.Errorf("%w: %w", ErrPersistConflict, err)
		case err != nil:
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return Result{}, i.abort(StagePersisting, ytID, err)
	}

	logger.Info("video ingested", slog.String("id", video.ID.String()), slog.Int("concepts", len(video.MappedConcepts)))
	i.count(StageDone, metrics.OutcomeOK)
	if i.notifier != nil {
		i.notifier.Ingested(ctx, video)
	}

	return Result{Video: video, Created: true}, nil
}

// stage runs fn under the stage timeout, if any, and records its duration.
func (i *Ingester) stage(ctx context.Context, stage Stage, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	if i.metrics != nil {
		i.metrics.IngestStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}

	return err
}

func (i *Ingester) abort(stage Stage, ytID model.YoutubeVideoID, err error) error {
	i.logger.Warn("ingest aborted", slog.String("video", string(ytID)), slog.String("stage", string(stage)), slog.String("error", err.Error()))
	i.count(stage, metrics.OutcomeFailed)

	return &IngestError{Stage: stage, Err: err}
}

func (i *Ingester) count(stage Stage, outcome string) {
	if i.metrics != nil {
		i.metrics.IngestTotal.WithLabelValues(string(stage), outcome).Inc()
	}
}
