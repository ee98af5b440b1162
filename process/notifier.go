package process

import (
	"context"
	"time"

	"ewintr.nl/conceptube/event"
	"ewintr.nl/conceptube/model"
	"ewintr.nl/conceptube/storage"
	"golang.org/x/exp/slog"
)

const notifyTimeout = 10 * time.Second

// Notifier passes catalog changes on to the vector index and the event
// stream. Both are optional and failures are only logged, the catalog record
// is the source of truth.
type Notifier struct {
	vecRepo   storage.VideoVecRepository
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotifier(vecRepo storage.VideoVecRepository, publisher event.Publisher, logger *slog.Logger) *Notifier {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Notifier{
		vecRepo:   vecRepo,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "notifier")),
		now:       time.Now,
	}
}

func (n *Notifier) Ingested(ctx context.Context, video *model.Video) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if n.vecRepo != nil {
		if err := n.vecRepo.Save(ctx, video); err != nil {
			n.logger.Error("failed to save video in vector index", slog.String("video", string(video.YoutubeID)), slog.String("error", err.Error()))
		}
	}
	n.publish(ctx, event.TypeVideoIngested, video)
}

func (n *Notifier) Deleted(ctx context.Context, video *model.Video) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if n.vecRepo != nil {
		if err := n.vecRepo.Delete(ctx, video); err != nil {
			n.logger.Error("failed to delete video from vector index", slog.String("video", string(video.YoutubeID)), slog.String("error", err.Error()))
		}
	}
	n.publish(ctx, event.TypeVideoDeleted, video)
}

func (n *Notifier) publish(ctx context.Context, eventType string, video *model.Video) {
	if err := n.publisher.Publish(ctx, event.New(eventType, video, n.now())); err != nil {
		n.logger.Error("failed to publish event", slog.String("type", eventType), slog.String("video", string(video.YoutubeID)), slog.String("error", err.Error()))
	}
}
