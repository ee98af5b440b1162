package process

import (
	"context"

	"ewintr.nl/conceptube/model"
	"ewintr.nl/conceptube/storage"
	"github.com/google/uuid"
)

// Catalog holds the catalog operations that have side effects beyond the
// store.
type Catalog struct {
	videoRepo storage.VideoRepository
	notifier  *Notifier
}

func NewCatalog(videoRepo storage.VideoRepository, notifier *Notifier) *Catalog {
	return &Catalog{
		videoRepo: videoRepo,
		notifier:  notifier,
	}
}

// Delete removes the video for good. storage.ErrNotFound when it is not
// there.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	video, err := c.videoRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.videoRepo.Delete(ctx, id); err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.Deleted(ctx, video)
	}

	return nil
}

// ConceptsAt returns the timestamped concepts of the video within
// model.ConceptWindow seconds of ts.
func (c *Catalog) ConceptsAt(ctx context.Context, id uuid.UUID, ts float64) ([]model.TimestampedConcept, error) {
	video, err := c.videoRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return model.ConceptsNear(video.TimestampedConcepts, ts, model.ConceptWindow), nil
}
