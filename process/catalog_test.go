package process_test

import (
	"context"
	"io"
	"testing"
	"time"

	"ewintr.nl/conceptube/event"
	"ewintr.nl/conceptube/model"
	"ewintr.nl/conceptube/process"
	"ewintr.nl/conceptube/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := storage.NewMemory()
	vec := &fakeVecRepo{}
	pub := &fakePublisher{}
	catalog := process.NewCatalog(repo, process.NewNotifier(vec, pub, logger))

	video := &model.Video{
		ID:        uuid.New(),
		YoutubeID: "abc12345678",
		TimestampedConcepts: []model.TimestampedConcept{
			{Timestamp: 10, Concept: "A"},
			{Timestamp: 20, Concept: "B"},
			{Timestamp: 40, Concept: "C"},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Insert(ctx, video))

	t.Run("concepts at", func(t *testing.T) {
		act, err := catalog.ConceptsAt(ctx, video.ID, 15)
		require.NoError(t, err)
		assert.Equal(t, []model.TimestampedConcept{{Timestamp: 10, Concept: "A"}, {Timestamp: 20, Concept: "B"}}, act)

		act, err = catalog.ConceptsAt(ctx, video.ID, 100)
		require.NoError(t, err)
		assert.NotNil(t, act)
		assert.Empty(t, act)

		_, err = catalog.ConceptsAt(ctx, uuid.New(), 15)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, catalog.Delete(ctx, video.ID))
		_, err := repo.FindByID(ctx, video.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Equal(t, []model.YoutubeVideoID{"abc12345678"}, vec.deleted)
		require.Len(t, pub.events, 1)
		assert.Equal(t, event.TypeVideoDeleted, pub.events[0].Type)
		assert.Equal(t, video.ID, pub.events[0].ID)

		assert.ErrorIs(t, catalog.Delete(ctx, video.ID), storage.ErrNotFound)
		assert.Len(t, pub.events, 1)
	})
}
