package storage

import (
	"context"
	"errors"

	"ewintr.nl/conceptube/model"
	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("video not found")
	ErrDuplicateKey = errors.New("video already exists")
)

const MaxSearchResults = 15

type VideoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Video, error)
	FindByYoutubeID(ctx context.Context, ytID model.YoutubeVideoID) (*model.Video, error)
	Insert(ctx context.Context, video *model.Video) error
	List(ctx context.Context) ([]*model.Video, error)
	Search(ctx context.Context, query string, limit int) ([]*model.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

type VideoVecRepository interface {
	Save(ctx context.Context, video *model.Video) error
	Delete(ctx context.Context, video *model.Video) error
}
