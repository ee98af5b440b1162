package fetch

import (
	"context"

	"ewintr.nl/conceptube/model"
)

type Metadata struct {
	Title     string
	Channel   string
	Thumbnail string
}

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, ytID model.YoutubeVideoID) (Metadata, error)
}
