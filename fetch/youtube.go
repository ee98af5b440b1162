package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ewintr.nl/conceptube/model"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

type Youtube struct {
	Client  *youtube.Service
	limiter *rate.Limiter
}

// NewYoutube wraps client. A requestsPerSecond of zero or less leaves the
// calls unpaced.
func NewYoutube(client *youtube.Service, requestsPerSecond float64) *Youtube {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &Youtube{
		Client:  client,
		limiter: limiter,
	}
}

func (y *Youtube) FetchMetadata(ctx context.Context, ytID model.YoutubeVideoID) (Metadata, error) {
	if strings.TrimSpace(string(ytID)) == "" {
		return Metadata{}, ErrInvalidVideoID
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return Metadata{}, err
	}

	call := y.Client.Videos.
		List([]string{"snippet"}).
		Id(string(ytID)).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 404 {
			return Metadata{}, fmt.Errorf("%w: %s", ErrMetadataNotFound, ytID)
		}
		return Metadata{}, fmt.Errorf("%w: youtube: %v", ErrUpstreamUnavailable, err)
	}
	if len(response.Items) == 0 || response.Items[0].Snippet == nil {
		return Metadata{}, fmt.Errorf("%w: %s", ErrMetadataNotFound, ytID)
	}

	snippet := response.Items[0].Snippet
	md := Metadata{
		Title:     snippet.Title,
		Channel:   snippet.ChannelTitle,
		Thumbnail: model.ThumbnailURL(ytID),
	}
	if snippet.Thumbnails != nil && snippet.Thumbnails.High != nil && snippet.Thumbnails.High.Url != "" {
		md.Thumbnail = snippet.Thumbnails.High.Url
	}

	return md, nil
}
