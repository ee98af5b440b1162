package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"ewintr.nl/conceptube/model"
)

const MinTranscriptLength = 30

type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, ytID model.YoutubeVideoID) (string, error)
}

// TranscriptService asks the transcript microservice for the plain text
// transcript of a video.
type TranscriptService struct {
	baseURL string
	client  *http.Client
}

func NewTranscriptService(baseURL string, client *http.Client) *TranscriptService {
	return &TranscriptService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (t *TranscriptService) FetchTranscript(ctx context.Context, ytID model.YoutubeVideoID) (string, error) {
	u := fmt.Sprintf("%s/transcript/%s", t.baseURL, url.PathEscape(string(ytID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %v", ErrTranscriptUnavailable, ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrTranscriptUnavailable, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("%w: %w", ErrTranscriptUnavailable, &StatusError{
			Service:    "transcript service",
			StatusCode: res.StatusCode,
			Body:       snippet(body),
		})
	}

	var resp struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decoding body: %v", ErrTranscriptUnavailable, err)
	}
	if utf8.RuneCountInString(resp.Transcript) < MinTranscriptLength {
		return "", fmt.Errorf("%w: %d characters", ErrTranscriptTooShort, utf8.RuneCountInString(resp.Transcript))
	}

	return resp.Transcript, nil
}
