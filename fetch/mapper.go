package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxBodySize = 32 << 20

// MapperService calls the concept mapping microservice.
type MapperService struct {
	baseURL string
	client  *http.Client
}

func NewMapperService(baseURL string, client *http.Client) *MapperService {
	return &MapperService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (m *MapperService) MapConcepts(ctx context.Context, transcript string, includeTimestamps bool) (ConceptMap, error) {
	reqBody, err := json.Marshal(struct {
		Transcript        string `json:"transcript"`
		IncludeTimestamps bool   `json:"includeTimestamps"`
	}{
		Transcript:        transcript,
		IncludeTimestamps: includeTimestamps,
	})
	if err != nil {
		return ConceptMap{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/map-concepts", bytes.NewReader(reqBody))
	if err != nil {
		return ConceptMap{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return ConceptMap{}, fmt.Errorf("%w: %w: %v", ErrConceptMappingFailed, ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return ConceptMap{}, fmt.Errorf("%w: reading body: %v", ErrConceptMappingFailed, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return ConceptMap{}, fmt.Errorf("%w: %w", ErrConceptMappingFailed, &StatusError{
			Service:    "concept mapper",
			StatusCode: res.StatusCode,
			Body:       snippet(body),
		})
	}

	return decodeConceptMap(body)
}

// snippet shortens an upstream body for logging.
func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
