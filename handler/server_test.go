package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"ewintr.nl/conceptube/config"
	"ewintr.nl/conceptube/fetch"
	"ewintr.nl/conceptube/handler"
	"ewintr.nl/conceptube/metrics"
	"ewintr.nl/conceptube/model"
	"ewintr.nl/conceptube/process"
	"ewintr.nl/conceptube/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ingesterFunc func(ctx context.Context, req process.IngestRequest) (process.Result, error)

func (f ingesterFunc) Ingest(ctx context.Context, req process.IngestRequest) (process.Result, error) {
	return f(ctx, req)
}

// countingRepo counts the calls that reach the store.
type countingRepo struct {
	*storage.Memory
	searches atomic.Int32
}

func (c *countingRepo) Search(ctx context.Context, query string, limit int) ([]*model.Video, error) {
	c.searches.Add(1)
	return c.Memory.Search(ctx, query, limit)
}

type testServer struct {
	server  *handler.Server
	repo    *countingRepo
	reg     *prometheus.Registry
	health  *handler.HealthAPI
	ingests atomic.Int32
}

func newTestServer(t *testing.T, ingester handler.Ingester) *testServer {
	t.Helper()
	logger := discardLogger()
	ts := &testServer{
		repo: &countingRepo{Memory: storage.NewMemory()},
		reg:  prometheus.NewRegistry(),
	}
	m := metrics.New(ts.reg)
	catalog := process.NewCatalog(ts.repo, nil)
	if ingester == nil {
		ingester = ingesterFunc(func(context.Context, process.IngestRequest) (process.Result, error) {
			ts.ingests.Add(1)
			return process.Result{}, errors.New("not expected")
		})
	}
	ts.health = handler.NewHealthAPI(logger)
	ts.server = handler.NewServer(
		handler.NewVideoAPI(ts.repo, ingester, catalog, logger),
		ts.health,
		metrics.Handler(ts.reg),
		m,
		logger,
	)

	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

// collaborators starts fake YouTube, transcript and mapper services.
func collaborators(t *testing.T) (*fetch.Youtube, *fetch.TranscriptService, *fetch.MapperService) {
	t.Helper()
	yt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"items":[{"id":%q,"snippet":{"title":"T","channelTitle":"Lectures"}}]}`, r.URL.Query().Get("id"))
	}))
	t.Cleanup(yt.Close)
	ytSvc, err := youtube.NewService(context.Background(), option.WithEndpoint(yt.URL+"/"), option.WithAPIKey("test-key"))
	require.NoError(t, err)

	transcript := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"transcript": strings.Repeat("abcdefghij", 50)})
	}))
	t.Cleanup(transcript.Close)

	mapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"concepts":["Chapter 1: X"],"summary":"S","title":"AI-T","timestampedConcepts":[[5,"intro"]]}`))
	}))
	t.Cleanup(mapper.Close)

	return fetch.NewYoutube(ytSvc, 0),
		fetch.NewTranscriptService(transcript.URL, transcript.Client()),
		fetch.NewMapperService(mapper.URL, mapper.Client())
}

func TestEndToEnd(t *testing.T) {
	yt, transcripts, mapper := collaborators(t)
	repo := storage.NewMemory()
	logger := discardLogger()
	m := metrics.New(prometheus.NewRegistry())
	ingester := process.NewIngester(repo, yt, transcripts, mapper, nil, config.IngestConfig{}, m, logger)
	server := handler.NewServer(
		handler.NewVideoAPI(repo, ingester, process.NewCatalog(repo, nil), logger),
		handler.NewHealthAPI(logger),
		http.NotFoundHandler(),
		m,
		logger,
	)
	do := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
		return rec
	}

	rec := do(http.MethodPost, "/api/videos", `{"videoId":"abc12345678"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var created struct {
		ID                  string                     `json:"_id"`
		VideoID             string                     `json:"videoId"`
		Title               string                     `json:"title"`
		Channel             string                     `json:"channel"`
		Thumbnail           string                     `json:"thumbnail"`
		Transcript          string                     `json:"transcript"`
		AIConceptTitle      string                     `json:"aiConceptTitle"`
		AIConceptSummary    string                     `json:"aiConceptSummary"`
		AIMappedConcepts    []string                   `json:"aiMappedConcepts"`
		TimestampedConcepts []model.TimestampedConcept `json:"timestampedConcepts"`
		RelatedVideos       []model.RelatedVideo       `json:"relatedVideos"`
		CreatedAt           string                     `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "abc12345678", created.VideoID)
	assert.Equal(t, "T", created.Title)
	assert.Equal(t, "Lectures", created.Channel)
	assert.Equal(t, model.ThumbnailURL("abc12345678"), created.Thumbnail)
	assert.Len(t, created.Transcript, 500)
	assert.Equal(t, "AI-T", created.AIConceptTitle)
	assert.Equal(t, "S", created.AIConceptSummary)
	assert.Equal(t, []string{"Chapter 1: X"}, created.AIMappedConcepts)
	assert.Equal(t, []model.TimestampedConcept{{Timestamp: 5, Concept: "intro"}}, created.TimestampedConcepts)
	assert.NotNil(t, created.RelatedVideos)
	assert.Empty(t, created.RelatedVideos)
	assert.NotEmpty(t, created.CreatedAt)

	t.Run("again is existing", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/videos", `{"videoId":"abc12345678"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), created.ID)
	})

	t.Run("list", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/videos", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var videos []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &videos))
		require.Len(t, videos, 1)
		assert.Equal(t, created.ID, videos[0]["_id"])
	})

	t.Run("search", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/videos/search?q=chapter", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var videos []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &videos))
		assert.Len(t, videos, 1)

		rec = do(http.MethodGet, "/api/videos/search?q=nothing+like+this", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("get", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/videos/"+created.ID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"aiConceptTitle":"AI-T"`)
	})

	t.Run("concepts", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/videos/"+created.ID+"/concepts?ts=3", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"concepts":[{"timestamp":5,"concept":"intro"}]}`, rec.Body.String())

		rec = do(http.MethodGet, "/api/videos/"+created.ID+"/concepts?ts=11", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"concepts":[]}`, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(http.MethodDelete, "/api/videos/"+created.ID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Video deleted"}`, rec.Body.String())

		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/videos/"+created.ID, "").Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/api/videos/"+created.ID, "").Code)
	})
}

func TestCreate(t *testing.T) {
	for _, tc := range []struct {
		name       string
		body       string
		ingestErr  error
		expStatus  int
		expMessage string
		expIngest  bool
	}{
		{
			name:       "missing video id",
			body:       `{}`,
			expStatus:  http.StatusBadRequest,
			expMessage: "Missing videoId.",
		},
		{
			name:       "blank video id",
			body:       `{"videoId":"  "}`,
			expStatus:  http.StatusBadRequest,
			expMessage: "Missing videoId.",
		},
		{
			name:       "invalid body",
			body:       `{"videoId":`,
			expStatus:  http.StatusBadRequest,
			expMessage: "Invalid request body.",
		},
		{
			name:       "transcript too short",
			body:       `{"videoId":"abc12345678"}`,
			ingestErr:  &process.IngestError{Stage: process.StageFetchingTranscript, Err: fetch.ErrTranscriptTooShort},
			expStatus:  http.StatusBadRequest,
			expMessage: "Transcript too short or unavailable.",
			expIngest:  true,
		},
		{
			name:       "transcript service down",
			body:       `{"videoId":"abc12345678"}`,
			ingestErr:  &process.IngestError{Stage: process.StageFetchingTranscript, Err: fetch.ErrTranscriptUnavailable},
			expStatus:  http.StatusInternalServerError,
			expMessage: "Failed to save video. Check videoId, API keys, and services.",
			expIngest:  true,
		},
		{
			name:       "conflict",
			body:       `{"videoId":"abc12345678"}`,
			ingestErr:  &process.IngestError{Stage: process.StagePersisting, Err: process.ErrPersistConflict},
			expStatus:  http.StatusConflict,
			expMessage: "Video is already being added.",
			expIngest:  true,
		},
		{
			name:       "mapping failed",
			body:       `{"videoId":"abc12345678"}`,
			ingestErr:  &process.IngestError{Stage: process.StageMappingConcepts, Err: fetch.ErrConceptMappingFailed},
			expStatus:  http.StatusInternalServerError,
			expMessage: "Failed to save video. Check videoId, API keys, and services.",
			expIngest:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			ts := newTestServer(t, ingesterFunc(func(_ context.Context, req process.IngestRequest) (process.Result, error) {
				called = true
				assert.True(t, req.IncludeTimestamps)
				return process.Result{}, tc.ingestErr
			}))

			rec := ts.do(t, http.MethodPost, "/api/videos", tc.body)
			assert.Equal(t, tc.expStatus, rec.Code)
			assert.Equal(t, tc.expMessage, errorMessage(t, rec))
			assert.Equal(t, tc.expIngest, called)
		})
	}

	t.Run("include timestamps false", func(t *testing.T) {
		var got process.IngestRequest
		ts := newTestServer(t, ingesterFunc(func(_ context.Context, req process.IngestRequest) (process.Result, error) {
			got = req
			return process.Result{Video: &model.Video{YoutubeID: "abc12345678"}, Created: true}, nil
		}))

		rec := ts.do(t, http.MethodPost, "/api/videos", `{"videoId":"abc12345678","includeTimestamps":false}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, process.IngestRequest{VideoID: "abc12345678", IncludeTimestamps: false}, got)
	})
}

func TestSearchQueryTooShort(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, q := range []string{"", "a", "%20a%20", "%20%20%20"} {
		rec := ts.do(t, http.MethodGet, "/api/videos/search?q="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "Query too short", errorMessage(t, rec))
	}
	assert.Zero(t, ts.repo.searches.Load())

	rec := ts.do(t, http.MethodGet, "/api/videos/search?q=ab", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), ts.repo.searches.Load())
}

func TestSearchKeepsSurroundingWhitespace(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, ts.repo.Insert(ctx, &model.Video{ID: uuid.New(), YoutubeID: "grabbag0001", Title: "Grab bag"}))
	require.NoError(t, ts.repo.Insert(ctx, &model.Video{ID: uuid.New(), YoutubeID: "airbags0001", Title: "Airbags explained"}))

	for _, tc := range []struct {
		q   string
		exp []model.YoutubeVideoID
	}{
		{q: "bag", exp: []model.YoutubeVideoID{"airbags0001", "grabbag0001"}},
		{q: "%20bag", exp: []model.YoutubeVideoID{"grabbag0001"}},
	} {
		rec := ts.do(t, http.MethodGet, "/api/videos/search?q="+tc.q, "")
		require.Equal(t, http.StatusOK, rec.Code, tc.q)
		var videos []*model.Video
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &videos))
		got := []model.YoutubeVideoID{}
		for _, v := range videos {
			got = append(got, v.YoutubeID)
		}
		assert.ElementsMatch(t, tc.exp, got, tc.q)
	}
}

func TestConceptsInvalidTimestamp(t *testing.T) {
	ts := newTestServer(t, nil)
	id := "0b4e7a0e-5b2a-4f5e-9f3e-1c2d3e4f5a6b"

	for _, q := range []string{"", "?ts=", "?ts=abc", "?ts=NaN", "?ts=Inf"} {
		rec := ts.do(t, http.MethodGet, "/api/videos/"+id+"/concepts"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "Invalid timestamp", errorMessage(t, rec))
	}

	rec := ts.do(t, http.MethodGet, "/api/videos/"+id+"/concepts?ts=12.5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, tc := range []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/videos/not-a-uuid"},
		{http.MethodDelete, "/api/videos/not-a-uuid"},
		{http.MethodGet, "/api/videos/0b4e7a0e-5b2a-4f5e-9f3e-1c2d3e4f5a6b"},
		{http.MethodGet, "/api/other"},
		{http.MethodGet, "/videos"},
		{http.MethodPut, "/api/videos"},
		{http.MethodGet, "/nothing/here"},
	} {
		rec := ts.do(t, tc.method, tc.target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.method+" "+tc.target)
	}
}

func TestListEmpty(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/videos", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodOptions, "/api/videos", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.do(t, http.MethodGet, "/api/videos", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTestEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Backend is running!", body.Message)
	assert.NotEmpty(t, body.Timestamp)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	healthy := true
	ts.health.Add("store", func(context.Context) error { return nil })
	ts.health.Add("transcript", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	rec := ts.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"store":"ok","transcript":"ok"}}`, rec.Body.String())

	healthy = false
	rec = ts.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"store":"ok","transcript":"unavailable"}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodGet, "/api/videos", "")

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`http_requests_total{method="GET",route="/api/videos",status="200"} 1`)), rec.Body.String())
}
