package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"ewintr.nl/conceptube/fetch"
	"ewintr.nl/conceptube/model"
	"ewintr.nl/conceptube/process"
	"ewintr.nl/conceptube/storage"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const (
	maxRequestBody = 1 << 20
	minQueryLength = 2
)

type Ingester interface {
	Ingest(ctx context.Context, req process.IngestRequest) (process.Result, error)
}

type Catalog interface {
	Delete(ctx context.Context, id uuid.UUID) error
	ConceptsAt(ctx context.Context, id uuid.UUID, ts float64) ([]model.TimestampedConcept, error)
}

type VideoAPI struct {
	videoRepo storage.VideoRepository
	ingester  Ingester
	catalog   Catalog
	logger    *slog.Logger
}

func NewVideoAPI(videoRepo storage.VideoRepository, ingester Ingester, catalog Catalog, logger *slog.Logger) *VideoAPI {
	return &VideoAPI{
		videoRepo: videoRepo,
		ingester:  ingester,
		catalog:   catalog,
		logger:    logger.With(slog.String("component", "video-api")),
	}
}

func (v *VideoAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	head, tail := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && head == "":
		v.List(w, r)
	case r.Method == http.MethodPost && head == "":
		v.Create(w, r)
	case r.Method == http.MethodGet && head == "search" && tail == "/":
		v.Search(w, r)
	case r.Method == http.MethodGet && tail == "/":
		v.Get(w, r, head)
	case r.Method == http.MethodDelete && head != "" && tail == "/":
		v.Delete(w, r, head)
	case r.Method == http.MethodGet && tail == "/concepts":
		v.Concepts(w, r, head)
	default:
		Error(w, http.StatusNotFound, "Not found")
	}
}

func (v *VideoAPI) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VideoID           string `json:"videoId"`
		IncludeTimestamps *bool  `json:"includeTimestamps"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		v.logger.Warn("could not decode request body", slog.String("error", err.Error()))
		Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(body.VideoID) == "" {
		Error(w, http.StatusBadRequest, "Missing videoId.")
		return
	}
	includeTimestamps := true
	if body.IncludeTimestamps != nil {
		includeTimestamps = *body.IncludeTimestamps
	}

	res, err := v.ingester.Ingest(r.Context(), process.IngestRequest{
		VideoID:           body.VideoID,
		IncludeTimestamps: includeTimestamps,
	})
	if err != nil {
		status, message := ingestStatus(err)
		v.logger.Error("could not ingest video",
			slog.String("video", body.VideoID),
			slog.String("stage", string(process.StageOf(err))),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		Error(w, status, message)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	JSON(w, status, res.Video)
}

// ingestStatus maps an ingest failure to a status and the message the
// client sees.
func ingestStatus(err error) (int, string) {
	switch {
	case errors.Is(err, process.ErrValidation):
		return http.StatusBadRequest, "Missing videoId."
	case errors.Is(err, fetch.ErrTranscriptTooShort):
		return http.StatusBadRequest, "Transcript too short or unavailable."
	case errors.Is(err, process.ErrPersistConflict):
		return http.StatusConflict, "Video is already being added."
	default:
		return http.StatusInternalServerError, "Failed to save video. Check videoId, API keys, and services."
	}
}

func (v *VideoAPI) List(w http.ResponseWriter, r *http.Request) {
	videos, err := v.videoRepo.List(r.Context())
	if err != nil {
		v.returnErr(w, http.StatusInternalServerError, "Failed to fetch videos", err)
		return
	}

	JSON(w, http.StatusOK, nonNil(videos))
}

func (v *VideoAPI) Search(w http.ResponseWriter, r *http.Request) {
	// only the length check ignores surrounding whitespace
	query := r.URL.Query().Get("q")
	if utf8.RuneCountInString(strings.TrimSpace(query)) < minQueryLength {
		Error(w, http.StatusBadRequest, "Query too short")
		return
	}

	videos, err := v.videoRepo.Search(r.Context(), query, storage.MaxSearchResults)
	if err != nil {
		v.returnErr(w, http.StatusInternalServerError, "Search failed", err)
		return
	}

	JSON(w, http.StatusOK, nonNil(videos))
}

func (v *VideoAPI) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		Error(w, http.StatusNotFound, "Video not found")
		return
	}

	video, err := v.videoRepo.FindByID(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		Error(w, http.StatusNotFound, "Video not found")
	case err != nil:
		v.returnErr(w, http.StatusInternalServerError, "Fetch failed", err)
	default:
		JSON(w, http.StatusOK, video)
	}
}

func (v *VideoAPI) Delete(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		Error(w, http.StatusNotFound, "Video not found")
		return
	}

	err = v.catalog.Delete(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		Error(w, http.StatusNotFound, "Video not found")
	case err != nil:
		v.returnErr(w, http.StatusInternalServerError, "Delete failed", err)
	default:
		Message(w, http.StatusOK, "Video deleted")
	}
}

func (v *VideoAPI) Concepts(w http.ResponseWriter, r *http.Request, rawID string) {
	ts, ok := parseTimestamp(r.URL.Query())
	if !ok {
		Error(w, http.StatusBadRequest, "Invalid timestamp")
		return
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		Error(w, http.StatusNotFound, "Video not found")
		return
	}

	concepts, err := v.catalog.ConceptsAt(r.Context(), id, ts)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		Error(w, http.StatusNotFound, "Video not found")
	case err != nil:
		v.returnErr(w, http.StatusInternalServerError, "Concept lookup failed", err)
	default:
		JSON(w, http.StatusOK, struct {
			Concepts []model.TimestampedConcept `json:"concepts"`
		}{
			Concepts: concepts,
		})
	}
}

// parseTimestamp reads the ts parameter as seconds. Missing, empty and
// non-finite values are invalid.
func parseTimestamp(q map[string][]string) (float64, bool) {
	vals, ok := q["ts"]
	if !ok || len(vals) == 0 {
		return 0, false
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return 0, false
	}

	return ts, true
}

func nonNil(videos []*model.Video) []*model.Video {
	if videos == nil {
		return []*model.Video{}
	}
	return videos
}

func (v *VideoAPI) returnErr(w http.ResponseWriter, status int, message string, err error) {
	v.logger.Error(message, slog.String("error", err.Error()))
	Error(w, status, message)
}
