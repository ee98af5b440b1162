package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type YoutubeVideoID string

type Video struct {
	ID                  uuid.UUID            `json:"_id"`
	YoutubeID           YoutubeVideoID       `json:"videoId"`
	Title               string               `json:"title"`
	Channel             string               `json:"channel"`
	Thumbnail           string               `json:"thumbnail"`
	Transcript          string               `json:"transcript"`
	ConceptTitle        string               `json:"aiConceptTitle"`
	ConceptSummary      string               `json:"aiConceptSummary"`
	MappedConcepts      []string             `json:"aiMappedConcepts"`
	TimestampedConcepts []TimestampedConcept `json:"timestampedConcepts"`
	RelatedVideos       []RelatedVideo       `json:"relatedVideos"`
	CreatedAt           time.Time            `json:"createdAt"`
}

// MarshalJSON writes nil slices as empty arrays, clients index into them
// without checking.
func (v Video) MarshalJSON() ([]byte, error) {
	type plain Video
	p := plain(v)
	if p.MappedConcepts == nil {
		p.MappedConcepts = []string{}
	}
	if p.TimestampedConcepts == nil {
		p.TimestampedConcepts = []TimestampedConcept{}
	}
	if p.RelatedVideos == nil {
		p.RelatedVideos = []RelatedVideo{}
	}
	return json.Marshal(p)
}

// Clone returns a deep copy, so stores can hand out records without sharing
// slices with their own state.
func (v *Video) Clone() *Video {
	c := *v
	c.MappedConcepts = append([]string(nil), v.MappedConcepts...)
	c.TimestampedConcepts = append([]TimestampedConcept(nil), v.TimestampedConcepts...)
	c.RelatedVideos = append([]RelatedVideo(nil), v.RelatedVideos...)
	return &c
}

func ThumbnailURL(id YoutubeVideoID) string {
	return "https://img.youtube.com/vi/" + string(id) + "/0.jpg"
}
