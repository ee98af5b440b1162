package model

import "math"

const ConceptWindow = 5.0

type TimestampedConcept struct {
	Timestamp float64 `json:"timestamp"`
	Concept   string  `json:"concept"`
}

type RelatedVideo struct {
	YoutubeID  YoutubeVideoID `json:"videoId"`
	Title      string         `json:"title"`
	Thumbnail  string         `json:"thumbnail"`
	Similarity float64        `json:"similarity"`
}

// ConceptsNear returns the concepts whose timestamp lies within window
// seconds of ts, bounds included, in stored order.
func ConceptsNear(concepts []TimestampedConcept, ts, window float64) []TimestampedConcept {
	near := []TimestampedConcept{}
	for _, c := range concepts {
		if math.Abs(c.Timestamp-ts) <= window {
			near = append(near, c)
		}
	}
	return near
}
