package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"ewintr.nl/conceptube/model"
)

type ConceptMap struct {
	Title               string
	Summary             string
	Concepts            []string
	TimestampedConcepts []model.TimestampedConcept
}

type ConceptMapper interface {
	MapConcepts(ctx context.Context, transcript string, includeTimestamps bool) (ConceptMap, error)
}

// wireConcept accepts both [offset, "label"] pairs and
// {"timestamp": offset, "concept": "label"} objects.
type wireConcept model.TimestampedConcept

func (w *wireConcept) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("timestamped concept needs 2 elements, got %d", len(pair))
		}
		if err := json.Unmarshal(pair[0], &w.Timestamp); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		if err := json.Unmarshal(pair[1], &w.Concept); err != nil {
			return fmt.Errorf("concept: %w", err)
		}
		return nil
	}

	var obj model.TimestampedConcept
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*w = wireConcept(obj)

	return nil
}

// decodeConceptMap parses a concept map answer. Concepts and summary are
// required, title and timestamped concepts are not.
func decodeConceptMap(data []byte) (ConceptMap, error) {
	var resp struct {
		Title               string        `json:"title"`
		Summary             *string       `json:"summary"`
		Concepts            []string      `json:"concepts"`
		TimestampedConcepts []wireConcept `json:"timestampedConcepts"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return ConceptMap{}, fmt.Errorf("%w: decoding: %v", ErrConceptMappingFailed, err)
	}
	if resp.Concepts == nil {
		return ConceptMap{}, fmt.Errorf("%w: missing concepts", ErrConceptMappingFailed)
	}
	if resp.Summary == nil {
		return ConceptMap{}, fmt.Errorf("%w: missing summary", ErrConceptMappingFailed)
	}

	cm := ConceptMap{
		Title:    resp.Title,
		Summary:  *resp.Summary,
		Concepts: resp.Concepts,
	}
	for _, c := range resp.TimestampedConcepts {
		if c.Timestamp < 0 {
			return ConceptMap{}, fmt.Errorf("%w: negative timestamp %v", ErrConceptMappingFailed, c.Timestamp)
		}
		cm.TimestampedConcepts = append(cm.TimestampedConcepts, model.TimestampedConcept(c))
	}

	return cm, nil
}
