package process

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageIdle               Stage = "idle"
	StageCheckExisting      Stage = "check_existing"
	StageResolvingMetadata  Stage = "resolving_metadata"
	StageFetchingTranscript Stage = "fetching_transcript"
	StageMappingConcepts    Stage = "mapping_concepts"
	StagePersisting         Stage = "persisting"
	StageDone               Stage = "done"
)

var (
	ErrValidation      = errors.New("invalid ingest request")
	ErrPersistConflict = errors.New("video was persisted concurrently")
	ErrPersistence     = errors.New("catalog store failure")
)

// IngestError tells at which stage an ingest was aborted. The stage is for
// logs and metrics only.
type IngestError struct {
	Stage Stage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest aborted at %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage at which err aborted an ingest, or StageIdle when
// err did not come from one.
func StageOf(err error) Stage {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Stage
	}
	return StageIdle
}
