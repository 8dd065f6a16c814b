package ingestion

import (
	"fmt"
)

// Stage is a step of the per-document ingestion state machine.
type Stage int

const (
	StageFetching Stage = iota + 1
	StageNormalizing
	StageChunking
	StageEmbedding
	StageIndexing
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageNormalizing:
		return "normalizing"
	case StageChunking:
		return "chunking"
	case StageEmbedding:
		return "embedding"
	case StageIndexing:
		return "indexing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Terminal reports whether no further transition can follow s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// StageError records the stage at which a document failed.
// Err wraps one of the core failure sentinels.
type StageError struct {
	URL    string
	Tenant string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest %s (tenant %s) failed while %s: %v", e.URL, e.Tenant, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
