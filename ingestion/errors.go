package ingestion

import "errors"

var (
	// ErrFetcherRequired is returned when a fetcher is not provided.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrHybridRequired is returned when a hybrid index is not provided.
	ErrHybridRequired = errors.New("hybrid index required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrPipelineRequired is returned when a job runner has no pipeline.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = errors.New("ingestion job not found")

	// ErrRunnerClosed is returned when submitting to a released job runner.
	ErrRunnerClosed = errors.New("job runner closed")
)
