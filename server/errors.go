package server

import (
	"errors"
	"net/http"

	"github.com/poiesic/lumina/conversation"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/ingestion"
	"github.com/poiesic/lumina/storage"
)

var (
	// ErrOrchestratorRequired indicates that an orchestrator is required but was not provided.
	ErrOrchestratorRequired = errors.New("orchestrator is required")

	// ErrPipelineRequired indicates that an ingestion pipeline is required but was not provided.
	ErrPipelineRequired = errors.New("ingestion pipeline is required")

	// ErrLeadRepositoryRequired indicates that a lead repository is required but was not provided.
	ErrLeadRepositoryRequired = errors.New("lead repository is required")
)

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, core.ErrInvalidLead),
		errors.Is(err, core.ErrInvalidLeadStatus),
		errors.Is(err, core.ErrEmptyTenant):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, ingestion.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrExtractionEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, ingestion.ErrRunnerBusy),
		errors.Is(err, ingestion.ErrRunnerClosed),
		errors.Is(err, core.ErrEmbeddingUnavailable),
		errors.Is(err, core.ErrIndexUnavailable),
		errors.Is(err, core.ErrGenerationInterrupted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
