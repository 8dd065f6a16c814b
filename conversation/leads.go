package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// LeadRequest asks for a lead to be created from a chat session.
type LeadRequest struct {
	Email           string
	SourceSessionID string
	TenantID        string
}

// LeadSink receives lead-creation requests. The orchestrator calls it at
// most once per session.
type LeadSink interface {
	CreateLead(ctx context.Context, req LeadRequest) error
}

// LeadSinkFunc adapts a function to LeadSink.
type LeadSinkFunc func(ctx context.Context, req LeadRequest) error

// CreateLead calls f.
func (f LeadSinkFunc) CreateLead(ctx context.Context, req LeadRequest) error {
	return f(ctx, req)
}

// RepositoryLeadSink stores captured leads in a LeadRepository.
type RepositoryLeadSink struct {
	repo   storage.LeadRepository
	logger *slog.Logger
}

var _ LeadSink = (*RepositoryLeadSink)(nil)

// NewRepositoryLeadSink creates a sink writing to repo.
func NewRepositoryLeadSink(repo storage.LeadRepository) (*RepositoryLeadSink, error) {
	if repo == nil {
		return nil, ErrLeadRepositoryRequired
	}
	return &RepositoryLeadSink{
		repo:   repo,
		logger: slog.Default().With("component", "lead-sink"),
	}, nil
}

// CreateLead stores a new lead named after the email's local part.
func (s *RepositoryLeadSink) CreateLead(ctx context.Context, req LeadRequest) error {
	lead, err := s.repo.CreateLead(ctx, &core.Lead{
		Name:            leadName(req.Email),
		Email:           req.Email,
		Status:          core.LeadStatusNew,
		Notes:           fmt.Sprintf("Auto-created from chat session, Session ID: %s", req.SourceSessionID),
		SourceSessionID: req.SourceSessionID,
	})
	if err != nil {
		return err
	}
	s.logger.Info("lead created", "lead", lead.ID, "session", req.SourceSessionID, "tenant", req.TenantID)
	return nil
}

func leadName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		return email
	}
	return name
}
