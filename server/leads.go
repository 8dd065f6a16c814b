package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/lumina/core"
)

type leadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`
}

type leadResponse struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Company         string    `json:"company"`
	Phone           string    `json:"phone"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
	SourceSessionID string    `json:"source_session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toLeadResponse(l *core.Lead) leadResponse {
	return leadResponse{
		ID:              uint64(l.ID),
		Name:            l.Name,
		Email:           l.Email,
		Company:         l.Company,
		Phone:           l.Phone,
		Status:          string(l.Status),
		Notes:           l.Notes,
		SourceSessionID: l.SourceSessionID,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	leads, err := s.leads.ListLeads(r.Context(), limit)
	if err != nil {
		s.failErr(w, r, "Error occurred while retrieving leads", err)
		return
	}
	out := make([]leadResponse, len(leads))
	for i, l := range leads {
		out[i] = toLeadResponse(l)
	}
	s.respond(w, http.StatusOK, "Successfully retrieved leads", out)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, msgBadJSON)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		s.fail(w, http.StatusBadRequest, "Name and email are required fields")
		return
	}

	lead, err := s.leads.CreateLead(r.Context(), &core.Lead{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Company: req.Company,
		Phone:   req.Phone,
		Status:  core.LeadStatus(req.Status),
		Notes:   req.Notes,
	})
	if err != nil {
		s.failErr(w, r, "Error occurred while creating lead", err)
		return
	}
	s.respond(w, http.StatusCreated, "Lead created successfully", map[string]uint64{"id": uint64(lead.ID)})
}
