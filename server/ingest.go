package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/fetch"
	"github.com/poiesic/lumina/ingestion"
)

type ingestRequest struct {
	URL      string `json:"url"`
	TenantID string `json:"tenant_id"`
	ClientID string `json:"client_id"` // accepted as an alias of tenant_id
	Async    bool   `json:"async"`
}

type ingestResponse struct {
	URL           string   `json:"url"`
	TenantID      string   `json:"tenant_id"`
	ChunksCreated int      `json:"chunks_created"`
	Stored        int      `json:"stored"`
	Stages        []string `json:"stages,omitempty"`
	DurationMS    int64    `json:"duration_ms"`
}

type jobResponse struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	TenantID   string          `json:"tenant_id"`
	State      string          `json:"state"`
	Stage      string          `json:"stage,omitempty"`
	Error      string          `json:"error,omitempty"`
	Result     *ingestResponse `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func toIngestResponse(res *ingestion.Result) *ingestResponse {
	if res == nil {
		return nil
	}
	stages := make([]string, len(res.Stages))
	for i, st := range res.Stages {
		stages[i] = st.String()
	}
	return &ingestResponse{
		URL:           res.URL,
		TenantID:      res.Tenant,
		ChunksCreated: res.ChunksCreated,
		Stored:        res.Stored,
		Stages:        stages,
		DurationMS:    res.Duration.Milliseconds(),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toJobResponse(job ingestion.Job) jobResponse {
	tenant := job.Request.Tenant
	if tenant == "" {
		tenant = core.DefaultTenantID
	}
	resp := jobResponse{
		ID:         job.ID,
		URL:        job.Request.URL,
		TenantID:   tenant,
		State:      string(job.State),
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		StartedAt:  optionalTime(job.StartedAt),
		FinishedAt: optionalTime(job.FinishedAt),
	}
	if job.Stage != 0 {
		resp.Stage = job.Stage.String()
	}
	if job.State == ingestion.JobSucceeded {
		resp.Result = toIngestResponse(job.Result)
	}
	return resp
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, msgBadJSON)
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		s.fail(w, http.StatusBadRequest, "URL cannot be empty")
		return
	}
	if err := fetch.ValidateURL(url); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	tenant := req.TenantID
	if tenant == "" {
		tenant = req.ClientID
	}
	ireq := ingestion.Request{URL: url, Tenant: tenant}

	if req.Async {
		if s.jobs == nil {
			s.fail(w, http.StatusNotImplemented, "asynchronous ingestion is not enabled")
			return
		}
		job, err := s.jobs.Submit(ireq)
		if err != nil {
			s.failErr(w, r, "Error queuing ingestion", err)
			return
		}
		w.Header().Set("Location", "/api/ingest/jobs/"+job.ID)
		s.respond(w, http.StatusAccepted, "Ingestion queued", toJobResponse(job))
		return
	}

	res, err := s.pipeline.Ingest(r.Context(), ireq)
	if err != nil {
		s.failErr(w, r, "Error occurred during data ingestion", err)
		return
	}
	s.respond(w, http.StatusOK, "Data ingestion successful", toIngestResponse(res))
}

func (s *Server) requireJobs(w http.ResponseWriter) bool {
	if s.jobs == nil {
		s.fail(w, http.StatusNotFound, "asynchronous ingestion is not enabled")
		return false
	}
	return true
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if !s.requireJobs(w) {
		return
	}
	jobs := s.jobs.List()
	out := make([]jobResponse, len(jobs))
	for i, job := range jobs {
		out[i] = toJobResponse(job)
	}
	s.respond(w, http.StatusOK, "", out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if !s.requireJobs(w) {
		return
	}
	job, err := s.jobs.Status(r.PathValue("id"))
	if err != nil {
		s.failErr(w, r, "Error reading job", err)
		return
	}
	s.respond(w, http.StatusOK, "", toJobResponse(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if !s.requireJobs(w) {
		return
	}
	id := r.PathValue("id")
	if err := s.jobs.Cancel(id); err != nil {
		s.failErr(w, r, "Error cancelling job", err)
		return
	}
	job, err := s.jobs.Status(id)
	if err != nil {
		s.failErr(w, r, "Error reading job", err)
		return
	}
	s.respond(w, http.StatusOK, "Cancellation requested", toJobResponse(job))
}
