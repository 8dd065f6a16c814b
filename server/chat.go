package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/poiesic/lumina/conversation"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	TenantID  string `json:"tenant_id"`
	ClientID  string `json:"client_id"` // accepted as an alias of tenant_id
	Stream    bool   `json:"stream"`
}

func (c chatRequest) tenant() string {
	if c.TenantID != "" {
		return c.TenantID
	}
	return c.ClientID
}

type chatResponse struct {
	Response      string `json:"response"`
	SessionID     string `json:"session_id"`
	TurnCount     int    `json:"turn_count"`
	EmailProvided bool   `json:"email_provided"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, msgBadJSON)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.fail(w, http.StatusBadRequest, "Message content cannot be empty")
		return
	}

	creq := conversation.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		Tenant:    req.tenant(),
		Stream:    req.Stream,
	}
	if req.Stream {
		s.streamChat(w, r, creq)
		return
	}

	var collected conversation.Collector
	reply, err := s.orch.Chat(r.Context(), creq, collected.Sink())
	if err != nil {
		s.failErr(w, r, "Error processing request", err)
		return
	}
	s.respond(w, http.StatusOK, "", chatResponse{
		Response:      reply.Text,
		SessionID:     reply.SessionID,
		TurnCount:     reply.TurnCount,
		EmailProvided: reply.EmailProvided,
	})
}

// streamChat writes each event as an SSE frame and flushes immediately.
// A client disconnect cancels the request context, which stops generation.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req conversation.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, http.StatusInternalServerError, "streaming is not supported by this connection")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := func(ctx context.Context, ev conversation.Event) error {
		frame, err := encodeEvent(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if _, err := s.orch.Chat(r.Context(), req, sink); err != nil {
		s.logger.Warn("chat stream ended with error", "session", req.SessionID, "err", err)
	}
}

// encodeEvent renders an event as JSON with its "type" tag.
func encodeEvent(ev conversation.Event) ([]byte, error) {
	switch ev := ev.(type) {
	case conversation.ChunkEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			conversation.ChunkEvent
		}{ev.Type(), ev})
	case conversation.DoneEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			conversation.DoneEvent
		}{ev.Type(), ev})
	case conversation.ErrorEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			conversation.ErrorEvent
		}{ev.Type(), ev})
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}
}
