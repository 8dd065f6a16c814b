package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/lumina/ai"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// fallbackReply is sent when the model returns no text.
const fallbackReply = "Sorry, I cannot generate a response."

// ContextRetriever finds context units for a message. *index.Retriever implements it.
type ContextRetriever interface {
	Retrieve(ctx context.Context, tenant, text string) ([]*core.SearchResult, error)
}

// Request is one user message.
type Request struct {
	Message   string
	SessionID string // empty starts a new session
	Tenant    string // empty selects core.DefaultTenantID
	Stream    bool   // false delivers the reply as a single chunk
}

// Reply summarizes a completed or failed turn.
type Reply struct {
	SessionID     string
	Text          string // full reply, or the part produced before a failure
	EmailProvided bool   // contact captured in this or an earlier turn
	Captured      bool   // contact captured by this turn
	TurnCount     int
	Sources       []string
	Duration      time.Duration
}

// Orchestrator runs chat turns against session storage, a retriever and a chat model.
// An Orchestrator is safe for concurrent use across sessions.
type Orchestrator struct {
	sessions     storage.SessionRepository
	retriever    ContextRetriever
	model        ai.ChatModel
	leads        LeadSink
	historyTurns int
	tokenBudget  int
	countTokens  TokenCounter
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLeadSink sets where captured contacts are sent. Without one, captures
// only update the session.
func WithLeadSink(sink LeadSink) Option {
	return func(o *Orchestrator) error {
		o.leads = sink
		return nil
	}
}

// WithHistoryTurns sets how many recent turns are sent to the model.
// Default is DefaultHistoryTurns.
func WithHistoryTurns(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("%w: history turns must be positive, got %d", core.ErrConfiguration, n)
		}
		o.historyTurns = n
		return nil
	}
}

// WithHistoryTokens caps the history window at budget tokens as measured by
// count. A budget of 0 disables the cap.
func WithHistoryTokens(budget int, count TokenCounter) Option {
	return func(o *Orchestrator) error {
		if budget < 0 {
			return fmt.Errorf("%w: history token budget cannot be negative", core.ErrConfiguration)
		}
		if budget > 0 && count == nil {
			return fmt.Errorf("%w: history token budget needs a token counter", core.ErrConfiguration)
		}
		o.tokenBudget = budget
		o.countTokens = count
		return nil
	}
}

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger.With("component", "orchestrator")
		return nil
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(sessions storage.SessionRepository, retriever ContextRetriever, model ai.ChatModel, opts ...Option) (*Orchestrator, error) {
	if sessions == nil {
		return nil, ErrSessionRepositoryRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if model == nil {
		return nil, ErrChatModelRequired
	}

	o := &Orchestrator{
		sessions:     sessions,
		retriever:    retriever,
		model:        model,
		historyTurns: DefaultHistoryTurns,
		logger:       slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Chat handles one user message, delivering the reply to sink.
//
// A blank message or missing sink is rejected with an error and no events.
// Otherwise sink receives zero or more ChunkEvents followed by exactly one
// DoneEvent or ErrorEvent, and the returned error is nil exactly when the
// stream ended with DoneEvent. Generation failures wrap
// core.ErrGenerationInterrupted. The returned Reply is never nil once the
// request was accepted.
func (o *Orchestrator) Chat(ctx context.Context, req Request, sink Sink) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}

	start := time.Now()
	tenant := strings.TrimSpace(req.Tenant)
	if tenant == "" {
		tenant = core.DefaultTenantID
	}
	reply := &Reply{SessionID: strings.TrimSpace(req.SessionID)}
	if reply.SessionID == "" {
		reply.SessionID = uuid.NewString()
	}
	logger := o.logger.With("session", reply.SessionID, "tenant", tenant)

	fail := func(err error) (*Reply, error) {
		reply.Duration = time.Since(start)
		logger.Error("chat turn failed", "streamed", len(reply.Text), "err", err)
		// The stream must still be closed even when ctx is done.
		_ = sink(context.WithoutCancel(ctx), ErrorEvent{Message: err.Error()})
		return reply, err
	}

	session, err := o.sessions.GetOrCreateSession(ctx, reply.SessionID, tenant)
	if err != nil {
		return fail(err)
	}
	if _, err := o.sessions.AppendTurn(ctx, &core.Turn{
		SessionID: session.ID,
		Role:      core.RoleUser,
		Text:      message,
	}); err != nil {
		return fail(err)
	}
	reply.TurnCount = session.TurnCount + 1
	reply.EmailProvided = session.ContactCaptured

	if email, ok := core.FindEmail(message); ok && !session.ContactCaptured {
		captured, err := o.capture(ctx, session, email, logger)
		if err != nil {
			return fail(err)
		}
		reply.Captured = captured
		reply.EmailProvided = true
	}

	results, err := o.retriever.Retrieve(ctx, tenant, message)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(fmt.Errorf("%w: %w", core.ErrGenerationInterrupted, ctxErr))
		}
		// Answer without context rather than not at all.
		logger.Warn("retrieval failed, continuing without context", "err", err)
		results = nil
	}
	for _, r := range results {
		reply.Sources = append(reply.Sources, r.Record.SourceURL)
	}

	messages, err := o.prompt(ctx, session.ID, reply.EmailProvided, message, results)
	if err != nil {
		return fail(err)
	}

	text, genErr := o.generate(ctx, messages, req.Stream, sink)
	reply.Text = text

	if text != "" {
		// Partial replies are stored too; they were already shown.
		if _, err := o.sessions.AppendTurn(context.WithoutCancel(ctx), &core.Turn{
			SessionID: session.ID,
			Role:      core.RoleAssistant,
			Text:      text,
		}); err != nil {
			logger.Error("failed to store assistant turn", "err", err)
			if genErr == nil {
				genErr = err
			}
		}
	}
	if genErr != nil {
		return fail(genErr)
	}

	reply.Duration = time.Since(start)
	logger.Info("chat turn complete",
		"turn", reply.TurnCount,
		"email_provided", reply.EmailProvided,
		"sources", len(reply.Sources),
		"duration_ms", reply.Duration.Milliseconds(),
	)
	if err := sink(ctx, DoneEvent{
		SessionID:     reply.SessionID,
		EmailProvided: reply.EmailProvided,
		TurnCount:     reply.TurnCount,
	}); err != nil {
		return reply, err
	}
	return reply, nil
}

// capture flips the session's contact flag and, for the call that won the
// transition, emits the lead request. A failing lead sink is logged; the
// flag stays set so no second lead is ever attempted.
func (o *Orchestrator) capture(ctx context.Context, session *core.Session, email string, logger *slog.Logger) (bool, error) {
	captured, err := o.sessions.MarkContactCaptured(ctx, session.ID, email)
	if err != nil {
		return false, err
	}
	if !captured {
		return false, nil
	}
	logger.Info("contact captured", "email", email)
	if o.leads == nil {
		return true, nil
	}
	if err := o.leads.CreateLead(ctx, LeadRequest{
		Email:           email,
		SourceSessionID: session.ID,
		TenantID:        session.TenantID,
	}); err != nil {
		logger.Error("failed to create lead", "email", email, "err", err)
	}
	return true, nil
}

// prompt assembles the system instruction and the history window. The
// window already ends with the current user message.
func (o *Orchestrator) prompt(ctx context.Context, sessionID string, captured bool, message string, results []*core.SearchResult) ([]ai.ChatMessage, error) {
	turns, err := o.sessions.RecentTurns(ctx, sessionID, o.historyTurns)
	if err != nil {
		return nil, err
	}
	history := historyMessages(turns, o.tokenBudget, o.countTokens)

	messages := make([]ai.ChatMessage, 0, len(history)+1)
	messages = append(messages, ai.ChatMessage{
		Role:    ai.ChatRoleSystem,
		Content: BuildSystemPrompt(captured, HasPurchaseIntent(message), results),
	})
	return append(messages, history...), nil
}

// generate calls the model and forwards its output to sink. Once ctx is
// done no further chunks are forwarded.
func (o *Orchestrator) generate(ctx context.Context, messages []ai.ChatMessage, stream bool, sink Sink) (string, error) {
	if !stream {
		text, err := o.model.Generate(ctx, messages, nil)
		if err != nil {
			return "", interrupted(err)
		}
		if strings.TrimSpace(text) == "" {
			text = fallbackReply
		}
		if err := sink(ctx, ChunkEvent{Content: text}); err != nil {
			return text, interrupted(err)
		}
		return text, nil
	}

	var streamed strings.Builder
	text, err := o.model.Generate(ctx, messages, func(ctx context.Context, chunk string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if chunk == "" {
			return nil
		}
		if err := sink(ctx, ChunkEvent{Content: chunk}); err != nil {
			return err
		}
		streamed.WriteString(chunk)
		return nil
	})
	if err != nil {
		// Only what reached the sink counts as the reply.
		return streamed.String(), interrupted(err)
	}
	if streamed.Len() == 0 {
		// The model ignored the callback; deliver the reply in one piece.
		if strings.TrimSpace(text) == "" {
			text = fallbackReply
		}
		if err := sink(ctx, ChunkEvent{Content: text}); err != nil {
			return "", interrupted(err)
		}
	}
	return text, nil
}

func interrupted(err error) error {
	if errors.Is(err, core.ErrGenerationInterrupted) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrGenerationInterrupted, err)
}
