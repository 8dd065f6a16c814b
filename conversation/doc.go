// Package conversation drives one chat turn from user message to streamed reply.
//
// For every message the Orchestrator:
//
//  1. Gets or creates the session and appends the user turn
//  2. Detects an email address and, on the first capture per session,
//     flips the session's contact flag and hands a LeadRequest to the LeadSink
//  3. Retrieves context units for the message from the hybrid index
//  4. Composes a system instruction that depends on the capture state and
//     on purchase intent, followed by a bounded window of recent turns
//  5. Streams the model's reply to the caller's Sink as ChunkEvents
//  6. Persists the assistant turn and finishes with a DoneEvent or ErrorEvent
//
// Text already delivered as ChunkEvents is never retracted. A failure after
// streaming started ends the stream with an ErrorEvent and the partial reply
// is still stored as the assistant turn.
//
// Requests for the same session must be serialized by the caller. Requests
// for different sessions are independent and may run concurrently.
//
// # Usage
//
//	orch, err := conversation.NewOrchestrator(sessions, retriever, provider.ChatModel(),
//	    conversation.WithLeadSink(conversation.NewRepositoryLeadSink(leads)),
//	)
//	reply, err := orch.Chat(ctx, conversation.Request{
//	    Message:   "How much does it cost?",
//	    SessionID: sessionID,
//	    Stream:    true,
//	}, func(ctx context.Context, ev conversation.Event) error {
//	    switch ev := ev.(type) {
//	    case conversation.ChunkEvent:
//	        fmt.Print(ev.Content)
//	    case conversation.DoneEvent:
//	        fmt.Println()
//	    case conversation.ErrorEvent:
//	        fmt.Println("error:", ev.Message)
//	    }
//	    return nil
//	})
package conversation
