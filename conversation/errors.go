package conversation

import "errors"

var (
	// ErrSessionRepositoryRequired indicates that a session repository is required but was not provided.
	ErrSessionRepositoryRequired = errors.New("session repository is required")

	// ErrRetrieverRequired indicates that a retriever is required but was not provided.
	ErrRetrieverRequired = errors.New("retriever is required")

	// ErrChatModelRequired indicates that a chat model is required but was not provided.
	ErrChatModelRequired = errors.New("chat model is required")

	// ErrLeadRepositoryRequired indicates that a lead repository is required but was not provided.
	ErrLeadRepositoryRequired = errors.New("lead repository is required")

	// ErrSinkRequired indicates Chat was called without an event sink.
	ErrSinkRequired = errors.New("event sink is required")

	// ErrEmptyMessage indicates the user message is blank.
	ErrEmptyMessage = errors.New("message cannot be empty")
)
