// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Failure taxonomy. Callers match these with errors.Is; producers wrap them
// with context via fmt.Errorf("%w: ...").
var (
	// ErrFetch indicates the source could not be retrieved.
	ErrFetch = errors.New("fetch failed")

	// ErrExtractionEmpty indicates normalization produced no text.
	ErrExtractionEmpty = errors.New("no content extracted")

	// ErrEmbeddingUnavailable indicates the embedding service failed or
	// returned an unusable vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrIndexUnavailable indicates the vector index could not be read or written.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrGenerationInterrupted indicates the generative stream failed or was cancelled.
	ErrGenerationInterrupted = errors.New("generation interrupted")

	// ErrConfiguration indicates missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Domain validation errors
var (
	// ErrInvalidRecord indicates a VectorRecord failed validation.
	ErrInvalidRecord = errors.New("invalid vector record")

	// ErrInvalidLead indicates a Lead failed validation.
	ErrInvalidLead = errors.New("invalid lead")

	// ErrInvalidTurn indicates a Turn failed validation.
	ErrInvalidTurn = errors.New("invalid turn")

	// ErrEmptyTenant indicates the tenant identifier is empty.
	ErrEmptyTenant = errors.New("tenant cannot be empty")

	// ErrEmptyContent indicates a text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrDimensionMismatch indicates a dense vector of the wrong length.
	ErrDimensionMismatch = errors.New("dense dimension mismatch")

	// ErrInvalidSparse indicates a malformed sparse vector.
	ErrInvalidSparse = errors.New("invalid sparse vector")

	// ErrInvalidRole indicates an unknown Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidLeadStatus indicates an unknown LeadStatus value.
	ErrInvalidLeadStatus = errors.New("invalid lead status")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")
)
