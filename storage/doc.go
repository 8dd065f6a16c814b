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


// Package storage provides the storage abstraction layer for lumina.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. Two backends are provided:
//
//   - storage/badger: embedded key-value store; implements every repository,
//     and is the only backend for the vector index
//   - storage/sqlite: relational store for sessions, turns and leads
//
// # Constructor Return Type Pattern
//
// Public constructors that callers wire together return interfaces:
//
//	repo, err := sqlite.NewStore(path)  // returns *sqlite.Store with interface accessors
//
// Repository constructors inside a backend package return concrete types so
// that the backend can share sequences and transactions between them.
//
// # Architecture
//
//   - IndexRepository: tenant-partitioned vector records plus index metadata
//   - SessionRepository: conversation sessions and append-only turns
//   - LeadRepository: captured sales contacts
//
// # Tenant Isolation
//
// Index records are keyed by tenant first. A scan for one tenant never visits
// another tenant's keys, so two tenants may hold records with the same ID.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
