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


// Package ai provides abstractions for the model services used by Lumina.
//
// This package defines interfaces for text embeddings, sparse lexical
// encoding and reply generation. The index, ingestion and conversation
// packages depend on these abstractions rather than on concrete clients.
//
// # Design Principles
//
// The package is designed around four interfaces:
//
//   - Embedder: Generates dense vector embeddings from text
//   - SparseEncoder: Maps text to a non-negative hashed term vector
//   - ChatModel: Generates (optionally streamed) assistant replies
//   - AIProvider: Aggregates the services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible or Azure APIs
//   - ai/sparse: Local lexical encoder built on a bleve analyzer
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockChatModel)
// return CONCRETE types to enable test assertions and behavior injection via
// the mock's public fields and methods (CallCount, XFunc, Reset, etc.).
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "How much does it cost?")
//	reply, err := provider.ChatModel().Generate(ctx, messages, func(ctx context.Context, chunk string) error {
//	    fmt.Print(chunk)
//	    return nil
//	})
package ai
