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


// Package index provides tenant-scoped hybrid retrieval over dense and
// sparse vectors.
//
// Hybrid scores every record of the queried tenant with a weighted sum of
// two similarities, each normalized to [0, 1]:
//   - dense: cosine similarity of the embeddings, negative values clamped to 0
//   - sparse: cosine similarity of the non-negative term-weight vectors
//
// Cosine is independent of vector magnitude, so neither signal dominates
// because of the scale of its raw weights. The top k records are returned,
// with ties broken by insertion recency (newest first) and then by ID.
//
// Retriever wraps a Hybrid with the query-side encoders so callers can
// search with plain text.
package index
