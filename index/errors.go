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


package index

import "errors"

var (
	// ErrIndexRepositoryRequired is returned when an index repository is not provided.
	ErrIndexRepositoryRequired = errors.New("index repository required")

	// ErrEmbedderRequired is returned when a dense embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSparseEncoderRequired is returned when a sparse encoder is not provided.
	ErrSparseEncoderRequired = errors.New("sparse encoder required")

	// ErrHybridRequired is returned when a hybrid index is not provided.
	ErrHybridRequired = errors.New("hybrid index required")
)
