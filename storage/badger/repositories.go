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


package badger

import "errors"

// Repositories bundles every BadgerDB repository over one backend.
type Repositories struct {
	Backend  *Backend
	Index    *IndexRepository
	Sessions *SessionRepository
	Leads    *LeadRepository
}

// OpenRepositories opens a backend and creates all repositories on it.
// An empty path with inMemory=true gives a throwaway store for tests.
func OpenRepositories(path string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	index, err := NewIndexRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sessions, err := NewSessionRepository(backend)
	if err != nil {
		index.Close()
		backend.Close()
		return nil, err
	}

	leads, err := NewLeadRepository(backend)
	if err != nil {
		sessions.Close()
		index.Close()
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Backend:  backend,
		Index:    index,
		Sessions: sessions,
		Leads:    leads,
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}

// Close releases every sequence and then the backend.
func (r *Repositories) Close() error {
	return errors.Join(
		r.Leads.Close(),
		r.Sessions.Close(),
		r.Index.Close(),
		r.Backend.Close(),
	)
}
