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

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// emailPattern matches a plausible email address anywhere in free text.
// It is a heuristic: quoted local parts, IP-literal domains and
// internationalized addresses are not recognized, and some strings that are
// not deliverable addresses (e.g. "a@b.cc" inside a longer token) match.
var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// FindEmail returns the first email-shaped substring of text.
func FindEmail(text string) (string, bool) {
	m := emailPattern.FindString(text)
	return m, m != ""
}

// IsEmail reports whether s as a whole is email-shaped.
func IsEmail(s string) bool {
	m := emailPattern.FindString(s)
	return m != "" && m == strings.TrimSpace(s)
}

// ValidateVectorRecord validates a VectorRecord according to domain rules.
//
// Validation rules:
//   - TenantID and Text must not be empty
//   - Dense must have the index dimension when dimension > 0
//   - Sparse must be well formed (see ValidateSparseVector)
//
// NOT validated (assigned by storage):
//   - Seq
//   - InsertedAt
func ValidateVectorRecord(record *VectorRecord, dimension int) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.TenantID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTenant)
	}
	if record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}
	if len(record.Dense) == 0 {
		return fmt.Errorf("%w: %w: empty dense vector", ErrInvalidRecord, ErrDimensionMismatch)
	}
	if dimension > 0 && len(record.Dense) != dimension {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrInvalidRecord, ErrDimensionMismatch, len(record.Dense), dimension)
	}
	if err := ValidateSparseVector(record.Sparse); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

// ValidateSparseVector checks that indices and values line up, indices are
// strictly increasing, and no weight is negative.
func ValidateSparseVector(s SparseVector) error {
	if len(s.Indices) != len(s.Values) {
		return fmt.Errorf("%w: %d indices, %d values", ErrInvalidSparse, len(s.Indices), len(s.Values))
	}
	for i, v := range s.Values {
		if v < 0 {
			return fmt.Errorf("%w: negative weight at %d", ErrInvalidSparse, s.Indices[i])
		}
		if i > 0 && s.Indices[i] <= s.Indices[i-1] {
			return fmt.Errorf("%w: indices not strictly increasing", ErrInvalidSparse)
		}
	}
	return nil
}

// ValidateLead validates a Lead according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Email must be email-shaped
//   - Status must be one of the known statuses (empty is allowed and means new)
func ValidateLead(lead *Lead) error {
	if lead == nil {
		return fmt.Errorf("%w: lead is nil", ErrInvalidLead)
	}
	if strings.TrimSpace(lead.Name) == "" {
		return fmt.Errorf("%w: %w: name", ErrInvalidLead, ErrEmptyContent)
	}
	if !IsEmail(lead.Email) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidLead, ErrInvalidEmail, lead.Email)
	}
	if lead.Status != "" {
		if err := ValidateLeadStatus(lead.Status); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLead, err)
		}
	}
	return nil
}

// ValidateLeadStatus validates that a LeadStatus has a known value.
func ValidateLeadStatus(status LeadStatus) error {
	switch status {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusClosed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidLeadStatus, status)
}

// ValidateTurn validates a Turn prior to appending it to a session.
func ValidateTurn(turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}
	if turn.SessionID == "" {
		return fmt.Errorf("%w: session id is empty", ErrInvalidTurn)
	}
	if err := ValidateRole(turn.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}
	if !turn.CreatedAt.IsZero() && !IsValidTimestamp(turn.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrInvalidTimestamp)
	}
	return nil
}

// ValidateRole validates that a Role has a valid value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: value %d", ErrInvalidRole, role)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
