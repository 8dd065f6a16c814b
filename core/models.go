package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// DefaultTenantID is used when a request does not name a tenant.
const DefaultTenantID = "demo_client"

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// UnitID returns the ID of the unit at position within a source document.
// Re-ingesting the same URL yields the same IDs for the same positions.
func UnitID(sourceURL string, position int) ID {
	return IDFromContent(fmt.Sprintf("%s_%d", sourceURL, position))
}

// DocumentUnit is a retrievable slice of an ingested document.
type DocumentUnit struct {
	ID        ID
	TenantID  string
	SourceURL string
	Text      string
	Position  int // ordinal within the source document
}

// SparseVector is a lexical vector over a hashed vocabulary.
// Indices are strictly increasing and Values are non-negative.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Len returns the number of non-zero entries.
func (s SparseVector) Len() int {
	return len(s.Indices)
}

// IsZero reports whether the vector carries no weight.
func (s SparseVector) IsZero() bool {
	for _, v := range s.Values {
		if v != 0 {
			return false
		}
	}
	return true
}

// VectorRecord is a document unit together with its dense and sparse vectors.
type VectorRecord struct {
	ID         ID
	TenantID   string
	SourceURL  string
	Text       string
	Position   int
	Dense      []float32
	Sparse     SparseVector
	Seq        uint64    // insertion order within the index, assigned by storage
	InsertedAt time.Time // assigned by storage
}

// Unit returns the document unit carried by the record.
func (r *VectorRecord) Unit() DocumentUnit {
	return DocumentUnit{
		ID:        r.ID,
		TenantID:  r.TenantID,
		SourceURL: r.SourceURL,
		Text:      r.Text,
		Position:  r.Position,
	}
}

// SearchResult is a record matched by a hybrid query.
type SearchResult struct {
	Record      *VectorRecord
	Score       float32 // fused score
	DenseScore  float32 // normalized dense similarity in [0,1]
	SparseScore float32 // normalized sparse similarity in [0,1]
}

// Role identifies the author of a conversation turn.
type Role int

const (
	// RoleUser is the human side of the conversation.
	RoleUser Role = iota + 1
	// RoleAssistant is the generated side of the conversation.
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole maps a stored role name back to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Session is per-conversation state. Sessions are created lazily on the
// first message and never deleted by the engine.
type Session struct {
	ID              string
	TenantID        string
	ContactCaptured bool
	ContactEmail    string
	TurnCount       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Turn is one message in a session. Turns are append-only and Seq is
// strictly increasing within a session.
type Turn struct {
	ID        ID
	SessionID string
	Seq       uint64
	Role      Role
	Text      string
	CreatedAt time.Time
}

// LeadStatus tracks a lead through the sales process.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusClosed    LeadStatus = "closed"
)

// Lead is a captured sales contact.
type Lead struct {
	ID              ID
	Name            string
	Email           string
	Company         string
	Phone           string
	Status          LeadStatus
	Notes           string
	SourceSessionID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IndexStats summarizes the contents of a hybrid index.
type IndexStats struct {
	Dimension       int
	VocabularyID    string
	RecordsByTenant map[string]int
	TotalRecords    int
}
