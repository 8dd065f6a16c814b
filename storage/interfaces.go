package storage

import (
	"context"
	"time"

	"github.com/poiesic/lumina/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// IndexMeta records the shape of the vectors stored in an index.
// It is written on first use and compared against configuration on open.
type IndexMeta struct {
	Dimension    int
	VocabularyID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IndexRepository stores vector records partitioned by tenant.
// Every operation is scoped to a single tenant; no call reads or writes
// another tenant's records, even when record IDs collide.
type IndexRepository interface {
	Repository

	// Upsert writes records for a tenant, overwriting any record with the same ID.
	// Assigns Seq and InsertedAt on every written record.
	// All records are written in one transaction or none are.
	Upsert(ctx context.Context, tenant string, records ...*core.VectorRecord) ([]*core.VectorRecord, error)

	// ReplaceSource removes every record of (tenant, sourceURL) and writes
	// records in the same transaction. Readers see either the old set or the new one.
	// Fails with ErrBatchTooLarge when the swap exceeds the store's transaction limit.
	ReplaceSource(ctx context.Context, tenant, sourceURL string, records ...*core.VectorRecord) ([]*core.VectorRecord, error)

	// GetRecord retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, tenant string, id core.ID) (*core.VectorRecord, error)

	// ScanTenant calls fn for every record of the tenant in key order.
	// Iteration stops at the first error returned by fn.
	ScanTenant(ctx context.Context, tenant string, fn func(*core.VectorRecord) error) error

	// DeleteSource removes all records of (tenant, sourceURL) and returns how many were removed.
	DeleteSource(ctx context.Context, tenant, sourceURL string) (int, error)

	// DeleteTenant removes all records of the tenant and returns how many were removed.
	DeleteTenant(ctx context.Context, tenant string) (int, error)

	// CountByTenant returns the number of records per tenant.
	CountByTenant(ctx context.Context) (map[string]int, error)

	// DocumentFrequencies returns the number of records of the tenant and,
	// for each term, how many of those records contain it. Counts are kept
	// in step with every write and delete.
	DocumentFrequencies(ctx context.Context, tenant string, terms []uint32) (int, []int, error)

	// LoadIndexMeta returns the stored index metadata.
	// Returns nil, nil if none has been saved.
	LoadIndexMeta(ctx context.Context) (*IndexMeta, error)

	// SaveIndexMeta persists index metadata.
	SaveIndexMeta(ctx context.Context, meta *IndexMeta) error
}

// SessionRepository stores conversation sessions and their turns.
type SessionRepository interface {
	Repository

	// GetOrCreateSession returns the session with the given ID, creating it
	// for tenant if it does not exist. Concurrent calls for the same ID
	// return the same session.
	GetOrCreateSession(ctx context.Context, id, tenant string) (*core.Session, error)

	// GetSession retrieves a session.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// MarkContactCaptured sets ContactCaptured and ContactEmail on a session
	// if it is not already captured. Returns true only for the call that
	// performed the transition. Once captured the flag never reverts.
	MarkContactCaptured(ctx context.Context, id, email string) (bool, error)

	// AppendTurn appends a turn to its session, assigning ID, Seq and
	// CreatedAt. User turns increment the session's TurnCount.
	// Returns ErrNotFound if the session doesn't exist.
	AppendTurn(ctx context.Context, turn *core.Turn) (*core.Turn, error)

	// RecentTurns returns up to limit most recent turns of a session in
	// chronological order.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.Turn, error)
}

// LeadRepository stores captured sales leads.
type LeadRepository interface {
	Repository

	// CreateLead stores a new lead, assigning ID and timestamps.
	// Status defaults to new.
	CreateLead(ctx context.Context, lead *core.Lead) (*core.Lead, error)

	// GetLead retrieves a lead by ID.
	// Returns ErrNotFound if the lead doesn't exist.
	GetLead(ctx context.Context, id core.ID) (*core.Lead, error)

	// ListLeads returns up to limit leads, newest first. limit <= 0 means all.
	ListLeads(ctx context.Context, limit int) ([]*core.Lead, error)

	// UpdateLeadStatus changes the status of a lead.
	// Returns ErrNotFound if the lead doesn't exist.
	UpdateLeadStatus(ctx context.Context, id core.ID, status core.LeadStatus) (*core.Lead, error)

	// FindLeadBySession returns the lead created from a session.
	// Returns ErrNotFound if the session produced no lead.
	FindLeadBySession(ctx context.Context, sessionID string) (*core.Lead, error)
}
