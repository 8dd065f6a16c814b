package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// leadStore implements storage.LeadRepository.
type leadStore struct {
	store *Store
}

var _ storage.LeadRepository = (*leadStore)(nil)

// Close is a no-op; the owning Store closes the connection.
func (s *leadStore) Close() error {
	return nil
}

const leadColumns = `id, name, email, company, phone, status, notes, source_session_id, created_at, updated_at`

// CreateLead inserts a lead row.
func (s *leadStore) CreateLead(ctx context.Context, lead *core.Lead) (*core.Lead, error) {
	if err := core.ValidateLead(lead); err != nil {
		return nil, err
	}
	if lead.Status == "" {
		lead.Status = core.LeadStatusNew
	}
	lead.CreatedAt = time.Now().UTC()
	lead.UpdatedAt = lead.CreatedAt

	var source sql.NullString
	if lead.SourceSessionID != "" {
		source = sql.NullString{String: lead.SourceSessionID, Valid: true}
	}
	res, err := s.store.db.ExecContext(ctx,
		`INSERT INTO leads (name, email, company, phone, status, notes, source_session_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.Name, lead.Email, lead.Company, lead.Phone, string(lead.Status), lead.Notes, source,
		toMicros(lead.CreatedAt), toMicros(lead.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting lead: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	lead.ID = core.ID(id)
	return lead, nil
}

// GetLead retrieves a lead by ID.
func (s *leadStore) GetLead(ctx context.Context, id core.ID) (*core.Lead, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, int64(id))
	return scanLead(row)
}

// ListLeads returns leads newest first.
func (s *leadStore) ListLeads(ctx context.Context, limit int) ([]*core.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var leads []*core.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpdateLeadStatus changes the status of a lead.
func (s *leadStore) UpdateLeadStatus(ctx context.Context, id core.ID, status core.LeadStatus) (*core.Lead, error) {
	if err := core.ValidateLeadStatus(status); err != nil {
		return nil, err
	}
	res, err := s.store.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMicros(time.Now()), int64(id))
	if err != nil {
		return nil, fmt.Errorf("updating lead: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, storage.ErrNotFound
	}
	return s.GetLead(ctx, id)
}

// FindLeadBySession returns the lead created from a session.
func (s *leadStore) FindLeadBySession(ctx context.Context, sessionID string) (*core.Lead, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE source_session_id = ?`, sessionID)
	return scanLead(row)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*core.Lead, error) {
	var (
		lead             core.Lead
		id               int64
		status           string
		source           sql.NullString
		created, updated int64
	)
	err := row.Scan(&id, &lead.Name, &lead.Email, &lead.Company, &lead.Phone, &status, &lead.Notes,
		&source, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	lead.ID = core.ID(id)
	lead.Status = core.LeadStatus(status)
	lead.SourceSessionID = source.String
	lead.CreatedAt = fromMicros(created)
	lead.UpdatedAt = fromMicros(updated)
	return &lead, nil
}
