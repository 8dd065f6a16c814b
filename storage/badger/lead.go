package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// LeadRepository implements storage.LeadRepository for BadgerDB.
type LeadRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.LeadRepository = (*LeadRepository)(nil)

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(backend *Backend) (*LeadRepository, error) {
	idSeq, err := backend.GetSequence(leadIDSeq)
	if err != nil {
		return nil, err
	}
	return &LeadRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *LeadRepository) Close() error {
	return r.idSeq.Release()
}

// CreateLead stores a new lead.
func (r *LeadRepository) CreateLead(ctx context.Context, lead *core.Lead) (*core.Lead, error) {
	if err := core.ValidateLead(lead); err != nil {
		return nil, err
	}
	err := r.backend.Update(func(tx *badger.Txn) error {
		next, err := nextID(r.idSeq)
		if err != nil {
			return err
		}
		lead.ID = core.ID(next)
		if lead.Status == "" {
			lead.Status = core.LeadStatusNew
		}
		lead.CreatedAt = time.Now().UTC()
		lead.UpdatedAt = lead.CreatedAt

		if err := writeLead(tx, lead); err != nil {
			return err
		}
		if err := tx.Set(makeLeadDateKey(lead.CreatedAt, lead.ID), storage.MarshalID(lead.ID)); err != nil {
			return err
		}
		if lead.SourceSessionID != "" {
			if err := tx.Set(makeLeadSessionKey(lead.SourceSessionID), storage.MarshalID(lead.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// GetLead retrieves a lead by ID.
func (r *LeadRepository) GetLead(ctx context.Context, id core.ID) (*core.Lead, error) {
	var result *core.Lead
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readLead(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListLeads returns up to limit leads, newest first.
func (r *LeadRepository) ListLeads(ctx context.Context, limit int) ([]*core.Lead, error) {
	var results []*core.Lead
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(leadDatePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for iter.Seek(seekKey); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}
			lead, err := readLead(tx, id)
			if err != nil {
				return err
			}
			if lead != nil {
				results = append(results, lead)
			}
		}
		return nil
	}, false)
	return results, err
}

// UpdateLeadStatus changes the status of a lead.
func (r *LeadRepository) UpdateLeadStatus(ctx context.Context, id core.ID, status core.LeadStatus) (*core.Lead, error) {
	if err := core.ValidateLeadStatus(status); err != nil {
		return nil, err
	}
	var result *core.Lead
	err := r.backend.Update(func(tx *badger.Txn) error {
		lead, err := readLead(tx, id)
		if err != nil {
			return err
		}
		if lead == nil {
			return storage.ErrNotFound
		}
		lead.Status = status
		lead.UpdatedAt = time.Now().UTC()
		result = lead
		return writeLead(tx, lead)
	})
	return result, err
}

// FindLeadBySession returns the lead created from a session.
func (r *LeadRepository) FindLeadBySession(ctx context.Context, sessionID string) (*core.Lead, error) {
	var result *core.Lead
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var id core.ID
		found, err := readValue(tx, makeLeadSessionKey(sessionID), func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result, err = readLead(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// Helper methods

func readLead(tx *badger.Txn, id core.ID) (*core.Lead, error) {
	var lead *core.Lead
	_, err := readValue(tx, makeLeadKey(id), func(val []byte) error {
		var err error
		lead, err = storage.UnmarshalLead(val)
		return err
	})
	return lead, err
}

func writeLead(tx *badger.Txn, lead *core.Lead) error {
	return tx.Set(makeLeadKey(lead.ID), storage.MarshalLead(lead))
}
