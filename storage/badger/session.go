package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
type SessionRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) (*SessionRepository, error) {
	idSeq, err := backend.GetSequence(turnSeq)
	if err != nil {
		return nil, err
	}
	return &SessionRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the turn ID sequence.
func (r *SessionRepository) Close() error {
	return r.idSeq.Release()
}

// GetOrCreateSession returns the session, creating it if needed.
func (r *SessionRepository) GetOrCreateSession(ctx context.Context, id, tenant string) (*core.Session, error) {
	var result *core.Session
	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeSessionKey(id)
		session, err := readSession(tx, key)
		if err != nil {
			return err
		}
		if session != nil {
			result = session
			return nil
		}
		now := time.Now().UTC()
		session = &core.Session{
			ID:        id,
			TenantID:  tenant,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := writeSession(tx, session); err != nil {
			return err
		}
		result = session
		return nil
	})
	return result, err
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var result *core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSession(tx, makeSessionKey(id))
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

// MarkContactCaptured flips the session to captured exactly once.
// Concurrent callers race through badger's conflict detection; the loser
// re-reads the committed state and reports false.
func (r *SessionRepository) MarkContactCaptured(ctx context.Context, id, email string) (bool, error) {
	var flipped bool
	err := r.backend.Update(func(tx *badger.Txn) error {
		flipped = false
		session, err := readSession(tx, makeSessionKey(id))
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}
		if session.ContactCaptured {
			return nil
		}
		session.ContactCaptured = true
		session.ContactEmail = email
		session.UpdatedAt = time.Now().UTC()
		if err := writeSession(tx, session); err != nil {
			return err
		}
		flipped = true
		return nil
	})
	return flipped, err
}

// AppendTurn appends a turn to its session.
func (r *SessionRepository) AppendTurn(ctx context.Context, turn *core.Turn) (*core.Turn, error) {
	if err := core.ValidateTurn(turn); err != nil {
		return nil, err
	}
	err := r.backend.Update(func(tx *badger.Txn) error {
		session, err := readSession(tx, makeSessionKey(turn.SessionID))
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}

		next, err := nextID(r.idSeq)
		if err != nil {
			return err
		}
		turn.ID = core.ID(next)
		turn.Seq = next
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}

		if err := tx.Set(makeTurnKey(turn.SessionID, turn.Seq), storage.MarshalTurn(turn)); err != nil {
			return err
		}

		if turn.Role == core.RoleUser {
			session.TurnCount++
		}
		session.UpdatedAt = time.Now().UTC()
		return writeSession(tx, session)
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// RecentTurns returns up to limit most recent turns in chronological order.
func (r *SessionRepository) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	var results []*core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent turns first
		prefix := makeTurnPrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the largest possible sequence under this prefix
		seekKey := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for iter.Seek(seekKey); iter.Valid() && len(results) < limit; iter.Next() {
			var turn *core.Turn
			err := iter.Item().Value(func(val []byte) error {
				var err error
				turn, err = storage.UnmarshalTurn(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, turn)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// Helper methods

func readSession(tx *badger.Txn, key []byte) (*core.Session, error) {
	var session *core.Session
	_, err := readValue(tx, key, func(val []byte) error {
		var err error
		session, err = storage.UnmarshalSession(val)
		return err
	})
	return session, err
}

func writeSession(tx *badger.Txn, session *core.Session) error {
	return tx.Set(makeSessionKey(session.ID), storage.MarshalSession(session))
}
