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

// sessionStore implements storage.SessionRepository.
type sessionStore struct {
	store *Store
}

var _ storage.SessionRepository = (*sessionStore)(nil)

// Close is a no-op; the owning Store closes the connection.
func (s *sessionStore) Close() error {
	return nil
}

const selectSession = `SELECT session_id, client_id, email_provided, contact_email, turn_count, created_at, updated_at
	FROM sessions WHERE session_id = ?`

// GetOrCreateSession returns the session, inserting it if absent.
func (s *sessionStore) GetOrCreateSession(ctx context.Context, id, tenant string) (*core.Session, error) {
	now := toMicros(time.Now())
	_, err := s.store.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, client_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		id, tenant, now, now)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession retrieves a session by ID.
func (s *sessionStore) GetSession(ctx context.Context, id string) (*core.Session, error) {
	return scanSession(s.store.db.QueryRowContext(ctx, selectSession, id))
}

// MarkContactCaptured flips email_provided with a conditional update so
// that only one caller observes the transition.
func (s *sessionStore) MarkContactCaptured(ctx context.Context, id, email string) (bool, error) {
	res, err := s.store.db.ExecContext(ctx,
		`UPDATE sessions SET email_provided = 1, contact_email = ?, updated_at = ?
		 WHERE session_id = ? AND email_provided = 0`,
		email, toMicros(time.Now()), id)
	if err != nil {
		return false, fmt.Errorf("marking contact captured: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.GetSession(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// AppendTurn inserts a message row and bumps the session counters.
func (s *sessionStore) AppendTurn(ctx context.Context, turn *core.Turn) (*core.Turn, error) {
	if err := core.ValidateTurn(turn); err != nil {
		return nil, err
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		userTurn := 0
		if turn.Role == core.RoleUser {
			userTurn = 1
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET turn_count = turn_count + ?, updated_at = ? WHERE session_id = ?`,
			userTurn, toMicros(time.Now()), turn.SessionID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return storage.ErrNotFound
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			turn.SessionID, turn.Role.String(), turn.Text, toMicros(turn.CreatedAt))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		turn.ID = core.ID(id)
		turn.Seq = uint64(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// RecentTurns returns up to limit most recent turns in chronological order.
func (s *sessionStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at FROM messages
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []*core.Turn
	for rows.Next() {
		var (
			id        int64
			role      string
			createdAt int64
			turn      core.Turn
		)
		if err := rows.Scan(&id, &turn.SessionID, &role, &turn.Text, &createdAt); err != nil {
			return nil, err
		}
		if turn.Role, err = core.ParseRole(role); err != nil {
			return nil, err
		}
		turn.ID = core.ID(id)
		turn.Seq = uint64(id)
		turn.CreatedAt = fromMicros(createdAt)
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}

func scanSession(row *sql.Row) (*core.Session, error) {
	var (
		session          core.Session
		captured         int
		created, updated int64
	)
	err := row.Scan(&session.ID, &session.TenantID, &captured, &session.ContactEmail,
		&session.TurnCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	session.ContactCaptured = captured != 0
	session.CreatedAt = fromMicros(created)
	session.UpdatedAt = fromMicros(updated)
	return &session, nil
}
