package badger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_GetOrCreate(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	_, err = repos.Sessions.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	created, err := repos.Sessions.GetOrCreateSession(ctx, "s1", "acme")
	require.NoError(t, err)
	assert.Equal(t, "s1", created.ID)
	assert.Equal(t, "acme", created.TenantID)
	assert.False(t, created.ContactCaptured)

	again, err := repos.Sessions.GetOrCreateSession(ctx, "s1", "other")
	require.NoError(t, err)
	assert.Equal(t, "acme", again.TenantID, "existing session keeps its tenant")
	assert.True(t, created.CreatedAt.Equal(again.CreatedAt))
}

func TestSessionRepository_MarkContactCapturedOnce(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	_, err = repos.Sessions.GetOrCreateSession(ctx, "s1", "acme")
	require.NoError(t, err)

	flipped, err := repos.Sessions.MarkContactCaptured(ctx, "s1", "a@b.com")
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repos.Sessions.MarkContactCaptured(ctx, "s1", "c@d.com")
	require.NoError(t, err)
	assert.False(t, flipped)

	session, err := repos.Sessions.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, session.ContactCaptured)
	assert.Equal(t, "a@b.com", session.ContactEmail, "first captured address is kept")

	_, err = repos.Sessions.MarkContactCaptured(ctx, "missing", "a@b.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionRepository_MarkContactCapturedConcurrent(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	_, err = repos.Sessions.GetOrCreateSession(ctx, "s1", "acme")
	require.NoError(t, err)

	var flips atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repos.Sessions.MarkContactCaptured(ctx, "s1", fmt.Sprintf("u%d@example.com", i))
			assert.NoError(t, err)
			if ok {
				flips.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), flips.Load(), "exactly one caller performs the transition")
}

func TestSessionRepository_Turns(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	_, err = repos.Sessions.GetOrCreateSession(ctx, "s1", "acme")
	require.NoError(t, err)
	_, err = repos.Sessions.GetOrCreateSession(ctx, "s2", "acme")
	require.NoError(t, err)

	var last uint64
	for i := 0; i < 5; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		turn, err := repos.Sessions.AppendTurn(ctx, &core.Turn{SessionID: "s1", Role: role, Text: fmt.Sprintf("t%d", i)})
		require.NoError(t, err)
		assert.Greater(t, turn.Seq, last, "sequence is strictly increasing")
		last = turn.Seq
	}
	_, err = repos.Sessions.AppendTurn(ctx, &core.Turn{SessionID: "s2", Role: core.RoleUser, Text: "other"})
	require.NoError(t, err)

	t.Run("recent turns are the tail in order", func(t *testing.T) {
		turns, err := repos.Sessions.RecentTurns(ctx, "s1", 3)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		assert.Equal(t, "t2", turns[0].Text)
		assert.Equal(t, "t3", turns[1].Text)
		assert.Equal(t, "t4", turns[2].Text)
	})

	t.Run("limit larger than history", func(t *testing.T) {
		turns, err := repos.Sessions.RecentTurns(ctx, "s1", 50)
		require.NoError(t, err)
		assert.Len(t, turns, 5)
	})

	t.Run("sessions do not share turns", func(t *testing.T) {
		turns, err := repos.Sessions.RecentTurns(ctx, "s2", 10)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, "other", turns[0].Text)
	})

	t.Run("turn count tracks user turns", func(t *testing.T) {
		s, err := repos.Sessions.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 3, s.TurnCount)
	})

	t.Run("append to missing session", func(t *testing.T) {
		_, err := repos.Sessions.AppendTurn(ctx, &core.Turn{SessionID: "nope", Role: core.RoleUser})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
