package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadRepository_CreateAndGet(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	lead, err := repos.Leads.CreateLead(ctx, &core.Lead{
		Name:            "ada",
		Email:           "ada@example.com",
		SourceSessionID: "s1",
	})
	require.NoError(t, err)
	assert.NotZero(t, lead.ID)
	assert.Equal(t, core.LeadStatusNew, lead.Status)

	got, err := repos.Leads.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	bySession, err := repos.Leads.FindLeadBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, bySession.ID)

	_, err = repos.Leads.FindLeadBySession(ctx, "s2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLeadRepository_CreateValidates(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = repos.Leads.CreateLead(context.Background(), &core.Lead{Name: "x", Email: "not-an-email"})
	assert.ErrorIs(t, err, core.ErrInvalidEmail)
}

func TestLeadRepository_ListNewestFirst(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := repos.Leads.CreateLead(ctx, &core.Lead{Name: name, Email: name + "@example.com"})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := repos.Leads.ListLeads(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Name)
	assert.Equal(t, "first", all[2].Name)

	two, err := repos.Leads.ListLeads(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "second", two[1].Name)
}

func TestLeadRepository_UpdateStatus(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	lead, err := repos.Leads.CreateLead(ctx, &core.Lead{Name: "ada", Email: "ada@example.com"})
	require.NoError(t, err)

	updated, err := repos.Leads.UpdateLeadStatus(ctx, lead.ID, core.LeadStatusQualified)
	require.NoError(t, err)
	assert.Equal(t, core.LeadStatusQualified, updated.Status)

	_, err = repos.Leads.UpdateLeadStatus(ctx, lead.ID, "bogus")
	assert.ErrorIs(t, err, core.ErrInvalidLeadStatus)

	_, err = repos.Leads.UpdateLeadStatus(ctx, 999999, core.LeadStatusClosed)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
