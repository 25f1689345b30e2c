package memory

import (
	"context"
	"testing"

	"lockstream/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRepository_Create(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	s1, err := repo.Create(ctx, "alpha", "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, s1.ID)
	assert.Equal(t, "alpha", s1.Name)
	assert.Equal(t, "t1", s1.CredentialToken)
	assert.False(t, s1.CreatedAt.IsZero())

	// Names do not collide; every create allocates a new id.
	s2, err := repo.Create(ctx, "alpha", "t2")
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)

	got, err := repo.Get(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, got.ID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestStreamRepository_Members(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	stream, err := repo.Create(ctx, "alpha", "t1")
	require.NoError(t, err)

	require.NoError(t, repo.AddMember(ctx, stream.ID, "conn-a"))
	require.NoError(t, repo.AddMember(ctx, stream.ID, "conn-b"))
	// Adding an existing member is idempotent.
	require.NoError(t, repo.AddMember(ctx, stream.ID, "conn-a"))

	members, err := repo.Members(ctx, stream.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ConnID{"conn-a", "conn-b"}, members)

	count, err := repo.MemberCount(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.RemoveMember(ctx, stream.ID, "conn-a"))
	require.NoError(t, repo.RemoveMember(ctx, stream.ID, "conn-a"))

	count, err = repo.MemberCount(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStreamRepository_UnknownStreamMutationsAreNoOps(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	assert.NoError(t, repo.AddMember(ctx, "missing", "conn-a"))
	assert.NoError(t, repo.RemoveMember(ctx, "missing", "conn-a"))

	_, err := repo.Members(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestStreamRepository_EmptyStreamPersists(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	stream, err := repo.Create(ctx, "alpha", "t1")
	require.NoError(t, err)

	require.NoError(t, repo.AddMember(ctx, stream.ID, "conn-a"))
	require.NoError(t, repo.RemoveMember(ctx, stream.ID, "conn-a"))

	got, err := repo.Get(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, stream.ID, got.ID)

	streams, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, streams, 1)
}

func TestStreamRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	stream, err := repo.Create(ctx, "alpha", "t1")
	require.NoError(t, err)

	got, err := repo.Get(ctx, stream.ID)
	require.NoError(t, err)
	got.CredentialToken = "tampered"

	fresh, err := repo.Get(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, "t1", fresh.CredentialToken)
}
