//go:build integration

package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/bridgegate/internal/testutil"
)

func TestPostgres_AddAndFind(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	added, err := store.Add(ctx, "alice", TypeAcct)
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.False(t, added.CreatedAt.IsZero())

	found, err := store.FindByAddress(ctx, "alice", TypeAcct)
	require.NoError(t, err)
	assert.Equal(t, added.ID, found.ID)
	assert.Equal(t, "alice", found.Address)
}

func TestPostgres_FindNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)

	_, err := store.FindByAddress(context.Background(), "nobody", TypeAcct)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_TypeMismatch(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	_, err := store.Add(ctx, "fees", TypeLiability)
	require.NoError(t, err)

	_, err = store.FindByAddress(ctx, "fees", TypeAcct)
	assert.ErrorIs(t, err, ErrNotFound)
}
