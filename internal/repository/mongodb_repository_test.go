package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (*MongoRepository, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb", DefaultMongoOptions())
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestMongo_FetchCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.FetchCart(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestMongo_CreateAndFetch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart, err := repo.CreateCart(ctx, "sess-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cart.Revision)

	fetched, err := repo.FetchCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, fetched.ID)
	assert.Equal(t, "sess-1", fetched.SessionID)
	assert.Empty(t, fetched.Items)
}

func TestMongo_CreateCart_DuplicateSession(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.CreateCart(ctx, "sess-1", nil)
	require.NoError(t, err)

	_, err = repo.CreateCart(ctx, "sess-1", nil)
	assert.ErrorIs(t, err, ErrCartExists)
}

func TestMongo_ReplaceItems(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart, err := repo.CreateCart(ctx, "sess-1", nil)
	require.NoError(t, err)

	items := []domain.CartLine{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}
	updated, err := repo.ReplaceItems(ctx, cart.ID, cart.Revision, items)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)
	assert.Equal(t, items, updated.Items)

	fetched, err := repo.FetchCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, items, fetched.Items)
}

func TestMongo_ReplaceItems_StaleRevision(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart, err := repo.CreateCart(ctx, "sess-1", nil)
	require.NoError(t, err)
	_, err = repo.ReplaceItems(ctx, cart.ID, cart.Revision, []domain.CartLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	_, err = repo.ReplaceItems(ctx, cart.ID, cart.Revision, []domain.CartLine{{ProductID: "p2", Quantity: 1}})
	assert.ErrorIs(t, err, ErrRevisionMismatch)

	_, err = repo.ReplaceItems(ctx, "missing", 1, nil)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMongo_ContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	_, err := repo.FetchCart(ctx, "sess-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
