package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) (*MongoStore, func()) {
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}

	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewMongoStore(db)
	require.NoError(t, store.CreateIndexes(ctx))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return store, cleanup
}

func TestMongoStore_Behavior(t *testing.T) {
	store, cleanup := setupTestMongo(t)
	defer cleanup()

	testStoreBehavior(t, store)
}

func TestMongoStore_UpsertKeepsSingleDocument(t *testing.T) {
	store, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "cart:s:lines", `{"10":1}`))
	require.NoError(t, store.Set(ctx, "cart:s:lines", `{"10":2}`))

	v, err := store.Get(ctx, "cart:s:lines")
	require.NoError(t, err)
	require.Equal(t, `{"10":2}`, v)
}
