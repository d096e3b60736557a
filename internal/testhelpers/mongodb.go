package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	mongostore "github.com/floroz/bidworker/internal/infra/mongodb"
)

// TestMongo is a MongoDB container with a connected client
type TestMongo struct {
	Client  *mongo.Client
	cleanup func()
}

// Close disconnects the client and terminates the container
func (m *TestMongo) Close() {
	if m.cleanup != nil {
		m.cleanup()
	}
}

// Collection returns a collection in the test database
func (m *TestMongo) Collection(name string) *mongo.Collection {
	return m.Client.Database("testdb").Collection(name)
}

// NewTestMongo starts a MongoDB container
func NewTestMongo(t *testing.T) *TestMongo {
	t.Helper()

	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err, "Failed to start mongo container")

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get connection string")

	client, err := mongostore.Connect(ctx, uri)
	require.NoError(t, err, "Failed to connect to mongo")

	cleanup := func() {
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("Failed to disconnect mongo client: %v", err)
		}
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return &TestMongo{
		Client:  client,
		cleanup: cleanup,
	}
}
