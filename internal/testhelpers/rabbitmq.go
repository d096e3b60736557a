package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// NewTestRabbitMQ starts a RabbitMQ container and returns its AMQP URL.
// The container is terminated when the test finishes.
func NewTestRabbitMQ(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err, "Failed to start rabbitmq container")
	t.Cleanup(func() {
		if termErr := rabbitmqContainer.Terminate(ctx); termErr != nil {
			t.Logf("failed to terminate container: %s", termErr)
		}
	})

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	return amqpURL
}
