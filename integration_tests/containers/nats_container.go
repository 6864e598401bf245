//go:build integration

// integration_tests/containers/nats_container.go
package containers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Player updates use core NATS request/reply; no streams are provisioned.
const natsImage = "nats:2.10-alpine"

// SetupNatsContainer starts a NATS testcontainer and returns the container and client URL.
func SetupNatsContainer(ctx context.Context) (*nats.NATSContainer, string, error) {
	natsContainer, err := nats.Run(ctx,
		natsImage,
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("4222/tcp").WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		if natsContainer != nil {
			natsContainer.Terminate(ctx)
		}
		return nil, "", fmt.Errorf("failed to start nats container: %w", err)
	}

	natsURL, err := natsContainer.ConnectionString(ctx)
	if err != nil {
		natsContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get nats connection string: %w", err)
	}

	log.Println("NATS container started and ready.")
	return natsContainer, natsURL, nil
}
