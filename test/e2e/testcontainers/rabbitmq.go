// Package testcontainers starts the brokers and databases the e2e suites run against.
package testcontainers

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RabbitMQConfig holds configuration for RabbitMQ test container.
type RabbitMQConfig struct {
	// User is the RabbitMQ username (default: guest)
	User string
	// Password is the RabbitMQ password (default: guest)
	Password string
	// ContainerName is the name of the container (optional)
	ContainerName string
}

// RabbitMQ is a running broker container and how to reach it.
type RabbitMQ struct {
	Container testcontainers.Container
	// URL is the AMQP connection string.
	URL string
	// ManagementURL is the base URL of the management API.
	ManagementURL string
}

// ContainerID returns the id of the broker container.
func (r *RabbitMQ) ContainerID() string {
	return r.Container.GetContainerID()
}

// Terminate stops the container.
func (r *RabbitMQ) Terminate(ctx context.Context) error {
	return r.Container.Terminate(ctx)
}

// StartRabbitMQ starts a RabbitMQ container with the management plugin.
func StartRabbitMQ(ctx context.Context, config *RabbitMQConfig) (*RabbitMQ, error) {
	if config == nil {
		config = &RabbitMQConfig{}
	}
	if config.User == "" {
		config.User = "guest"
	}
	if config.Password == "" {
		config.Password = "guest"
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management-alpine",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5672/tcp"),
				wait.ForLog("Server startup complete"),
			),
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": config.User,
				"RABBITMQ_DEFAULT_PASS": config.Password,
			},
			Name: config.ContainerName,
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	amqpPort, err := container.MappedPort(ctx, "5672")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get amqp port: %w", err)
	}

	mgmtPort, err := container.MappedPort(ctx, "15672")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get management port: %w", err)
	}

	return &RabbitMQ{
		Container:     container,
		URL:           fmt.Sprintf("amqp://%s:%s@%s:%s/", config.User, config.Password, host, amqpPort.Port()),
		ManagementURL: fmt.Sprintf("http://%s:%s", host, mgmtPort.Port()),
	}, nil
}
