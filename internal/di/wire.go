//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"CryptoDash/internal/service/backend"
	"CryptoDash/pkg/config"
	"CryptoDash/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,

		// Infrastructure clients
		ProvideCache,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories
		ProvideSnapshotStore,
		ProvideEventPublisher,
		ProvideCandleArchive,

		// Backend access
		ProvideLimiter,
		ProvideBackendClient,

		// Use cases
		ProvidePoller,
		ProvideScalperController,
		ProvideEventPipeline,
		ProvideOrchestrator,

		// Transport
		ProvideStreamHub,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}

// InitializeBackendClient builds only the backend client, for one-shot
// commands.
func InitializeBackendClient(cfg *config.Config) (*backend.Client, error) {
	wire.Build(
		infraSet,
		ProvideLimiter,
		ProvideBackendClient,
	)
	return &backend.Client{}, nil
}
