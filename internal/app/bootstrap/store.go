package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/opd-frontdesk/internal/config"
	"github.com/wolfman30/opd-frontdesk/internal/docstore"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// BuildStore opens the document store named by cfg.StoreBackend. The returned
// cleanup releases its connections and is never nil.
func BuildStore(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (docstore.Store, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreBackend {
	case "", BackendMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		return docstore.NewMemoryStore(), noop, nil

	case BackendRedis:
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, noop, fmt.Errorf("bootstrap: redis store at %q unavailable", cfg.RedisAddr)
		}
		return docstore.NewRedisStore(client, logger), func() { _ = client.Close() }, nil

	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("bootstrap: DATABASE_URL is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: open postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		return docstore.NewPostgresStore(pool, docstore.PoolNotifier{Pool: pool}, logger), pool.Close, nil

	case BackendDynamoDB:
		if loadAWS == nil {
			return nil, noop, fmt.Errorf("bootstrap: aws config loader required for the dynamodb store")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return docstore.NewDynamoStore(client, cfg.DocstoreTable, cfg.DocstorePollInterval, logger), noop, nil
	}
	return nil, noop, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
}
