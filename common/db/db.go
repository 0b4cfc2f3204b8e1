package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/redis"
	zerolog "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/rs/zerolog/log"
)

// LogTable is the table the database log hook writes into. Its queries are
// kept out of the driver trace so logging a query never logs another query.
const LogTable = "crawl_logs"

// DB provides access to the database
type DB struct {
	Pool  *pgxpool.Pool
	Redis *redis.RedisClient
}

// New creates a new DB instance; redis may be nil
func New(pool *pgxpool.Pool, redis *redis.RedisClient) (*DB, error) {
	if pool == nil {
		return nil, errors.New("cannot use nil database pool")
	}
	return &DB{
		Pool:  pool,
		Redis: redis,
	}, nil
}

// Close closes the database and Redis connections
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// SetupDatabase connects to Postgres and, when enabled, Redis
func SetupDatabase(ctx context.Context, cfg config.Config) (*DB, error) {
	config, err := pgxpool.ParseConfig(cfg.PgSql.ConnStr())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	config.MaxConns = int32(max(cfg.Crawl.Workers*2, 4))
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	logger := zerolog.NewLogger(log.Logger)
	config.ConnConfig.Tracer = NewFilteredTracer(&tracelog.TraceLog{
		Logger:   logger,
		LogLevel: tracelog.LogLevelInfo,
	}, LogTable)

	pgsqlClient, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pgsqlClient.Ping(ctx); err != nil {
		pgsqlClient.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	var redisClient *redis.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg)
		if err != nil {
			pgsqlClient.Close()
			return nil, fmt.Errorf("creating Redis client: %w", err)
		}
	}

	dbConn, err := New(pgsqlClient, redisClient)
	if err != nil {
		return nil, fmt.Errorf("creating DB handler: %w", err)
	}

	return dbConn, nil
}
