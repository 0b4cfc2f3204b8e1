package cmd

import (
	"context"
	"fmt"

	"github.com/Glyph8/navermapCrawling/common/browser/rodbrowser"
	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/db"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/redis"
	"github.com/Glyph8/navermapCrawling/common/services"
	"github.com/Glyph8/navermapCrawling/common/storage"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/Glyph8/navermapCrawling/handler"
	"github.com/rs/zerolog/log"
)

// infra holds the optional backing services. Each is nil when disabled.
type infra struct {
	db    *db.DB
	redis *redis.RedisClient
	nats  *messaging.NatsBroker
	gcs   *storage.GCSStorage

	state work.StateStore
	work  *work.WorkManager
	repos handler.Repositories
}

func setupInfra(ctx context.Context, cfg config.Config) (*infra, error) {
	in := &infra{}

	if cfg.PgSql.Enabled {
		dbConn, err := db.SetupDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		in.db = dbConn
		in.redis = dbConn.Redis

		if err := services.Migrate(ctx, dbConn.Pool); err != nil {
			in.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		in.repos = handler.Repositories{
			Runs:   services.NewRunRepository(dbConn.Pool),
			Logs:   services.NewLogRepository(dbConn.Pool),
			Places: services.NewPlaceRepository(dbConn.Pool),
		}
	}

	if cfg.Redis.Enabled && in.redis == nil {
		client, err := redis.NewClient(ctx, cfg)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("creating Redis client: %w", err)
		}
		in.redis = client
	}

	broker, err := messaging.SetupNatsBroker(cfg)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.nats = broker

	if cfg.GCS.Enabled() {
		gcs, err := storage.NewGCSStorage(ctx, cfg.GCS)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("setting up GCS storage: %w", err)
		}
		in.gcs = gcs
	}

	if in.redis != nil {
		in.state = in.redis
	} else {
		log.Info().Msg("Redis disabled, keeping run state in memory")
		in.state = work.NewMemoryState()
	}
	in.work = work.NewWorkManager(in.state, in.repos.Runs)

	log.Info().
		Bool("postgres", in.db != nil).
		Bool("redis", in.redis != nil).
		Bool("nats", in.nats != nil).
		Bool("gcs", in.gcs != nil).
		Msg("Infrastructure ready")
	return in, nil
}

// deps builds runner dependencies around open
func (in *infra) deps(cfg config.Config, open crawlers.Opener) crawlers.Deps {
	deps := crawlers.Deps{
		Open:    open,
		Work:    in.work,
		Places:  in.repos.Places,
		Runs:    in.repos.Runs,
		Claimer: in.state,
	}
	if cfg.Log.Database {
		deps.Logs = in.repos.Logs
	}
	if in.nats != nil {
		deps.Publisher = in.nats
	}
	if in.gcs != nil {
		deps.Storage = in.gcs
	}
	return deps
}

func (in *infra) Close() {
	if in.gcs != nil {
		if err := in.gcs.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close GCS client")
		}
	}
	if in.nats != nil {
		if err := in.nats.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close NATS client")
		}
	}
	if in.db != nil {
		// closes the shared Redis client too
		in.db.Close()
	} else if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}

func browserConfig(cfg config.Config) rodbrowser.Config {
	return rodbrowser.Config{
		ControlURL:        cfg.Browser.ControlURL,
		Bin:               cfg.Browser.Bin,
		Headless:          cfg.Browser.Headless,
		Stealth:           cfg.Browser.Stealth,
		Incognito:         cfg.Browser.Incognito,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		PollInterval:      cfg.Browser.PollInterval,
		Flags:             cfg.Browser.Flags,
	}
}
