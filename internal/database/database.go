package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	loggerPkg "github.com/Dprinces/Award-Portal-sub002/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Database struct {
	Pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// pgxTracer bridges pgx query tracing onto the database zerolog logger.
type pgxTracer struct {
	logger zerolog.Logger
}

func (t pgxTracer) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var evt *zerolog.Event
	switch level {
	case tracelog.LogLevelError:
		evt = t.logger.Error()
	case tracelog.LogLevelWarn:
		evt = t.logger.Warn()
	case tracelog.LogLevelInfo:
		evt = t.logger.Info()
	default:
		evt = t.logger.Debug()
	}
	evt.Fields(data).Msg(msg)
}

func New(cfg *config.Config, logger *zerolog.Logger) (*Database, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = time.Duration(cfg.Database.ConnMaxLifetime) * time.Second
	poolCfg.MaxConnIdleTime = time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second

	poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   pgxTracer{logger: loggerPkg.NewPgxLogger(logger.GetLevel())},
		LogLevel: tracelog.LogLevel(loggerPkg.GetPgxTraceLogLevel(logger.GetLevel())),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Msg("Connected to Postgres successfully")

	return &Database{
		Pool:   pool,
		logger: logger,
	}, nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

func (d *Database) Close() {
	d.logger.Info().Msg("Closing database connection pool")
	d.Pool.Close()
}
