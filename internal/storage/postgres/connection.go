package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

const (
	_defaultMaxPoolSize  = 3
	_defaultConnAttempts = 5
	_defaultConnTimeout  = time.Second
)

type PostgresSecret struct {
	Name         string `json:"name"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Host         string `json:"host"`
	Port         uint16 `json:"port"`
	DBConnString string `json:"dbConnString"`
}

type Postgres struct {
	maxPoolSize  int
	connAttempts int
	connTimeout  time.Duration
	logger       *zap.Logger

	Builder squirrel.StatementBuilderType
	Pool    *pgxpool.Pool
}

// Option configures a Postgres connection.
type Option func(*Postgres)

func MaxPoolSize(size int) Option {
	return func(p *Postgres) { p.maxPoolSize = size }
}

func ConnAttempts(attempts int) Option {
	return func(p *Postgres) { p.connAttempts = attempts }
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Postgres) { p.connTimeout = timeout }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Postgres) { p.logger = logger }
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// withSSLModeDefault respects the provided DSN and defaults sslmode to disable if not set.
func withSSLModeDefault(dsn string) string {
	if strings.Contains(dsn, "sslmode=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "sslmode=disable"
}

func NewPostgresDB(ctx context.Context, cfg *PostgresSecret, opts ...Option) (*Postgres, error) {
	pg := &Postgres{
		maxPoolSize:  _defaultMaxPoolSize,
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(pg)
	}

	pg.Builder = newBuilder()

	poolConfig, err := pgxpool.ParseConfig(withSSLModeDefault(cfg.DBConnString))
	if err != nil {
		return nil, fmt.Errorf("postgres - NewPostgres - pgxpool.ParseConfig: %w", err)
	}
	poolConfig.MaxConns = int32(pg.maxPoolSize)

	for pg.connAttempts > 0 {
		pg.Pool, err = pgxpool.ConnectConfig(ctx, poolConfig)
		if err == nil {
			break
		}
		pg.logger.Warn("postgres is trying to connect",
			zap.Int("attempts_left", pg.connAttempts), zap.Error(err))
		time.Sleep(pg.connTimeout)
		pg.connAttempts--
	}
	if err != nil {
		return nil, fmt.Errorf("postgres - NewPostgres - connAttempts == 0: %w", err)
	}

	return pg, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
