package lookup

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresConfig holds connection settings for a Postgres-backed
// reference set.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns local-development defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "fast_data_integrity",
		SSLMode: "disable",
	}
}

func (c PostgresConfig) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c PostgresConfig) migrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.DBName, c.SSLMode)
}

// Postgres is a reference-key set backed by a Postgres table, one
// keyspace per lookup.
type Postgres struct {
	pool     *pgxpool.Pool
	keyspace string
}

// OpenPostgres connects, runs the key-table migrations, and returns a
// lookup over the named keyspace.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, keyspace string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, keyspace: keyspace}, nil
}

func runMigrations(cfg PostgresConfig) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.migrateURL())
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Add inserts keys into the keyspace. Existing keys are ignored.
func (p *Postgres) Add(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO reference_keys (keyspace, key) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			p.keyspace, key)
		if err != nil {
			return fmt.Errorf("insert key %q: %w", key, err)
		}
	}
	return nil
}

// Exists implements quality.Lookup.
func (p *Postgres) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reference_keys WHERE keyspace = $1 AND key = $2)`,
		p.keyspace, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query key %q: %w", key, err)
	}
	return exists, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
