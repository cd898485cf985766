package inventory

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/softscan/internal/core/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const insertChunk = 1000

// DBConfig holds PostgreSQL connection configuration.
type DBConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	Retention time.Duration `yaml:"retention"` // 0 = keep forever
}

// Store reads and writes per-host software inventories.
type Store struct {
	db *sqlx.DB
}

// NewStore opens the inventory database.
func NewStore(ctx context.Context, cfg DBConfig) (*Store, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type inventoryRow struct {
	Host     string `db:"host"`
	Name     string `db:"name"`
	Version  string `db:"version"`
	Position int    `db:"position"`
}

// Replace stores items as the complete inventory of host.
func (s *Store) Replace(ctx context.Context, host string, items []domain.Item) error {
	items = domain.Dedupe(items)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM installed_software WHERE host = $1`, host); err != nil {
		return fmt.Errorf("failed to clear inventory: %w", wrapUndefinedTable(err))
	}

	const insert = `
		INSERT INTO installed_software (host, name, version, position)
		VALUES (:host, :name, :version, :position)
	`
	for start := 0; start < len(items); start += insertChunk {
		end := min(start+insertChunk, len(items))
		rows := make([]inventoryRow, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, inventoryRow{
				Host:     host,
				Name:     items[i].Name,
				Version:  items[i].InstalledVersion,
				Position: i,
			})
		}
		if _, err := tx.NamedExecContext(ctx, insert, rows); err != nil {
			return fmt.Errorf("failed to insert inventory: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns the inventory of host in reported order.
func (s *Store) List(ctx context.Context, host string) ([]domain.Item, error) {
	var items []domain.Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT name, version
		FROM installed_software
		WHERE host = $1
		ORDER BY position ASC
	`, host)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", wrapUndefinedTable(err))
	}
	return items, nil
}

// DeleteOlderThan removes inventory rows last reported before cutoff and
// returns how many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM installed_software WHERE reported_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune inventory: %w", err)
	}
	return res.RowsAffected()
}

const undefinedTable = "42P01"

// ErrNotMigrated reports that the inventory schema has not been applied.
var ErrNotMigrated = errors.New("inventory schema missing, run softscan migrate")

func wrapUndefinedTable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %w", ErrNotMigrated, err)
	}
	return err
}

// PostgresSource reads one host's inventory from a Store.
type PostgresSource struct {
	store *Store
	host  string
}

// NewPostgresSource creates a Source for host.
func NewPostgresSource(store *Store, host string) *PostgresSource {
	return &PostgresSource{store: store, host: host}
}

// Items implements Source.
func (s *PostgresSource) Items(ctx context.Context) ([]domain.Item, error) {
	items, err := s.store.List(ctx, s.host)
	if err != nil {
		return nil, err
	}
	return domain.Dedupe(items), nil
}
