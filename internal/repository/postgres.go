package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/questbot-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore хранит сессии в PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище и инициализирует схему БД через миграции.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Create регистрирует новую сессию с пустыми учётными данными.
func (s *PostgresStore) Create(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id) VALUES ($1)`,
		id,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrSessionExists, id)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get возвращает сессию по идентификатору.
func (s *PostgresStore) Get(ctx context.Context, id string) (*model.SessionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, cookie, private_key, auto_mode, updated_at FROM sessions WHERE id = $1`,
		id,
	)

	var rec model.SessionRecord
	err := row.Scan(&rec.ID, &rec.Cookie, &rec.PrivateKey, &rec.AutoMode, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &rec, nil
}

// Put сохраняет сессию, создавая её при отсутствии.
func (s *PostgresStore) Put(ctx context.Context, rec *model.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, cookie, private_key, auto_mode, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (id) DO UPDATE
		 SET cookie = EXCLUDED.cookie,
		     private_key = EXCLUDED.private_key,
		     auto_mode = EXCLUDED.auto_mode,
		     updated_at = now()`,
		rec.ID, rec.Cookie, rec.PrivateKey, rec.AutoMode,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// List возвращает все сессии в стабильном порядке идентификаторов.
func (s *PostgresStore) List(ctx context.Context) ([]model.SessionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cookie, private_key, auto_mode, updated_at FROM sessions ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Cookie, &rec.PrivateKey, &rec.AutoMode, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return records, nil
}
