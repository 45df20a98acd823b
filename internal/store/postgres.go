package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock's pool
// implements it too, which is what the tests exercise.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"load_dataset": `SELECT teams, scraped_at FROM datasets WHERE scraper_id = $1`,
	"save_dataset": `INSERT INTO datasets (scraper_id, teams, teams_count, scraped_at) VALUES ($1, $2, $3, $4) ON CONFLICT (scraper_id) DO UPDATE SET teams = $2, teams_count = $3, scraped_at = $4`,
	"get_task":     `SELECT id, scraper_id, enrichers, status, teams_total, teams_enriched, error, created_at, finished_at FROM tasks WHERE id = $1`,
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	scraper_id  TEXT PRIMARY KEY,
	teams       JSONB NOT NULL,
	teams_count INTEGER NOT NULL,
	scraped_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id             TEXT PRIMARY KEY,
	scraper_id     TEXT NOT NULL,
	enrichers      JSONB NOT NULL,
	status         TEXT NOT NULL,
	teams_total    INTEGER NOT NULL DEFAULT 0,
	teams_enriched INTEGER NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tasks_scraper_id ON tasks (scraper_id);
`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveDataset(ctx context.Context, scraperID string, teams []model.TeamRow, scrapedAt time.Time) error {
	teamsJSON, err := json.Marshal(teams)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal teams")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO datasets (scraper_id, teams, teams_count, scraped_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (scraper_id) DO UPDATE SET teams = $2, teams_count = $3, scraped_at = $4`,
		scraperID, teamsJSON, len(teams), scrapedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save dataset %s", scraperID)
}

func (s *PostgresStore) LoadDataset(ctx context.Context, scraperID string) (*Dataset, error) {
	ds := &Dataset{ScraperID: scraperID}
	var teamsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT teams, scraped_at FROM datasets WHERE scraper_id = $1`,
		scraperID,
	).Scan(&teamsJSON, &ds.ScrapedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: load dataset %s", scraperID)
	}

	if err := json.Unmarshal(teamsJSON, &ds.Teams); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal teams")
	}
	return ds, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT scraper_id, teams_count, scraped_at FROM datasets ORDER BY scraper_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var infos []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		if err := rows.Scan(&info.ScraperID, &info.TeamsCount, &info.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "postgres: list datasets iterate")
}

func (s *PostgresStore) SaveTask(ctx context.Context, rec TaskRecord) error {
	enrichersJSON, err := json.Marshal(rec.Enrichers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichers")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (id, scraper_id, enrichers, status, teams_total, teams_enriched, error, created_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   status = $4, teams_total = $5, teams_enriched = $6, error = $7, finished_at = $9`,
		rec.ID, rec.ScraperID, enrichersJSON, rec.Status,
		rec.TeamsTotal, rec.TeamsEnriched, rec.Error,
		rec.CreatedAt.UTC(), rec.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: save task %s", rec.ID)
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	var rec TaskRecord
	var enrichersJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, scraper_id, enrichers, status, teams_total, teams_enriched, error, created_at, finished_at
		 FROM tasks WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.ScraperID, &enrichersJSON, &rec.Status,
		&rec.TeamsTotal, &rec.TeamsEnriched, &rec.Error,
		&rec.CreatedAt, &rec.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get task %s", id)
	}

	if err := json.Unmarshal(enrichersJSON, &rec.Enrichers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal enrichers")
	}
	return &rec, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, scraper_id, enrichers, status, teams_total, teams_enriched, error, created_at, finished_at
		 FROM tasks ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var recs []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var enrichersJSON []byte
		if err := rows.Scan(&rec.ID, &rec.ScraperID, &enrichersJSON, &rec.Status,
			&rec.TeamsTotal, &rec.TeamsEnriched, &rec.Error,
			&rec.CreatedAt, &rec.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		if err := json.Unmarshal(enrichersJSON, &rec.Enrichers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enrichers")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}
