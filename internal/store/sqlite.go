package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/playmaker-hq/teamscout/internal/model"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	scraper_id  TEXT PRIMARY KEY,
	teams       TEXT NOT NULL,
	teams_count INTEGER NOT NULL,
	scraped_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id             TEXT PRIMARY KEY,
	scraper_id     TEXT NOT NULL,
	enrichers      TEXT NOT NULL,
	status         TEXT NOT NULL,
	teams_total    INTEGER NOT NULL DEFAULT 0,
	teams_enriched INTEGER NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks (created_at DESC);
`

// SQLiteStore persists datasets and task history in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening sqlite database at %s", path)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "setting %s", pragma)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "running sqlite migration")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDataset(ctx context.Context, scraperID string, teams []model.TeamRow, scrapedAt time.Time) error {
	blob, err := json.Marshal(teams)
	if err != nil {
		return eris.Wrap(err, "marshaling teams")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO datasets (scraper_id, teams, teams_count, scraped_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scraper_id) DO UPDATE SET
			teams = excluded.teams,
			teams_count = excluded.teams_count,
			scraped_at = excluded.scraped_at`,
		scraperID, string(blob), len(teams), scrapedAt.UTC())
	if err != nil {
		return eris.Wrapf(err, "saving dataset for %s", scraperID)
	}
	return nil
}

func (s *SQLiteStore) LoadDataset(ctx context.Context, scraperID string) (*Dataset, error) {
	var blob string
	ds := &Dataset{ScraperID: scraperID}
	err := s.db.QueryRowContext(ctx,
		`SELECT teams, scraped_at FROM datasets WHERE scraper_id = ?`,
		scraperID).Scan(&blob, &ds.ScrapedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "loading dataset for %s", scraperID)
	}

	if err := json.Unmarshal([]byte(blob), &ds.Teams); err != nil {
		return nil, eris.Wrapf(err, "unmarshaling teams for %s", scraperID)
	}
	return ds, nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scraper_id, teams_count, scraped_at FROM datasets ORDER BY scraper_id`)
	if err != nil {
		return nil, eris.Wrap(err, "listing datasets")
	}
	defer rows.Close()

	var infos []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		if err := rows.Scan(&info.ScraperID, &info.TeamsCount, &info.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "scanning dataset row")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "iterating dataset rows")
}

func (s *SQLiteStore) SaveTask(ctx context.Context, rec TaskRecord) error {
	enrichers, err := json.Marshal(rec.Enrichers)
	if err != nil {
		return eris.Wrap(err, "marshaling enrichers")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, scraper_id, enrichers, status, teams_total, teams_enriched, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			teams_total = excluded.teams_total,
			teams_enriched = excluded.teams_enriched,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		rec.ID, rec.ScraperID, string(enrichers), rec.Status,
		rec.TeamsTotal, rec.TeamsEnriched, rec.Error,
		rec.CreatedAt.UTC(), rec.FinishedAt)
	if err != nil {
		return eris.Wrapf(err, "saving task %s", rec.ID)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scraper_id, enrichers, status, teams_total, teams_enriched, error, created_at, finished_at
		FROM tasks WHERE id = ?`, id)

	rec, err := scanTaskRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "loading task %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scraper_id, enrichers, status, teams_total, teams_enriched, error, created_at, finished_at
		FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "listing tasks")
	}
	defer rows.Close()

	var recs []TaskRecord
	for rows.Next() {
		rec, err := scanTaskRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "scanning task row")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "iterating task rows")
}

func scanTaskRecord(scan func(...any) error) (*TaskRecord, error) {
	var rec TaskRecord
	var enrichers string
	var finishedAt sql.NullTime
	err := scan(&rec.ID, &rec.ScraperID, &enrichers, &rec.Status,
		&rec.TeamsTotal, &rec.TeamsEnriched, &rec.Error,
		&rec.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(enrichers), &rec.Enrichers); err != nil {
		return nil, eris.Wrap(err, "unmarshaling enrichers")
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return &rec, nil
}
