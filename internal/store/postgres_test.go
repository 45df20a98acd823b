package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playmaker-hq/teamscout/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveDataset_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO datasets .* ON CONFLICT`).
		WithArgs("mlb_milb", pgxmock.AnyArg(), 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	teams := []model.TeamRow{{Name: "Chicago Cubs", Region: "Chicago"}}
	err := s.SaveDataset(context.Background(), "mlb_milb", teams, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadDataset(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	scrapedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT teams, scraped_at FROM datasets WHERE scraper_id = \$1`).
		WithArgs("nfl").
		WillReturnRows(pgxmock.NewRows([]string{"teams", "scraped_at"}).
			AddRow([]byte(`[{"name":"Chicago Bears","region":"Chicago"}]`), scrapedAt))

	ds, err := s.LoadDataset(context.Background(), "nfl")
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.Equal(t, "nfl", ds.ScraperID)
	require.Len(t, ds.Teams, 1)
	assert.Equal(t, "Chicago Bears", ds.Teams[0].Name)
	assert.True(t, ds.ScrapedAt.Equal(scrapedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadDataset_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT teams, scraped_at FROM datasets`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	ds, err := s.LoadDataset(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDatasets(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT scraper_id, teams_count, scraped_at FROM datasets ORDER BY scraper_id`).
		WillReturnRows(pgxmock.NewRows([]string{"scraper_id", "teams_count", "scraped_at"}).
			AddRow("mlb_milb", 150, now).
			AddRow("wnba", 13, now))

	infos, err := s.ListDatasets(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "mlb_milb", infos[0].ScraperID)
	assert.Equal(t, 150, infos[0].TeamsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTask_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	finished := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO tasks .* ON CONFLICT`).
		WithArgs("task-1", "wnba", pgxmock.AnyArg(), "completed", 13, 12, "",
			pgxmock.AnyArg(), &finished).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveTask(context.Background(), TaskRecord{
		ID:            "task-1",
		ScraperID:     "wnba",
		Enrichers:     []string{"geo"},
		Status:        "completed",
		TeamsTotal:    13,
		TeamsEnriched: 12,
		CreatedAt:     time.Now(),
		FinishedAt:    &finished,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTask_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, scraper_id, enrichers, status, .* FROM tasks WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetTask(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTasks(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, scraper_id, enrichers, status, .* FROM tasks ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "scraper_id", "enrichers", "status",
			"teams_total", "teams_enriched", "error", "created_at", "finished_at",
		}).AddRow("t2", "nfl", []byte(`["geo","social"]`), "failed",
			32, 0, "upstream down", created, (*time.Time)(nil)))

	recs, err := s.ListTasks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "t2", recs[0].ID)
	assert.Equal(t, []string{"geo", "social"}, recs[0].Enrichers)
	assert.Equal(t, "upstream down", recs[0].Error)
	assert.Nil(t, recs[0].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS datasets`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
