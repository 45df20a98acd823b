package scraper

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/names"
)

const mlbStatsAPIBase = "https://statsapi.mlb.com"

// mlbSportIDs selects the levels fetched from the StatsAPI:
// MLB(1), AAA(11), AA(12), High-A(13), A(14), Rookie(16).
var mlbSportIDs = []int{1, 11, 12, 13, 14, 16}

// MLBMiLBScraper fetches MLB and all affiliated minor league teams from the
// MLB StatsAPI.
type MLBMiLBScraper struct {
	client  *fetch.Client
	baseURL string
}

// MLBOption configures the scraper.
type MLBOption func(*MLBMiLBScraper)

// WithMLBBaseURL overrides the StatsAPI base URL, for tests.
func WithMLBBaseURL(u string) MLBOption {
	return func(s *MLBMiLBScraper) { s.baseURL = u }
}

// NewMLBMiLBScraper builds the MLB/MiLB scraper.
func NewMLBMiLBScraper(client *fetch.Client, opts ...MLBOption) *MLBMiLBScraper {
	s := &MLBMiLBScraper{client: client, baseURL: mlbStatsAPIBase}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MLBMiLBScraper) ID() string   { return "mlb_milb" }
func (s *MLBMiLBScraper) Name() string { return "MLB & MiLB Teams" }
func (s *MLBMiLBScraper) Description() string {
	return "Fetches team data from the MLB StatsAPI including MLB and all affiliated minor league teams"
}
func (s *MLBMiLBScraper) SourceURL() string { return s.baseURL + "/api/v1/teams" }

type statsAPITeam struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	LocationName string `json:"locationName"`
	Link         string `json:"link"`
	Active       bool   `json:"active"`
	Sport        struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"sport"`
	League struct {
		Name string `json:"name"`
	} `json:"league"`
}

// Scrape pulls every configured sport level. A level that fails to load is
// logged and skipped; the scrape fails only when no level yields teams.
func (s *MLBMiLBScraper) Scrape(ctx context.Context) ([]model.TeamRow, *model.ScrapeResult, error) {
	start := time.Now()
	result := &model.ScrapeResult{Timestamp: start.UTC()}

	var raw []statsAPITeam
	for _, sportID := range mlbSportIDs {
		var resp struct {
			Teams []statsAPITeam `json:"teams"`
		}
		url := fmt.Sprintf("%s/api/v1/teams?sportId=%d", s.baseURL, sportID)
		if err := s.client.GetJSON(ctx, url, nil, &resp); err != nil {
			zap.L().Warn("statsapi level fetch failed",
				zap.Int("sport_id", sportID),
				zap.Error(err),
			)
			continue
		}
		raw = append(raw, resp.Teams...)
	}

	if len(raw) == 0 {
		result.DurationMS = time.Since(start).Milliseconds()
		err := eris.New("mlb_milb: no teams returned from any sport level")
		result.Error = err.Error()
		return nil, result, err
	}

	seen := map[string]bool{}
	var rows []model.TeamRow
	mlbCount, milbCount := 0, 0
	for _, t := range raw {
		if !t.Active {
			continue
		}
		key := names.Key(t.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		row := s.toRow(t)
		if row.Category == "MLB" {
			mlbCount++
		} else {
			milbCount++
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.League != b.League {
			return a.League < b.League
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Name < b.Name
	})

	result.Success = true
	result.TeamsCount = len(rows)
	result.Breakdown = map[string]int{"MLB": mlbCount, "MiLB": milbCount}
	result.DurationMS = time.Since(start).Milliseconds()
	return rows, result, nil
}

func (s *MLBMiLBScraper) toRow(t statsAPITeam) model.TeamRow {
	league := t.Sport.Name
	if t.League.Name != "" {
		league = t.Sport.Name + " — " + t.League.Name
	}

	target := "Baseball fans"
	if t.LocationName != "" {
		target = "Local baseball fans and families in/around " + t.LocationName
	}

	officialURL := ""
	if t.Link != "" {
		officialURL = s.baseURL + t.Link
	}

	category := "MiLB"
	if t.Sport.ID == 1 {
		category = "MLB"
	}

	return model.TeamRow{
		Name:              t.Name,
		Region:            t.LocationName,
		League:            league,
		TargetDemographic: target,
		OfficialURL:       officialURL,
		Category:          category,
	}
}
