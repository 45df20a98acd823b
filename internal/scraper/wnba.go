package scraper

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
)

const espnWNBAURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/wnba/teams"

const wnbaLeagueName = "Women's National Basketball Association"

var wnbaMultiwordRegions = []string{
	"Los Angeles", "Las Vegas", "New York", "Golden State", "San Francisco",
}

// wnbaStaticTeams is the fallback roster, current as of the 2025 season.
var wnbaStaticTeams = [][3]string{
	{"Atlanta Dream", "Atlanta", "https://dream.wnba.com/"},
	{"Chicago Sky", "Chicago", "https://sky.wnba.com/"},
	{"Connecticut Sun", "Connecticut", "https://sun.wnba.com/"},
	{"Indiana Fever", "Indiana", "https://fever.wnba.com/"},
	{"New York Liberty", "New York", "https://liberty.wnba.com/"},
	{"Washington Mystics", "Washington", "https://mystics.wnba.com/"},
	{"Dallas Wings", "Dallas", "https://wings.wnba.com/"},
	{"Golden State Valkyries", "San Francisco", "https://valkyries.wnba.com/"},
	{"Las Vegas Aces", "Las Vegas", "https://aces.wnba.com/"},
	{"Los Angeles Sparks", "Los Angeles", "https://sparks.wnba.com/"},
	{"Minnesota Lynx", "Minnesota", "https://lynx.wnba.com/"},
	{"Phoenix Mercury", "Phoenix", "https://mercury.wnba.com/"},
	{"Seattle Storm", "Seattle", "https://storm.wnba.com/"},
}

// WNBAScraper fetches WNBA teams from the ESPN site API, with a static
// roster fallback.
type WNBAScraper struct {
	client *fetch.Client
	apiURL string
}

// WNBAOption configures the scraper.
type WNBAOption func(*WNBAScraper)

// WithWNBAAPIURL overrides the ESPN API URL, for tests.
func WithWNBAAPIURL(u string) WNBAOption {
	return func(s *WNBAScraper) { s.apiURL = u }
}

// NewWNBAScraper builds the WNBA scraper.
func NewWNBAScraper(client *fetch.Client, opts ...WNBAOption) *WNBAScraper {
	s := &WNBAScraper{client: client, apiURL: espnWNBAURL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WNBAScraper) ID() string   { return "wnba" }
func (s *WNBAScraper) Name() string { return "WNBA Teams" }
func (s *WNBAScraper) Description() string {
	return "Fetches WNBA team data from the ESPN site API"
}
func (s *WNBAScraper) SourceURL() string { return s.apiURL }

type espnTeamsResponse struct {
	Sports []struct {
		Leagues []struct {
			Teams []struct {
				Team espnTeam `json:"team"`
			} `json:"teams"`
		} `json:"leagues"`
	} `json:"sports"`
}

type espnTeam struct {
	DisplayName string `json:"displayName"`
	Location    string `json:"location"`
	Slug        string `json:"slug"`
	Logos       []struct {
		Href string `json:"href"`
	} `json:"logos"`
}

func (s *WNBAScraper) Scrape(ctx context.Context) ([]model.TeamRow, *model.ScrapeResult, error) {
	start := time.Now()
	result := &model.ScrapeResult{Timestamp: start.UTC()}

	var rows []model.TeamRow
	var resp espnTeamsResponse
	if err := s.client.GetJSON(ctx, s.apiURL, nil, &resp); err == nil {
		rows = espnRows(resp)
	}
	if len(rows) == 0 {
		rows = wnbaStaticRows()
		result.UsedFallback = true
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Region != rows[j].Region {
			return rows[i].Region < rows[j].Region
		}
		return rows[i].Name < rows[j].Name
	})

	result.Success = true
	result.TeamsCount = len(rows)
	result.Breakdown = map[string]int{"WNBA": len(rows)}
	result.DurationMS = time.Since(start).Milliseconds()
	return rows, result, nil
}

func espnRows(resp espnTeamsResponse) []model.TeamRow {
	var rows []model.TeamRow
	for _, sport := range resp.Sports {
		for _, league := range sport.Leagues {
			for _, entry := range league.Teams {
				t := entry.Team
				if t.DisplayName == "" {
					continue
				}
				row := wnbaRow(t.DisplayName, wnbaRegion(t), wnbaOfficialURL(t.Slug))
				if len(t.Logos) > 0 {
					row.LogoURL = t.Logos[0].Href
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func wnbaRegion(t espnTeam) string {
	if t.Location != "" {
		return t.Location
	}
	for _, p := range wnbaMultiwordRegions {
		if strings.HasPrefix(t.DisplayName, p+" ") {
			return p
		}
	}
	// Everything except the trailing nickname.
	parts := strings.Fields(t.DisplayName)
	if len(parts) >= 2 {
		return strings.Join(parts[:len(parts)-1], " ")
	}
	return t.DisplayName
}

// wnbaOfficialURL derives the team site from the ESPN slug: team sites live
// at {slug}.wnba.com with hyphens dropped.
func wnbaOfficialURL(slug string) string {
	if slug == "" {
		return ""
	}
	return "https://" + strings.ReplaceAll(slug, "-", "") + ".wnba.com/"
}

func wnbaStaticRows() []model.TeamRow {
	rows := make([]model.TeamRow, 0, len(wnbaStaticTeams))
	for _, t := range wnbaStaticTeams {
		rows = append(rows, wnbaRow(t[0], t[1], t[2]))
	}
	return rows
}

func wnbaRow(name, region, url string) model.TeamRow {
	return model.TeamRow{
		Name:              name,
		Region:            region,
		League:            wnbaLeagueName,
		TargetDemographic: "Women's basketball fans in and around " + region + ", families, and the growing national WNBA audience.",
		OfficialURL:       url,
		Category:          "WNBA",
	}
}
