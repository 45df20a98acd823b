package enricher

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/names"
)

// Forbes publishes franchise valuation lists only for the major leagues.
// Minor league and developmental teams have no public valuations, so the
// enricher skips them rather than guessing.
var forbesValuationLists = map[string]string{
	"mlb":  "https://www.forbes.com/mlb-valuations/list/",
	"nfl":  "https://www.forbes.com/nfl-valuations/list/",
	"nba":  "https://www.forbes.com/nba-valuations/list/",
	"nhl":  "https://www.forbes.com/nhl-valuations/list/",
	"mls":  "https://www.forbes.com/mls-valuations/list/",
	"wnba": "https://www.forbes.com/wnba-valuations/list/",
}

var majorLeagueKeys = map[string]string{
	"mlb":  "mlb",
	"nfl":  "nfl",
	"nba":  "nba",
	"nhl":  "nhl",
	"mls":  "mls",
	"wnba": "wnba",
}

// moneyPattern matches "$5.1B", "$950M", "$1,200 million" style figures.
var moneyPattern = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*(billion|million|B|M)\b`)

type valuationEntry struct {
	valueMillions   float64
	revenueMillions float64
}

// ValuationEnricher fills franchise value and annual revenue from published
// Forbes valuation lists. Only major league teams are covered; teams in other
// leagues are skipped without error.
type ValuationEnricher struct {
	cfg    Config
	client *fetch.Client

	mu     sync.Mutex
	tables map[string]map[string]valuationEntry // league key -> names.Key(team) -> entry
}

// NewValuationEnricher builds the franchise valuation enricher.
func NewValuationEnricher(cfg Config) Enricher {
	return &ValuationEnricher{
		cfg:    cfg.withDefaults(),
		tables: map[string]map[string]valuationEntry{},
	}
}

func (v *ValuationEnricher) ID() string   { return "valuation" }
func (v *ValuationEnricher) Name() string { return "Franchise Valuation Enricher" }
func (v *ValuationEnricher) Description() string {
	return "Adds franchise value and revenue figures from published valuation lists (major leagues only)"
}

func (v *ValuationEnricher) Fields() []string {
	return []string{"franchise_value_millions", "annual_revenue_millions"}
}

func (v *ValuationEnricher) Available() bool { return true }

// Prepare fetches the valuation list once per major league present in the
// dataset. A list that fails to load just leaves that league unenriched.
func (v *ValuationEnricher) Prepare(ctx context.Context, teams []*model.TeamRow) error {
	v.client = fetch.New(fetch.Options{
		Timeout:      v.cfg.RequestTimeout,
		RateLimiters: fetch.DefaultRateLimiters(),
	})

	v.mu.Lock()
	v.tables = map[string]map[string]valuationEntry{}
	v.mu.Unlock()

	leagues := map[string]bool{}
	for _, t := range teams {
		if key := majorLeagueKey(t.League); key != "" {
			leagues[key] = true
		}
	}
	for key := range leagues {
		if err := v.loadList(ctx, key); err != nil {
			continue
		}
	}
	return nil
}

func (v *ValuationEnricher) Finish(ctx context.Context, teams []*model.TeamRow) error {
	v.client = nil
	return nil
}

func (v *ValuationEnricher) EnrichTeam(ctx context.Context, team *model.TeamRow) (Outcome, error) {
	if team.FranchiseValueMillion != nil {
		return NoChange(), nil
	}

	key := majorLeagueKey(team.League)
	if key == "" {
		return NoChange(), nil // no public valuations outside the majors
	}

	v.mu.Lock()
	entry, ok := v.tables[key][names.Key(team.Name)]
	v.mu.Unlock()
	if !ok {
		return NoChange(), nil
	}

	var wrote []string
	if entry.valueMillions > 0 {
		val := entry.valueMillions
		team.FranchiseValueMillion = &val
		wrote = append(wrote, "franchise_value_millions")
	}
	if entry.revenueMillions > 0 && team.AnnualRevenueMillion == nil {
		rev := entry.revenueMillions
		team.AnnualRevenueMillion = &rev
		wrote = append(wrote, "annual_revenue_millions")
	}

	if len(wrote) == 0 {
		return NoChange(), nil
	}
	return Wrote(wrote...), nil
}

// loadList fetches and parses one league's valuation list into the lookup
// table. The list pages render each team as a row with the team name and one
// or two dollar figures (value, then revenue).
func (v *ValuationEnricher) loadList(ctx context.Context, leagueKey string) error {
	listURL := forbesValuationLists[leagueKey]
	doc, err := v.client.GetDocument(ctx, listURL)
	if err != nil {
		return eris.Wrapf(err, "valuation: fetch %s list", leagueKey)
	}

	table := map[string]valuationEntry{}
	doc.Find("tr, .table-row, [class*=listItem], [class*=row]").Each(func(_ int, row *goquery.Selection) {
		text := row.Text()
		figures := moneyPattern.FindAllStringSubmatch(text, 2)
		if len(figures) == 0 {
			return
		}
		name := rowTeamName(row)
		if name == "" {
			return
		}

		entry := valuationEntry{valueMillions: parseMillions(figures[0])}
		if len(figures) > 1 {
			entry.revenueMillions = parseMillions(figures[1])
		}
		if entry.valueMillions > 0 {
			table[names.Key(name)] = entry
		}
	})

	if len(table) == 0 {
		return eris.Errorf("valuation: no rows parsed from %s list", leagueKey)
	}

	v.mu.Lock()
	v.tables[leagueKey] = table
	v.mu.Unlock()
	return nil
}

// rowTeamName finds the team name cell in a valuation row.
func rowTeamName(row *goquery.Selection) string {
	if link := row.Find("a").First(); link.Length() > 0 {
		if name := strings.TrimSpace(link.Text()); name != "" && !strings.HasPrefix(name, "$") {
			return name
		}
	}
	for _, sel := range []string{"td", "h3", "[class*=name]", "[class*=title]"} {
		name := strings.TrimSpace(row.Find(sel).First().Text())
		if name != "" && !strings.HasPrefix(name, "$") && !isNumeric(name) {
			return name
		}
	}
	return ""
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(strings.TrimSuffix(s, "."))
	return err == nil
}

// parseMillions converts a moneyPattern match to a value in millions.
func parseMillions(match []string) float64 {
	raw := strings.ReplaceAll(match[1], ",", "")
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(match[2]) {
	case "billion", "b":
		return n * 1000
	default:
		return n
	}
}

// majorLeagueKey maps a league name onto its valuation list key, or "" for
// leagues without published valuations.
func majorLeagueKey(league string) string {
	l := strings.ToLower(league)
	for token, key := range majorLeagueKeys {
		if l == token {
			return key
		}
	}
	// League names from the scrapers are spelled out.
	switch {
	case strings.Contains(l, "major league baseball"):
		return "mlb"
	case strings.Contains(l, "national football league"):
		return "nfl"
	case strings.Contains(l, "national basketball association"):
		return "nba"
	case strings.Contains(l, "national hockey league"):
		return "nhl"
	case strings.Contains(l, "major league soccer"):
		return "mls"
	case strings.Contains(l, "wnba"):
		return "wnba"
	}
	return ""
}
