package scraper

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
)

const nflTeamsURL = "https://www.nfl.com/teams/"

// nflMinLiveTeams is the sanity floor for a live parse: fewer than this and
// the directory markup has probably changed, so the static table is used.
const nflMinLiveTeams = 28

var multiwordRegions = []string{
	"New York", "Los Angeles", "San Francisco", "Kansas City", "Las Vegas",
	"New England", "New Orleans", "Tampa Bay", "Green Bay",
}

// nflStaticTeams is the fallback directory: all 32 franchises.
var nflStaticTeams = [][3]string{
	{"Arizona Cardinals", "Arizona", "https://www.azcardinals.com/"},
	{"Atlanta Falcons", "Atlanta", "https://www.atlantafalcons.com/"},
	{"Baltimore Ravens", "Baltimore", "https://www.baltimoreravens.com/"},
	{"Buffalo Bills", "Buffalo", "https://www.buffalobills.com/"},
	{"Carolina Panthers", "Carolina", "https://www.panthers.com/"},
	{"Chicago Bears", "Chicago", "https://www.chicagobears.com/"},
	{"Cincinnati Bengals", "Cincinnati", "https://www.bengals.com/"},
	{"Cleveland Browns", "Cleveland", "https://www.clevelandbrowns.com/"},
	{"Dallas Cowboys", "Dallas", "https://www.dallascowboys.com/"},
	{"Denver Broncos", "Denver", "https://www.denverbroncos.com/"},
	{"Detroit Lions", "Detroit", "https://www.detroitlions.com/"},
	{"Green Bay Packers", "Green Bay", "https://www.packers.com/"},
	{"Houston Texans", "Houston", "https://www.houstontexans.com/"},
	{"Indianapolis Colts", "Indianapolis", "https://www.colts.com/"},
	{"Jacksonville Jaguars", "Jacksonville", "https://www.jaguars.com/"},
	{"Kansas City Chiefs", "Kansas City", "https://www.chiefs.com/"},
	{"Las Vegas Raiders", "Las Vegas", "https://www.raiders.com/"},
	{"Los Angeles Chargers", "Los Angeles", "https://www.chargers.com/"},
	{"Los Angeles Rams", "Los Angeles", "https://www.therams.com/"},
	{"Miami Dolphins", "Miami", "https://www.miamidolphins.com/"},
	{"Minnesota Vikings", "Minnesota", "https://www.vikings.com/"},
	{"New England Patriots", "New England", "https://www.patriots.com/"},
	{"New Orleans Saints", "New Orleans", "https://www.neworleanssaints.com/"},
	{"New York Giants", "New York", "https://www.giants.com/"},
	{"New York Jets", "New York", "https://www.newyorkjets.com/"},
	{"Philadelphia Eagles", "Philadelphia", "https://www.philadelphiaeagles.com/"},
	{"Pittsburgh Steelers", "Pittsburgh", "https://www.steelers.com/"},
	{"San Francisco 49ers", "San Francisco", "https://www.49ers.com/"},
	{"Seattle Seahawks", "Seattle", "https://www.seahawks.com/"},
	{"Tampa Bay Buccaneers", "Tampa Bay", "https://www.buccaneers.com/"},
	{"Tennessee Titans", "Tennessee", "https://www.tennesseetitans.com/"},
	{"Washington Commanders", "Washington", "https://www.commanders.com/"},
}

var nflBadCandidates = map[string]bool{
	"View Profile":   true,
	"View Full Site": true,
	"Advertising":    true,
	"NFC Teams":      true,
	"AFC Teams":      true,
}

var hasLetter = regexp.MustCompile(`[A-Za-z]`)

// NFLScraper scrapes the NFL.com team directory, falling back to a static
// franchise table when the live page is unreachable or parses thin.
type NFLScraper struct {
	client  *fetch.Client
	pageURL string
}

// NFLOption configures the scraper.
type NFLOption func(*NFLScraper)

// WithNFLPageURL overrides the directory URL, for tests.
func WithNFLPageURL(u string) NFLOption {
	return func(s *NFLScraper) { s.pageURL = u }
}

// NewNFLScraper builds the NFL scraper.
func NewNFLScraper(client *fetch.Client, opts ...NFLOption) *NFLScraper {
	s := &NFLScraper{client: client, pageURL: nflTeamsURL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *NFLScraper) ID() string   { return "nfl" }
func (s *NFLScraper) Name() string { return "NFL Teams" }
func (s *NFLScraper) Description() string {
	return "Scrapes team data from the NFL.com official directory"
}
func (s *NFLScraper) SourceURL() string { return s.pageURL }

func (s *NFLScraper) Scrape(ctx context.Context) ([]model.TeamRow, *model.ScrapeResult, error) {
	start := time.Now()
	result := &model.ScrapeResult{Timestamp: start.UTC()}

	var rows []model.TeamRow
	doc, err := s.client.GetDocument(ctx, s.pageURL)
	if err == nil {
		rows = parseNFLDirectory(doc)
	}
	if len(rows) < nflMinLiveTeams {
		rows = nflStaticRows()
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
	result.Breakdown = map[string]int{"NFL": len(rows)}
	result.DurationMS = time.Since(start).Milliseconds()
	return rows, result, nil
}

// parseNFLDirectory finds each team card through its "View Full Site" link
// and recovers the team name from nearby headings.
func parseNFLDirectory(doc *goquery.Document) []model.TeamRow {
	var rows []model.TeamRow
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(a.Text()), "view full site") {
			return
		}

		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return
		}
		if seen[href] {
			return
		}
		seen[href] = true

		name := teamNameNearLink(a)
		if name == "" {
			return
		}
		region := inferNFLRegion(name)
		rows = append(rows, nflRow(name, region, href))
	})
	return rows
}

// teamNameNearLink walks up the DOM from the link and returns the longest
// plausible heading text in the enclosing card.
func teamNameNearLink(a *goquery.Selection) string {
	node := a
	for i := 0; i < 6; i++ {
		node = node.Parent()
		if node.Length() == 0 {
			break
		}

		var candidates []string
		node.Find("h1, h2, h3, h4, strong, span, p").EachWithBreak(func(i int, sel *goquery.Selection) bool {
			txt := strings.Join(strings.Fields(sel.Text()), " ")
			if txt != "" && len(txt) >= 6 && len(txt) <= 40 &&
				hasLetter.MatchString(txt) && !nflBadCandidates[txt] {
				candidates = append(candidates, txt)
			}
			return i < 39
		})

		if len(candidates) > 0 {
			best := candidates[0]
			for _, c := range candidates[1:] {
				if len(c) > len(best) {
					best = c
				}
			}
			return best
		}
	}
	return ""
}

func inferNFLRegion(teamName string) string {
	for _, r := range multiwordRegions {
		if strings.HasPrefix(teamName, r+" ") {
			return r
		}
	}
	if fields := strings.Fields(teamName); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func nflStaticRows() []model.TeamRow {
	rows := make([]model.TeamRow, 0, len(nflStaticTeams))
	for _, t := range nflStaticTeams {
		rows = append(rows, nflRow(t[0], t[1], t[2]))
	}
	return rows
}

func nflRow(name, region, url string) model.TeamRow {
	return model.TeamRow{
		Name:              name,
		Region:            region,
		League:            "NFL",
		TargetDemographic: "American football fans in and around " + region + ", plus the broader national NFL audience.",
		OfficialURL:       url,
		Category:          "NFL",
	}
}
