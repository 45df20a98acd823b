package enricher

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/names"
)

// sponsorPagePaths are the site sections where teams list their commercial
// partners.
var sponsorPagePaths = []string{"sponsors", "partners", "corporate-partners", "partnerships", "sponsorship"}

// sponsorAssetHints classify a sponsor's asset type by the heading of the
// section it appears under. Unmatched sections fall back to "Official Partner".
var sponsorAssetHints = map[string]string{
	"naming":      "Naming Rights",
	"jersey":      "Jersey Patch",
	"presenting":  "Presenting Sponsor",
	"founding":    "Founding Partner",
	"premier":     "Premier Partner",
	"media":       "Media Partner",
	"broadcast":   "Media Partner",
	"supplier":    "Official Supplier",
	"hospitality": "Hospitality Partner",
	"community":   "Community Partner",
}

type venueInfo struct {
	stadium   string
	ownedBy   string // normalized owner label, "" when WikiData has none
	ownerIsUs bool   // owner label matches the team itself
}

// SponsorEnricher resolves stadium ownership through WikiData's home-venue
// and owner properties (bulk-fetched per sport in Prepare) and collects
// sponsor names from the partner pages of each team's official site.
type SponsorEnricher struct {
	cfg    Config
	client *fetch.Client

	mu     sync.Mutex
	venues map[string]venueInfo // names.Key(team) -> venue
}

// NewSponsorEnricher builds the stadium and sponsorship enricher.
func NewSponsorEnricher(cfg Config) Enricher {
	return &SponsorEnricher{
		cfg:    cfg.withDefaults(),
		venues: map[string]venueInfo{},
	}
}

func (s *SponsorEnricher) ID() string   { return "sponsor" }
func (s *SponsorEnricher) Name() string { return "Stadium & Sponsorship Enricher" }
func (s *SponsorEnricher) Description() string {
	return "Resolves stadium ownership via WikiData and collects sponsors from team partner pages"
}

func (s *SponsorEnricher) Fields() []string {
	return []string{"owns_stadium", "stadium_name", "sponsors"}
}

func (s *SponsorEnricher) Available() bool { return true }

// Prepare bulk-fetches home venues and venue owners for every sport in the
// dataset, one SPARQL query per sport.
func (s *SponsorEnricher) Prepare(ctx context.Context, teams []*model.TeamRow) error {
	s.client = fetch.New(fetch.Options{
		UserAgent:    wikidataUserAgent,
		Timeout:      s.cfg.RequestTimeout,
		RateLimiters: fetch.DefaultRateLimiters(),
	})

	s.mu.Lock()
	s.venues = map[string]venueInfo{}
	s.mu.Unlock()

	sports := map[string]bool{}
	for _, t := range teams {
		if sport := detectSport(t.League); sport != "" {
			sports[sport] = true
		}
	}
	for sport := range sports {
		if err := s.prefetchVenues(ctx, sport); err != nil {
			continue // degrade to per-team website data only
		}
	}
	return nil
}

func (s *SponsorEnricher) Finish(ctx context.Context, teams []*model.TeamRow) error {
	s.client = nil
	return nil
}

func (s *SponsorEnricher) EnrichTeam(ctx context.Context, team *model.TeamRow) (Outcome, error) {
	var wrote []string

	if team.StadiumName == "" || team.OwnsStadium == nil {
		s.mu.Lock()
		venue, ok := s.venues[names.Key(team.Name)]
		s.mu.Unlock()
		if ok {
			if team.StadiumName == "" && venue.stadium != "" {
				team.StadiumName = venue.stadium
				wrote = append(wrote, "stadium_name")
			}
			if team.OwnsStadium == nil && venue.ownedBy != "" {
				owns := venue.ownerIsUs
				team.OwnsStadium = &owns
				wrote = append(wrote, "owns_stadium")
			}
		}
	}

	if team.Sponsors == nil && team.OfficialURL != "" {
		sponsors, err := s.scrapeSponsors(ctx, team.OfficialURL)
		if err != nil {
			if len(wrote) > 0 {
				return Wrote(wrote...), nil // keep the venue data we got
			}
			return NoChange(), err
		}
		team.Sponsors = sponsors
		wrote = append(wrote, "sponsors")
	}

	if len(wrote) == 0 {
		return NoChange(), nil
	}
	return Wrote(wrote...), nil
}

// prefetchVenues loads team -> (home venue, venue owner) for one sport.
func (s *SponsorEnricher) prefetchVenues(ctx context.Context, sport string) error {
	qid := wikidataSportQIDs[sport]
	if qid == "" {
		return nil
	}

	query := `SELECT ?teamLabel ?venueLabel ?ownerLabel WHERE {
  ?team wdt:P31/wdt:P279* wd:Q847017 .
  ?team wdt:P641 wd:` + qid + ` .
  ?team wdt:P115 ?venue .
  OPTIONAL { ?venue wdt:P127 ?owner }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en" }
}`

	q := url.Values{}
	q.Set("query", query)
	q.Set("format", "json")

	var resp struct {
		Results struct {
			Bindings []map[string]struct {
				Value string `json:"value"`
			} `json:"bindings"`
		} `json:"results"`
	}
	if err := s.client.GetJSON(ctx, wikidataSPARQLURL+"?"+q.Encode(), map[string]string{
		"Accept": "application/sparql-results+json",
	}, &resp); err != nil {
		return eris.Wrapf(err, "sponsor: wikidata venue prefetch for %s", sport)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range resp.Results.Bindings {
		teamLabel := b["teamLabel"].Value
		venueLabel := b["venueLabel"].Value
		if teamLabel == "" || venueLabel == "" {
			continue
		}
		key := names.Key(teamLabel)
		info := s.venues[key]
		if info.stadium == "" {
			info.stadium = venueLabel
		}
		if owner, ok := b["ownerLabel"]; ok && owner.Value != "" && info.ownedBy == "" {
			info.ownedBy = owner.Value
			info.ownerIsUs = names.Key(owner.Value) == key
		}
		s.venues[key] = info
	}
	return nil
}

// scrapeSponsors finds the team's partner page and extracts sponsor names
// from image alt text and section headings. Returns an empty (non-nil) slice
// when the site has no discoverable partner page, recording the check.
func (s *SponsorEnricher) scrapeSponsors(ctx context.Context, siteURL string) ([]model.SponsorInfo, error) {
	home, err := s.client.GetDocument(ctx, siteURL)
	if err != nil {
		return nil, eris.Wrapf(err, "sponsor: fetch %s", siteURL)
	}

	pageURL := findSponsorPage(home, siteURL)
	if pageURL == "" {
		return []model.SponsorInfo{}, nil
	}

	page, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "sponsor: fetch partner page %s", pageURL)
	}
	return extractSponsors(page), nil
}

func findSponsorPage(doc *goquery.Document, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		u, err := base.Parse(href)
		if err != nil || u.Host != base.Host {
			return true
		}
		path := strings.ToLower(strings.Trim(u.Path, "/"))
		for _, want := range sponsorPagePaths {
			if path == want || strings.HasSuffix(path, "/"+want) {
				u.Fragment = ""
				found = u.String()
				return false
			}
		}
		return true
	})
	return found
}

// extractSponsors pulls sponsor names from a partner page. Logo grids carry
// the name in img alt text; the enclosing section heading hints the asset
// type of the partnership.
func extractSponsors(doc *goquery.Document) []model.SponsorInfo {
	byName := map[string]model.SponsorInfo{}

	doc.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		name := cleanSponsorName(alt)
		if name == "" {
			return
		}
		asset := "Official Partner"
		heading := img.Closest("section, div").Find("h1, h2, h3, h4").First().Text()
		if a := classifyAsset(heading); a != "" {
			asset = a
		}
		if _, exists := byName[strings.ToLower(name)]; !exists {
			byName[strings.ToLower(name)] = model.SponsorInfo{Name: name, AssetType: asset}
		}
	})

	keys := make([]string, 0, len(byName))
	for k := range byName {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.SponsorInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, byName[k])
	}
	return out
}

func classifyAsset(heading string) string {
	h := strings.ToLower(heading)
	for hint, asset := range sponsorAssetHints {
		if strings.Contains(h, hint) {
			return asset
		}
	}
	return ""
}

// cleanSponsorName filters alt text down to plausible sponsor names.
func cleanSponsorName(alt string) string {
	name := strings.TrimSpace(alt)
	name = strings.TrimSuffix(name, " logo")
	name = strings.TrimSuffix(name, " Logo")
	if name == "" || len(name) > 60 {
		return ""
	}
	lower := strings.ToLower(name)
	for _, junk := range []string{"icon", "arrow", "banner", "background", "placeholder", "image"} {
		if lower == junk {
			return ""
		}
	}
	return name
}
