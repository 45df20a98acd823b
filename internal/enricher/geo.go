package enricher

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
)

const (
	dataCommonsStatURL = "https://api.datacommons.org/stat/value"
	populationVariable = "Count_Person"
	gdpVariable        = "Amount_EconomicActivity_GrossDomesticProduction_Nominal"
)

// cityGeoIDs maps normalized city/region names to US Census FIPS place
// identifiers as used by Data Commons. Canadian and other non-US cities map
// to "" and are skipped (Census has no place codes for them).
var cityGeoIDs = map[string]string{
	"arizona":         "geoId/0455000", // Phoenix, AZ
	"atlanta":         "geoId/1304000",
	"baltimore":       "geoId/2404000",
	"boston":          "geoId/2507000",
	"buffalo":         "geoId/3611000",
	"carolina":        "geoId/3712000", // Charlotte, NC
	"charlotte":       "geoId/3712000",
	"chicago":         "geoId/1714000",
	"cincinnati":      "geoId/3915000",
	"cleveland":       "geoId/3916000",
	"columbus":        "geoId/3918000",
	"dallas":          "geoId/4819000",
	"denver":          "geoId/0820000",
	"detroit":         "geoId/2622000",
	"green bay":       "geoId/5531000",
	"houston":         "geoId/4835000",
	"indianapolis":    "geoId/1836003",
	"jacksonville":    "geoId/1235000",
	"kansas city":     "geoId/2938000",
	"las vegas":       "geoId/3240000",
	"los angeles":     "geoId/0644000",
	"miami":           "geoId/1245000",
	"milwaukee":       "geoId/5553000",
	"minneapolis":     "geoId/2743000",
	"minnesota":       "geoId/2743000", // state name used as region
	"nashville":       "geoId/4752006",
	"new england":     "geoId/2507000", // regional name, Boston metro
	"new orleans":     "geoId/2255000",
	"new york":        "geoId/3651000",
	"oakland":         "geoId/0653000",
	"oklahoma city":   "geoId/4055000",
	"orlando":         "geoId/1253000",
	"philadelphia":    "geoId/4260000",
	"phoenix":         "geoId/0455000",
	"pittsburgh":      "geoId/4261000",
	"portland":        "geoId/4159000",
	"sacramento":      "geoId/0664000",
	"salt lake city":  "geoId/4967000",
	"san antonio":     "geoId/4865000",
	"san diego":       "geoId/0666000",
	"san francisco":   "geoId/0667000",
	"san jose":        "geoId/0668000",
	"seattle":         "geoId/5363000",
	"st. louis":       "geoId/2965000",
	"tampa":           "geoId/1271000",
	"tampa bay":       "geoId/1271000",
	"tennessee":       "geoId/4752006", // Nashville, TN
	"washington":      "geoId/1150000",
	"washington d.c.": "geoId/1150000",
	// Non-US markets: known, but not resolvable through Census place codes.
	"calgary":   "",
	"edmonton":  "",
	"montreal":  "",
	"ottawa":    "",
	"toronto":   "",
	"vancouver": "",
	"winnipeg":  "",
}

// cityAliases folds stadium towns and nicknames onto their market city.
var cityAliases = map[string]string{
	"d.c.":            "washington d.c.",
	"dc":              "washington d.c.",
	"la":              "los angeles",
	"nyc":             "new york",
	"philly":          "philadelphia",
	"twin cities":     "minneapolis",
	"foxborough":      "new england",
	"foxboro":         "new england",
	"east rutherford": "new york",
	"glendale":        "phoenix",
	"inglewood":       "los angeles",
	"landover":        "washington",
	"orchard park":    "buffalo",
	"santa clara":     "san francisco",
}

// GeoEnricher resolves each team's region to a city and attaches population
// data from the Data Commons statistics API. Metro GDP uses the same lookup
// path and is populated when Data Commons has a value for the place.
type GeoEnricher struct {
	cfg     Config
	apiKey  string
	statURL string

	client *fetch.Client

	mu    sync.Mutex
	cache map[string]*float64 // geoID|statVar -> value (nil = looked up, not found)
}

// NewGeoEnricher builds the geographic enricher.
func NewGeoEnricher(cfg Config) Enricher {
	return &GeoEnricher{
		cfg:     cfg.withDefaults(),
		apiKey:  cfg.APIKeys["data_commons"],
		statURL: dataCommonsStatURL,
		cache:   map[string]*float64{},
	}
}

func (g *GeoEnricher) ID() string   { return "geo" }
func (g *GeoEnricher) Name() string { return "Geographic Enricher" }
func (g *GeoEnricher) Description() string {
	return "Adds city population and metro GDP data from the Data Commons API"
}

func (g *GeoEnricher) Fields() []string {
	return []string{"geo_city", "geo_country", "city_population", "metro_gdp_millions"}
}

// Available always reports true: Data Commons works without an API key, a
// key only raises the quota.
func (g *GeoEnricher) Available() bool { return true }

// Prepare sets up the shared HTTP client once per run.
func (g *GeoEnricher) Prepare(ctx context.Context, teams []*model.TeamRow) error {
	g.client = fetch.New(fetch.Options{
		Timeout:      g.cfg.RequestTimeout,
		RateLimiters: fetch.DefaultRateLimiters(),
	})
	g.mu.Lock()
	g.cache = map[string]*float64{}
	g.mu.Unlock()
	return nil
}

// Finish releases the client.
func (g *GeoEnricher) Finish(ctx context.Context, teams []*model.TeamRow) error {
	g.client = nil
	return nil
}

func (g *GeoEnricher) EnrichTeam(ctx context.Context, team *model.TeamRow) (Outcome, error) {
	if team.CityPopulation != nil {
		return NoChange(), nil
	}

	city, geoID := resolveCity(team.Region)
	if city == "" {
		return NoChange(), nil
	}

	var wrote []string
	if team.GeoCity == "" {
		team.GeoCity = city
		wrote = append(wrote, "geo_city")
	}
	if team.GeoCountry == "" {
		if geoID == "" {
			team.GeoCountry = "CA" // known non-US market
		} else {
			team.GeoCountry = "US"
		}
		wrote = append(wrote, "geo_country")
	}

	if geoID != "" {
		pop, err := g.statValue(ctx, geoID, populationVariable)
		if err != nil {
			return NoChange(), err
		}
		gdp, err := g.statValue(ctx, geoID, gdpVariable)
		if err != nil {
			return NoChange(), err
		}
		if pop != nil {
			v := int64(*pop)
			team.CityPopulation = &v
			wrote = append(wrote, "city_population")
		}
		if gdp != nil && team.MetroGDPMillion == nil {
			millions := *gdp / 1e6
			team.MetroGDPMillion = &millions
			wrote = append(wrote, "metro_gdp_millions")
		}
	}

	if len(wrote) == 0 {
		return NoChange(), nil
	}
	return Wrote(wrote...), nil
}

// statValue fetches one statistical variable for a place, caching per run so
// teams sharing a market cost one request each for population and GDP.
func (g *GeoEnricher) statValue(ctx context.Context, geoID, statVar string) (*float64, error) {
	key := geoID + "|" + statVar
	g.mu.Lock()
	if v, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return v, nil
	}
	g.mu.Unlock()

	q := url.Values{}
	q.Set("place", geoID)
	q.Set("stat_var", statVar)
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	var resp struct {
		Value *float64 `json:"value"`
	}
	if err := g.client.GetJSON(ctx, g.statURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "geo: %s lookup for %s", statVar, geoID)
	}

	g.mu.Lock()
	g.cache[key] = resp.Value
	g.mu.Unlock()
	return resp.Value, nil
}

// resolveCity maps a scraped region string to a known city name and its
// Data Commons geo ID. Returns ("", "") when the region is unrecognized.
func resolveCity(region string) (city, geoID string) {
	cleaned := strings.ToLower(strings.TrimSpace(region))
	if cleaned == "" {
		return "", ""
	}
	if alias, ok := cityAliases[cleaned]; ok {
		cleaned = alias
	}
	id, ok := cityGeoIDs[cleaned]
	if !ok {
		return "", ""
	}
	return titleCase(cleaned), id
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
