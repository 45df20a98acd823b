package enricher

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/names"
)

const (
	wikidataSPARQLURL = "https://query.wikidata.org/sparql"
	youtubeChannelAPI = "https://www.googleapis.com/youtube/v3/channels"

	// WikiData asks SPARQL clients to identify themselves.
	wikidataUserAgent = "teamscout/1.0 (sports roster research; contact: data@playmaker-hq.com)"
)

// WikiData property IDs for social accounts, keyed by our platform names.
var wikidataSocialProps = map[string]string{
	"x":         "P2002",
	"instagram": "P2003",
	"facebook":  "P2013",
	"tiktok":    "P7085",
	"youtube":   "P2397",
}

// wikidataSportQIDs maps a sport keyword (derived from league names) to the
// WikiData QID of the sport, used to pre-fetch all team handles in one query.
var wikidataSportQIDs = map[string]string{
	"baseball":   "Q5369",
	"basketball": "Q5372",
	"football":   "Q41323",
	"hockey":     "Q41466",
	"soccer":     "Q2736",
}

var platformHosts = map[string]string{
	"twitter.com":   "x",
	"x.com":         "x",
	"instagram.com": "instagram",
	"facebook.com":  "facebook",
	"tiktok.com":    "tiktok",
	"youtube.com":   "youtube",
}

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{2,40}$`)

// SocialEnricher collects social media handles for each team, preferring
// WikiData's structured account properties (fetched per sport once per run)
// and falling back to scanning the team's official site for profile links.
// YouTube subscriber counts are filled in when a YouTube Data API key is
// configured; the other follower counts require platform APIs this service
// does not hold keys for.
type SocialEnricher struct {
	cfg        Config
	youtubeKey string

	client *fetch.Client

	mu      sync.Mutex
	handles map[string]map[string]string // names.Key(team) -> platform -> handle
}

// NewSocialEnricher builds the social media enricher.
func NewSocialEnricher(cfg Config) Enricher {
	return &SocialEnricher{
		cfg:        cfg.withDefaults(),
		youtubeKey: cfg.APIKeys["youtube"],
		handles:    map[string]map[string]string{},
	}
}

func (s *SocialEnricher) ID() string   { return "social" }
func (s *SocialEnricher) Name() string { return "Social Media Enricher" }
func (s *SocialEnricher) Description() string {
	return "Collects social media handles from WikiData and team websites, plus YouTube subscriber counts"
}

func (s *SocialEnricher) Fields() []string {
	return []string{
		"social_handles",
		"followers_x", "followers_instagram", "followers_facebook",
		"followers_tiktok", "subscribers_youtube",
	}
}

func (s *SocialEnricher) Available() bool { return true }

// Prepare creates the run's HTTP client and bulk-fetches handles from
// WikiData for every sport represented in the dataset. One SPARQL query per
// sport replaces hundreds of per-team searches.
func (s *SocialEnricher) Prepare(ctx context.Context, teams []*model.TeamRow) error {
	s.client = fetch.New(fetch.Options{
		UserAgent:    wikidataUserAgent,
		Timeout:      s.cfg.RequestTimeout,
		RateLimiters: fetch.DefaultRateLimiters(),
	})

	s.mu.Lock()
	s.handles = map[string]map[string]string{}
	s.mu.Unlock()

	sports := map[string]bool{}
	for _, t := range teams {
		if sport := detectSport(t.League); sport != "" {
			sports[sport] = true
		}
	}

	for sport := range sports {
		if err := s.prefetchSport(ctx, sport); err != nil {
			// A failed prefetch only degrades to the website fallback.
			continue
		}
	}
	return nil
}

// Finish releases the client.
func (s *SocialEnricher) Finish(ctx context.Context, teams []*model.TeamRow) error {
	s.client = nil
	return nil
}

func (s *SocialEnricher) EnrichTeam(ctx context.Context, team *model.TeamRow) (Outcome, error) {
	if team.SocialHandles != nil {
		return NoChange(), nil
	}

	found := s.cachedHandles(team.Name)
	if len(found) == 0 && team.OfficialURL != "" {
		scraped, err := s.scrapeWebsiteHandles(ctx, team.OfficialURL)
		if err != nil {
			return NoChange(), err
		}
		found = scraped
	}

	// Explicit empty slice records "checked, nothing found" so a re-run
	// does not hammer the same sources again.
	handles := make([]model.SocialHandle, 0, len(found))
	for platform, handle := range found {
		handles = append(handles, model.SocialHandle{
			Platform: platform,
			Handle:   handle,
			URL:      profileURL(platform, handle),
		})
	}
	team.SocialHandles = handles

	wrote := []string{"social_handles"}
	if s.youtubeKey != "" {
		if yt, ok := found["youtube"]; ok && team.SubscribersYouTube == nil {
			subs, err := s.youtubeSubscribers(ctx, yt)
			if err == nil && subs != nil {
				team.SubscribersYouTube = subs
				wrote = append(wrote, "subscribers_youtube")
			}
		}
	}
	return Wrote(wrote...), nil
}

func (s *SocialEnricher) cachedHandles(teamName string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := s.handles[names.Key(teamName)]
	out := make(map[string]string, len(cached))
	for k, v := range cached {
		out[k] = v
	}
	return out
}

// prefetchSport runs one SPARQL query returning every team of the sport with
// any of the social account properties, and indexes the results by
// normalized team name.
func (s *SocialEnricher) prefetchSport(ctx context.Context, sport string) error {
	qid := wikidataSportQIDs[sport]
	if qid == "" {
		return nil
	}

	query := `SELECT ?teamLabel ?x ?instagram ?facebook ?tiktok ?youtube WHERE {
  ?team wdt:P31/wdt:P279* wd:Q847017 .
  ?team wdt:P641 wd:` + qid + ` .
  OPTIONAL { ?team wdt:P2002 ?x }
  OPTIONAL { ?team wdt:P2003 ?instagram }
  OPTIONAL { ?team wdt:P2013 ?facebook }
  OPTIONAL { ?team wdt:P7085 ?tiktok }
  OPTIONAL { ?team wdt:P2397 ?youtube }
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
		return eris.Wrapf(err, "social: wikidata prefetch for %s", sport)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range resp.Results.Bindings {
		label, ok := b["teamLabel"]
		if !ok || label.Value == "" {
			continue
		}
		key := names.Key(label.Value)
		if s.handles[key] == nil {
			s.handles[key] = map[string]string{}
		}
		for platform := range wikidataSocialProps {
			if v, ok := b[platform]; ok && v.Value != "" {
				s.handles[key][platform] = v.Value
			}
		}
	}
	return nil
}

// scrapeWebsiteHandles scans the official site homepage for profile links.
func (s *SocialEnricher) scrapeWebsiteHandles(ctx context.Context, siteURL string) (map[string]string, error) {
	doc, err := s.client.GetDocument(ctx, siteURL)
	if err != nil {
		return nil, eris.Wrapf(err, "social: scrape %s", siteURL)
	}

	found := map[string]string{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		platform, handle := parseProfileLink(href)
		if platform == "" {
			return
		}
		if _, exists := found[platform]; !exists {
			found[platform] = handle
		}
	})
	return found, nil
}

// parseProfileLink extracts (platform, handle) from a URL, or ("", "").
func parseProfileLink(href string) (string, string) {
	u, err := url.Parse(href)
	if err != nil {
		return "", ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	platform, ok := platformHosts[host]
	if !ok {
		return "", ""
	}

	path := strings.Trim(u.Path, "/")
	segs := strings.Split(path, "/")
	if len(segs) == 0 || segs[0] == "" {
		return "", ""
	}

	handle := segs[0]
	if platform == "youtube" {
		switch segs[0] {
		case "channel", "c", "user":
			if len(segs) < 2 {
				return "", ""
			}
			handle = segs[1]
		default:
			handle = strings.TrimPrefix(segs[0], "@")
		}
	}
	if strings.HasPrefix(handle, "@") {
		handle = handle[1:]
	}
	if !handlePattern.MatchString(handle) {
		return "", ""
	}
	// Skip share/intent links that happen to live on platform hosts.
	switch strings.ToLower(handle) {
	case "intent", "share", "sharer.php", "hashtag", "watch", "embed", "plugins":
		return "", ""
	}
	return platform, handle
}

func profileURL(platform, handle string) string {
	switch platform {
	case "x":
		return "https://x.com/" + handle
	case "instagram":
		return "https://www.instagram.com/" + handle
	case "facebook":
		return "https://www.facebook.com/" + handle
	case "tiktok":
		return "https://www.tiktok.com/@" + handle
	case "youtube":
		if strings.HasPrefix(handle, "UC") {
			return "https://www.youtube.com/channel/" + handle
		}
		return "https://www.youtube.com/@" + handle
	}
	return ""
}

// youtubeSubscribers looks up a channel's subscriber count through the
// YouTube Data API. Works with channel IDs (UC...) and legacy usernames.
func (s *SocialEnricher) youtubeSubscribers(ctx context.Context, handle string) (*int64, error) {
	q := url.Values{}
	q.Set("part", "statistics")
	q.Set("key", s.youtubeKey)
	if strings.HasPrefix(handle, "UC") {
		q.Set("id", handle)
	} else {
		q.Set("forHandle", handle)
	}

	var resp struct {
		Items []struct {
			Statistics struct {
				SubscriberCount string `json:"subscriberCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := s.client.GetJSON(ctx, youtubeChannelAPI+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, eris.Wrap(err, "social: youtube channel lookup")
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	var n int64
	for _, c := range resp.Items[0].Statistics.SubscriberCount {
		if c < '0' || c > '9' {
			return nil, nil
		}
		n = n*10 + int64(c-'0')
	}
	return &n, nil
}

// detectSport maps a league name onto a WikiData sport keyword.
func detectSport(league string) string {
	l := strings.ToLower(league)
	switch {
	case strings.Contains(l, "mlb"), strings.Contains(l, "baseball"),
		strings.Contains(l, "triple-a"), strings.Contains(l, "double-a"),
		strings.Contains(l, "single-a"):
		return "baseball"
	case strings.Contains(l, "nba"), strings.Contains(l, "wnba"),
		strings.Contains(l, "g league"), strings.Contains(l, "basketball"):
		return "basketball"
	case strings.Contains(l, "nfl"), strings.Contains(l, "football"):
		return "football"
	case strings.Contains(l, "nhl"), strings.Contains(l, "ahl"),
		strings.Contains(l, "echl"), strings.Contains(l, "hockey"):
		return "hockey"
	case strings.Contains(l, "mls"), strings.Contains(l, "nwsl"),
		strings.Contains(l, "soccer"):
		return "soccer"
	}
	return ""
}
