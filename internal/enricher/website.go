package enricher

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
)

// familyProgramKeywords maps a program type label to the phrases that signal
// it on a team site. Matching is case-insensitive over link text and link
// targets on the homepage plus the community/fan pages linked from it.
var familyProgramKeywords = map[string][]string{
	"kids_club":        {"kids club", "kid's club", "junior club", "jr. club", "cubs club", "rookie club"},
	"family_night":     {"family night", "family day", "family sunday", "family pack", "family four pack", "family 4 pack"},
	"youth_camp":       {"youth camp", "summer camp", "kids camp", "youth clinic", "junior clinic"},
	"youth_sports":     {"youth baseball", "youth football", "youth basketball", "youth hockey", "youth soccer", "youth sports", "little league"},
	"school_program":   {"school program", "school day", "education day", "reading program", "school assemblies"},
	"birthday_parties": {"birthday party", "birthday parties", "birthday package"},
	"mascot_program":   {"mascot appearance", "mascot visit", "mascot program"},
	"community_corner": {"community corner", "community programs", "community relations", "in the community"},
}

// secondaryPagePaths are the site sections worth a follow-up fetch when the
// homepage links to them. One level deep keeps the crawl polite.
var secondaryPagePaths = []string{"community", "fans", "kids", "family", "youth", "tickets/group"}

// WebsiteEnricher fetches each team's official site and counts the family
// oriented programs it advertises. It writes a zero count when a reachable
// site shows no programs, so re-runs skip teams that were already checked.
type WebsiteEnricher struct {
	cfg    Config
	client *fetch.Client
}

// NewWebsiteEnricher builds the website program enricher.
func NewWebsiteEnricher(cfg Config) Enricher {
	return &WebsiteEnricher{cfg: cfg.withDefaults()}
}

func (w *WebsiteEnricher) ID() string   { return "website" }
func (w *WebsiteEnricher) Name() string { return "Website Program Enricher" }
func (w *WebsiteEnricher) Description() string {
	return "Scans official team websites for family and youth program offerings"
}

func (w *WebsiteEnricher) Fields() []string {
	return []string{"family_program_count", "family_program_types"}
}

func (w *WebsiteEnricher) Available() bool { return true }

func (w *WebsiteEnricher) Prepare(ctx context.Context, teams []*model.TeamRow) error {
	w.client = fetch.New(fetch.Options{
		Timeout:      w.cfg.RequestTimeout,
		RateLimiters: fetch.DefaultRateLimiters(),
	})
	return nil
}

func (w *WebsiteEnricher) Finish(ctx context.Context, teams []*model.TeamRow) error {
	w.client = nil
	return nil
}

func (w *WebsiteEnricher) EnrichTeam(ctx context.Context, team *model.TeamRow) (Outcome, error) {
	if team.FamilyProgramCount != nil {
		return NoChange(), nil
	}
	if team.OfficialURL == "" {
		return NoChange(), nil
	}

	doc, err := w.client.GetDocument(ctx, team.OfficialURL)
	if err != nil {
		return NoChange(), eris.Wrapf(err, "website: fetch %s", team.OfficialURL)
	}

	types := map[string]bool{}
	scanDocument(doc, types)

	for _, page := range secondaryPages(doc, team.OfficialURL) {
		sub, err := w.client.GetDocument(ctx, page)
		if err != nil {
			continue // secondary pages are best effort
		}
		scanDocument(sub, types)
	}

	count := len(types)
	team.FamilyProgramCount = &count
	team.FamilyProgramTypes = sortedKeys(types)

	if count == 0 {
		return Wrote("family_program_count"), nil
	}
	return Wrote("family_program_count", "family_program_types"), nil
}

// scanDocument matches program keywords against link text, link targets, and
// headings, accumulating program types into found.
func scanDocument(doc *goquery.Document, found map[string]bool) {
	var corpus strings.Builder
	doc.Find("a, h1, h2, h3, h4, nav, footer").Each(func(_ int, sel *goquery.Selection) {
		corpus.WriteString(strings.ToLower(sel.Text()))
		corpus.WriteByte(' ')
		if href, ok := sel.Attr("href"); ok {
			corpus.WriteString(strings.ToLower(href))
			corpus.WriteByte(' ')
		}
	})
	text := corpus.String()

	for programType, phrases := range familyProgramKeywords {
		for _, phrase := range phrases {
			if strings.Contains(text, phrase) {
				found[programType] = true
				break
			}
		}
	}
}

// secondaryPages returns same-host links from the homepage that point at the
// community/fan sections worth scanning.
func secondaryPages(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var pages []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		u, err := base.Parse(href)
		if err != nil || u.Host != base.Host {
			return
		}
		path := strings.ToLower(strings.Trim(u.Path, "/"))
		for _, want := range secondaryPagePaths {
			if path == want || strings.HasPrefix(path, want+"/") {
				u.Fragment = ""
				u.RawQuery = ""
				link := u.String()
				if !seen[link] && len(pages) < 4 {
					seen[link] = true
					pages = append(pages, link)
				}
				return
			}
		}
	})
	return pages
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
