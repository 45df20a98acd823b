package enricher

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/pkg/anthropic"
)

const (
	brandModel     = "claude-haiku-4-5-20251001"
	brandMaxTokens = 1024

	// brandPageLimit caps how much page text goes into one prompt.
	brandPageLimit = 12000
)

const brandSystemPrompt = `You analyze sports team community pages. Given page text from a team's official website, extract brand alignment signals as JSON with exactly these keys:
  "mission_tags": short lowercase phrases describing the team's stated values (e.g. "youth development", "sustainability"),
  "community_programs": names of concrete programs the team runs,
  "cause_partnerships": names of charities or causes the team partners with.
Return only the JSON object. Use empty arrays when the page shows nothing for a key. Never invent entries not supported by the text.`

// brandExtraction is the JSON shape the model is asked to return.
type brandExtraction struct {
	MissionTags       []string `json:"mission_tags"`
	CommunityPrograms []string `json:"community_programs"`
	CausePartnerships []string `json:"cause_partnerships"`
}

// BrandEnricher extracts brand alignment signals (mission tags, community
// programs, cause partnerships) from team community pages using an LLM.
// Unlike the scraping enrichers it requires an API key, so Available is
// conditional.
type BrandEnricher struct {
	cfg    Config
	apiKey string

	llm    anthropic.Client
	client *fetch.Client
}

// NewBrandEnricher builds the brand alignment enricher.
func NewBrandEnricher(cfg Config) Enricher {
	return &BrandEnricher{
		cfg:    cfg.withDefaults(),
		apiKey: cfg.APIKeys["anthropic"],
	}
}

func (b *BrandEnricher) ID() string   { return "brand" }
func (b *BrandEnricher) Name() string { return "Brand Alignment Enricher" }
func (b *BrandEnricher) Description() string {
	return "Extracts mission tags, community programs, and cause partnerships from team sites via LLM analysis"
}

func (b *BrandEnricher) Fields() []string {
	return []string{"mission_tags", "community_programs", "cause_partnerships"}
}

// Available requires an Anthropic API key.
func (b *BrandEnricher) Available() bool { return b.apiKey != "" }

func (b *BrandEnricher) Prepare(ctx context.Context, teams []*model.TeamRow) error {
	if b.llm == nil {
		b.llm = anthropic.NewClient(b.apiKey)
	}
	b.client = fetch.New(fetch.Options{
		Timeout:      b.cfg.RequestTimeout,
		RateLimiters: fetch.DefaultRateLimiters(),
	})
	return nil
}

func (b *BrandEnricher) Finish(ctx context.Context, teams []*model.TeamRow) error {
	b.client = nil
	return nil
}

func (b *BrandEnricher) EnrichTeam(ctx context.Context, team *model.TeamRow) (Outcome, error) {
	if team.MissionTags != nil {
		return NoChange(), nil
	}
	if team.OfficialURL == "" {
		return NoChange(), nil
	}

	text, err := b.communityPageText(ctx, team.OfficialURL)
	if err != nil {
		return NoChange(), err
	}
	if text == "" {
		// Reachable site with no community content: record the check.
		team.MissionTags = []string{}
		team.CommunityPrograms = []string{}
		team.CausePartnerships = []string{}
		return Wrote("mission_tags", "community_programs", "cause_partnerships"), nil
	}

	extracted, usage, err := b.extract(ctx, team.Name, text)
	if err != nil {
		return NoChange(), err
	}
	usage.LogCost(brandModel, "brand_enrich")

	team.MissionTags = emptyIfNil(extracted.MissionTags)
	team.CommunityPrograms = emptyIfNil(extracted.CommunityPrograms)
	team.CausePartnerships = emptyIfNil(extracted.CausePartnerships)
	return Wrote("mission_tags", "community_programs", "cause_partnerships"), nil
}

// communityPageText fetches the team homepage plus its community pages and
// returns their visible text, capped at brandPageLimit runes.
func (b *BrandEnricher) communityPageText(ctx context.Context, siteURL string) (string, error) {
	doc, err := b.client.GetDocument(ctx, siteURL)
	if err != nil {
		return "", eris.Wrapf(err, "brand: fetch %s", siteURL)
	}

	var sb strings.Builder
	sb.WriteString(pageText(doc))
	for _, page := range secondaryPages(doc, siteURL) {
		sub, err := b.client.GetDocument(ctx, page)
		if err != nil {
			continue
		}
		sb.WriteByte('\n')
		sb.WriteString(pageText(sub))
		if sb.Len() > brandPageLimit {
			break
		}
	}

	text := strings.TrimSpace(sb.String())
	runes := []rune(text)
	if len(runes) > brandPageLimit {
		text = string(runes[:brandPageLimit])
	}
	return text, nil
}

// extract asks the model for the brand extraction JSON and parses it.
func (b *BrandEnricher) extract(ctx context.Context, teamName, text string) (*brandExtraction, anthropic.TokenUsage, error) {
	resp, err := b.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     brandModel,
		MaxTokens: brandMaxTokens,
		System:    brandSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: "Team: " + teamName + "\n\nPage text:\n" + text},
		},
	})
	if err != nil {
		return nil, anthropic.TokenUsage{}, eris.Wrapf(err, "brand: extraction for %s", teamName)
	}

	var out brandExtraction
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &out); err != nil {
		return nil, resp.Usage, eris.Wrapf(err, "brand: unparseable extraction for %s", teamName)
	}
	return &out, resp.Usage, nil
}

// extractJSON strips markdown fences and surrounding prose from a model
// response, keeping the outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// pageText returns a page's visible text with scripts and styles dropped and
// whitespace collapsed.
func pageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
