package enricher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/pkg/anthropic"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if len(req.Messages) > 0 {
		s.prompts = append(s.prompts, req.Messages[0].Content)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{Text: s.response}, nil
}

func TestBrandAvailability(t *testing.T) {
	noKey := NewBrandEnricher(DefaultConfig())
	assert.False(t, noKey.Available())

	cfg := DefaultConfig()
	cfg.APIKeys = map[string]string{"anthropic": "sk-test"}
	withKey := NewBrandEnricher(cfg)
	assert.True(t, withKey.Available())
}

func TestBrandEnrichTeamExtracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<h1>In the Community</h1>
			<p>Our Reading Stars program partners with the Food Bank.</p>
		</body></html>`))
	}))
	defer srv.Close()

	llm := &stubLLM{response: "```json\n" + `{
		"mission_tags": ["literacy", "food security"],
		"community_programs": ["Reading Stars"],
		"cause_partnerships": ["Food Bank"]
	}` + "\n```"}

	e := &BrandEnricher{
		cfg:    DefaultConfig(),
		apiKey: "sk-test",
		llm:    llm,
		client: fetch.New(fetch.Options{}),
	}
	team := &model.TeamRow{Name: "Test Town Testers", OfficialURL: srv.URL}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	assert.ElementsMatch(t, []string{"mission_tags", "community_programs", "cause_partnerships"}, out.Fields)

	assert.Equal(t, []string{"literacy", "food security"}, team.MissionTags)
	assert.Equal(t, []string{"Reading Stars"}, team.CommunityPrograms)
	assert.Equal(t, []string{"Food Bank"}, team.CausePartnerships)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Test Town Testers")
	assert.Contains(t, llm.prompts[0], "Reading Stars")
}

func TestBrandEnrichTeamNullArraysBecomeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>community content</p></body></html>`))
	}))
	defer srv.Close()

	llm := &stubLLM{response: `{"mission_tags": null, "community_programs": [], "cause_partnerships": null}`}
	e := &BrandEnricher{
		cfg:    DefaultConfig(),
		apiKey: "sk-test",
		llm:    llm,
		client: fetch.New(fetch.Options{}),
	}
	team := &model.TeamRow{Name: "Quiet FC", OfficialURL: srv.URL}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	require.NotNil(t, team.MissionTags)
	assert.Empty(t, team.MissionTags)
	require.NotNil(t, team.CausePartnerships)
	assert.Empty(t, team.CausePartnerships)
}

func TestBrandEnrichTeamSkipsEnriched(t *testing.T) {
	e := &BrandEnricher{cfg: DefaultConfig(), apiKey: "sk-test", llm: &stubLLM{}}
	team := &model.TeamRow{Name: "Done FC", MissionTags: []string{}}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	assert.False(t, out.Changed)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{`Here you go: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`},
		{`no json at all`, `no json at all`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractJSON(tt.in), "input %q", tt.in)
	}
}
