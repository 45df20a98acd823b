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
)

func TestSponsorEnrichTeamScrapesPartnerPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/partners">Our Partners</a></body></html>`))
	})
	mux.HandleFunc("/partners", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<section><h2>Naming Rights Partner</h2>
				<img alt="Acme Bank logo">
			</section>
			<section><h2>Official Partners</h2>
				<img alt="Fizz Cola">
				<img alt="arrow">
				<img alt="Fizz Cola">
			</section>
		</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := &SponsorEnricher{
		cfg:    DefaultConfig(),
		client: fetch.New(fetch.Options{}),
		venues: map[string]venueInfo{},
	}
	team := &model.TeamRow{Name: "Test Town Testers", OfficialURL: srv.URL}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	assert.Contains(t, out.Fields, "sponsors")

	require.Len(t, team.Sponsors, 2)
	assert.Equal(t, "Acme Bank", team.Sponsors[0].Name)
	assert.Equal(t, "Naming Rights", team.Sponsors[0].AssetType)
	assert.Equal(t, "Fizz Cola", team.Sponsors[1].Name)
}

func TestSponsorEnrichTeamNoPartnerPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/tickets">Tickets</a></body></html>`))
	}))
	defer srv.Close()

	e := &SponsorEnricher{
		cfg:    DefaultConfig(),
		client: fetch.New(fetch.Options{}),
		venues: map[string]venueInfo{},
	}
	team := &model.TeamRow{Name: "Quiet FC", OfficialURL: srv.URL}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	require.NotNil(t, team.Sponsors, "a completed check writes an empty slice, not nil")
	assert.Empty(t, team.Sponsors)
}

func TestSponsorEnrichTeamUsesPrefetchedVenue(t *testing.T) {
	e := &SponsorEnricher{
		cfg:    DefaultConfig(),
		client: fetch.New(fetch.Options{}),
		venues: map[string]venueInfo{
			"test town testers": {
				stadium:   "Tester Field",
				ownedBy:   "City of Test Town",
				ownerIsUs: false,
			},
		},
	}
	// No OfficialURL: only venue data applies.
	team := &model.TeamRow{Name: "Test Town Testers"}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	assert.ElementsMatch(t, []string{"stadium_name", "owns_stadium"}, out.Fields)

	assert.Equal(t, "Tester Field", team.StadiumName)
	require.NotNil(t, team.OwnsStadium)
	assert.False(t, *team.OwnsStadium)
}

func TestSponsorEnrichTeamSelfOwnedVenue(t *testing.T) {
	e := &SponsorEnricher{
		cfg:    DefaultConfig(),
		client: fetch.New(fetch.Options{}),
		venues: map[string]venueInfo{
			"test town testers": {
				stadium:   "Tester Field",
				ownedBy:   "Test Town Testers",
				ownerIsUs: true,
			},
		},
	}
	team := &model.TeamRow{Name: "Test Town Testers"}

	_, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.NotNil(t, team.OwnsStadium)
	assert.True(t, *team.OwnsStadium)
}

func TestCleanSponsorName(t *testing.T) {
	tests := []struct {
		alt  string
		want string
	}{
		{"Acme Bank logo", "Acme Bank"},
		{"  Fizz Cola  ", "Fizz Cola"},
		{"icon", ""},
		{"", ""},
		{"arrow", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanSponsorName(tt.alt), "alt %q", tt.alt)
	}
}
