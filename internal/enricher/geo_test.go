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

func TestResolveCity(t *testing.T) {
	tests := []struct {
		region   string
		wantCity string
		wantID   string
	}{
		{"Chicago", "Chicago", "geoId/1714000"},
		{"  tampa bay  ", "Tampa Bay", "geoId/1271000"},
		{"NYC", "New York", "geoId/3651000"},
		{"Foxborough", "New England", "geoId/2507000"},
		{"Toronto", "Toronto", ""},
		{"Narnia", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		city, id := resolveCity(tt.region)
		assert.Equal(t, tt.wantCity, city, "region %q", tt.region)
		assert.Equal(t, tt.wantID, id, "region %q", tt.region)
	}
}

func TestGeoEnrichTeamSkipsEnriched(t *testing.T) {
	e := NewGeoEnricher(DefaultConfig())
	pop := int64(123)
	team := &model.TeamRow{Name: "Chicago Cubs", Region: "Chicago", CityPopulation: &pop}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	assert.False(t, out.Changed)
}

func TestGeoEnrichTeamUnknownRegion(t *testing.T) {
	e := NewGeoEnricher(DefaultConfig())
	team := &model.TeamRow{Name: "Somewhere FC", Region: "Atlantis"}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Empty(t, team.GeoCity)
}

func statServer(values map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := values[r.URL.Query().Get("stat_var")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
}

func TestGeoEnrichTeamPopulationAndGDP(t *testing.T) {
	srv := statServer(map[string]string{
		populationVariable: `{"value": 2700000}`,
		gdpVariable:        `{"value": 764000000000}`,
	})
	defer srv.Close()

	e := &GeoEnricher{
		cfg:     DefaultConfig(),
		statURL: srv.URL,
		client:  fetch.New(fetch.Options{}),
		cache:   map[string]*float64{},
	}
	team := &model.TeamRow{Name: "Chicago Bears", Region: "Chicago"}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	assert.ElementsMatch(t,
		[]string{"geo_city", "geo_country", "city_population", "metro_gdp_millions"},
		out.Fields)
	assert.Equal(t, "Chicago", team.GeoCity)
	assert.Equal(t, "US", team.GeoCountry)
	require.NotNil(t, team.CityPopulation)
	assert.Equal(t, int64(2700000), *team.CityPopulation)
	require.NotNil(t, team.MetroGDPMillion)
	assert.InDelta(t, 764000.0, *team.MetroGDPMillion, 0.1)
}

func TestGeoEnrichTeamMissingGDPValue(t *testing.T) {
	// Places without a GDP series still get their population written.
	srv := statServer(map[string]string{
		populationVariable: `{"value": 2700000}`,
		gdpVariable:        `{}`,
	})
	defer srv.Close()

	e := &GeoEnricher{
		cfg:     DefaultConfig(),
		statURL: srv.URL,
		client:  fetch.New(fetch.Options{}),
		cache:   map[string]*float64{},
	}
	team := &model.TeamRow{Name: "Chicago Bears", Region: "Chicago"}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	assert.NotContains(t, out.Fields, "metro_gdp_millions")
	assert.Nil(t, team.MetroGDPMillion)
	require.NotNil(t, team.CityPopulation)
}

func TestGeoEnrichTeamCanadianMarket(t *testing.T) {
	// Non-US markets resolve city and country without a population call.
	e := NewGeoEnricher(DefaultConfig())
	team := &model.TeamRow{Name: "Toronto Blue Jays", Region: "Toronto"}

	out, err := e.EnrichTeam(context.Background(), team)
	require.NoError(t, err)
	require.True(t, out.Changed)
	assert.ElementsMatch(t, []string{"geo_city", "geo_country"}, out.Fields)
	assert.Equal(t, "Toronto", team.GeoCity)
	assert.Equal(t, "CA", team.GeoCountry)
	assert.Nil(t, team.CityPopulation)
}
