package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnrichmentDedupes(t *testing.T) {
	team := &TeamRow{Name: "Chicago Sky"}

	team.ApplyEnrichment("geographic")
	team.ApplyEnrichment("social")
	team.ApplyEnrichment("geographic")

	assert.Equal(t, []string{"geographic", "social"}, team.EnrichmentsApplied)
	require.NotNil(t, team.LastEnriched)
}

func TestApplyEnrichmentTouchesTimestamp(t *testing.T) {
	team := &TeamRow{Name: "Seattle Storm"}
	team.ApplyEnrichment("social")
	first := *team.LastEnriched

	team.ApplyEnrichment("social")
	assert.False(t, team.LastEnriched.Before(first))
}

func TestHasEnrichment(t *testing.T) {
	team := &TeamRow{Name: "Iowa Cubs"}
	assert.False(t, team.HasEnrichment("social"))

	team.ApplyEnrichment("social")
	assert.True(t, team.HasEnrichment("social"))
	assert.False(t, team.HasEnrichment("geographic"))
}

func TestFieldMapDereferencesPointers(t *testing.T) {
	pop := int64(2700000)
	price := 58.50
	owns := true
	programs := 4
	team := &TeamRow{
		Name:               "Chicago Cubs",
		Region:             "Chicago",
		League:             "MLB",
		CityPopulation:     &pop,
		AvgTicketPrice:     &price,
		OwnsStadium:        &owns,
		FamilyProgramCount: &programs,
		MissionTags:        []string{"community", "youth baseball"},
		SocialHandles:      []SocialHandle{{Platform: "x", Handle: "Cubs"}},
		Sponsors:           []SponsorInfo{{Name: "Advocate Health"}},
	}

	m := team.FieldMap()
	assert.Equal(t, "Chicago Cubs", m["name"])
	assert.Equal(t, int64(2700000), m["city_population"])
	assert.Equal(t, 58.50, m["avg_ticket_price"])
	assert.Equal(t, true, m["owns_stadium"])
	assert.Equal(t, 4, m["family_program_count"])
	assert.Equal(t, []any{"community", "youth baseball"}, m["mission_tags"])
	assert.Equal(t, []any{"x:Cubs"}, m["social_handles"])
	assert.Equal(t, []any{"Advocate Health"}, m["sponsors"])
}

func TestFieldMapNilPointersStayNil(t *testing.T) {
	team := &TeamRow{Name: "Hartford Yard Goats"}
	m := team.FieldMap()

	assert.Nil(t, m["city_population"])
	assert.Nil(t, m["owns_stadium"])
	assert.Nil(t, m["mission_tags"])
	assert.Nil(t, m["last_enriched"])
}

func TestFieldMapDistinguishesEmptyFromUnset(t *testing.T) {
	team := &TeamRow{Name: "El Paso Chihuahuas", CommunityPrograms: []string{}}
	m := team.FieldMap()

	// An explicitly written empty slice means "checked, nothing found".
	assert.Equal(t, []any{}, m["community_programs"])
	assert.Nil(t, m["cause_partnerships"])
}

func TestFieldOrderCoversFieldMap(t *testing.T) {
	m := (&TeamRow{}).FieldMap()
	require.Len(t, m, len(FieldOrder))
	for _, field := range FieldOrder {
		_, ok := m[field]
		assert.True(t, ok, "FieldOrder entry %q missing from FieldMap", field)
	}
}
