package model

import (
	"time"
)

// SocialHandle is one social platform account for a team. Handles can be
// renamed by the team; UniqueID holds a stable platform identifier when one
// exists (YouTube channel IDs start with "UC").
type SocialHandle struct {
	Platform string `json:"platform"` // "x", "instagram", "facebook", "tiktok", "youtube"
	Handle   string `json:"handle"`
	URL      string `json:"url,omitempty"`
	UniqueID string `json:"unique_id,omitempty"`
}

// SponsorInfo is one sponsor partnership.
type SponsorInfo struct {
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`   // "Apparel", "Beverage", "Financial"
	AssetType string `json:"asset_type,omitempty"` // "Jersey Patch", "Naming Rights", "Official Partner"
}

// TeamRow is one team's record. The base fields are set by the scraper that
// produced the row and are never written by enrichers. Every enrichment field
// is a pointer: nil means "not yet enriched", while an explicitly written
// empty slice means "checked, nothing found". Each enricher owns the exact
// field set it declares via Fields() and must not write outside it.
type TeamRow struct {
	// Base fields (scraper-owned).
	Name              string `json:"name"`
	Region            string `json:"region"`
	League            string `json:"league"`
	TargetDemographic string `json:"target_demographic"`
	OfficialURL       string `json:"official_url"`
	Category          string `json:"category"`
	LogoURL           string `json:"logo_url,omitempty"`

	// Geographic.
	GeoCity         string   `json:"geo_city,omitempty"`
	GeoCountry      string   `json:"geo_country,omitempty"`
	CityPopulation  *int64   `json:"city_population,omitempty"`
	MetroGDPMillion *float64 `json:"metro_gdp_millions,omitempty"`

	// Social / audience.
	SocialHandles      []SocialHandle `json:"social_handles,omitempty"`
	FollowersX         *int64         `json:"followers_x,omitempty"`
	FollowersInstagram *int64         `json:"followers_instagram,omitempty"`
	FollowersFacebook  *int64         `json:"followers_facebook,omitempty"`
	FollowersTikTok    *int64         `json:"followers_tiktok,omitempty"`
	SubscribersYouTube *int64         `json:"subscribers_youtube,omitempty"`
	AvgGameAttendance  *int64         `json:"avg_game_attendance,omitempty"`

	// Family friendliness.
	FamilyProgramCount *int     `json:"family_program_count,omitempty"`
	FamilyProgramTypes []string `json:"family_program_types,omitempty"`

	// Inventory / sponsors.
	OwnsStadium *bool         `json:"owns_stadium,omitempty"`
	StadiumName string        `json:"stadium_name,omitempty"`
	Sponsors    []SponsorInfo `json:"sponsors,omitempty"`

	// Pricing / valuation.
	AvgTicketPrice        *float64 `json:"avg_ticket_price,omitempty"`
	FranchiseValueMillion *float64 `json:"franchise_value_millions,omitempty"`
	AnnualRevenueMillion  *float64 `json:"annual_revenue_millions,omitempty"`

	// Brand alignment.
	MissionTags       []string `json:"mission_tags,omitempty"`
	CommunityPrograms []string `json:"community_programs,omitempty"`
	CausePartnerships []string `json:"cause_partnerships,omitempty"`

	// Enrichment metadata.
	EnrichmentsApplied []string   `json:"enrichments_applied,omitempty"`
	LastEnriched       *time.Time `json:"last_enriched,omitempty"`
}

// ApplyEnrichment records that the named enricher has touched this row.
// The applied list is append-only and deduplicated.
func (t *TeamRow) ApplyEnrichment(enricherID string) {
	for _, id := range t.EnrichmentsApplied {
		if id == enricherID {
			t.touch()
			return
		}
	}
	t.EnrichmentsApplied = append(t.EnrichmentsApplied, enricherID)
	t.touch()
}

func (t *TeamRow) touch() {
	now := time.Now().UTC()
	t.LastEnriched = &now
}

// HasEnrichment reports whether the named enricher has been applied.
func (t *TeamRow) HasEnrichment(enricherID string) bool {
	for _, id := range t.EnrichmentsApplied {
		if id == enricherID {
			return true
		}
	}
	return false
}

// FieldOrder is the canonical field ordering for FieldMap, exports, and diff
// output. It mirrors the column order of the dataset exports.
var FieldOrder = []string{
	"name", "region", "league", "target_demographic", "official_url", "category", "logo_url",
	"geo_city", "geo_country", "city_population", "metro_gdp_millions",
	"social_handles", "followers_x", "followers_instagram", "followers_facebook",
	"followers_tiktok", "subscribers_youtube", "avg_game_attendance",
	"family_program_count", "family_program_types",
	"owns_stadium", "stadium_name", "sponsors",
	"avg_ticket_price", "franchise_value_millions", "annual_revenue_millions",
	"mission_tags", "community_programs", "cause_partnerships",
	"enrichments_applied", "last_enriched",
}

// BookkeepingFields are metadata fields excluded from diff computation.
var BookkeepingFields = map[string]bool{
	"enrichments_applied": true,
	"last_enriched":       true,
}

// FieldMap returns the row as a field-name keyed map. Pointer fields
// dereference to their value or nil; slice fields pass through as-is (a nil
// slice stays nil, an empty slice stays empty). The diff engine and the
// exporters consume this view so they never depend on the struct shape.
func (t *TeamRow) FieldMap() map[string]any {
	m := make(map[string]any, len(FieldOrder))
	m["name"] = t.Name
	m["region"] = t.Region
	m["league"] = t.League
	m["target_demographic"] = t.TargetDemographic
	m["official_url"] = t.OfficialURL
	m["category"] = t.Category
	m["logo_url"] = t.LogoURL
	m["geo_city"] = t.GeoCity
	m["geo_country"] = t.GeoCountry
	m["city_population"] = derefInt64(t.CityPopulation)
	m["metro_gdp_millions"] = derefFloat(t.MetroGDPMillion)
	m["social_handles"] = handlesToAny(t.SocialHandles)
	m["followers_x"] = derefInt64(t.FollowersX)
	m["followers_instagram"] = derefInt64(t.FollowersInstagram)
	m["followers_facebook"] = derefInt64(t.FollowersFacebook)
	m["followers_tiktok"] = derefInt64(t.FollowersTikTok)
	m["subscribers_youtube"] = derefInt64(t.SubscribersYouTube)
	m["avg_game_attendance"] = derefInt64(t.AvgGameAttendance)
	m["family_program_count"] = derefInt(t.FamilyProgramCount)
	m["family_program_types"] = stringsToAny(t.FamilyProgramTypes)
	m["owns_stadium"] = derefBool(t.OwnsStadium)
	m["stadium_name"] = t.StadiumName
	m["sponsors"] = sponsorsToAny(t.Sponsors)
	m["avg_ticket_price"] = derefFloat(t.AvgTicketPrice)
	m["franchise_value_millions"] = derefFloat(t.FranchiseValueMillion)
	m["annual_revenue_millions"] = derefFloat(t.AnnualRevenueMillion)
	m["mission_tags"] = stringsToAny(t.MissionTags)
	m["community_programs"] = stringsToAny(t.CommunityPrograms)
	m["cause_partnerships"] = stringsToAny(t.CausePartnerships)
	m["enrichments_applied"] = stringsToAny(t.EnrichmentsApplied)
	if t.LastEnriched != nil {
		m["last_enriched"] = t.LastEnriched.Format(time.RFC3339)
	} else {
		m["last_enriched"] = nil
	}
	return m
}

func derefInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringsToAny(ss []string) any {
	if ss == nil {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func handlesToAny(hs []SocialHandle) any {
	if hs == nil {
		return nil
	}
	out := make([]any, len(hs))
	for i, h := range hs {
		out[i] = h.Platform + ":" + h.Handle
	}
	return out
}

func sponsorsToAny(ss []SponsorInfo) any {
	if ss == nil {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s.Name
	}
	return out
}
