package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/store"
)

func testDataset() *store.Dataset {
	pop := int64(2700000)
	value := 4250.0
	return &store.Dataset{
		ScraperID: "mlb_milb",
		ScrapedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Teams: []model.TeamRow{
			{
				Name:                  "Chicago Cubs",
				Region:                "Chicago",
				League:                "Major League Baseball — National League",
				Category:              "MLB",
				CityPopulation:        &pop,
				FranchiseValueMillion: &value,
				MissionTags:           []string{"community", "youth baseball"},
			},
			{
				Name:     "Iowa Cubs",
				Region:   "Des Moines",
				League:   "Triple-A — International League",
				Category: "MiLB",
			},
		},
	}
}

func TestJSONExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.json")
	require.NoError(t, JSON(path, testDataset()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got store.Dataset
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "mlb_milb", got.ScraperID)
	require.Len(t, got.Teams, 2)
	assert.Equal(t, "Chicago Cubs", got.Teams[0].Name)
	require.NotNil(t, got.Teams[0].CityPopulation)
	assert.Equal(t, int64(2700000), *got.Teams[0].CityPopulation)
	assert.Equal(t, []string{"community", "youth baseball"}, got.Teams[0].MissionTags)
}

func TestXLSXExportSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.xlsx")
	require.NoError(t, XLSX(path, testDataset()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	require.Len(t, f.Sheets, 3)
	assert.Equal(t, "All Teams", f.Sheets[0].Name)
	assert.Equal(t, "MLB", f.Sheets[1].Name)
	assert.Equal(t, "MiLB", f.Sheets[2].Name)

	all := f.Sheets[0]
	// Header row plus both teams.
	require.Len(t, all.Rows, 3)
	assert.Equal(t, "name", all.Rows[0].Cells[0].String())
	assert.Equal(t, "Chicago Cubs", all.Rows[1].Cells[0].String())

	// Category sheets carry only their own teams.
	require.Len(t, f.Sheets[1].Rows, 2)
	assert.Equal(t, "Chicago Cubs", f.Sheets[1].Rows[1].Cells[0].String())
	require.Len(t, f.Sheets[2].Rows, 2)
	assert.Equal(t, "Iowa Cubs", f.Sheets[2].Rows[1].Cells[0].String())
}

func TestXLSXCellFormatting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.xlsx")
	require.NoError(t, XLSX(path, testDataset()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	header := f.Sheets[0].Rows[0]
	cols := map[string]int{}
	for i, cell := range header.Cells {
		cols[cell.String()] = i
	}

	cubs := f.Sheets[0].Rows[1]
	assert.Equal(t, "2700000", cubs.Cells[cols["city_population"]].String())
	assert.Equal(t, "community; youth baseball", cubs.Cells[cols["mission_tags"]].String())
	// Unenriched fields come through blank, not "nil".
	assert.Equal(t, "", cubs.Cells[cols["owns_stadium"]].String())

	iowa := f.Sheets[0].Rows[2]
	assert.Equal(t, "", iowa.Cells[cols["franchise_value_millions"]].String())
}

func TestSheetNameSanitized(t *testing.T) {
	assert.Equal(t, "AAA-East", sheetName("AAA/East"))
	assert.Equal(t, 31, len(sheetName("An Extremely Long Category Name Indeed")))
}
