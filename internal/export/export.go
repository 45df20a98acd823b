// Package export writes datasets to JSON and XLSX files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/store"
)

// JSON writes the dataset to path as an indented JSON document.
func JSON(path string, ds *store.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ds); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// XLSX writes the dataset to path as a workbook with an "All Teams" sheet
// plus one sheet per category.
func XLSX(path string, ds *store.Dataset) error {
	file := xlsx.NewFile()

	if err := addSheet(file, "All Teams", ds.Teams); err != nil {
		return err
	}
	for _, category := range categories(ds.Teams) {
		var teams []model.TeamRow
		for _, t := range ds.Teams {
			if t.Category == category {
				teams = append(teams, t)
			}
		}
		if err := addSheet(file, sheetName(category), teams); err != nil {
			return err
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func categories(teams []model.TeamRow) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range teams {
		if t.Category != "" && !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}

// sheetName keeps names inside Excel's 31-char limit and strips characters
// Excel rejects in sheet names.
func sheetName(category string) string {
	name := strings.NewReplacer("/", "-", "\\", "-", "*", "", "?", "", "[", "(", "]", ")", ":", "-").Replace(category)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func addSheet(file *xlsx.File, name string, teams []model.TeamRow) error {
	sheet, err := file.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	header := sheet.AddRow()
	for _, field := range model.FieldOrder {
		header.AddCell().SetString(field)
	}

	for i := range teams {
		fields := teams[i].FieldMap()
		row := sheet.AddRow()
		for _, field := range model.FieldOrder {
			setCell(row.AddCell(), fields[field])
		}
	}
	return nil
}

func setCell(cell *xlsx.Cell, v any) {
	switch val := v.(type) {
	case nil:
		cell.SetString("")
	case string:
		cell.SetString(val)
	case int:
		cell.SetInt64(int64(val))
	case int64:
		cell.SetInt64(val)
	case float64:
		cell.SetFloat(val)
	case bool:
		cell.SetBool(val)
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		cell.SetString(strings.Join(parts, "; "))
	default:
		cell.SetString(fmt.Sprint(val))
	}
}
