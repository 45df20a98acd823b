// Package diff computes field-level changes between a dataset snapshot and
// its enriched state, with display-friendly truncation.
package diff

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/names"
)

const (
	// maxListDisplay is how many list items show before folding the rest
	// into a "+N more" marker.
	maxListDisplay = 3

	// maxStringDisplay is the display length cap for string values.
	maxStringDisplay = 100
)

// ChangeKind classifies one field change.
type ChangeKind string

const (
	KindAdded    ChangeKind = "added"
	KindModified ChangeKind = "modified"
	KindRemoved  ChangeKind = "removed"
)

// FieldChange is one field's transition. Before and After are
// display-truncated: a string for scalar fields, a []string for list fields.
type FieldChange struct {
	Field  string     `json:"field"`
	Kind   ChangeKind `json:"kind"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}

// TeamDiff is one team's set of field changes.
type TeamDiff struct {
	Name    string        `json:"name"`
	Changes []FieldChange `json:"changes"`
}

// Diff is the full comparison between a snapshot and the current dataset.
type Diff struct {
	Teams        []TeamDiff `json:"teams"`
	TeamsAdded   []string   `json:"teams_added,omitempty"`
	TeamsRemoved []string   `json:"teams_removed,omitempty"`
	TotalChanges int        `json:"total_changes"`
}

// Compute diffs the enriched dataset against the before-snapshot (keyed by
// normalized team name, as captured at task start). Bookkeeping fields are
// excluded. Teams are ordered by change count descending, then by name.
func Compute(before map[string]map[string]any, after []*model.TeamRow) *Diff {
	d := &Diff{}

	seen := map[string]bool{}
	for _, team := range after {
		key := names.Key(team.Name)
		seen[key] = true

		prev, existed := before[key]
		if !existed {
			d.TeamsAdded = append(d.TeamsAdded, team.Name)
			continue
		}

		changes := compareFields(prev, team.FieldMap())
		if len(changes) > 0 {
			d.Teams = append(d.Teams, TeamDiff{Name: team.Name, Changes: changes})
			d.TotalChanges += len(changes)
		}
	}

	for key, fields := range before {
		if !seen[key] {
			name, _ := fields["name"].(string)
			if name == "" {
				name = key
			}
			d.TeamsRemoved = append(d.TeamsRemoved, name)
		}
	}
	sort.Strings(d.TeamsAdded)
	sort.Strings(d.TeamsRemoved)

	sort.SliceStable(d.Teams, func(i, j int) bool {
		if len(d.Teams[i].Changes) != len(d.Teams[j].Changes) {
			return len(d.Teams[i].Changes) > len(d.Teams[j].Changes)
		}
		return d.Teams[i].Name < d.Teams[j].Name
	})
	return d
}

// compareFields walks the canonical field order and classifies each change.
// Truncation happens after classification so display caps never mask a real
// difference.
func compareFields(before, after map[string]any) []FieldChange {
	var changes []FieldChange
	for _, field := range model.FieldOrder {
		if model.BookkeepingFields[field] {
			continue
		}
		b, a := before[field], after[field]
		bEmpty, aEmpty := isEmpty(b), isEmpty(a)

		switch {
		case bEmpty && aEmpty:
			// nil, "" and empty lists are all "no value"; moving between
			// them is not a change.
		case bEmpty && !aEmpty:
			changes = append(changes, FieldChange{
				Field: field,
				Kind:  KindAdded,
				After: display(a),
			})
		case !bEmpty && aEmpty:
			changes = append(changes, FieldChange{
				Field:  field,
				Kind:   KindRemoved,
				Before: display(b),
			})
		case !reflect.DeepEqual(b, a):
			changes = append(changes, FieldChange{
				Field:  field,
				Kind:   KindModified,
				Before: display(b),
				After:  display(a),
			})
		}
	}
	return changes
}

// isEmpty treats nil, empty strings, and empty lists as equivalent absences.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// display renders a value for diff output: lists cap at maxListDisplay items
// plus a "+N more" marker, strings cap at maxStringDisplay runes with an
// ellipsis.
func display(v any) any {
	switch x := v.(type) {
	case []any:
		return displayList(x)
	case []string:
		list := make([]any, len(x))
		for i, s := range x {
			list[i] = s
		}
		return displayList(list)
	case string:
		return truncate(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func displayList(items []any) []string {
	out := make([]string, 0, min(len(items), maxListDisplay+1))
	for i, item := range items {
		if i == maxListDisplay {
			out = append(out, fmt.Sprintf("+%d more", len(items)-maxListDisplay))
			break
		}
		out = append(out, truncate(fmt.Sprintf("%v", item)))
	}
	return out
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStringDisplay {
		return s
	}
	return string(runes[:maxStringDisplay]) + "…"
}
