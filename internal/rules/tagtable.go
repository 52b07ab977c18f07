package rules

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// ErrNoActionColumns is returned when a tag table has none of the
// recognised column headers.
var ErrNoActionColumns = errors.New("tag table has no action columns")

// Conflict records a tag listed under more than one action column.
type Conflict struct {
	Tag      model.Tag
	Actions  []TagAction
	Resolved TagAction
}

// String describes the conflict for a warning log.
func (c Conflict) String() string {
	names := make([]string, len(c.Actions))
	for i, a := range c.Actions {
		names[i] = a.String()
	}
	return fmt.Sprintf("%s listed as %s, using %s", c.Tag, strings.Join(names, ","), c.Resolved)
}

// TagTable maps each tag to exactly one action. It is immutable after load.
type TagTable struct {
	actions   map[model.Tag]TagAction
	conflicts []Conflict
}

// NewTagTable builds a table from an explicit mapping.
func NewTagTable(actions map[model.Tag]TagAction) *TagTable {
	m := make(map[model.Tag]TagAction, len(actions))
	for t, a := range actions {
		m[t] = a
	}
	return &TagTable{actions: m}
}

// LoadTagTable reads a tag table CSV file.
func LoadTagTable(path string) (*TagTable, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided rule path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open tag table: %w", err)
	}
	defer f.Close()

	table, err := ParseTagTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ParseTagTable reads a CSV with the columns remove_tag, shift_tag,
// hashuid_tag and hashptid_tag. Columns may appear in any order and be
// missing; empty cells are ignored. A tag listed under several columns is
// resolved to the highest ranked action and reported by Conflicts.
func ParseTagTable(r io.Reader) (*TagTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read tag table header: %w", err)
	}

	columns := make(map[int]TagAction)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for _, a := range actionColumns {
			if name == a.Column() {
				columns[i] = a
			}
		}
	}
	if len(columns) == 0 {
		return nil, ErrNoActionColumns
	}

	seen := make(map[model.Tag][]TagAction)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		for i, cell := range record {
			action, ok := columns[i]
			if !ok || strings.TrimSpace(cell) == "" {
				continue
			}
			tag, err := model.ParseTag(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, action.Column(), err)
			}
			if !containsAction(seen[tag], action) {
				seen[tag] = append(seen[tag], action)
			}
		}
	}

	table := &TagTable{actions: make(map[model.Tag]TagAction, len(seen))}
	for tag, actions := range seen {
		resolved := actions[0]
		for _, a := range actions[1:] {
			if a.outranks(resolved) {
				resolved = a
			}
		}
		table.actions[tag] = resolved
		if len(actions) > 1 {
			table.conflicts = append(table.conflicts, Conflict{Tag: tag, Actions: actions, Resolved: resolved})
		}
	}
	sort.Slice(table.conflicts, func(i, j int) bool {
		return table.conflicts[i].Tag.Less(table.conflicts[j].Tag)
	})

	return table, nil
}

func containsAction(actions []TagAction, a TagAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

// Action returns the action for tag.
func (t *TagTable) Action(tag model.Tag) (TagAction, bool) {
	a, ok := t.actions[tag]
	return a, ok
}

// Len returns the number of tags in the table.
func (t *TagTable) Len() int {
	return len(t.actions)
}

// Conflicts returns tags that were listed under more than one column.
func (t *TagTable) Conflicts() []Conflict {
	return t.conflicts
}

// Count returns how many tags map to action.
func (t *TagTable) Count(action TagAction) int {
	n := 0
	for _, a := range t.actions {
		if a == action {
			n++
		}
	}
	return n
}
