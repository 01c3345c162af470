package privacy

import (
	"strconv"
	"strings"

	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
)

// GroupedTable holds the distinct value combinations of a column set, in
// first-seen order, with the number of rows sharing each combination.
type GroupedTable struct {
	Columns []string   `json:"columns"`
	Groups  [][]string `json:"groups"`
	Counts  []int      `json:"counts"`
}

// Len returns the number of groups.
func (g *GroupedTable) Len() int { return len(g.Counts) }

// Column returns the per-group values of one grouping column.
func (g *GroupedTable) Column(name string) ([]string, bool) {
	idx := indexOf(g.Columns, name)
	if idx < 0 {
		return nil, false
	}
	values := make([]string, len(g.Groups))
	for i, group := range g.Groups {
		values[i] = group[idx]
	}
	return values, true
}

// MinCount returns the size of the smallest group, or 0 when there are no
// groups.
func (g *GroupedTable) MinCount() int {
	if len(g.Counts) == 0 {
		return 0
	}
	minCount := g.Counts[0]
	for _, c := range g.Counts[1:] {
		if c < minCount {
			minCount = c
		}
	}
	return minCount
}

// Total returns the sum of all counts, which equals the source row count.
func (g *GroupedTable) Total() int {
	total := 0
	for _, c := range g.Counts {
		total += c
	}
	return total
}

// FilterMinCount returns the groups of size at least k.
func (g *GroupedTable) FilterMinCount(k int) *GroupedTable {
	out := &GroupedTable{
		Columns: append([]string(nil), g.Columns...),
		Groups:  make([][]string, 0, len(g.Groups)),
		Counts:  make([]int, 0, len(g.Counts)),
	}
	for i, c := range g.Counts {
		if c >= k {
			out.Groups = append(out.Groups, g.Groups[i])
			out.Counts = append(out.Counts, c)
		}
	}
	return out
}

// Header returns the grouping columns followed by the count column.
func (g *GroupedTable) Header() []string {
	return append(append([]string(nil), g.Columns...), constants.CountColumn)
}

// Rows returns one row per group, count last.
func (g *GroupedTable) Rows() [][]string {
	rows := make([][]string, len(g.Groups))
	for i, group := range g.Groups {
		row := make([]string, 0, len(group)+1)
		row = append(row, group...)
		rows[i] = append(row, strconv.Itoa(g.Counts[i]))
	}
	return rows
}

// GroupAndCount groups the rows of t by the values of columns.
func GroupAndCount(t *table.Table, columns []string) (*GroupedTable, error) {
	cols := make([]*table.Column, len(columns))
	for i, name := range columns {
		col, ok := t.Column(name)
		if !ok {
			return nil, table.MissingColumnError(name)
		}
		cols[i] = col
	}

	grouped := &GroupedTable{
		Columns: append([]string(nil), columns...),
		Groups:  make([][]string, 0),
		Counts:  make([]int, 0),
	}
	index := make(map[string]int)

	var key strings.Builder
	for row := 0; row < t.Len(); row++ {
		key.Reset()
		values := make([]string, len(cols))
		for i, col := range cols {
			v := col.Value(row)
			values[i] = v
			// Length-prefixed so that no two value tuples share a key.
			key.WriteString(strconv.Itoa(len(v)))
			key.WriteByte(':')
			key.WriteString(v)
		}

		if idx, exists := index[key.String()]; exists {
			grouped.Counts[idx]++
			continue
		}
		index[key.String()] = len(grouped.Groups)
		grouped.Groups = append(grouped.Groups, values)
		grouped.Counts = append(grouped.Counts, 1)
	}

	return grouped, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
