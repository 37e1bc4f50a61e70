package dashboard

import "strings"

// FilterAll selects every visible column.
const FilterAll = "all"

// Filter is the search state of a table view.
type Filter struct {
	Term   string `json:"term"`
	Column string `json:"column"`
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.Term) == ""
}

// Matches reports whether row passes the filter. An empty term matches every row;
// a selected column is compared on its resolved value; otherwise any visible column may match.
func (f Filter) Matches(row Row, columns ColumnSet) bool {
	if f.IsEmpty() {
		return true
	}
	term := strings.ToLower(strings.TrimSpace(f.Term))
	if f.Column != "" && !strings.EqualFold(f.Column, FilterAll) {
		col, ok := columns.Lookup(f.Column)
		if !ok {
			col = ColumnDescriptor{ID: f.Column}
		}
		return containsFold(row.Fields.Resolve(col).String(), term)
	}
	for _, col := range columns {
		if !col.Visible {
			continue
		}
		if containsFold(row.Fields.Resolve(col).String(), term) {
			return true
		}
	}
	return false
}

// Apply returns the rows passing the filter, preserving order.
func (f Filter) Apply(rows []Row, columns ColumnSet) []Row {
	if f.IsEmpty() {
		return append([]Row(nil), rows...)
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if f.Matches(row, columns) {
			out = append(out, row)
		}
	}
	return out
}

func containsFold(value, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(value), lowerTerm)
}
