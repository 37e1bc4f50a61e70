package dashboard

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSVCountsAndHeader(t *testing.T) {
	columns := ColumnSet{col("name", "Name"), hiddenCol("secret", "Secret"), altCol("qty", "Quantity", "quantity")}
	rows := []Row{
		{ID: "1", Fields: NewRecord("name", "Acme, Inc.", "secret", "x", "quantity", 4)},
		{ID: "2", Fields: NewRecord("name", "Say \"hi\"\nthere", "qty", 2)},
	}
	var buf bytes.Buffer
	n, err := ExportCSV(&buf, rows, columns)
	require.NoError(t, err)
	assert.Equal(t, len(rows), n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Quantity"}, records[0])
	assert.Equal(t, []string{"Acme, Inc.", "4"}, records[1])
	assert.Equal(t, []string{"Say \"hi\"\nthere", "2"}, records[2])
}

func TestExportCSVEmpty(t *testing.T) {
	_, err := ExportCSV(&bytes.Buffer{}, nil, testColumns())
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestExportFileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "customer-delivery-notice-2024-03-09.csv", ExportFileName("Customer Delivery Notice", now))
	assert.Equal(t, "export-2024-03-09.csv", ExportFileName("", now))
}

func TestFilterMatches(t *testing.T) {
	columns := ColumnSet{col("name", "Name"), hiddenCol("note", "Note")}
	row := Row{Fields: NewRecord("name", "Blue Cement", "note", "urgent")}

	assert.True(t, Filter{}.Matches(row, columns))
	assert.True(t, Filter{Term: "CEMENT"}.Matches(row, columns))
	assert.True(t, Filter{Term: "cement", Column: FilterAll}.Matches(row, columns))
	assert.False(t, Filter{Term: "urgent"}.Matches(row, columns), "hidden columns are not searched under All")
	assert.True(t, Filter{Term: "urgent", Column: "note"}.Matches(row, columns))
	assert.False(t, Filter{Term: "blue", Column: "note"}.Matches(row, columns))
}

func TestPaginateClamps(t *testing.T) {
	rows := make([]Row, 12)
	page := Paginate(rows, 9, 5)
	assert.Equal(t, 3, page.Number)
	assert.Len(t, page.Rows, 2)

	page = Paginate(rows, -1, 5)
	assert.Equal(t, 1, page.Number)
	assert.Len(t, page.Rows, 5)

	empty := Paginate(nil, 3, 5)
	assert.Equal(t, 1, empty.Pages)
	assert.Empty(t, empty.Rows)
}

func TestStatusRules(t *testing.T) {
	rules := DefaultStatusRules()
	assert.Equal(t, BadgeSuccess, rules.Resolve("delivered"))
	assert.Equal(t, BadgeWarning, rules.Resolve(" Pending "))
	assert.Equal(t, BadgeDanger, rules.Resolve("REJECTED"))
	assert.Equal(t, BadgeInfo, rules.Resolve("processing"))
	assert.Equal(t, BadgeNeutral, rules.Resolve("On Hold"))

	extended := rules.With(StatusRules{"On Hold": BadgeWarning})
	assert.Equal(t, BadgeWarning, extended.Resolve("on hold"))
	assert.Equal(t, BadgeNeutral, rules.Resolve("On Hold"))
}
