package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title: "Pending Sales",
		Columns: []Column{
			{Key: "book", Title: "Book", Width: 2},
			{Key: "buyer", Title: "Buyer"},
			{Key: "price", Title: "Price"},
		},
		Rows: []map[string]string{
			{"book": "Calculus, 3rd ed", "buyer": "b@campus.edu", "price": "450"},
			{"book": "Networks", "buyer": "c@campus.edu"},
		},
	}
}

func TestCSVRendererQuotesAndOrdersColumns(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "Book,Buyer,Price\n\"Calculus, 3rd ed\",b@campus.edu,450\nNetworks,c@campus.edu,\n", string(out))
}

func TestRenderersRejectEmptyColumns(t *testing.T) {
	_, err := NewCSVRenderer().Render(Table{})
	assert.ErrorIs(t, err, ErrNoColumns)
	_, err = NewPDFRenderer().Render(Table{})
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestPDFRendererProducesDocument(t *testing.T) {
	table := sampleTable()
	for i := 0; i < 80; i++ {
		table.Rows = append(table.Rows, map[string]string{"book": "A very long book title that certainly will not fit in its column at all", "buyer": "x@campus.edu", "price": "10"})
	}
	out, err := NewPDFRenderer().Render(table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(sampleTable().Columns)
	assert.InDelta(t, landscapeWidth, widths[0]+widths[1]+widths[2], 0.001)
	assert.InDelta(t, widths[1]*2, widths[0], 0.001)
}
