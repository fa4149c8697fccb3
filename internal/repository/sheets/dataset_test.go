package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/freshstock/internal/config"
	"github.com/mamadbah2/freshstock/internal/domain/models"
)

type fakeSheet struct {
	rows    [][]interface{}
	readErr error
	written map[string][][]interface{}
}

func (f *fakeSheet) WriteRow(_ context.Context, sheetRange string, values []interface{}) error {
	if f.written == nil {
		f.written = map[string][][]interface{}{}
	}
	f.written[sheetRange] = append(f.written[sheetRange], values)
	return nil
}

func (f *fakeSheet) ReadRange(context.Context, string) ([][]interface{}, error) {
	return f.rows, f.readErr
}

func TestHistorySamples_ParsesMixedMonthFormats(t *testing.T) {
	sheet := &fakeSheet{rows: [][]interface{}{
		{"category", "month", "quantity"},
		{"Dairy", "3", "120"},
		{"Dairy", "April", "130.5"},
		{"Frozen Foods", "2023-07-14", 90},
		{"Snack Foods", "dec", "40"},
		{"Dairy", "13", "10"},
		{"", "1", "10"},
		{"Dairy", "5"},
		{"Dairy", "6", "-4"},
	}}
	ds := NewDataset(sheet, config.SheetsConfig{HistoryRange: "History!A:C"}, nil)

	samples, err := ds.HistorySamples(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 4)

	assert.Equal(t, models.Sample{Category: "Dairy", Month: 3, Quantity: 120, Observations: 1}, samples[0])
	assert.Equal(t, 4, samples[1].Month)
	assert.Equal(t, 130.5, samples[1].Quantity)
	assert.Equal(t, 7, samples[2].Month)
	assert.Equal(t, float64(90), samples[2].Quantity)
	assert.Equal(t, 12, samples[3].Month)
}

func TestHistorySamples_NoRangeConfigured(t *testing.T) {
	ds := NewDataset(&fakeSheet{readErr: errors.New("must not be called")}, config.SheetsConfig{}, nil)

	samples, err := ds.HistorySamples(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestHistorySamples_PropagatesReadError(t *testing.T) {
	ds := NewDataset(&fakeSheet{readErr: errors.New("quota")}, config.SheetsConfig{HistoryRange: "H!A:C"}, nil)

	_, err := ds.HistorySamples(context.Background())
	assert.ErrorContains(t, err, "quota")
}

func TestExportDailyReport_AppendsRow(t *testing.T) {
	sheet := &fakeSheet{}
	ds := NewDataset(sheet, config.SheetsConfig{ReportRange: "Reports!A:I"}, nil)

	report := models.DailyReport{
		Date:            time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC),
		TotalProducts:   12,
		ActiveBatches:   30,
		StockValue:      decimal.RequireFromString("1520.4"),
		Revenue:         decimal.RequireFromString("310"),
		WastageLoss:     decimal.RequireFromString("12.25"),
		ExpiringSoon:    3,
		LowStockCount:   2,
		OpenDraftsCount: 1,
	}
	require.NoError(t, ds.ExportDailyReport(context.Background(), report))

	rows := sheet.written["Reports!A:I"]
	require.Len(t, rows, 1)
	assert.Equal(t, []interface{}{"2024-05-04", 12, 30, "1520.40", "310.00", "12.25", 3, 2, 1}, rows[0])
}
