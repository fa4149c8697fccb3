package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/config"
	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository"
)

var (
	_ repository.SampleSource = (*Dataset)(nil)
	_ repository.ReportSink   = (*Dataset)(nil)
)

// Dataset reads seed demand history from one range and appends daily KPI
// rows to another.
//
// History rows are (category, month, quantity). The month cell may hold a
// month number, an English month name or a YYYY-MM-DD date. A first row
// whose quantity is not numeric is treated as a header.
type Dataset struct {
	sheets       Repository
	historyRange string
	reportRange  string
	logger       *zap.Logger
}

// NewDataset wraps a sheet repository with the configured ranges.
func NewDataset(sheets Repository, cfg config.SheetsConfig, logger *zap.Logger) *Dataset {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dataset{
		sheets:       sheets,
		historyRange: cfg.HistoryRange,
		reportRange:  cfg.ReportRange,
		logger:       logger,
	}
}

// HistorySamples returns one sample per usable history row. Malformed rows
// are skipped and logged.
func (d *Dataset) HistorySamples(ctx context.Context) ([]models.Sample, error) {
	if d.historyRange == "" {
		return nil, nil
	}

	rows, err := d.sheets.ReadRange(ctx, d.historyRange)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	samples := make([]models.Sample, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		sample, err := parseHistoryRow(row)
		if err != nil {
			if i == 0 {
				continue
			}
			skipped++
			d.logger.Debug("skipping history row", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		samples = append(samples, sample)
	}

	d.logger.Info("history loaded", zap.Int("samples", len(samples)), zap.Int("skipped", skipped))
	return samples, nil
}

// ExportDailyReport appends the report as one row.
func (d *Dataset) ExportDailyReport(ctx context.Context, report models.DailyReport) error {
	if d.reportRange == "" {
		return nil
	}
	return d.sheets.WriteRow(ctx, d.reportRange, reportRow(report))
}

func reportRow(r models.DailyReport) []interface{} {
	return []interface{}{
		r.Date.Format("2006-01-02"),
		r.TotalProducts,
		r.ActiveBatches,
		r.StockValue.StringFixed(2),
		r.Revenue.StringFixed(2),
		r.WastageLoss.StringFixed(2),
		r.ExpiringSoon,
		r.LowStockCount,
		r.OpenDraftsCount,
	}
}

func parseHistoryRow(row []interface{}) (models.Sample, error) {
	if len(row) < 3 {
		return models.Sample{}, fmt.Errorf("expected 3 columns, got %d", len(row))
	}

	category := strings.TrimSpace(cell(row[0]))
	if category == "" {
		return models.Sample{}, fmt.Errorf("empty category")
	}

	month, err := parseMonth(cell(row[1]))
	if err != nil {
		return models.Sample{}, err
	}

	quantity, err := strconv.ParseFloat(strings.TrimSpace(cell(row[2])), 64)
	if err != nil {
		return models.Sample{}, fmt.Errorf("quantity %q: %w", cell(row[2]), err)
	}
	if quantity < 0 {
		return models.Sample{}, fmt.Errorf("negative quantity %v", quantity)
	}

	return models.Sample{Category: category, Month: month, Quantity: quantity, Observations: 1}, nil
}

func parseMonth(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range", n)
		}
		return n, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return int(t.Month()), nil
	}
	if len(raw) >= 3 {
		name := strings.ToUpper(raw[:1]) + strings.ToLower(raw[1:])
		for _, layout := range []string{"January", "Jan"} {
			if t, err := time.Parse(layout, name); err == nil {
				return int(t.Month()), nil
			}
		}
	}
	return 0, fmt.Errorf("unrecognized month %q", raw)
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
