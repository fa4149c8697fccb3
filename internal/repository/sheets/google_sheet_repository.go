package sheets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/freshstock/internal/config"
)

// ErrEmptyRange is returned when an A1 range is missing.
var ErrEmptyRange = errors.New("sheet range must not be empty")

// Repository is the pair of range operations the dataset needs: append one
// row, read a block of cells.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
}

var _ Repository = (*GoogleSheetRepository)(nil)

// GoogleSheetRepository talks to one spreadsheet through the Sheets v4 API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	readOnly      bool
	logger        *zap.Logger
}

// NewGoogleSheetRepository authenticates with the service account file of
// cfg. Without a report range the client only asks for the read-only scope.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	readOnly := cfg.ReportRange == ""
	scope := sheetsapi.SpreadsheetsScope
	if readOnly {
		scope = sheetsapi.SpreadsheetsReadonlyScope
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(scope))
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}

	logger.Info("sheets client ready",
		zap.String("spreadsheet_id", cfg.SpreadsheetID),
		zap.String("history_range", cfg.HistoryRange),
		zap.Bool("read_only", readOnly))

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		readOnly:      readOnly,
		logger:        logger,
	}, nil
}

// WriteRow appends values as a new row after the table found in sheetRange.
// Cells are sent raw so decimal strings are not reinterpreted by the sheet's
// locale.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return ErrEmptyRange
	}
	if r.readOnly {
		return fmt.Errorf("append into %s: client opened read-only", sheetRange)
	}

	payload := &sheetsapi.ValueRange{MajorDimension: "ROWS", Values: [][]interface{}{values}}
	resp, err := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append into %s: %w", sheetRange, err)
	}

	updated := sheetRange
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		updated = resp.Updates.UpdatedRange
	}
	r.logger.Debug("sheet row appended", zap.String("range", updated), zap.Int("cells", len(values)))
	return nil
}

// ReadRange returns the rows of sheetRange with numbers left unformatted, so
// quantities arrive as float64 whatever the display format is.
func (r *GoogleSheetRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, ErrEmptyRange
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).
		MajorDimension("ROWS").
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheetRange, err)
	}

	r.logger.Debug("sheet range read", zap.String("range", sheetRange), zap.Int("rows", len(resp.Values)))
	return resp.Values, nil
}
