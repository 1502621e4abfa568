package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
	ports "laundrytrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	reportsSheet      string
	transactionsSheet string

	// One writer at a time: row lookup and write must not interleave.
	mu sync.Mutex
}

var _ ports.Mirror = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_REPORTS_SHEET (default "WeeklyReports"),
// GOOGLE_TRANSACTIONS_SHEET (default "Transactions").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return New(svc, spreadsheetID,
		envOr("GOOGLE_REPORTS_SHEET", "WeeklyReports"),
		envOr("GOOGLE_TRANSACTIONS_SHEET", "Transactions")), nil
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID, reportsSheet, transactionsSheet string) *Client {
	return &Client{
		svc:               svc,
		spreadsheetID:     spreadsheetID,
		reportsSheet:      reportsSheet,
		transactionsSheet: transactionsSheet,
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

func (c *Client) UpsertReport(ctx context.Context, r core.WeeklyReport) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	return c.upsert(ctx, c.reportsSheet, reportHeader, r.ID, reportRow(r))
}

func (c *Client) UpsertTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	return c.upsert(ctx, c.transactionsSheet, transactionHeader, t.ID, transactionRow(t))
}

func (c *Client) Delete(ctx context.Context, kind records.Kind, id string) error {
	sheet, err := c.sheetFor(kind)
	if err != nil {
		return err
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx, sheet)
	if err != nil {
		return err
	}
	row := findRow(ids, id)
	if row == 0 {
		return nil
	}
	width := len(reportHeader)
	if kind == records.KindTransaction {
		width = len(transactionHeader)
	}
	rng := rowRange(sheet, row, width)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Mirror row cleared", "kind", kind, "id", id, "range", rng)
	return nil
}

func (c *Client) sheetFor(kind records.Kind) (string, error) {
	switch kind {
	case records.KindReport:
		return c.reportsSheet, nil
	case records.KindTransaction:
		return c.transactionsSheet, nil
	default:
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
}

func (c *Client) upsert(ctx context.Context, sheet string, header []any, id string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx, sheet)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		if err := c.writeRow(ctx, rowRange(sheet, 1, len(header)), header); err != nil {
			return "", fmt.Errorf("write header to %s: %w", sheet, err)
		}
		ids = [][]any{{header[0]}}
	}

	target := findRow(ids, id)
	if target == 0 {
		target = len(ids) + 1
	}
	rng := rowRange(sheet, target, len(row))
	if err := c.writeRow(ctx, rng, row); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return rng, nil
}

func (c *Client) readIDs(ctx context.Context, sheet string) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRow(ctx context.Context, rng string, row []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
