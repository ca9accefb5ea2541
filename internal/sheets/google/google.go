// Package google exports trend reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pocketwise/internal/ports"
)

// DefaultSheetPrefix names per-user report tabs, e.g. "Trend 42".
const DefaultSheetPrefix = "Trend"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetPrefix   string
}

var _ ports.ReportExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
// One of CredentialsJSON or CredentialsFile is required.
type Config struct {
	SpreadsheetID   string
	SheetPrefix     string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	prefix := strings.TrimSpace(cfg.SheetPrefix)
	if prefix == "" {
		prefix = DefaultSheetPrefix
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetPrefix: prefix}, nil
}

// loadCredentials reads service account credentials, falling back to
// GOOGLE_APPLICATION_CREDENTIALS when neither field is set.
func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	file := strings.TrimSpace(cfg.CredentialsFile)
	if cfg.CredentialsJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(cfg.CredentialsJSON), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportTrend overwrites the user's report tab with rows and returns a link
// to it. The tab is created on first export.
func (c *Client) ExportTrend(ctx context.Context, userID string, rows []ports.ReportRow) (string, error) {
	title := sheetTitle(c.sheetPrefix, userID)

	sheetID, err := c.ensureSheet(ctx, title)
	if err != nil {
		return "", err
	}

	rng := quoteSheet(title) + "!A:D"
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear report sheet: %w", err)
	}

	vr := &gsheet.ValueRange{Values: buildValues(rows)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteSheet(title)+"!A1", vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("write report sheet: %w", err)
	}

	slog.InfoContext(ctx, "Trend written to Google Sheets",
		"sheet", title,
		"updated_rows", resp.UpdatedRows)
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", c.spreadsheetID, sheetID), nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %q: empty reply", title)
	}

	slog.InfoContext(ctx, "Created report sheet", "sheet", title)
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func sheetTitle(prefix, userID string) string {
	// Sheet titles may not contain these characters
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':', '\'':
			return '_'
		}
		return r
	}, userID)
	return prefix + " " + clean
}

func quoteSheet(title string) string {
	return "'" + title + "'"
}

func buildValues(rows []ports.ReportRow) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, []interface{}{"Period", "Income", "Expense", "Net"})
	for _, r := range rows {
		values = append(values, []interface{}{r.Period, r.Income.String(), r.Expense.String(), r.Net.String()})
	}
	return values
}
