package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"zenith/internal/core"
	ports "zenith/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Transactions"

// lastCol is the rightmost column written by the mirror (A..G).
const lastCol = "G"

var header = []any{"ID", "Date", "Description", "Amount", "Type", "Category", "Imported"}

// Config selects the target spreadsheet and the service account used to
// reach it. CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// valuesAPI is the subset of the Sheets values endpoint the mirror needs.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, rows [][]any) error
	Append(ctx context.Context, rng string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
}

type Client struct {
	values   valuesAPI
	sheet    string
	registry *core.Registry

	// serialises read-modify-write cycles so concurrent upserts do not
	// append the same id twice
	mu sync.Mutex
}

// Ensure interface conformance
var (
	_ ports.Mirror       = (*Client)(nil)
	_ ports.MirrorReader = (*Client)(nil)
)

// New creates a Sheets mirror using service account credentials.
func New(ctx context.Context, cfg Config, reg *core.Registry) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc, spreadsheetID: spreadsheetID}, cfg.SheetName, reg), nil
}

func newClient(v valuesAPI, sheet string, reg *core.Registry) *Client {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	return &Client{values: v, sheet: sheet, registry: reg}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither inline JSON nor
// a file path is configured.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	credentialsJSON, err := loadCredentials(serviceAccountJSON, serviceAccountFile)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(inline, file string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Sheet returns the tab the mirror writes to.
func (c *Client) Sheet() string { return c.sheet }

func (c *Client) readAll(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastCol)
	rows, err := c.values.Get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return rows, nil
}

// Upsert implements ports.Mirror.
func (c *Client) Upsert(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.readAll(ctx)
	if err != nil {
		return err
	}
	index := indexRows(existing)

	var fresh [][]any
	for _, tx := range txs {
		row := rowValues(tx, c.registry)
		n, ok := index[tx.ID]
		if !ok {
			fresh = append(fresh, row)
			continue
		}
		if sameRow(existing[n-1], row) {
			continue
		}
		rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, n, lastCol, n)
		if err := c.values.Update(ctx, rng, [][]any{row}); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if len(existing) == 0 {
		fresh = append([][]any{header}, fresh...)
	}
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastCol)
	if err := c.values.Append(ctx, rng, fresh); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	return nil
}

// Remove implements ports.Mirror.
func (c *Client) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.readAll(ctx)
	if err != nil {
		return err
	}
	index := indexRows(existing)
	for _, id := range ids {
		n, ok := index[id]
		if !ok {
			slog.DebugContext(ctx, "Mirror row not found", "transaction_id", id)
			continue
		}
		rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, n, lastCol, n)
		if err := c.values.Clear(ctx, rng); err != nil {
			return fmt.Errorf("clear %s: %w", rng, err)
		}
	}
	return nil
}

// List implements ports.MirrorReader. Rows that do not parse are skipped.
func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := c.readAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for i, r := range rows {
		tx, err := parseRow(r, c.registry)
		if err != nil {
			if i > 0 && len(r) > 0 {
				slog.DebugContext(ctx, "Skipping unparsable mirror row", "row", i+1, "error", err)
			}
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// serviceValues adapts *gsheet.Service to valuesAPI.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) Update(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s *serviceValues) Append(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (s *serviceValues) Clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}
