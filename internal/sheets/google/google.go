package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gagyebu/internal/core"
	ports "gagyebu/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var (
	_ ports.GridSource   = (*Client)(nil)
	_ ports.LedgerMirror = (*Client)(nil)
)

// jsonUnmarshal is an indirection so tests can exercise token decoding.
var jsonUnmarshal = json.Unmarshal

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Ledger")
// Auth, first match wins: GOOGLE_OAUTH_CLIENT_{JSON,FILE} together with
// GOOGLE_OAUTH_TOKEN_{JSON,FILE}; otherwise GOOGLE_SERVICE_ACCOUNT_{JSON,FILE}
// or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// newSheetsService prefers an installed-app OAuth token when an OAuth client
// is configured, and falls back to service account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	clientJSON, err := envOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if len(clientJSON) > 0 {
		return newOAuthService(ctx, clientJSON)
	}

	credentialsJSON, err := envOrFile("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE")
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	if len(credentialsJSON) == 0 {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			credentialsJSON, err = os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
		}
	}
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing credentials (set GOOGLE_OAUTH_CLIENT_JSON/FILE with a token, or GOOGLE_SERVICE_ACCOUNT_JSON/FILE)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func newOAuthService(ctx context.Context, clientJSON []byte) (*gsheet.Service, error) {
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tokenJSON, err := envOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if len(tokenJSON) == 0 {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := jsonUnmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token",
		"has_refresh_token", tok.RefreshToken != "")
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// OAuthClientConfig reads the installed-app OAuth client from
// GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE, scoped for Sheets.
func OAuthClientConfig() (*oauth2.Config, error) {
	clientJSON, err := envOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if len(clientJSON) == 0 {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// TokenFile is where the OAuth token is read from and saved to:
// GOOGLE_OAUTH_TOKEN_FILE, or token.json.
func TokenFile() string {
	if path := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")); path != "" {
		return path
	}
	return "token.json"
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// envOrFile returns the inline value of jsonKey, else the contents of the
// file named by fileKey, else nil.
func envOrFile(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// ReadGrid reads the whole configured sheet with unformatted values, so
// numbers stay numbers and dates arrive as serial day counts.
func (c *Client) ReadGrid(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := quoteSheet(c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := make([][]any, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]any, len(row))
		copy(rows[i], row)
	}
	return rows, nil
}

// ReplaceLedger clears the sheet and writes the header followed by one row
// per record.
func (c *Client) ReplaceLedger(ctx context.Context, items []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := quoteSheet(c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	vr := &gsheet.ValueRange{Values: ports.Rows(items)}
	start := rng + "!A1"
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", start, err)
	}
	return nil
}

// quoteSheet wraps a sheet name in single quotes for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
