package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsSource reads roster matrices from Google Sheets.
type SheetsSource struct {
	svc *gsheet.Service
}

// SheetsCredentials selects service account credentials. JSON wins over File.
type SheetsCredentials struct {
	JSON string
	File string
}

// NewSheetsSource creates a read-only Sheets client with service account
// credentials. Extra options are appended, which lets tests point the client
// at a local endpoint.
func NewSheetsSource(ctx context.Context, creds SheetsCredentials, opts ...option.ClientOption) (*SheetsSource, error) {
	var clientOpts []option.ClientOption
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds.JSON)))
	case strings.TrimSpace(creds.File) != "":
		data, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(data))
	case len(opts) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	clientOpts = append(clientOpts, option.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsSource{svc: svc}, nil
}

// Fetch reads the cell matrix at range, e.g. "Members!A1:C".
func (s *SheetsSource) Fetch(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	slog.DebugContext(ctx, "Fetched roster values", "range", resp.Range, "rows", len(resp.Values))
	return resp.Values, nil
}

// FetchEntries reads and normalizes a roster from a sheet.
func (s *SheetsSource) FetchEntries(ctx context.Context, spreadsheetID, rng string) ([]Entry, error) {
	values, err := s.Fetch(ctx, spreadsheetID, rng)
	if err != nil {
		return nil, err
	}
	return Normalize(ValuesParser{}.ParseValues(values))
}
