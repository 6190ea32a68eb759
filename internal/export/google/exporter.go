// Package google exports budget summaries to a Google Sheets report tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgeteer/internal/core"
	"budgeteer/internal/services"
)

// Exporter appends one report row per bucket to a spreadsheet tab.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportSheet   string
}

// New creates an exporter using service account credentials from the
// environment: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, reportSheet string) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(reportSheet) == "" {
		reportSheet = "Reports"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		reportSheet:   reportSheet,
	}, nil
}

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
	return service, nil
}

// Export appends one row per spending bucket plus a totals row.
// Columns: exported at, user, space, range, bucket, spent, income,
// expenses, remaining. Amounts are written as decimal units.
func (e *Exporter) Export(ctx context.Context, userID string, space core.Space, from, to time.Time, sum services.Summary) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	exportedAt := time.Now().UTC().Format(time.RFC3339)
	rangeLabel := core.DateOf(from).String() + " / " + core.DateOf(to).String()

	var rows [][]any
	for _, bucket := range core.Buckets() {
		spent := sum.SpendingByBucket[bucket]
		rows = append(rows, []any{
			exportedAt, userID, string(space), rangeLabel, string(bucket),
			centsToUnits(spent.Cents), "", "", "",
		})
	}
	rows = append(rows, []any{
		exportedAt, userID, string(space), rangeLabel, "TOTAL",
		centsToUnits(sum.Expenses.Cents),
		centsToUnits(sum.Income.Cents),
		centsToUnits(sum.Expenses.Cents),
		centsToUnits(sum.RemainingBudget.Cents),
	})

	rng := fmt.Sprintf("%s!A:I", e.reportSheet)
	vr := &gsheet.ValueRange{Values: rows}
	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append report rows to %s: %w", e.reportSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

func centsToUnits(cents int64) float64 {
	return float64(cents) / 100.0
}
