package ledger

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore implements Store against a Google spreadsheet, one worksheet
// per table, header in row 1. It is the production ledger backend.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetIDs      map[string]int64 // worksheet title -> sheet id, for row deletes
}

func NewSheetsStore(ctx context.Context, credsFile, spreadsheetID string) (*SheetsStore, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	meta, err := svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("spreadsheet %s: %w", spreadsheetID, err)
	}
	ids := make(map[string]int64, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return &SheetsStore{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: ids}, nil
}

func (s *SheetsStore) FetchTable(ctx context.Context, table string) ([][]string, error) {
	// A2:Z skips the header row; rowIndex 0 maps to spreadsheet row 2.
	rng := fmt.Sprintf("%s!A2:Z", table)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		cells := make([]string, 0, len(raw))
		for _, v := range raw {
			cells = append(cells, fmt.Sprint(v))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (s *SheetsStore) AppendRow(ctx context.Context, table string, row []string) error {
	vals := make([]interface{}, len(row))
	for i, c := range row {
		vals[i] = c
	}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, table+"!A1", &sheets.ValueRange{Values: [][]interface{}{vals}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (s *SheetsStore) UpdateCell(ctx context.Context, table string, rowIndex, column int, value string) error {
	rng := fmt.Sprintf("%s!%s%d", table, columnLetter(column), rowIndex+2)
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{{value}}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

func (s *SheetsStore) DeleteRow(ctx context.Context, table string, rowIndex int) error {
	sheetID, ok := s.sheetIDs[table]
	if !ok {
		return fmt.Errorf("unknown worksheet %q", table)
	}
	// DeleteDimension is zero-based over the grid, so the header occupies
	// index 0 and data row N is grid row N+1.
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex + 1),
					EndIndex:   int64(rowIndex + 2),
				},
			},
		}},
	}
	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

func columnLetter(col int) string {
	letters := ""
	for {
		letters = string(rune('A'+col%26)) + letters
		col = col/26 - 1
		if col < 0 {
			return letters
		}
	}
}
