package ledger

import "context"

// Store is the remote tabular API behind the ledger. Every call is a
// synchronous round-trip with no cross-call atomicity; row indices are
// position-based (0 = first data row, header excluded) and shift on delete.
// Correctness is the caller's job: fetch, decide, write, and re-fetch before
// any index-based delete.
type Store interface {
	FetchTable(ctx context.Context, table string) ([][]string, error)
	AppendRow(ctx context.Context, table string, row []string) error
	UpdateCell(ctx context.Context, table string, rowIndex, column int, value string) error
	DeleteRow(ctx context.Context, table string, rowIndex int) error
}
