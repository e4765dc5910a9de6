package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store with the same positional-index semantics as
// the remote backend. Tests use it directly; error fields inject write
// failures.
type MemStore struct {
	mu     sync.Mutex
	tables map[string][][]string

	FetchErr  error
	AppendErr error
	UpdateErr error
	DeleteErr error
}

func NewMemStore() *MemStore {
	return &MemStore{tables: map[string][][]string{
		TableImages:  {},
		TableVideos:  {},
		TableOutputs: {},
	}}
}

func (m *MemStore) FetchTable(ctx context.Context, table string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Defensive copy so callers cannot mutate stored rows.
	src := m.tables[table]
	out := make([][]string, len(src))
	for i, row := range src {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (m *MemStore) AppendRow(ctx context.Context, table string, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], append([]string(nil), row...))
	return nil
}

func (m *MemStore) UpdateCell(ctx context.Context, table string, rowIndex, column int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return fmt.Errorf("%s: row %d out of range", table, rowIndex)
	}
	row := rows[rowIndex]
	for len(row) <= column {
		row = append(row, "")
	}
	row[column] = value
	rows[rowIndex] = row
	return nil
}

func (m *MemStore) DeleteRow(ctx context.Context, table string, rowIndex int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return fmt.Errorf("%s: row %d out of range", table, rowIndex)
	}
	m.tables[table] = append(rows[:rowIndex], rows[rowIndex+1:]...)
	return nil
}

// Rows returns a copy of a table's current data rows, for test assertions.
func (m *MemStore) Rows(table string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.tables[table]
	out := make([][]string, len(src))
	for i, row := range src {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Seed replaces a table's contents.
func (m *MemStore) Seed(table string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, row := range rows {
		cp[i] = append([]string(nil), row...)
	}
	m.tables[table] = cp
}
