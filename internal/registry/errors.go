package registry

import (
	"errors"
	"fmt"
)

// ErrNoCaption rejects submissions without text; nothing is written.
var ErrNoCaption = errors.New("caption required")

// ErrNotFound means the asset id or name matched no ledger row.
var ErrNotFound = errors.New("asset not found")

// DuplicateNameError reports a video name collision. The existing row is
// left untouched.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("name %q already registered", e.Name)
}
