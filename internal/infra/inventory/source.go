// Package inventory supplies the list of installed software to scan, either
// from the local operating system or from a shared Postgres inventory.
package inventory

import (
	"context"

	"github.com/vietddude/softscan/internal/core/domain"
)

// Source produces an ordered, deduplicated list of installed software.
type Source interface {
	Items(ctx context.Context) ([]domain.Item, error)
}
