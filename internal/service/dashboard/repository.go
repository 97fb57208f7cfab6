package dashboard

import (
	"context"

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

// RowSource defines the data access contract for raw consumption rows.
type RowSource interface {
	// FetchRows returns every row on or after since, or all rows when since is nil.
	FetchRows(ctx context.Context, since *economy.Date) ([]economy.RawRow, error)

	// DateBounds returns the MIN/MAX date of the table.
	DateBounds(ctx context.Context) (economy.DateRange, error)
}

// Invalidator is implemented by row sources that cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
