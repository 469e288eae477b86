package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a catalog entry that participants can register for.  The catalog
// is owned outside the registration core; this struct is only ever read.
// Fee lookups only succeed while IsActive is true.
type Event struct {
	ID        string          // events.id
	Name      string          // events.name
	EntryFee  decimal.Decimal // events.entry_fee
	IsActive  bool            // events.is_active
	CreatedAt time.Time       // events.created_at
	UpdatedAt time.Time       // events.updated_at
}
