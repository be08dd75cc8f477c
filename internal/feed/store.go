package feed

//go:generate mockgen -destination=mocks/store_mock.go -package=mocks github.com/planetary-social/planetary-cli/internal/feed Store

import (
	"context"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

// MaxPageSize is the largest page a Store is asked for. Remote stores cap
// their pages at this size, so a larger request would look like a short page.
const MaxPageSize = 200

// Store returns ordered pages of messages for a strategy. Implementations
// must be safe for concurrent use; pages keep the order the strategy
// defines, and the same offset yields the same or a superset-compatible page.
type Store interface {
	Feed(ctx context.Context, strategy Strategy, limit, offset int) ([]ssb.Message, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, strategy Strategy, limit, offset int) ([]ssb.Message, error)

func (f StoreFunc) Feed(ctx context.Context, strategy Strategy, limit, offset int) ([]ssb.Message, error) {
	return f(ctx, strategy, limit, offset)
}
