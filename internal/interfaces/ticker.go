package interfaces

import "context"

// TickSource streams last prices into the price cache until ctx is done or
// Stop is called. It is the cache's only writer.
type TickSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Subscribe(ctx context.Context, instruments []string) error
}
