package quality

import "context"

// Lookup is the referential collaborator consulted by
// referential_exists rules. Implementations are treated as read-only
// during a run; the engine issues no writes. No transactional contract
// is required.
type Lookup interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, key string) (bool, error)

// Exists implements Lookup.
func (f LookupFunc) Exists(ctx context.Context, key string) (bool, error) {
	return f(ctx, key)
}
