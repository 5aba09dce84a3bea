package remote

import "context"

// Offline is the store used when none is configured.
type Offline struct{}

// Fetch always returns ErrOffline.
func (Offline) Fetch(context.Context) (any, error) {
	return nil, ErrOffline
}

// Write accepts every write and returns no record, so optimistic state is
// kept as final.
func (Offline) Write(context.Context, WriteRequest) (WriteResponse, error) {
	return WriteResponse{}, nil
}
