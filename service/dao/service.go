package dao

import (
	"context"
)

// Service is the generic persistence contract shared by every store in the
// module: frozen snapshots, audit events and recorded decisions all go
// through the same four operations regardless of the backing medium.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
