// Package idgen wraps the UUID generator so that snapshot and audit-event
// identifiers can be stubbed in tests.  Callers must treat identifiers as
// opaque strings and not rely on their exact shape.
package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier.  Tests replace it with a
// sequential generator when identifiers appear in expected output.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier as string.
func New() string { return NewFunc() }
