package memory

import (
	"github.com/warden-ai/warden/service/dao"
	"github.com/warden-ai/warden/service/messaging"
	"github.com/warden-ai/warden/service/suspension"
)

// Option customises the in-memory suspension manager.
type Option func(*service)

// WithSnapshotDAO replaces the snapshot store, e.g. with the afs-backed
// implementation so that frozen state survives a process restart.
func WithSnapshotDAO(store dao.Service[string, suspension.Snapshot]) Option {
	return func(s *service) { s.snapshots = store }
}

// WithEventDAO replaces the audit-event store.
func WithEventDAO(store dao.Service[string, suspension.Event]) Option {
	return func(s *service) { s.events = store }
}

// WithQueue replaces the audit-event fan-out queue.
func WithQueue(queue messaging.Queue[suspension.Event]) Option {
	return func(s *service) { s.queue = queue }
}
