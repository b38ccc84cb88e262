// Package notificationtest provides a Publisher that keeps outboxes in memory
// for assertions.
package notificationtest

import (
	"sync"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/service/notification"
)

type Recorder struct {
	mu       sync.Mutex
	outboxes []*notification.Outbox
}

var _ notification.Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(o *notification.Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outboxes = append(r.outboxes, o)
}

func (r *Recorder) Outboxes() []*notification.Outbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*notification.Outbox(nil), r.outboxes...)
}

// Intents flattens every published intent in publish order.
func (r *Recorder) Intents() []notification.Intent {
	var out []notification.Intent
	for _, o := range r.Outboxes() {
		out = append(out, o.Intents()...)
	}
	return out
}

// OfType returns the published intents of type t.
func (r *Recorder) OfType(t domain.NotificationType) []notification.Intent {
	var out []notification.Intent
	for _, i := range r.Intents() {
		if i.Type == t {
			out = append(out, i)
		}
	}
	return out
}

func (r *Recorder) AuditEntries() []domain.CreateAuditLogInput {
	var out []domain.CreateAuditLogInput
	for _, o := range r.Outboxes() {
		out = append(out, o.AuditEntries()...)
	}
	return out
}

func (r *Recorder) Reindexed() []uuid.UUID {
	var out []uuid.UUID
	for _, o := range r.Outboxes() {
		out = append(out, o.Reindexed()...)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outboxes = nil
}
