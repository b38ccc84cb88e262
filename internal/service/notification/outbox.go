package notification

import (
	"github.com/google/uuid"

	"activity-hub/internal/domain"
)

// Intent is one notification to deliver once the write that produced it has
// committed. The actor never receives their own notification.
type Intent struct {
	Type          domain.NotificationType
	Recipients    []uuid.UUID
	ActorID       *uuid.UUID
	ActivityID    uuid.UUID
	ActivityTitle string
	// DedupeKey suppresses repeats for the same recipient within the
	// dedupe window. Empty means always deliver.
	DedupeKey string
	Email     bool
	Data      map[string]string
}

// Outbox collects the side effects of one operation. Services fill it while
// the operation runs and hand it to a Publisher only after success.
type Outbox struct {
	intents []Intent
	index   []uuid.UUID
	audit   []domain.CreateAuditLogInput
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Notify(i Intent) {
	if len(i.Recipients) == 0 {
		return
	}
	o.intents = append(o.intents, i)
}

// Reindex marks an activity whose search document must be refreshed.
func (o *Outbox) Reindex(activityID uuid.UUID) {
	o.index = append(o.index, activityID)
}

func (o *Outbox) Audit(input domain.CreateAuditLogInput) {
	o.audit = append(o.audit, input)
}

func (o *Outbox) Intents() []Intent { return o.intents }

func (o *Outbox) Reindexed() []uuid.UUID { return o.index }

func (o *Outbox) AuditEntries() []domain.CreateAuditLogInput { return o.audit }

func (o *Outbox) Empty() bool {
	return o == nil || (len(o.intents) == 0 && len(o.index) == 0 && len(o.audit) == 0)
}

// Publisher takes a finished outbox. Implementations must not block the
// caller and must not report delivery errors back.
type Publisher interface {
	Publish(o *Outbox)
}
