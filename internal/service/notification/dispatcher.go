package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/pkg/i18n"
	"activity-hub/internal/repository"
	"activity-hub/internal/service/email"
)

const (
	defaultQueueSize = 256
	deliveryTimeout  = 15 * time.Second
	unknownActorName = "Someone"
)

// Indexer refreshes the search document of an activity.
type Indexer interface {
	Sync(ctx context.Context, activityID uuid.UUID) error
}

// Auditor persists an audit entry.
type Auditor interface {
	Record(ctx context.Context, input domain.CreateAuditLogInput) error
}

type Options struct {
	QueueSize    int
	DedupeWindow time.Duration
	Locale       string
	Deduper      Deduper
	Email        email.Service
	Indexer      Indexer
	Auditor      Auditor
	Metrics      *metrics.Metrics
}

// Dispatcher drains outboxes on a background goroutine. Every failure is
// logged and swallowed; nothing here can fail the operation that produced
// the outbox.
type Dispatcher struct {
	repo    *repository.Repositories
	opts    Options
	queue   chan *Outbox
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ Publisher = (*Dispatcher)(nil)

func NewDispatcher(repo *repository.Repositories, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Locale == "" {
		opts.Locale = i18n.DefaultLocale
	}
	return &Dispatcher{
		repo:    repo,
		opts:    opts,
		queue:   make(chan *Outbox, opts.QueueSize),
		logger:  logger.With("component", "notification"),
		metrics: opts.Metrics,
	}
}

// Publish enqueues o without blocking. When the queue is full the outbox is
// dropped and counted.
func (d *Dispatcher) Publish(o *Outbox) {
	if o.Empty() {
		return
	}
	select {
	case d.queue <- o:
	default:
		for _, i := range o.intents {
			d.metrics.Notification(i.Type, "dropped")
		}
		d.logger.Warn("notification queue full, dropping outbox",
			"intents", len(o.intents), "reindex", len(o.index), "audit", len(o.audit))
	}
}

// Run delivers queued outboxes until ctx is done, then drains what is
// already queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case o := <-d.queue:
			d.Deliver(ctx, o)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	for {
		select {
		case o := <-d.queue:
			d.Deliver(ctx, o)
		default:
			return
		}
	}
}

// Deliver applies every side effect in o synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, o *Outbox) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while delivering outbox", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	for _, entry := range o.audit {
		if d.opts.Auditor == nil {
			break
		}
		if err := d.opts.Auditor.Record(ctx, entry); err != nil {
			d.logger.Error("failed to record audit log",
				"activity_id", entry.ActivityID, "action", entry.Action, "error", err)
		}
	}

	for _, intent := range o.intents {
		d.deliverIntent(ctx, intent)
	}

	for _, id := range o.index {
		if d.opts.Indexer == nil {
			break
		}
		if err := d.opts.Indexer.Sync(ctx, id); err != nil {
			d.logger.Warn("failed to sync search index", "activity_id", id, "error", err)
		}
	}
}

func (d *Dispatcher) deliverIntent(ctx context.Context, intent Intent) {
	actorName := unknownActorName
	if intent.ActorID != nil {
		if actor, err := d.repo.Users.GetByID(ctx, *intent.ActorID); err != nil {
			d.logger.Warn("failed to load actor", "user_id", *intent.ActorID, "error", err)
		} else if actor != nil {
			actorName = actor.FullName
		}
	}

	title, body := i18n.Render(d.opts.Locale, string(intent.Type), map[string]string{
		"actor":    actorName,
		"activity": intent.ActivityTitle,
	})

	data, err := json.Marshal(withActivity(intent.Data, intent.ActivityID))
	if err != nil {
		d.logger.Error("failed to encode notification data", "type", intent.Type, "error", err)
		data = nil
	}

	seen := make(map[uuid.UUID]bool, len(intent.Recipients))
	for _, recipient := range intent.Recipients {
		if seen[recipient] || (intent.ActorID != nil && recipient == *intent.ActorID) {
			continue
		}
		seen[recipient] = true

		result := d.deliverOne(ctx, intent, recipient, title, body, data)
		d.metrics.Notification(intent.Type, result)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, intent Intent, recipient uuid.UUID, title, body string, data json.RawMessage) string {
	log := d.logger.With("type", intent.Type, "user_id", recipient, "activity_id", intent.ActivityID)

	var dedupeKey *string
	if intent.DedupeKey != "" && d.opts.Deduper != nil {
		key := fmt.Sprintf("%s:%s", intent.DedupeKey, recipient)
		ok, err := d.opts.Deduper.Claim(ctx, key, d.opts.DedupeWindow)
		if err != nil {
			log.Warn("dedupe check failed, delivering anyway", "error", err)
		} else if !ok {
			return "deduplicated"
		}
		dedupeKey = &key
	}

	activityID := intent.ActivityID
	notif := &domain.Notification{
		ID:         uuid.New(),
		UserID:     recipient,
		ActorID:    intent.ActorID,
		ActivityID: &activityID,
		Type:       intent.Type,
		Title:      title,
		Message:    body,
		DedupeKey:  dedupeKey,
		Data:       data,
	}
	if err := d.repo.Notifications.Create(ctx, notif); err != nil {
		log.Error("failed to create notification", "error", err)
		if dedupeKey != nil {
			if err := d.opts.Deduper.Release(ctx, *dedupeKey); err != nil {
				log.Warn("failed to release dedupe claim", "error", err)
			}
		}
		return "failed"
	}

	if intent.Email && d.opts.Email != nil {
		d.sendEmail(ctx, log, recipient, intent.ActivityID, title, body)
	}
	return "sent"
}

func (d *Dispatcher) sendEmail(ctx context.Context, log *slog.Logger, recipient, activityID uuid.UUID, title, body string) {
	user, err := d.repo.Users.GetByID(ctx, recipient)
	if err != nil {
		log.Warn("failed to load recipient for email", "error", err)
		return
	}
	if user == nil || user.Email == "" || !user.IsActive {
		return
	}
	link := fmt.Sprintf("/activities/%s", activityID)
	if err := d.opts.Email.SendNotificationEmail(ctx, user.Email, user.FullName, title, body, link); err != nil {
		log.Warn("failed to send notification email", "error", err)
	}
}

func withActivity(data map[string]string, activityID uuid.UUID) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["activity_id"] = activityID.String()
	return out
}
