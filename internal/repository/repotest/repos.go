package repotest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
)

type activityRepo struct{ m *Memory }

func (r *activityRepo) Create(ctx context.Context, a *domain.Activity) error {
	if err := r.m.enter(ctx, "activities.Create"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	now := r.m.Clock()
	a.CreatedAt, a.UpdatedAt = now, now
	row := *a
	row.JoinQuestions = slices.Clone(a.JoinQuestions)
	r.m.st.activities[a.ID] = row
	return nil
}

func (r *activityRepo) get(id uuid.UUID) (*domain.Activity, error) {
	a, ok := r.m.st.activities[id]
	if !ok || a.Status == domain.StatusDeleted {
		return nil, nil
	}
	a.JoinQuestions = slices.Clone(a.JoinQuestions)
	return &a, nil
}

func (r *activityRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	if err := r.m.enter(ctx, "activities.GetByID"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	return r.get(id)
}

func (r *activityRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	if err := r.m.enter(ctx, "activities.GetByIDForUpdate"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	return r.get(id)
}

func (r *activityRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Activity, error) {
	if err := r.m.enter(ctx, "activities.GetByIDs"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	var out []domain.Activity
	for _, id := range ids {
		if a, _ := r.get(id); a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *activityRepo) ListOpen(ctx context.Context, filter domain.ActivityFilter, now time.Time, params domain.PaginationParams) ([]domain.Activity, int64, error) {
	if err := r.m.enter(ctx, "activities.ListOpen"); err != nil {
		return nil, 0, err
	}
	defer r.m.mu.Unlock()
	params.Validate()

	var matched []domain.Activity
	for _, a := range r.m.st.activities {
		if !a.Status.IsLive() || !a.StartsAt.After(now) {
			continue
		}
		if filter.Kind != nil && a.Kind != *filter.Kind {
			continue
		}
		if filter.HostID != nil && a.HostID != *filter.HostID {
			continue
		}
		if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" &&
			!strings.Contains(strings.ToLower(a.Title), q) && !strings.Contains(strings.ToLower(a.Description), q) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartsAt.Before(matched[j].StartsAt) })

	total := int64(len(matched))
	start := min(params.Offset(), len(matched))
	end := min(start+params.PageSize, len(matched))
	return matched[start:end], total, nil
}

func (r *activityRepo) UpdateCounts(ctx context.Context, id uuid.UUID, fromCount int, fromStatus domain.ActivityStatus, toCount int, toStatus domain.ActivityStatus) error {
	if err := r.m.enter(ctx, "activities.UpdateCounts"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	a, ok := r.m.st.activities[id]
	if !ok || a.MemberCount != fromCount || a.Status != fromStatus {
		return domain.ErrStaleActivity
	}
	a.MemberCount, a.Status, a.UpdatedAt = toCount, toStatus, r.m.Clock()
	r.m.st.activities[id] = a
	return nil
}

func (r *activityRepo) UpdateDetails(ctx context.Context, a *domain.Activity, fromCount int, fromStatus domain.ActivityStatus) error {
	if err := r.m.enter(ctx, "activities.UpdateDetails"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	cur, ok := r.m.st.activities[a.ID]
	if !ok || cur.MemberCount != fromCount || cur.Status != fromStatus {
		return domain.ErrStaleActivity
	}
	cur.Title, cur.Description, cur.StartsAt, cur.LocationName = a.Title, a.Description, a.StartsAt, a.LocationName
	cur.CostRule, cur.MaxMembers, cur.Status = a.CostRule, a.MaxMembers, a.Status
	cur.JoinQuestions = slices.Clone(a.JoinQuestions)
	cur.UpdatedAt = r.m.Clock()
	a.UpdatedAt = cur.UpdatedAt
	r.m.st.activities[a.ID] = cur
	return nil
}

func (r *activityRepo) SetStatus(ctx context.Context, id uuid.UUID, from []domain.ActivityStatus, to domain.ActivityStatus) (bool, error) {
	if err := r.m.enter(ctx, "activities.SetStatus"); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()
	a, ok := r.m.st.activities[id]
	if !ok || !slices.Contains(from, a.Status) {
		return false, nil
	}
	a.Status, a.UpdatedAt = to, r.m.Clock()
	r.m.st.activities[id] = a
	return true, nil
}

func (r *activityRepo) CompleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	if err := r.m.enter(ctx, "activities.CompleteExpired"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range r.m.st.activities {
		if a.Status.IsLive() && a.StartsAt.Before(now) {
			a.Status = domain.StatusCompleted
			r.m.st.activities[id] = a
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *activityRepo) CompleteIfExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	if err := r.m.enter(ctx, "activities.CompleteIfExpired"); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()
	a, ok := r.m.st.activities[id]
	if !ok || !a.Status.IsLive() || !a.StartsAt.Before(now) {
		return false, nil
	}
	a.Status = domain.StatusCompleted
	r.m.st.activities[id] = a
	return true, nil
}

func (r *activityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.m.enter(ctx, "activities.Delete"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	delete(r.m.st.activities, id)
	delete(r.m.st.activityTags, id)
	return nil
}

type membershipRepo struct{ m *Memory }

func (r *membershipRepo) Insert(ctx context.Context, ms *domain.Membership) error {
	if err := r.m.enter(ctx, "memberships.Insert"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	key := pairKey{ms.ActivityID, ms.UserID}
	if _, exists := r.m.st.memberships[key]; exists {
		return domain.ErrAlreadyMember
	}
	r.m.st.memberships[key] = *ms
	return nil
}

func (r *membershipRepo) Get(ctx context.Context, activityID, userID uuid.UUID) (*domain.Membership, error) {
	if err := r.m.enter(ctx, "memberships.Get"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	ms, ok := r.m.st.memberships[pairKey{activityID, userID}]
	if !ok {
		return nil, nil
	}
	return &ms, nil
}

func (r *membershipRepo) Delete(ctx context.Context, activityID, userID uuid.UUID) (*domain.Membership, error) {
	if err := r.m.enter(ctx, "memberships.Delete"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	key := pairKey{activityID, userID}
	ms, ok := r.m.st.memberships[key]
	if !ok {
		return nil, nil
	}
	delete(r.m.st.memberships, key)
	return &ms, nil
}

func (r *membershipRepo) CountActive(ctx context.Context, activityID uuid.UUID) (int, error) {
	if err := r.m.enter(ctx, "memberships.CountActive"); err != nil {
		return 0, err
	}
	defer r.m.mu.Unlock()
	return r.m.countMembers(activityID), nil
}

func (r *membershipRepo) list(activityID uuid.UUID) []domain.Membership {
	var out []domain.Membership
	for k, ms := range r.m.st.memberships {
		if k.a == activityID {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (r *membershipRepo) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Membership, error) {
	if err := r.m.enter(ctx, "memberships.ListByActivity"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	return r.list(activityID), nil
}

func (r *membershipRepo) DeleteByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Membership, error) {
	if err := r.m.enter(ctx, "memberships.DeleteByActivity"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	out := r.list(activityID)
	for _, ms := range out {
		delete(r.m.st.memberships, pairKey{activityID, ms.UserID})
	}
	return out, nil
}

type joinRequestRepo struct{ m *Memory }

func (r *joinRequestRepo) pending(activityID, requesterID uuid.UUID) (domain.JoinRequest, bool) {
	for _, jr := range r.m.st.joinRequests {
		if jr.ActivityID == activityID && jr.RequesterID == requesterID && jr.Status == domain.JoinPending {
			return jr, true
		}
	}
	return domain.JoinRequest{}, false
}

func (r *joinRequestRepo) Create(ctx context.Context, jr *domain.JoinRequest) error {
	if err := r.m.enter(ctx, "join_requests.Create"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	if jr.Status == domain.JoinPending {
		if _, dup := r.pending(jr.ActivityID, jr.RequesterID); dup {
			return domain.ErrDuplicatePending
		}
	}
	jr.CreatedAt = r.m.Clock()
	row := *jr
	row.Answers = nil
	r.m.st.joinRequests[jr.ID] = row
	return nil
}

func (r *joinRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.JoinRequest, error) {
	if err := r.m.enter(ctx, "join_requests.GetByID"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	jr, ok := r.m.st.joinRequests[id]
	if !ok {
		return nil, nil
	}
	return &jr, nil
}

func (r *joinRequestRepo) GetPending(ctx context.Context, activityID, requesterID uuid.UUID) (*domain.JoinRequest, error) {
	if err := r.m.enter(ctx, "join_requests.GetPending"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	jr, ok := r.pending(activityID, requesterID)
	if !ok {
		return nil, nil
	}
	return &jr, nil
}

func (r *joinRequestRepo) ListByActivity(ctx context.Context, activityID uuid.UUID, status *domain.JoinRequestStatus, params domain.PaginationParams) ([]domain.JoinRequest, int64, error) {
	if err := r.m.enter(ctx, "join_requests.ListByActivity"); err != nil {
		return nil, 0, err
	}
	defer r.m.mu.Unlock()
	params.Validate()

	var out []domain.JoinRequest
	for _, jr := range r.m.st.joinRequests {
		if jr.ActivityID != activityID || (status != nil && jr.Status != *status) {
			continue
		}
		out = append(out, jr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	start := min(params.Offset(), len(out))
	end := min(start+params.PageSize, len(out))
	return out[start:end], total, nil
}

func (r *joinRequestRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.JoinRequestStatus, respondedAt *time.Time) (bool, error) {
	if err := r.m.enter(ctx, "join_requests.Transition"); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()
	jr, ok := r.m.st.joinRequests[id]
	if !ok || jr.Status != from {
		return false, nil
	}
	if to == domain.JoinPending {
		if _, dup := r.pending(jr.ActivityID, jr.RequesterID); dup {
			return false, domain.ErrDuplicatePending
		}
	}
	jr.Status, jr.RespondedAt = to, respondedAt
	r.m.st.joinRequests[id] = jr
	return true, nil
}

func (r *joinRequestRepo) RejectPendingByActivity(ctx context.Context, activityID uuid.UUID, at time.Time) ([]domain.JoinRequest, error) {
	if err := r.m.enter(ctx, "join_requests.RejectPendingByActivity"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	var out []domain.JoinRequest
	for id, jr := range r.m.st.joinRequests {
		if jr.ActivityID == activityID && jr.Status == domain.JoinPending {
			jr.Status, jr.RespondedAt = domain.JoinRejected, &at
			r.m.st.joinRequests[id] = jr
			out = append(out, jr)
		}
	}
	return out, nil
}

func (r *joinRequestRepo) SaveAnswers(ctx context.Context, answers []domain.JoinAnswer) error {
	if err := r.m.enter(ctx, "join_requests.SaveAnswers"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	for _, a := range answers {
		r.m.st.answers[a.JoinRequestID] = append(r.m.st.answers[a.JoinRequestID], a)
	}
	return nil
}

func (r *joinRequestRepo) ListAnswers(ctx context.Context, joinRequestID uuid.UUID) ([]domain.JoinAnswer, error) {
	if err := r.m.enter(ctx, "join_requests.ListAnswers"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	return slices.Clone(r.m.st.answers[joinRequestID]), nil
}

type conversationRepo struct{ m *Memory }

func (r *conversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	if err := r.m.enter(ctx, "conversations.Create"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	c.CreatedAt = r.m.Clock()
	r.m.st.conversations[c.ID] = *c
	return nil
}

func (r *conversationRepo) Restore(ctx context.Context, c *domain.Conversation) error {
	if err := r.m.enter(ctx, "conversations.Restore"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	r.m.st.conversations[c.ID] = *c
	return nil
}

func (r *conversationRepo) GetByActivity(ctx context.Context, activityID uuid.UUID) (*domain.Conversation, error) {
	if err := r.m.enter(ctx, "conversations.GetByActivity"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	c, ok := r.m.conversationFor(activityID)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *conversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.m.enter(ctx, "conversations.Delete"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	delete(r.m.st.conversations, id)
	for k := range r.m.st.participants {
		if k.a == id {
			delete(r.m.st.participants, k)
		}
	}
	return nil
}

func (r *conversationRepo) AddParticipant(ctx context.Context, p *domain.ConversationParticipant) (bool, error) {
	if err := r.m.enter(ctx, "conversations.AddParticipant"); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()
	key := pairKey{p.ConversationID, p.UserID}
	if _, exists := r.m.st.participants[key]; exists {
		return false, nil
	}
	r.m.st.participants[key] = *p
	return true, nil
}

func (r *conversationRepo) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error) {
	if err := r.m.enter(ctx, "conversations.GetParticipant"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	p, ok := r.m.st.participants[pairKey{conversationID, userID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *conversationRepo) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error) {
	if err := r.m.enter(ctx, "conversations.RemoveParticipant"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	key := pairKey{conversationID, userID}
	p, ok := r.m.st.participants[key]
	if !ok {
		return nil, nil
	}
	delete(r.m.st.participants, key)
	return &p, nil
}

func (r *conversationRepo) participants(conversationID uuid.UUID) []domain.ConversationParticipant {
	var out []domain.ConversationParticipant
	for k, p := range r.m.st.participants {
		if k.a == conversationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (r *conversationRepo) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationParticipant, error) {
	if err := r.m.enter(ctx, "conversations.ListParticipants"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	return r.participants(conversationID), nil
}

func (r *conversationRepo) DeleteParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationParticipant, error) {
	if err := r.m.enter(ctx, "conversations.DeleteParticipants"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	out := r.participants(conversationID)
	for _, p := range out {
		delete(r.m.st.participants, pairKey{conversationID, p.UserID})
	}
	return out, nil
}

func (r *conversationRepo) MarkSeen(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (bool, error) {
	if err := r.m.enter(ctx, "conversations.MarkSeen"); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()
	key := pairKey{conversationID, userID}
	p, ok := r.m.st.participants[key]
	if !ok {
		return false, nil
	}
	p.LastSeenAt = &at
	r.m.st.participants[key] = p
	return true, nil
}

type tagRepo struct{ m *Memory }

func (r *tagRepo) GetBySlugs(ctx context.Context, slugs []string) ([]domain.Tag, error) {
	if err := r.m.enter(ctx, "tags.GetBySlugs"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	var out []domain.Tag
	for _, t := range r.m.st.tags {
		if slices.Contains(slugs, t.Slug) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *tagRepo) LinkActivity(ctx context.Context, activityID uuid.UUID, tagIDs []uuid.UUID) error {
	if err := r.m.enter(ctx, "tags.LinkActivity"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	for _, id := range tagIDs {
		if !slices.Contains(r.m.st.activityTags[activityID], id) {
			r.m.st.activityTags[activityID] = append(r.m.st.activityTags[activityID], id)
		}
	}
	return nil
}

func (r *tagRepo) UnlinkActivity(ctx context.Context, activityID uuid.UUID) error {
	if err := r.m.enter(ctx, "tags.UnlinkActivity"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	delete(r.m.st.activityTags, activityID)
	return nil
}

func (r *tagRepo) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Tag, error) {
	if err := r.m.enter(ctx, "tags.ListByActivity"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	var out []domain.Tag
	for _, id := range r.m.st.activityTags[activityID] {
		out = append(out, r.m.st.tags[id])
	}
	return out, nil
}

type notificationRepo struct{ m *Memory }

func (r *notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if err := r.m.enter(ctx, "notifications.Create"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	n.CreatedAt = r.m.Clock()
	r.m.st.notifications[n.ID] = *n
	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	if err := r.m.enter(ctx, "notifications.GetByID"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	n, ok := r.m.st.notifications[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, params domain.PaginationParams) ([]domain.Notification, int64, error) {
	if err := r.m.enter(ctx, "notifications.ListByUser"); err != nil {
		return nil, 0, err
	}
	defer r.m.mu.Unlock()
	params.Validate()

	var out []domain.Notification
	for _, n := range r.m.st.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	start := min(params.Offset(), len(out))
	end := min(start+params.PageSize, len(out))
	return out[start:end], total, nil
}

func (r *notificationRepo) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	if err := r.m.enter(ctx, "notifications.MarkAsRead"); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()
	n, ok := r.m.st.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	now := r.m.Clock()
	n.IsRead, n.ReadAt = true, &now
	r.m.st.notifications[id] = n
	return true, nil
}

func (r *notificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := r.m.enter(ctx, "notifications.MarkAllAsRead"); err != nil {
		return 0, err
	}
	defer r.m.mu.Unlock()
	var count int64
	now := r.m.Clock()
	for id, n := range r.m.st.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead, n.ReadAt = true, &now
			r.m.st.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := r.m.enter(ctx, "notifications.CountUnread"); err != nil {
		return 0, err
	}
	defer r.m.mu.Unlock()
	var count int64
	for _, n := range r.m.st.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) ExistsSince(ctx context.Context, dedupeKey string, since time.Time) (bool, error) {
	if err := r.m.enter(ctx, "notifications.ExistsSince"); err != nil {
		return false, err
	}
	defer r.m.mu.Unlock()
	for _, n := range r.m.st.notifications {
		if n.DedupeKey != nil && *n.DedupeKey == dedupeKey && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type userRepo struct{ m *Memory }

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := r.m.enter(ctx, "users.GetByID"); err != nil {
		return nil, err
	}
	defer r.m.mu.Unlock()
	u, ok := r.m.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type auditLogRepo struct{ m *Memory }

func (r *auditLogRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	if err := r.m.enter(ctx, "audit_logs.Create"); err != nil {
		return err
	}
	defer r.m.mu.Unlock()
	log.CreatedAt = r.m.Clock()
	r.m.st.auditLogs = append(r.m.st.auditLogs, *log)
	return nil
}

func (r *auditLogRepo) ListByActivity(ctx context.Context, activityID uuid.UUID, params domain.PaginationParams) ([]domain.AuditLog, int64, error) {
	if err := r.m.enter(ctx, "audit_logs.ListByActivity"); err != nil {
		return nil, 0, err
	}
	defer r.m.mu.Unlock()
	params.Validate()

	var out []domain.AuditLog
	for i := len(r.m.st.auditLogs) - 1; i >= 0; i-- {
		if r.m.st.auditLogs[i].ActivityID == activityID {
			out = append(out, r.m.st.auditLogs[i])
		}
	}
	total := int64(len(out))
	start := min(params.Offset(), len(out))
	end := min(start+params.PageSize, len(out))
	return out[start:end], total, nil
}
