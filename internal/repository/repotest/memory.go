// Package repotest provides an in-memory repository.Gateway with fault
// injection for service and store tests.
package repotest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/repository"
)

type pairKey struct {
	a uuid.UUID
	b uuid.UUID
}

type fault struct {
	err  error
	once bool
}

type state struct {
	activities    map[uuid.UUID]domain.Activity
	memberships   map[pairKey]domain.Membership
	joinRequests  map[uuid.UUID]domain.JoinRequest
	answers       map[uuid.UUID][]domain.JoinAnswer
	conversations map[uuid.UUID]domain.Conversation
	participants  map[pairKey]domain.ConversationParticipant
	tags          map[uuid.UUID]domain.Tag
	activityTags  map[uuid.UUID][]uuid.UUID
	notifications map[uuid.UUID]domain.Notification
	users         map[uuid.UUID]domain.User
	auditLogs     []domain.AuditLog
}

func newState() state {
	return state{
		activities:    map[uuid.UUID]domain.Activity{},
		memberships:   map[pairKey]domain.Membership{},
		joinRequests:  map[uuid.UUID]domain.JoinRequest{},
		answers:       map[uuid.UUID][]domain.JoinAnswer{},
		conversations: map[uuid.UUID]domain.Conversation{},
		participants:  map[pairKey]domain.ConversationParticipant{},
		tags:          map[uuid.UUID]domain.Tag{},
		activityTags:  map[uuid.UUID][]uuid.UUID{},
		notifications: map[uuid.UUID]domain.Notification{},
		users:         map[uuid.UUID]domain.User{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.activities {
		v.JoinQuestions = slices.Clone(v.JoinQuestions)
		c.activities[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.joinRequests {
		c.joinRequests[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = slices.Clone(v)
	}
	for k, v := range s.conversations {
		c.conversations[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.activityTags {
		c.activityTags[k] = slices.Clone(v)
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	c.auditLogs = slices.Clone(s.auditLogs)
	return c
}

// Memory is an in-memory repository.Gateway. WithinTx serialises
// transactions and restores the pre-transaction state when fn fails.
type Memory struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	st     state
	faults map[string]fault
	calls  []string
	repos  *repository.Repositories

	// Clock stamps created_at columns.
	Clock func() time.Time
}

var _ repository.Gateway = (*Memory)(nil)

func New() *Memory {
	m := &Memory{
		st:     newState(),
		faults: map[string]fault{},
		Clock:  time.Now,
	}
	m.repos = &repository.Repositories{
		Activities:    &activityRepo{m},
		Memberships:   &membershipRepo{m},
		JoinRequests:  &joinRequestRepo{m},
		Conversations: &conversationRepo{m},
		Tags:          &tagRepo{m},
		Notifications: &notificationRepo{m},
		Users:         &userRepo{m},
		AuditLogs:     &auditLogRepo{m},
	}
	return m
}

func (m *Memory) Privileged() *repository.Repositories {
	return m.repos
}

func (m *Memory) WithinTx(ctx context.Context, fn func(r *repository.Repositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(m.repos); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) AsCaller(ctx context.Context, userID uuid.UUID, fn func(r *repository.Repositories) error) error {
	m.mu.Lock()
	m.calls = append(m.calls, "as_caller:"+userID.String())
	m.mu.Unlock()
	return fn(m.repos)
}

// Fail makes every call to op return err until Clear is called. Op names
// look like "memberships.Delete".
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = fault{err: err}
}

// FailOnce makes the next call to op return err.
func (m *Memory) FailOnce(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = fault{err: err, once: true}
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = map[string]fault{}
}

// Calls returns the operations invoked so far, in order.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// enter locks the state and records op. The caller must unlock m.mu unless
// an error is returned.
func (m *Memory) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return err
	}
	if f, ok := m.faults[op]; ok {
		if f.once {
			delete(m.faults, op)
		}
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", op, f.err)
	}
	return nil
}

func (m *Memory) SeedUser(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Email == "" {
		u.Email = u.ID.String() + "@example.com"
	}
	u.IsActive = true
	m.st.users[u.ID] = u
	return u
}

func (m *Memory) SeedTag(slug string) domain.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := domain.Tag{ID: uuid.New(), Slug: slug, Name: slug}
	m.st.tags[t.ID] = t
	return t
}

// SeedActivity stores a along with its conversation, a host participant and
// a membership plus participant per member.
func (m *Memory) SeedActivity(a domain.Activity, members ...uuid.UUID) domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Clock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
		a.UpdatedAt = now
	}
	a.MemberCount = len(members)
	m.st.activities[a.ID] = a

	conv := domain.Conversation{ID: uuid.New(), ActivityID: a.ID, CreatedAt: now}
	m.st.conversations[conv.ID] = conv
	m.st.participants[pairKey{conv.ID, a.HostID}] = domain.ConversationParticipant{
		ConversationID: conv.ID, UserID: a.HostID, JoinedAt: now,
	}
	for _, userID := range members {
		m.st.memberships[pairKey{a.ID, userID}] = domain.Membership{
			ID: uuid.New(), ActivityID: a.ID, UserID: userID,
			Status: domain.MembershipActive, JoinedAt: now,
		}
		m.st.participants[pairKey{conv.ID, userID}] = domain.ConversationParticipant{
			ConversationID: conv.ID, UserID: userID, JoinedAt: now,
		}
	}
	return a
}

func (m *Memory) SeedJoinRequest(jr domain.JoinRequest) domain.JoinRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if jr.ID == uuid.Nil {
		jr.ID = uuid.New()
	}
	if jr.Status == "" {
		jr.Status = domain.JoinPending
	}
	if jr.CreatedAt.IsZero() {
		jr.CreatedAt = m.Clock()
	}
	m.st.joinRequests[jr.ID] = jr
	return jr
}

// Activity returns the stored row including soft-deleted ones.
func (m *Memory) Activity(id uuid.UUID) (domain.Activity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.activities[id]
	return a, ok
}

func (m *Memory) Membership(activityID, userID uuid.UUID) (domain.Membership, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.st.memberships[pairKey{activityID, userID}]
	return ms, ok
}

func (m *Memory) MemberCount(activityID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countMembers(activityID)
}

func (m *Memory) countMembers(activityID uuid.UUID) int {
	n := 0
	for k := range m.st.memberships {
		if k.a == activityID {
			n++
		}
	}
	return n
}

func (m *Memory) ConversationFor(activityID uuid.UUID) (domain.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversationFor(activityID)
}

func (m *Memory) conversationFor(activityID uuid.UUID) (domain.Conversation, bool) {
	for _, c := range m.st.conversations {
		if c.ActivityID == activityID {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

// Participants lists user IDs with a participant row in the activity's
// conversation.
func (m *Memory) Participants(activityID uuid.UUID) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversationFor(activityID)
	if !ok {
		return nil
	}
	var ids []uuid.UUID
	for k := range m.st.participants {
		if k.a == conv.ID {
			ids = append(ids, k.b)
		}
	}
	return ids
}

func (m *Memory) Participant(activityID, userID uuid.UUID) (domain.ConversationParticipant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversationFor(activityID)
	if !ok {
		return domain.ConversationParticipant{}, false
	}
	p, ok := m.st.participants[pairKey{conv.ID, userID}]
	return p, ok
}

func (m *Memory) JoinRequestsFor(activityID uuid.UUID) []domain.JoinRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.JoinRequest
	for _, jr := range m.st.joinRequests {
		if jr.ActivityID == activityID {
			out = append(out, jr)
		}
	}
	return out
}

func (m *Memory) Answers(joinRequestID uuid.UUID) []domain.JoinAnswer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.st.answers[joinRequestID])
}

func (m *Memory) TagsFor(activityID uuid.UUID) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.st.activityTags[activityID])
}

func (m *Memory) Notifications(userID uuid.UUID) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.st.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (m *Memory) AuditLogs() []domain.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.st.auditLogs)
}

// Counts reports row totals per table for rollback assertions.
func (m *Memory) Counts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	tagLinks := 0
	for _, ids := range m.st.activityTags {
		tagLinks += len(ids)
	}
	return map[string]int{
		"activities":                len(m.st.activities),
		"memberships":               len(m.st.memberships),
		"join_requests":             len(m.st.joinRequests),
		"conversations":             len(m.st.conversations),
		"conversation_participants": len(m.st.participants),
		"activity_tags":             tagLinks,
		"notifications":             len(m.st.notifications),
	}
}
