package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/repository"
	"activity-hub/internal/service/capacity"
	"activity-hub/internal/service/media"
	"activity-hub/internal/service/notification"
	"activity-hub/internal/service/search"
	"activity-hub/internal/store"
)

const (
	minTitleLength       = 3
	maxTitleLength       = 120
	maxDescriptionLength = 2000
	maxLocationLength    = 200
	maxQuestionLength    = 200
	maxTags              = 10
)

type Service interface {
	Create(ctx context.Context, caller domain.Caller, input domain.CreateActivityInput) (*domain.ActivityView, error)
	Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.ActivityView, error)
	List(ctx context.Context, caller domain.Caller, filter domain.ActivityFilter, params domain.PaginationParams) (*domain.PaginatedResponse[domain.ActivityView], error)
	Search(ctx context.Context, caller domain.Caller, text string, filter domain.ActivityFilter, params domain.PaginationParams) (*domain.PaginatedResponse[domain.ActivityView], error)
	Update(ctx context.Context, caller domain.Caller, id uuid.UUID, input domain.UpdateActivityInput) (*domain.ActivityView, error)
	Delete(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.DeleteResult, error)
	// AutoCompleteExpired flips every live activity that has started to
	// completed and returns how many changed.
	AutoCompleteExpired(ctx context.Context, caller domain.Caller) (int, error)
	AutoCompleteOne(ctx context.Context, caller domain.Caller, id uuid.UUID) (bool, error)
}

type service struct {
	store     store.MembershipStore
	gw        repository.Gateway
	search    *search.Service
	media     media.Service
	publisher notification.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	jitter    float64
	now       func() time.Time
	rnd       func() float64
}

func NewService(
	st store.MembershipStore,
	gw repository.Gateway,
	searchSvc *search.Service,
	mediaSvc media.Service,
	publisher notification.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	jitterMeters float64,
) Service {
	return &service{
		store:     st,
		gw:        gw,
		search:    searchSvc,
		media:     mediaSvc,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("component", "activity"),
		jitter:    jitterMeters,
		now:       time.Now,
		rnd:       defaultRand,
	}
}

func (s *service) Create(ctx context.Context, caller domain.Caller, input domain.CreateActivityInput) (view *domain.ActivityView, err error) {
	defer func() { s.metrics.ObserveOperation("create_activity", err) }()

	if caller.UserID == uuid.Nil {
		return nil, domain.ErrUnauthenticated
	}
	now := s.now()
	if err := s.validateCreate(&input, now); err != nil {
		return nil, err
	}

	pubLat, pubLng := jitterPoint(input.Latitude, input.Longitude, s.jitter, s.rnd)
	a := &domain.Activity{
		ID:              uuid.New(),
		HostID:          caller.UserID,
		Title:           input.Title,
		Description:     input.Description,
		Kind:            input.Kind,
		Status:          domain.StatusOpen,
		StartsAt:        input.StartsAt.UTC(),
		LocationName:    input.LocationName,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		PublicLatitude:  pubLat,
		PublicLongitude: pubLng,
		CostRule:        input.CostRule,
		MaxMembers:      input.MaxMembers,
		JoinQuestions:   input.JoinQuestions,
		CoverImageKey:   input.CoverImageKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	conv := &domain.Conversation{ID: uuid.New(), ActivityID: a.ID, CreatedAt: now}
	bundle := &domain.ActivityBundle{
		Activity:     a,
		Conversation: conv,
		Host:         &domain.ConversationParticipant{ConversationID: conv.ID, UserID: a.HostID, JoinedAt: now},
		TagSlugs:     input.Tags,
	}
	if err := s.store.CreateActivity(ctx, bundle); err != nil {
		return nil, err
	}

	outbox := notification.NewOutbox()
	outbox.Reindex(a.ID)
	s.publisher.Publish(outbox)

	v := s.view(a, true, true, false)
	v.Tags = s.tags(ctx, a.ID)
	return &v, nil
}

func (s *service) validateCreate(in *domain.CreateActivityInput, now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	if n := utf8.RuneCountInString(in.Title); n < minTitleLength || n > maxTitleLength {
		return domain.BadRequest("title must be between 3 and 120 characters")
	}
	in.Description = strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return domain.BadRequest("description must be at most 2000 characters")
	}
	if !in.Kind.IsValid() {
		return domain.BadRequest("invalid activity kind")
	}
	if in.CostRule == "" {
		in.CostRule = domain.CostEveryonePays
	}
	if !in.CostRule.IsValid() {
		return domain.BadRequest("invalid cost rule")
	}
	if !in.StartsAt.After(now) {
		return domain.BadRequest("starts_at must be in the future")
	}
	if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
		return domain.BadRequest("coordinates out of range")
	}
	in.LocationName = strings.TrimSpace(in.LocationName)
	if in.LocationName == "" || utf8.RuneCountInString(in.LocationName) > maxLocationLength {
		return domain.BadRequest("location_name is required and must be at most 200 characters")
	}
	if in.MaxMembers == 0 && in.Kind == domain.KindOneOnOne {
		in.MaxMembers = domain.OneOnOneMaxMembers
	}
	if err := capacity.ValidateMaxMembers(in.Kind, in.MaxMembers); err != nil {
		return err
	}
	questions, err := normalizeQuestions(in.JoinQuestions)
	if err != nil {
		return err
	}
	in.JoinQuestions = questions
	if in.CoverImageKey != nil {
		if err := s.media.ValidateKey(*in.CoverImageKey); err != nil {
			return domain.BadRequest(err.Error())
		}
	}
	in.Tags = normalizeTags(in.Tags)
	if len(in.Tags) > maxTags {
		return domain.BadRequest("at most 10 tags are allowed")
	}
	return nil
}

func normalizeQuestions(qs []string) ([]string, error) {
	if len(qs) > domain.MaxJoinQuestions {
		return nil, domain.BadRequest("at most 5 join questions are allowed")
	}
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if q == "" || utf8.RuneCountInString(q) > maxQuestionLength {
			return nil, domain.BadRequest("join questions must be non-empty and at most 200 characters")
		}
		out = append(out, q)
	}
	return out, nil
}

// normalizeTags lowercases and dedupes slugs, keeping first-seen order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (s *service) Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.ActivityView, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	r := s.gw.Privileged()
	a, err := r.Activities.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil || a.Status == domain.StatusDeleted {
		return nil, domain.ErrActivityNotFound
	}

	isHost := caller.Is(a.HostID)
	isMember := false
	if caller.UserID != uuid.Nil && !isHost {
		m, err := r.Memberships.Get(ctx, a.ID, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("get membership: %w", err)
		}
		isMember = m != nil
	}

	v := s.view(a, isHost || isMember || caller.IsInternal(), isHost, isMember)
	v.Tags = s.tags(ctx, a.ID)
	return &v, nil
}

func (s *service) List(ctx context.Context, caller domain.Caller, filter domain.ActivityFilter, params domain.PaginationParams) (*domain.PaginatedResponse[domain.ActivityView], error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	params.Validate()
	activities, total, err := s.gw.Privileged().Activities.ListOpen(ctx, filter, s.now(), params)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return s.page(caller, activities, params, total), nil
}

func (s *service) Search(ctx context.Context, caller domain.Caller, text string, filter domain.ActivityFilter, params domain.PaginationParams) (*domain.PaginatedResponse[domain.ActivityView], error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	params.Validate()
	activities, total, err := s.search.Search(ctx, strings.TrimSpace(text), filter, s.now(), params)
	if err != nil {
		return nil, err
	}
	return s.page(caller, activities, params, total), nil
}

func (s *service) page(caller domain.Caller, activities []domain.Activity, params domain.PaginationParams, total int64) *domain.PaginatedResponse[domain.ActivityView] {
	views := make([]domain.ActivityView, 0, len(activities))
	for i := range activities {
		isHost := caller.Is(activities[i].HostID)
		views = append(views, s.view(&activities[i], isHost || caller.IsInternal(), isHost, false))
	}
	resp := domain.NewPaginatedResponse(views, params.Page, params.PageSize, total)
	return &resp
}

func (s *service) Update(ctx context.Context, caller domain.Caller, id uuid.UUID, input domain.UpdateActivityInput) (view *domain.ActivityView, err error) {
	defer func() { s.metrics.ObserveOperation("update_activity", err) }()

	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if input.IsEmpty() {
		return nil, domain.BadRequest("nothing to update")
	}
	now := s.now()
	if err := validatePatch(&input, now); err != nil {
		return nil, err
	}

	r := s.gw.Privileged()
	current, err := r.Activities.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if current == nil || current.Status == domain.StatusDeleted {
		return nil, domain.ErrActivityNotFound
	}
	if !caller.IsInternal() && !caller.Is(current.HostID) {
		return nil, domain.ErrNotHost
	}

	updated, err := s.store.UpdateActivity(ctx, id, func(a *domain.Activity) error {
		return applyPatch(a, input)
	})
	if err != nil {
		return nil, err
	}

	members, err := r.Memberships.ListByActivity(ctx, id)
	if err != nil {
		s.logger.Warn("failed to list members for update notification", "activity_id", id, "error", err)
	}
	recipients := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if m.UserID != updated.HostID {
			recipients = append(recipients, m.UserID)
		}
	}

	outbox := notification.NewOutbox()
	outbox.Notify(notification.Intent{
		Type:          domain.NotifActivityUpdated,
		Recipients:    recipients,
		ActorID:       actorOf(caller),
		ActivityID:    updated.ID,
		ActivityTitle: updated.Title,
	})
	outbox.Audit(domain.CreateAuditLogInput{
		Actor:      caller,
		ActivityID: updated.ID,
		Action:     domain.AuditActivityUpdated,
		Details:    changedFields(input),
	})
	outbox.Reindex(updated.ID)
	s.publisher.Publish(outbox)

	v := s.view(updated, true, caller.Is(updated.HostID), false)
	v.Tags = s.tags(ctx, updated.ID)
	return &v, nil
}

func validatePatch(in *domain.UpdateActivityInput, now time.Time) error {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if n := utf8.RuneCountInString(t); n < minTitleLength || n > maxTitleLength {
			return domain.BadRequest("title must be between 3 and 120 characters")
		}
		in.Title = &t
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if utf8.RuneCountInString(d) > maxDescriptionLength {
			return domain.BadRequest("description must be at most 2000 characters")
		}
		in.Description = &d
	}
	if in.StartsAt != nil {
		if !in.StartsAt.After(now) {
			return domain.BadRequest("starts_at must be in the future")
		}
		t := in.StartsAt.UTC()
		in.StartsAt = &t
	}
	if in.LocationName != nil {
		l := strings.TrimSpace(*in.LocationName)
		if l == "" || utf8.RuneCountInString(l) > maxLocationLength {
			return domain.BadRequest("location_name is required and must be at most 200 characters")
		}
		in.LocationName = &l
	}
	if in.CostRule != nil && !in.CostRule.IsValid() {
		return domain.BadRequest("invalid cost rule")
	}
	if in.JoinQuestions != nil {
		qs, err := normalizeQuestions(*in.JoinQuestions)
		if err != nil {
			return err
		}
		in.JoinQuestions = &qs
	}
	return nil
}

// applyPatch runs against the freshly locked row.
func applyPatch(a *domain.Activity, in domain.UpdateActivityInput) error {
	if !a.Status.IsLive() {
		return domain.ErrActivityEnded
	}
	if in.MaxMembers != nil {
		if err := capacity.ValidateMaxMembers(a.Kind, *in.MaxMembers); err != nil {
			return err
		}
		if *in.MaxMembers < a.MemberCount {
			return domain.ErrMaxBelowMemberCount
		}
		a.Status = capacity.StatusForMax(a, *in.MaxMembers)
		a.MaxMembers = *in.MaxMembers
	}
	if in.Title != nil {
		a.Title = *in.Title
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.StartsAt != nil {
		a.StartsAt = *in.StartsAt
	}
	if in.LocationName != nil {
		a.LocationName = *in.LocationName
	}
	if in.CostRule != nil {
		a.CostRule = *in.CostRule
	}
	if in.JoinQuestions != nil {
		a.JoinQuestions = *in.JoinQuestions
	}
	return nil
}

func changedFields(in domain.UpdateActivityInput) map[string]any {
	fields := []string{}
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(in.Title != nil, "title")
	add(in.Description != nil, "description")
	add(in.StartsAt != nil, "starts_at")
	add(in.LocationName != nil, "location_name")
	add(in.CostRule != nil, "cost_rule")
	add(in.MaxMembers != nil, "max_members")
	add(in.JoinQuestions != nil, "join_questions")
	return map[string]any{"fields": fields}
}

func (s *service) Delete(ctx context.Context, caller domain.Caller, id uuid.UUID) (result *domain.DeleteResult, err error) {
	defer func() { s.metrics.ObserveOperation("delete_activity", err) }()

	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	a, err := s.gw.Privileged().Activities.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil || a.Status == domain.StatusDeleted {
		return nil, domain.ErrActivityNotFound
	}
	if !caller.IsInternal() && !caller.Is(a.HostID) {
		return nil, domain.ErrNotHost
	}

	result, err = s.store.DeleteActivity(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	outbox := notification.NewOutbox()
	outbox.Notify(notification.Intent{
		Type:          domain.NotifActivityDeleted,
		Recipients:    result.MemberIDs(),
		ActorID:       actorOf(caller),
		ActivityID:    a.ID,
		ActivityTitle: a.Title,
		Email:         true,
	})
	outbox.Audit(domain.CreateAuditLogInput{
		Actor:      caller,
		ActivityID: a.ID,
		Action:     domain.AuditActivityDeleted,
		Details:    map[string]any{"removed_members": len(result.RemovedMembers)},
	})
	outbox.Reindex(a.ID)
	s.publisher.Publish(outbox)

	removed, err := s.media.RemoveActivityObjects(context.WithoutCancel(ctx), a.ID, a.CoverImageKey)
	if err != nil {
		s.logger.Warn("failed to remove activity media", "activity_id", a.ID, "removed", removed, "error", err)
	}

	return result, nil
}

func (s *service) AutoCompleteExpired(ctx context.Context, caller domain.Caller) (int, error) {
	if !caller.IsInternal() {
		return 0, domain.Forbidden("internal callers only")
	}
	ids, err := s.store.CompleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.AutoCompleted(len(ids))
	if len(ids) > 0 {
		outbox := notification.NewOutbox()
		for _, id := range ids {
			outbox.Reindex(id)
		}
		s.publisher.Publish(outbox)
		s.logger.Info("auto-completed expired activities", "count", len(ids))
	}
	return len(ids), nil
}

func (s *service) AutoCompleteOne(ctx context.Context, caller domain.Caller, id uuid.UUID) (bool, error) {
	if !caller.IsInternal() {
		return false, domain.Forbidden("internal callers only")
	}
	a, err := s.gw.Privileged().Activities.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return false, domain.ErrActivityNotFound
	}
	now := s.now()
	if !capacity.ShouldComplete(a, now) {
		return false, nil
	}
	ok, err := s.store.CompleteIfExpired(ctx, id, now)
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.AutoCompleted(1)
		outbox := notification.NewOutbox()
		outbox.Reindex(id)
		s.publisher.Publish(outbox)
	}
	return ok, nil
}

func (s *service) view(a *domain.Activity, reveal, isHost, isMember bool) domain.ActivityView {
	v := a.View(reveal)
	v.IsHost = isHost
	v.IsMember = isMember
	if a.CoverImageKey != nil && *a.CoverImageKey != "" {
		u := s.media.PublicURL(*a.CoverImageKey)
		v.CoverImageURL = &u
	}
	return v
}

func (s *service) tags(ctx context.Context, activityID uuid.UUID) []domain.Tag {
	tags, err := s.gw.Privileged().Tags.ListByActivity(ctx, activityID)
	if err != nil {
		s.logger.Warn("failed to load tags", "activity_id", activityID, "error", err)
		return nil
	}
	return tags
}

func actorOf(caller domain.Caller) *uuid.UUID {
	if caller.IsInternal() {
		return nil
	}
	id := caller.UserID
	return &id
}
