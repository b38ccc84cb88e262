package activity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/repository/repotest"
	"activity-hub/internal/service/notification/notificationtest"
	"activity-hub/internal/service/search"
	"activity-hub/internal/store"
)

var now = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

type mockMedia struct {
	mock.Mock
}

func (m *mockMedia) PublicURL(key string) string {
	return "https://cdn.example.com/activity-hub/" + key
}

func (m *mockMedia) ValidateKey(key string) error {
	if key == "" || key[0] == '/' {
		return errors.New("invalid cover image key")
	}
	return nil
}

func (m *mockMedia) RemoveActivityObjects(ctx context.Context, activityID uuid.UUID, coverKey *string) (int, error) {
	args := m.Called(activityID, coverKey)
	return args.Int(0), args.Error(1)
}

type env struct {
	gw    *repotest.Memory
	svc   *service
	pub   *notificationtest.Recorder
	media *mockMedia
	host  uuid.UUID
	ctx   context.Context
}

func forEachMode(t *testing.T, fn func(t *testing.T, e *env)) {
	for _, mode := range []store.Mode{store.ModeTransactional, store.ModeCompensating} {
		t.Run(string(mode), func(t *testing.T) {
			gw := repotest.New()
			gw.Clock = func() time.Time { return now }
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			m := metrics.New()
			st, err := store.New(mode, gw, m, logger)
			require.NoError(t, err)

			pub := &notificationtest.Recorder{}
			media := &mockMedia{}
			svc := NewService(st, gw, search.NewService(nil, gw.Privileged(), logger), media, pub, m, logger, 300).(*service)
			svc.now = func() time.Time { return now }

			fn(t, &env{gw: gw, svc: svc, pub: pub, media: media, host: uuid.New(), ctx: context.Background()})
		})
	}
}

func validInput() domain.CreateActivityInput {
	return domain.CreateActivityInput{
		Title:        "  Sunday coffee walk ",
		Description:  "Slow loop around the lake",
		Kind:         domain.KindGroup,
		StartsAt:     now.Add(48 * time.Hour),
		LocationName: "Lakeside cafe",
		Latitude:     52.52,
		Longitude:    13.405,
		MaxMembers:   6,
		Tags:         []string{"Coffee", "coffee", " walking "},
	}
}

func (e *env) activity(max int, status domain.ActivityStatus, members ...uuid.UUID) domain.Activity {
	return e.gw.SeedActivity(domain.Activity{
		HostID:       e.host,
		Title:        "Board games",
		Kind:         domain.KindGroup,
		Status:       status,
		StartsAt:     now.Add(24 * time.Hour),
		LocationName: "Game cafe",
		Latitude:     48.85,
		Longitude:    2.35,
		CostRule:     domain.CostHostPays,
		MaxMembers:   max,
	}, members...)
}

func TestCreate_BuildsActivityConversationAndTags(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		e.gw.SeedTag("coffee")
		e.gw.SeedTag("walking")

		v, err := e.svc.Create(e.ctx, domain.UserCaller(e.host), validInput())
		require.NoError(t, err)

		assert.Equal(t, "Sunday coffee walk", v.Title)
		assert.Equal(t, domain.StatusOpen, v.Status)
		assert.Equal(t, domain.CostEveryonePays, v.CostRule)
		assert.Equal(t, 0, v.MemberCount)
		assert.True(t, v.IsHost)
		require.NotNil(t, v.Latitude)
		assert.Equal(t, 52.52, *v.Latitude)
		assert.Len(t, v.Tags, 2)

		stored, ok := e.gw.Activity(v.ID)
		require.True(t, ok)
		assert.Equal(t, e.host, stored.HostID)
		_, ok = e.gw.ConversationFor(v.ID)
		assert.True(t, ok)
		assert.Equal(t, []uuid.UUID{e.host}, e.gw.Participants(v.ID))
		assert.Len(t, e.gw.TagsFor(v.ID), 2)
		assert.Equal(t, []uuid.UUID{v.ID}, e.pub.Reindexed())
	})
}

func TestCreate_PublicLocationIsJittered(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		e.gw.SeedTag("coffee")
		e.gw.SeedTag("walking")

		v, err := e.svc.Create(e.ctx, domain.UserCaller(e.host), validInput())
		require.NoError(t, err)

		d := distanceMeters(52.52, 13.405, v.PublicLatitude, v.PublicLongitude)
		assert.GreaterOrEqual(t, d, 149.0)
		assert.LessOrEqual(t, d, 301.0)

		stored, _ := e.gw.Activity(v.ID)
		assert.Equal(t, v.PublicLatitude, stored.PublicLatitude)
		assert.Equal(t, v.PublicLongitude, stored.PublicLongitude)
	})
}

func TestCreate_OneOnOneDefaultsToTwo(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		e.gw.SeedTag("coffee")
		e.gw.SeedTag("walking")
		in := validInput()
		in.Kind = domain.KindOneOnOne
		in.MaxMembers = 0

		v, err := e.svc.Create(e.ctx, domain.UserCaller(e.host), in)
		require.NoError(t, err)
		assert.Equal(t, domain.OneOnOneMaxMembers, v.MaxMembers)
	})
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *domain.CreateActivityInput)
	}{
		{"short title", func(in *domain.CreateActivityInput) { in.Title = "hi" }},
		{"bad kind", func(in *domain.CreateActivityInput) { in.Kind = "party" }},
		{"bad cost rule", func(in *domain.CreateActivityInput) { in.CostRule = "free" }},
		{"in the past", func(in *domain.CreateActivityInput) { in.StartsAt = now.Add(-time.Minute) }},
		{"latitude out of range", func(in *domain.CreateActivityInput) { in.Latitude = 91 }},
		{"missing location", func(in *domain.CreateActivityInput) { in.LocationName = " " }},
		{"group too large", func(in *domain.CreateActivityInput) { in.MaxMembers = 51 }},
		{"one-on-one with three", func(in *domain.CreateActivityInput) {
			in.Kind = domain.KindOneOnOne
			in.MaxMembers = 3
		}},
		{"too many questions", func(in *domain.CreateActivityInput) {
			in.JoinQuestions = []string{"a", "b", "c", "d", "e", "f"}
		}},
		{"empty question", func(in *domain.CreateActivityInput) { in.JoinQuestions = []string{" "} }},
		{"bad cover key", func(in *domain.CreateActivityInput) {
			key := "/etc/passwd"
			in.CoverImageKey = &key
		}},
		{"no tags", func(in *domain.CreateActivityInput) { in.Tags = []string{" "} }},
		{"unknown tag", func(in *domain.CreateActivityInput) { in.Tags = []string{"knitting"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachMode(t, func(t *testing.T, e *env) {
				e.gw.SeedTag("coffee")
				e.gw.SeedTag("walking")
				before := e.gw.Counts()
				in := validInput()
				tt.mutate(&in)

				_, err := e.svc.Create(e.ctx, domain.UserCaller(e.host), in)
				require.Error(t, err)
				assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
				assert.Equal(t, before, e.gw.Counts())
				assert.Empty(t, e.pub.Outboxes())
			})
		})
	}
}

func TestCreate_RollsBackWhenTagLinkFails(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		e.gw.SeedTag("coffee")
		e.gw.SeedTag("walking")
		before := e.gw.Counts()
		e.gw.Fail("tags.LinkActivity", errors.New("connection reset"))

		_, err := e.svc.Create(e.ctx, domain.UserCaller(e.host), validInput())
		require.Error(t, err)
		assert.Equal(t, before, e.gw.Counts())
		assert.Empty(t, e.pub.Outboxes())
	})
}

func TestCreate_RequiresUser(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		_, err := e.svc.Create(e.ctx, domain.InternalCaller(), validInput())
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}

func TestGet_HidesExactLocationFromStrangers(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		alice, stranger := uuid.New(), uuid.New()
		a := e.activity(4, domain.StatusOpen, alice)

		v, err := e.svc.Get(e.ctx, domain.UserCaller(stranger), a.ID)
		require.NoError(t, err)
		assert.Nil(t, v.Latitude)
		assert.Nil(t, v.LocationName)
		assert.False(t, v.IsMember)

		v, err = e.svc.Get(e.ctx, domain.UserCaller(alice), a.ID)
		require.NoError(t, err)
		require.NotNil(t, v.Latitude)
		assert.Equal(t, 48.85, *v.Latitude)
		assert.True(t, v.IsMember)

		v, err = e.svc.Get(e.ctx, domain.UserCaller(e.host), a.ID)
		require.NoError(t, err)
		assert.NotNil(t, v.LocationName)
		assert.True(t, v.IsHost)
	})
}

func TestGet_DeletedIsNotFound(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(4, domain.StatusDeleted)
		_, err := e.svc.Get(e.ctx, domain.UserCaller(e.host), a.ID)
		assert.ErrorIs(t, err, domain.ErrActivityNotFound)

		_, err = e.svc.Get(e.ctx, domain.UserCaller(e.host), uuid.New())
		assert.ErrorIs(t, err, domain.ErrActivityNotFound)
	})
}

func TestList_OnlyLiveUpcoming(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		open := e.activity(4, domain.StatusOpen)
		e.activity(4, domain.StatusCompleted)
		e.activity(4, domain.StatusDeleted)

		page, err := e.svc.List(e.ctx, domain.UserCaller(uuid.New()), domain.ActivityFilter{}, domain.PaginationParams{})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, open.ID, page.Data[0].ID)
		assert.Nil(t, page.Data[0].Latitude)
		assert.Equal(t, int64(1), page.TotalItems)
		assert.Equal(t, 20, page.PageSize)
	})
}

func TestSearch_FallsBackToDatabase(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(4, domain.StatusOpen)
		e.gw.SeedActivity(domain.Activity{
			HostID: e.host, Title: "Morning run", Kind: domain.KindGroup,
			Status: domain.StatusOpen, StartsAt: now.Add(time.Hour), MaxMembers: 4,
		})

		page, err := e.svc.Search(e.ctx, domain.UserCaller(uuid.New()), " board ", domain.ActivityFilter{}, domain.PaginationParams{})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, a.ID, page.Data[0].ID)
	})
}

func TestUpdate_HostPatchesAndNotifiesMembers(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		alice, bob := uuid.New(), uuid.New()
		a := e.activity(4, domain.StatusOpen, alice, bob)
		title := "  Board games night "

		v, err := e.svc.Update(e.ctx, domain.UserCaller(e.host), a.ID, domain.UpdateActivityInput{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Board games night", v.Title)

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, "Board games night", stored.Title)
		assert.Equal(t, 2, stored.MemberCount)

		updated := e.pub.OfType(domain.NotifActivityUpdated)
		require.Len(t, updated, 1)
		assert.ElementsMatch(t, []uuid.UUID{alice, bob}, updated[0].Recipients)
		require.Len(t, e.pub.AuditEntries(), 1)
		assert.Equal(t, domain.AuditActivityUpdated, e.pub.AuditEntries()[0].Action)
		assert.Equal(t, []uuid.UUID{a.ID}, e.pub.Reindexed())
	})
}

func TestUpdate_MaxMembersRecomputesStatus(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		alice, bob := uuid.New(), uuid.New()
		a := e.activity(4, domain.StatusOpen, alice, bob)

		two := 2
		v, err := e.svc.Update(e.ctx, domain.UserCaller(e.host), a.ID, domain.UpdateActivityInput{MaxMembers: &two})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFull, v.Status)

		five := 5
		v, err = e.svc.Update(e.ctx, domain.UserCaller(e.host), a.ID, domain.UpdateActivityInput{MaxMembers: &five})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOpen, v.Status)
		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, 5, stored.MaxMembers)
	})
}

func TestUpdate_MaxBelowMemberCountConflicts(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(4, domain.StatusOpen, uuid.New(), uuid.New(), uuid.New())

		two := 2
		_, err := e.svc.Update(e.ctx, domain.UserCaller(e.host), a.ID, domain.UpdateActivityInput{MaxMembers: &two})
		assert.ErrorIs(t, err, domain.ErrMaxBelowMemberCount)

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, 4, stored.MaxMembers)
		assert.Equal(t, domain.StatusOpen, stored.Status)
		assert.Empty(t, e.pub.Outboxes())
	})
}

func TestUpdate_Rejections(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		alice := uuid.New()
		a := e.activity(4, domain.StatusOpen, alice)
		done := e.activity(4, domain.StatusCompleted)
		title := "New title"

		_, err := e.svc.Update(e.ctx, domain.UserCaller(alice), a.ID, domain.UpdateActivityInput{Title: &title})
		assert.ErrorIs(t, err, domain.ErrNotHost)

		_, err = e.svc.Update(e.ctx, domain.UserCaller(e.host), a.ID, domain.UpdateActivityInput{})
		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

		_, err = e.svc.Update(e.ctx, domain.UserCaller(e.host), done.ID, domain.UpdateActivityInput{Title: &title})
		assert.ErrorIs(t, err, domain.ErrActivityEnded)

		_, err = e.svc.Update(e.ctx, domain.UserCaller(e.host), uuid.New(), domain.UpdateActivityInput{Title: &title})
		assert.ErrorIs(t, err, domain.ErrActivityNotFound)

		past := now.Add(-time.Hour)
		_, err = e.svc.Update(e.ctx, domain.UserCaller(e.host), a.ID, domain.UpdateActivityInput{StartsAt: &past})
		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
	})
}

func TestUpdate_InternalCallerAllowed(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(4, domain.StatusOpen, uuid.New())
		rule := domain.CostSplit

		v, err := e.svc.Update(e.ctx, domain.InternalCaller(), a.ID, domain.UpdateActivityInput{CostRule: &rule})
		require.NoError(t, err)
		assert.Equal(t, domain.CostSplit, v.CostRule)
		assert.Nil(t, e.pub.OfType(domain.NotifActivityUpdated)[0].ActorID)
	})
}

func TestDelete_CascadesAndNotifiesMembers(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
		a := e.activity(4, domain.StatusFull, alice, bob)
		e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: carol, Status: domain.JoinPending})
		e.media.On("RemoveActivityObjects", a.ID, (*string)(nil)).Return(1, nil).Once()

		res, err := e.svc.Delete(e.ctx, domain.UserCaller(e.host), a.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{alice, bob}, res.MemberIDs())

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, domain.StatusDeleted, stored.Status)
		assert.Equal(t, 0, stored.MemberCount)
		assert.Equal(t, 0, e.gw.MemberCount(a.ID))
		_, ok := e.gw.ConversationFor(a.ID)
		assert.False(t, ok)
		for _, jr := range e.gw.JoinRequestsFor(a.ID) {
			assert.NotEqual(t, domain.JoinPending, jr.Status)
		}

		deleted := e.pub.OfType(domain.NotifActivityDeleted)
		require.Len(t, deleted, 1)
		assert.ElementsMatch(t, []uuid.UUID{alice, bob}, deleted[0].Recipients)
		assert.True(t, deleted[0].Email)
		assert.Equal(t, domain.AuditActivityDeleted, e.pub.AuditEntries()[0].Action)
		e.media.AssertExpectations(t)
	})
}

func TestDelete_MediaFailureIsSwallowed(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(4, domain.StatusOpen)
		e.media.On("RemoveActivityObjects", a.ID, (*string)(nil)).Return(0, errors.New("minio down"))

		_, err := e.svc.Delete(e.ctx, domain.UserCaller(e.host), a.ID)
		require.NoError(t, err)
		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, domain.StatusDeleted, stored.Status)
	})
}

func TestDelete_Rejections(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		alice := uuid.New()
		a := e.activity(4, domain.StatusOpen, alice)
		gone := e.activity(4, domain.StatusDeleted)

		_, err := e.svc.Delete(e.ctx, domain.UserCaller(alice), a.ID)
		assert.ErrorIs(t, err, domain.ErrNotHost)

		_, err = e.svc.Delete(e.ctx, domain.UserCaller(e.host), gone.ID)
		assert.ErrorIs(t, err, domain.ErrActivityNotFound)

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, domain.StatusOpen, stored.Status)
		assert.Equal(t, 1, e.gw.MemberCount(a.ID))
	})
}

func TestDelete_RollsBackOnFailure(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(4, domain.StatusOpen, uuid.New(), uuid.New())
		before := e.gw.Counts()
		e.gw.Fail("conversations.Delete", errors.New("connection reset"))

		_, err := e.svc.Delete(e.ctx, domain.UserCaller(e.host), a.ID)
		require.Error(t, err)
		assert.Equal(t, before, e.gw.Counts())
		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, domain.StatusOpen, stored.Status)
		assert.Equal(t, 2, stored.MemberCount)
		assert.Empty(t, e.pub.Outboxes())
	})
}

func TestAutoCompleteExpired_IsIdempotent(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		past := e.gw.SeedActivity(domain.Activity{
			HostID: e.host, Title: "Yesterday", Kind: domain.KindGroup,
			Status: domain.StatusFull, StartsAt: now.Add(-time.Hour), MaxMembers: 2,
		})
		future := e.activity(4, domain.StatusOpen)

		n, err := e.svc.AutoCompleteExpired(e.ctx, domain.InternalCaller())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stored, _ := e.gw.Activity(past.ID)
		assert.Equal(t, domain.StatusCompleted, stored.Status)
		stored, _ = e.gw.Activity(future.ID)
		assert.Equal(t, domain.StatusOpen, stored.Status)
		assert.Equal(t, []uuid.UUID{past.ID}, e.pub.Reindexed())

		n, err = e.svc.AutoCompleteExpired(e.ctx, domain.InternalCaller())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestAutoComplete_InternalOnly(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(4, domain.StatusOpen)

		_, err := e.svc.AutoCompleteExpired(e.ctx, domain.UserCaller(e.host))
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
		_, err = e.svc.AutoCompleteOne(e.ctx, domain.UserCaller(e.host), a.ID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})
}

func TestAutoCompleteOne(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		past := e.gw.SeedActivity(domain.Activity{
			HostID: e.host, Title: "Yesterday", Kind: domain.KindGroup,
			Status: domain.StatusOpen, StartsAt: now.Add(-time.Hour), MaxMembers: 4,
		})
		future := e.activity(4, domain.StatusOpen)

		ok, err := e.svc.AutoCompleteOne(e.ctx, domain.InternalCaller(), past.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = e.svc.AutoCompleteOne(e.ctx, domain.InternalCaller(), past.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = e.svc.AutoCompleteOne(e.ctx, domain.InternalCaller(), future.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = e.svc.AutoCompleteOne(e.ctx, domain.InternalCaller(), uuid.New())
		assert.ErrorIs(t, err, domain.ErrActivityNotFound)

		writes := 0
		for _, call := range e.gw.Calls() {
			if call == "activities.CompleteIfExpired" {
				writes++
			}
		}
		assert.Equal(t, 1, writes, "only the expired live activity is written")
	})
}
