package joinrequest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/repository/repotest"
	"activity-hub/internal/service/notification/notificationtest"
	"activity-hub/internal/store"
)

var now = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

type env struct {
	gw   *repotest.Memory
	svc  *service
	pub  *notificationtest.Recorder
	host domain.User
	ctx  context.Context
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
			svc := NewService(st, gw.Privileged(), pub, m, logger).(*service)
			svc.now = func() time.Time { return now }

			fn(t, &env{
				gw:   gw,
				svc:  svc,
				pub:  pub,
				host: gw.SeedUser(domain.User{FullName: "Budi"}),
				ctx:  context.Background(),
			})
		})
	}
}

func (e *env) seed(mutate func(a *domain.Activity), members ...uuid.UUID) domain.Activity {
	a := domain.Activity{
		HostID:        e.host.ID,
		Title:         "Sunday hike",
		Kind:          domain.KindGroup,
		Status:        domain.StatusOpen,
		StartsAt:      now.Add(48 * time.Hour),
		CostRule:      domain.CostSplit,
		MaxMembers:    5,
		JoinQuestions: []string{"Experience?", "Gear?"},
	}
	mutate(&a)
	return e.gw.SeedActivity(a, members...)
}

func (e *env) activity(max int, members ...uuid.UUID) domain.Activity {
	return e.seed(func(a *domain.Activity) { a.MaxMembers = max }, members...)
}

func (e *env) user() uuid.UUID {
	return e.gw.SeedUser(domain.User{}).ID
}

func ptr[T any](v T) *T { return &v }

func TestRequestJoin_CreatesPendingRequest(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(5)
		requester := e.user()

		res, err := e.svc.RequestJoin(e.ctx, domain.UserCaller(requester), domain.RequestJoinCommand{
			ActivityID: a.ID,
			Message:    ptr("  see you there  "),
			Answers:    []string{"Some", "  "},
		})
		require.NoError(t, err)
		assert.False(t, res.DuplicatePending)
		assert.Equal(t, domain.JoinPending, res.JoinRequest.Status)
		assert.Equal(t, "see you there", *res.JoinRequest.Message)

		rows := e.gw.JoinRequestsFor(a.ID)
		require.Len(t, rows, 1)
		answers := e.gw.Answers(rows[0].ID)
		require.Len(t, answers, 1)
		assert.Equal(t, domain.JoinAnswer{JoinRequestID: rows[0].ID, Position: 0, Question: "Experience?", Answer: "Some"}, answers[0])

		intents := e.pub.OfType(domain.NotifJoinRequested)
		require.Len(t, intents, 1)
		assert.Equal(t, []uuid.UUID{e.host.ID}, intents[0].Recipients)
		assert.Equal(t, 0, e.gw.MemberCount(a.ID), "requesting does not create a membership")
	})
}

func TestRequestJoin_DuplicatePendingIsSoftSuccess(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(5)
		caller := domain.UserCaller(e.user())

		first, err := e.svc.RequestJoin(e.ctx, caller, domain.RequestJoinCommand{ActivityID: a.ID})
		require.NoError(t, err)

		second, err := e.svc.RequestJoin(e.ctx, caller, domain.RequestJoinCommand{ActivityID: a.ID})
		require.NoError(t, err)
		assert.True(t, second.DuplicatePending)
		assert.Equal(t, first.JoinRequest.ID, second.JoinRequest.ID)

		assert.Len(t, e.gw.JoinRequestsFor(a.ID), 1)
		assert.Len(t, e.pub.OfType(domain.NotifJoinRequested), 1, "no second notification")
	})
}

func TestRequestJoin_Rejections(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		member := e.user()
		open := e.activity(5, member)
		full := e.seed(func(a *domain.Activity) {
			a.MaxMembers, a.Status = 1, domain.StatusFull
		}, e.user())
		deleted := e.seed(func(a *domain.Activity) { a.Status = domain.StatusDeleted })

		cases := []struct {
			name   string
			caller domain.Caller
			cmd    domain.RequestJoinCommand
			want   error
		}{
			{"missing activity", domain.UserCaller(e.user()), domain.RequestJoinCommand{ActivityID: uuid.New()}, domain.ErrActivityNotFound},
			{"deleted activity", domain.UserCaller(e.user()), domain.RequestJoinCommand{ActivityID: deleted.ID}, domain.ErrActivityNotFound},
			{"host", domain.UserCaller(e.host.ID), domain.RequestJoinCommand{ActivityID: open.ID}, domain.ErrHostCannotJoin},
			{"full", domain.UserCaller(e.user()), domain.RequestJoinCommand{ActivityID: full.ID}, domain.ErrActivityFull},
			{"already member", domain.UserCaller(member), domain.RequestJoinCommand{ActivityID: open.ID}, domain.ErrAlreadyMember},
			{"no user", domain.InternalCaller(), domain.RequestJoinCommand{ActivityID: open.ID}, domain.ErrUnauthenticated},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := e.svc.RequestJoin(e.ctx, tc.caller, tc.cmd)
				assert.ErrorIs(t, err, tc.want)
			})
		}

		_, err := e.svc.RequestJoin(e.ctx, domain.UserCaller(e.user()), domain.RequestJoinCommand{
			ActivityID: open.ID, Answers: []string{"a", "b", "c"},
		})
		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

		long := make([]rune, maxMessageLength+1)
		for i := range long {
			long[i] = 'x'
		}
		_, err = e.svc.RequestJoin(e.ctx, domain.UserCaller(e.user()), domain.RequestJoinCommand{
			ActivityID: open.ID, Message: ptr(string(long)),
		})
		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

		assert.Empty(t, e.gw.JoinRequestsFor(open.ID))
		assert.Empty(t, e.pub.Intents())
	})
}

func TestRequestJoin_ExpiredActivityIsCompletedLazily(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.seed(func(a *domain.Activity) { a.StartsAt = now.Add(-time.Minute) })

		_, err := e.svc.RequestJoin(e.ctx, domain.UserCaller(e.user()), domain.RequestJoinCommand{ActivityID: a.ID})
		assert.ErrorIs(t, err, domain.ErrActivityEnded)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, domain.StatusCompleted, stored.Status)
		assert.Empty(t, e.gw.JoinRequestsFor(a.ID))
		assert.Equal(t, []uuid.UUID{a.ID}, e.pub.Reindexed())
	})
}

func TestRequestJoin_AnswerFailureIsBestEffort(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(5)
		e.gw.Fail("join_requests.SaveAnswers", assert.AnError)

		res, err := e.svc.RequestJoin(e.ctx, domain.UserCaller(e.user()), domain.RequestJoinCommand{
			ActivityID: a.ID, Answers: []string{"yes"},
		})
		require.NoError(t, err)
		assert.Empty(t, res.JoinRequest.Answers)
		assert.Len(t, e.gw.JoinRequestsFor(a.ID), 1)
	})
}

func TestApprove_ByIDAndByPair(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(2)
		r1, r2 := e.user(), e.user()
		jr1 := e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: r1})
		e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: r2})
		host := domain.UserCaller(e.host.ID)

		res, err := e.svc.Approve(e.ctx, host, domain.ResolveJoinCommand{JoinRequestID: &jr1.ID})
		require.NoError(t, err)
		assert.Equal(t, domain.JoinApproved, res.JoinRequest.Status)
		assert.Equal(t, 1, res.Activity.MemberCount)
		assert.Equal(t, domain.StatusOpen, res.Activity.Status)

		res, err = e.svc.Approve(e.ctx, host, domain.ResolveJoinCommand{ActivityID: &a.ID, RequesterID: &r2})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFull, res.Activity.Status)

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, 2, stored.MemberCount)
		assert.Equal(t, domain.StatusFull, stored.Status)
		assert.ElementsMatch(t, []uuid.UUID{e.host.ID, r1, r2}, e.gw.Participants(a.ID))

		approved := e.pub.OfType(domain.NotifJoinApproved)
		require.Len(t, approved, 2)
		assert.True(t, approved[0].Email)
		assert.Equal(t, &e.host.ID, approved[0].ActorID)
		audit := e.pub.AuditEntries()
		require.Len(t, audit, 2)
		assert.Equal(t, domain.AuditJoinApproved, audit[0].Action)
	})
}

func TestApprove_Rejections(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(1)
		requester := e.user()
		jr := e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: requester})
		rejected := e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: e.user(), Status: domain.JoinRejected})
		host := domain.UserCaller(e.host.ID)

		_, err := e.svc.Approve(e.ctx, domain.UserCaller(requester), domain.ResolveJoinCommand{JoinRequestID: &jr.ID})
		assert.ErrorIs(t, err, domain.ErrNotHost)

		_, err = e.svc.Approve(e.ctx, host, domain.ResolveJoinCommand{JoinRequestID: ptr(uuid.New())})
		assert.ErrorIs(t, err, domain.ErrJoinRequestNotFound)

		_, err = e.svc.Approve(e.ctx, host, domain.ResolveJoinCommand{JoinRequestID: &rejected.ID})
		assert.ErrorIs(t, err, domain.ErrJoinRequestNotFound, "resolved requests are not pending")

		_, err = e.svc.Approve(e.ctx, host, domain.ResolveJoinCommand{ActivityID: &a.ID})
		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

		assert.Equal(t, 0, e.gw.MemberCount(a.ID))
		assert.Empty(t, e.pub.Intents())
	})
}

func TestApprove_FullActivityConflicts(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.seed(func(a *domain.Activity) {
			a.MaxMembers, a.Status = 1, domain.StatusFull
		}, e.user())
		jr := e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: e.user()})

		_, err := e.svc.Approve(e.ctx, domain.UserCaller(e.host.ID), domain.ResolveJoinCommand{JoinRequestID: &jr.ID})
		assert.ErrorIs(t, err, domain.ErrActivityFull)

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, 1, stored.MemberCount)
		rows := e.gw.JoinRequestsFor(a.ID)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.JoinPending, rows[0].Status)
	})
}

func TestApprove_ExpiredActivityIsCompletedLazily(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.seed(func(a *domain.Activity) { a.StartsAt = now.Add(-time.Hour) })
		jr := e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: e.user()})

		_, err := e.svc.Approve(e.ctx, domain.UserCaller(e.host.ID), domain.ResolveJoinCommand{JoinRequestID: &jr.ID})
		assert.ErrorIs(t, err, domain.ErrActivityEnded)

		stored, _ := e.gw.Activity(a.ID)
		assert.Equal(t, domain.StatusCompleted, stored.Status)
		assert.Equal(t, 0, stored.MemberCount)
	})
}

func TestApprove_InternalCallerBypassesHostCheck(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(3)
		jr := e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: e.user()})

		_, err := e.svc.Approve(e.ctx, domain.InternalCaller(), domain.ResolveJoinCommand{JoinRequestID: &jr.ID})
		require.NoError(t, err)

		intents := e.pub.OfType(domain.NotifJoinApproved)
		require.Len(t, intents, 1)
		assert.Nil(t, intents[0].ActorID)
	})
}

func TestReject_ThenRequestAgain(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(3)
		requester := e.user()
		res, err := e.svc.RequestJoin(e.ctx, domain.UserCaller(requester), domain.RequestJoinCommand{ActivityID: a.ID})
		require.NoError(t, err)

		rejected, err := e.svc.Reject(e.ctx, domain.UserCaller(e.host.ID), domain.ResolveJoinCommand{JoinRequestID: &res.JoinRequest.ID})
		require.NoError(t, err)
		assert.Equal(t, domain.JoinRejected, rejected.Status)
		assert.NotNil(t, rejected.RespondedAt)
		assert.Equal(t, 0, e.gw.MemberCount(a.ID))
		assert.Len(t, e.pub.OfType(domain.NotifJoinRejected), 1)

		_, err = e.svc.Reject(e.ctx, domain.UserCaller(e.host.ID), domain.ResolveJoinCommand{JoinRequestID: &res.JoinRequest.ID})
		assert.ErrorIs(t, err, domain.ErrJoinRequestNotFound)

		again, err := e.svc.RequestJoin(e.ctx, domain.UserCaller(requester), domain.RequestJoinCommand{ActivityID: a.ID})
		require.NoError(t, err)
		assert.False(t, again.DuplicatePending)
		assert.NotEqual(t, res.JoinRequest.ID, again.JoinRequest.ID)
		assert.Len(t, e.gw.JoinRequestsFor(a.ID), 2)
	})
}

func TestReject_NotHost(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(3)
		jr := e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: e.user()})

		_, err := e.svc.Reject(e.ctx, domain.UserCaller(e.user()), domain.ResolveJoinCommand{JoinRequestID: &jr.ID})
		assert.ErrorIs(t, err, domain.ErrNotHost)
	})
}

func TestListForActivity(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *env) {
		a := e.activity(5)
		_, err := e.svc.RequestJoin(e.ctx, domain.UserCaller(e.user()), domain.RequestJoinCommand{ActivityID: a.ID, Answers: []string{"lots"}})
		require.NoError(t, err)
		e.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: e.user(), Status: domain.JoinRejected})

		pending := domain.JoinPending
		page, err := e.svc.ListForActivity(e.ctx, domain.UserCaller(e.host.ID), a.ID, &pending, domain.PaginationParams{})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Len(t, page.Data[0].Answers, 1)

		all, err := e.svc.ListForActivity(e.ctx, domain.UserCaller(e.host.ID), a.ID, nil, domain.PaginationParams{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, all.TotalItems)

		_, err = e.svc.ListForActivity(e.ctx, domain.UserCaller(e.user()), a.ID, nil, domain.PaginationParams{})
		assert.ErrorIs(t, err, domain.ErrNotHost)

		bogus := domain.JoinRequestStatus("maybe")
		_, err = e.svc.ListForActivity(e.ctx, domain.UserCaller(e.host.ID), a.ID, &bogus, domain.PaginationParams{})
		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
	})
}

func TestPairAnswers(t *testing.T) {
	got, err := pairAnswers([]string{"q1", "q2", "q3"}, []string{"", " a2 ", "a3"})
	require.NoError(t, err)
	assert.Equal(t, []domain.JoinAnswer{
		{Position: 1, Question: "q2", Answer: "a2"},
		{Position: 2, Question: "q3", Answer: "a3"},
	}, got)

	_, err = pairAnswers(nil, []string{"x"})
	assert.Error(t, err)
}
