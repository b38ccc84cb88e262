package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-hub/internal/config"
	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/middleware"
	"activity-hub/internal/ratelimit"
	"activity-hub/internal/repository/repotest"
	"activity-hub/internal/service/activity"
	"activity-hub/internal/service/audit"
	"activity-hub/internal/service/auth"
	"activity-hub/internal/service/joinrequest"
	"activity-hub/internal/service/media"
	"activity-hub/internal/service/membership"
	"activity-hub/internal/service/notification"
	"activity-hub/internal/service/notification/notificationtest"
	"activity-hub/internal/service/search"
	"activity-hub/internal/store"
)

const internalSecret = "internal-test-secret"

type testServer struct {
	app  *fiber.App
	gw   *repotest.Memory
	pub  *notificationtest.Recorder
	auth auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := repotest.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	st, err := store.New(store.ModeTransactional, gw, m, logger)
	require.NoError(t, err)
	pub := &notificationtest.Recorder{}
	repos := gw.Privileged()
	cfg := &config.Config{MinIOBucket: "activity-hub", MinIOPublicEndpoint: "cdn.example.com"}

	services := &Services{
		Activity: activity.NewService(st, gw, search.NewService(nil, repos, logger),
			media.NewService(nil, cfg), pub, m, logger, 300),
		JoinRequest:  joinrequest.NewService(st, repos, pub, m, logger),
		Membership:   membership.NewService(st, gw, pub, m, logger),
		Notification: notification.NewService(gw),
		Audit:        audit.NewService(repos),
	}
	authSvc := auth.NewService(repos.Users, "jwt-test-secret")

	app := fiber.New(fiber.Config{ErrorHandler: middleware.NewErrorHandler(logger)})
	SetupRoutes(app, NewHandlers(services), RouteDeps{
		Auth:           authSvc,
		Limiter:        ratelimit.NewRedisLimiter(nil, 0, 0, logger),
		Metrics:        m,
		InternalSecret: internalSecret,
	})
	return &testServer{app: app, gw: gw, pub: pub, auth: authSvc}
}

func (s *testServer) user(t *testing.T) (domain.User, string) {
	t.Helper()
	u := s.gw.SeedUser(domain.User{FullName: "Test User"})
	token, err := s.auth.IssueAccessToken(&u, time.Hour)
	require.NoError(t, err)
	return u, token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *testServer) seedActivity(host uuid.UUID, max int, members ...uuid.UUID) domain.Activity {
	return s.gw.SeedActivity(domain.Activity{
		HostID:       host,
		Title:        "Climbing session",
		Kind:         domain.KindGroup,
		Status:       domain.StatusOpen,
		StartsAt:     time.Now().Add(48 * time.Hour),
		LocationName: "Boulder hall",
		CostRule:     domain.CostSplit,
		MaxMembers:   max,
	}, members...)
}

func TestRoutes_RequireAuth(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, http.MethodGet, "/api/v1/activities", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestCreateActivity(t *testing.T) {
	s := newTestServer(t)
	s.gw.SeedTag("climbing")
	_, token := s.user(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/activities", token, map[string]interface{}{
		"title":         "Evening bouldering",
		"kind":          "group",
		"starts_at":     time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"location_name": "Boulder hall",
		"latitude":      52.5,
		"longitude":     13.4,
		"max_members":   4,
		"tags":          []string{"climbing"},
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	assert.True(t, env.Success)

	var view domain.ActivityView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "Evening bouldering", view.Title)
	assert.True(t, view.IsHost)
	assert.Len(t, view.Tags, 1)
}

func TestGetActivity_InvalidID(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/activities/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ID", env.Code)
}

func TestSearchRouteIsNotAnID(t *testing.T) {
	s := newTestServer(t)
	host, token := s.user(t)
	s.seedActivity(host.ID, 4)

	status, env := s.do(t, http.MethodGet, "/api/v1/activities/search?q=climb", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	var page domain.PaginatedResponse[domain.ActivityView]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Data, 1)
}

func TestJoinAndApproveWithAliasedBody(t *testing.T) {
	s := newTestServer(t)
	host, hostToken := s.user(t)
	guest, guestToken := s.user(t)
	a := s.seedActivity(host.ID, 4)

	status, env := s.do(t, http.MethodPost, "/api/v1/activities/"+a.ID.String()+"/join", guestToken,
		map[string]interface{}{"message": "hi"})
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = s.do(t, http.MethodPost, "/api/v1/join-requests/approve", hostToken, map[string]string{
		"activityId": a.ID.String(),
		"userId":     guest.ID.String(),
	})
	require.Equal(t, http.StatusOK, status, env.Error)

	_, ok := s.gw.Membership(a.ID, guest.ID)
	assert.True(t, ok)
	stored, _ := s.gw.Activity(a.ID)
	assert.Equal(t, 1, stored.MemberCount)
}

func TestResolveBody_Aliases(t *testing.T) {
	jr, act, usr := uuid.New(), uuid.New(), uuid.New()
	tests := []struct {
		name string
		body resolveBody
		want domain.ResolveJoinCommand
	}{
		{"snake id", resolveBody{JoinRequestID: jr.String()}, domain.ResolveJoinCommand{JoinRequestID: &jr}},
		{"camel id", resolveBody{JoinRequestIDCamel: jr.String()}, domain.ResolveJoinCommand{JoinRequestID: &jr}},
		{"request_id", resolveBody{RequestID: jr.String()}, domain.ResolveJoinCommand{JoinRequestID: &jr}},
		{"requestId", resolveBody{RequestIDCamel: jr.String()}, domain.ResolveJoinCommand{JoinRequestID: &jr}},
		{"bare id", resolveBody{ID: jr.String()}, domain.ResolveJoinCommand{JoinRequestID: &jr}},
		{"pair snake", resolveBody{ActivityID: act.String(), RequesterID: usr.String()},
			domain.ResolveJoinCommand{ActivityID: &act, RequesterID: &usr}},
		{"pair camel user", resolveBody{ActivityIDCamel: act.String(), UserIDCamel: usr.String()},
			domain.ResolveJoinCommand{ActivityID: &act, RequesterID: &usr}},
		{"pair user_id", resolveBody{ActivityID: act.String(), UserID: usr.String()},
			domain.ResolveJoinCommand{ActivityID: &act, RequesterID: &usr}},
		{"pair requesterId", resolveBody{ActivityID: act.String(), RequesterIDCamel: usr.String()},
			domain.ResolveJoinCommand{ActivityID: &act, RequesterID: &usr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.body.normalize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resolveBody{ActivityID: act.String()}.normalize()
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

	_, err = resolveBody{RequestID: "nope"}.normalize()
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_ID", appErr.ResponseCode())
}

func TestRejectByPath_ResolvedIsNotFound(t *testing.T) {
	s := newTestServer(t)
	host, hostToken := s.user(t)
	guest, _ := s.user(t)
	a := s.seedActivity(host.ID, 4)
	jr := s.gw.SeedJoinRequest(domain.JoinRequest{ActivityID: a.ID, RequesterID: guest.ID})

	path := "/api/v1/join-requests/" + jr.ID.String() + "/reject"
	status, env := s.do(t, http.MethodPost, path, hostToken, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.do(t, http.MethodPost, path, hostToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestRemoveHostIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	host, hostToken := s.user(t)
	a := s.seedActivity(host.ID, 4)

	status, env := s.do(t, http.MethodDelete, "/api/v1/activities/"+a.ID.String()+"/members/"+host.ID.String(), hostToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", env.Code)
}

func TestInternalAutoComplete(t *testing.T) {
	s := newTestServer(t)
	past := s.gw.SeedActivity(domain.Activity{
		HostID: uuid.New(), Title: "Done", Kind: domain.KindGroup, Status: domain.StatusOpen,
		StartsAt: time.Now().Add(-time.Hour), MaxMembers: 4,
	})

	status, _ := s.do(t, http.MethodPost, "/internal/activities/auto-complete", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := s.do(t, http.MethodPost, "/internal/activities/auto-complete", "", nil,
		middleware.InternalSecretHeader, internalSecret)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.JSONEq(t, `{"completed":1}`, string(env.Data))

	status, env = s.do(t, http.MethodPost, "/internal/activities/"+past.ID.String()+"/auto-complete", "", nil,
		middleware.InternalSecretHeader, internalSecret)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.JSONEq(t, `{"completed":false}`, string(env.Data))
}

func TestNotificationsEnvelope(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.JSONEq(t, `{"count":0}`, string(env.Data))
}
