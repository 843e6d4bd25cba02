package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/handlers"
	"veiled-verse/internal/models"
	"veiled-verse/internal/netmon"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/internal/session"
	"veiled-verse/internal/storystore"
	"veiled-verse/internal/wallet"
)

const testSecret = "test-secret"

type server struct {
	router   *gin.Engine
	docs     *docstore.Memory
	wallets  *wallet.Service
	monitor  *netmon.Monitor
	sessions *session.Registry
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	docs := docstore.NewMemory()
	wallets := wallet.NewService(docs, log)
	monitor := netmon.New(netmon.DefaultConfig(), log)
	sessions := session.NewRegistry(session.Config{
		Queue:      offline.Config{MaxRetries: 3},
		StoryStore: storystore.DefaultConfig(),
	}, docs, wallets, monitor, notify.NewLog(log), log)
	t.Cleanup(sessions.Close)

	router := gin.New()
	handlers.Routes{
		Auth:    handlers.NewAuthHandler(docs, sessions, testSecret, time.Hour, log),
		Stories: handlers.NewStoriesHandler(sessions, nil, log),
		Account: handlers.NewAccountHandler(sessions, wallets, log),
		Network: handlers.NewNetworkHandler(monitor, nil, log),
		Upload:  handlers.NewUploadHandler(nil, log),
	}.Register(router, testSecret)

	return &server{router: router, docs: docs, wallets: wallets, monitor: monitor, sessions: sessions}
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) signup(t *testing.T, email, role string) models.AuthResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/signup", "", models.SignupRequest{
		Email:    email,
		Password: "password123",
		Name:     "Test " + email,
		Role:     role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *server) seedStory(t *testing.T, st models.Story) {
	t.Helper()
	doc, err := docstore.Encode(st)
	require.NoError(t, err)
	delete(doc, "id")
	require.NoError(t, s.docs.Set(context.Background(), docstore.CollectionStories, st.ID, doc))
}

func (s *server) remote(t *testing.T, id string) models.Story {
	t.Helper()
	doc, err := s.docs.Get(context.Background(), docstore.CollectionStories, id)
	require.NoError(t, err)
	var st models.Story
	require.NoError(t, docstore.Decode(doc, &st))
	return st
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.NewPrincipal("admin-1", "Admin", []auth.Role{auth.RoleAdmin}), testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func story(id, authorID string, price float64) models.Story {
	return models.Story{
		ID:         id,
		Title:      "Story " + id,
		Genre:      "fantasy",
		Content:    "Once upon a time",
		IsPaid:     price > 0,
		Price:      price,
		AuthorID:   authorID,
		AuthorName: "Author",
		Status:     models.StatusApproved,
		LikedBy:    []string{},
		Ratings:    []models.Rating{},
		CreatedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

type storyResponse struct {
	Story struct {
		models.Story
		Locked  bool `json:"locked"`
		Pending bool `json:"pending"`
	} `json:"story"`
	PendingActions int `json:"pending_actions"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSignupAndLogin(t *testing.T) {
	s := newServer(t)

	resp := s.signup(t, "Writer@Example.com", "writer")
	assert.Equal(t, "writer@example.com", resp.Email)
	assert.ElementsMatch(t, []string{"reader", "writer"}, resp.Roles)
	assert.NotEmpty(t, resp.Token)

	w := s.do(t, http.MethodPost, "/signup", "", models.SignupRequest{
		Email: "writer@example.com", Password: "password123", Name: "Again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", models.LoginRequest{Email: "writer@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", models.LoginRequest{Email: "writer@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[models.AuthResponse](t, w)
	assert.Equal(t, resp.UserID, login.UserID)
}

func TestRequiresToken(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/stories", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/stories", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndLike(t *testing.T) {
	s := newServer(t)
	s.seedStory(t, story("s1", "author-1", 0))
	reader := s.signup(t, "reader@example.com", "")

	w := s.do(t, http.MethodGet, "/stories?genre=fantasy", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Count int `json:"count"`
	}](t, w)
	assert.Equal(t, 1, list.Count)

	w = s.do(t, http.MethodPost, "/stories/s1/like", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	liked := decode[storyResponse](t, w)
	assert.Equal(t, int64(1), liked.Story.Likes)

	assert.Equal(t, []string{reader.UserID}, s.remote(t, "s1").LikedBy)
}

func TestRateValidation(t *testing.T) {
	s := newServer(t)
	s.seedStory(t, story("s1", "author-1", 0))
	reader := s.signup(t, "reader@example.com", "")

	w := s.do(t, http.MethodPost, "/stories/s1/rate", reader.Token, models.RateRequest{Rating: 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.remote(t, "s1").Ratings)

	w = s.do(t, http.MethodPost, "/stories/s1/rate", reader.Token, models.RateRequest{Rating: 4})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4.0, s.remote(t, "s1").AverageRating)
}

func TestPaidStoryLockedUntilBought(t *testing.T) {
	s := newServer(t)
	writer := s.signup(t, "writer@example.com", "writer")
	s.seedStory(t, story("paid", writer.UserID, 100))
	reader := s.signup(t, "reader@example.com", "")

	w := s.do(t, http.MethodGet, "/stories/paid", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Content string `json:"content"`
		Locked  bool   `json:"locked"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Locked)
	assert.Empty(t, view.Content)

	w = s.do(t, http.MethodPost, "/stories/paid/buy", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/stories/paid", reader.Token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.False(t, view.Locked)
	assert.Equal(t, "Once upon a time", view.Content)

	w = s.do(t, http.MethodGet, "/me/wallet", writer.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	balance := decode[struct {
		Wallet models.Wallet `json:"wallet"`
	}](t, w)
	assert.Equal(t, int64(70), balance.Wallet.Balance)
	assert.Equal(t, int64(70), balance.Wallet.PaidReadEarnings)

	w = s.do(t, http.MethodPost, "/me/wallet/withdraw", writer.Token, models.WithdrawRequest{Amount: 100})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/me/wallet/withdraw", writer.Token, models.WithdrawRequest{Amount: 50})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/me/purchases", reader.Token, nil)
	purchases := decode[struct {
		Purchased []string `json:"purchased_stories"`
	}](t, w)
	assert.Equal(t, []string{"paid"}, purchases.Purchased)
}

func TestCreateAndModerate(t *testing.T) {
	s := newServer(t)
	writer := s.signup(t, "writer@example.com", "writer")
	reader := s.signup(t, "reader@example.com", "")

	input := models.StoryInput{Title: "Night Garden", Genre: "fantasy", Content: "..."}

	w := s.do(t, http.MethodPost, "/stories", reader.Token, input)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/stories", writer.Token, input)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[storyResponse](t, w)
	id := created.Story.ID
	assert.Equal(t, models.StatusPending, created.Story.Status)
	assert.False(t, created.Story.Pending)

	// pending stories are hidden from other readers
	w = s.do(t, http.MethodGet, "/stories/"+id, reader.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/stories/"+id+"/status", writer.Token, models.StatusRequest{Status: models.StatusApproved})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/stories/"+id+"/status", adminToken(t), models.StatusRequest{Status: models.StatusApproved})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusApproved, s.remote(t, id).Status)

	title := "Night Garden, revised"
	w = s.do(t, http.MethodPatch, "/stories/"+id, reader.Token, models.StoryUpdate{Title: &title})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPatch, "/stories/"+id, writer.Token, models.StoryUpdate{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, title, s.remote(t, id).Title)

	w = s.do(t, http.MethodDelete, "/stories/"+id, writer.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOfflineLikeIsQueuedAndSynced(t *testing.T) {
	s := newServer(t)
	s.seedStory(t, story("s1", "author-1", 0))
	reader := s.signup(t, "reader@example.com", "")
	admin := adminToken(t)

	w := s.do(t, http.MethodPut, "/network", reader.Token, models.NetworkEventRequest{Online: false})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/network", admin, models.NetworkEventRequest{Online: false, ConnectionType: "wifi"})
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.NetworkStatusResponse](t, w)
	assert.False(t, status.Online)
	assert.Equal(t, "wifi", status.ConnectionType)

	w = s.do(t, http.MethodPost, "/stories/s1/like", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	queued := decode[storyResponse](t, w)
	assert.Equal(t, int64(1), queued.Story.Likes)
	assert.Equal(t, 1, queued.PendingActions)
	assert.Empty(t, s.remote(t, "s1").LikedBy)

	w = s.do(t, http.MethodGet, "/me/pending", reader.Token, nil)
	pending := decode[struct {
		Pending []offline.Action `json:"pending"`
	}](t, w)
	require.Len(t, pending.Pending, 1)
	assert.Equal(t, offline.TypeLikeStory, pending.Pending[0].Type)

	w = s.do(t, http.MethodPut, "/network", admin, models.NetworkEventRequest{Online: true})
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		return len(s.remote(t, "s1").LikedBy) == 1
	}, 2*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodGet, "/me/notifications", reader.Token, nil)
	notes := decode[struct {
		Notifications []notify.Notification `json:"notifications"`
	}](t, w)
	require.NotEmpty(t, notes.Notifications)
}

func TestUploadWithoutStorage(t *testing.T) {
	s := newServer(t)
	reader := s.signup(t, "reader@example.com", "")

	w := s.do(t, http.MethodPost, "/upload/presigned", reader.Token, models.PresignedUploadRequest{
		ContentType: "image/png", FileName: "cover.png",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPendingUnknownAction(t *testing.T) {
	s := newServer(t)
	reader := s.signup(t, "reader@example.com", "")

	w := s.do(t, http.MethodPost, "/me/pending/nope/retry", reader.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/me/pending/nope", reader.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
