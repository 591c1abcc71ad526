package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/privchat/chat-server-go/internal/middleware"
	"github.com/privchat/chat-server-go/internal/model"
	"github.com/privchat/chat-server-go/internal/service"
)

// Mock message repository
type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Append(ctx context.Context, msg model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageRepo) List(ctx context.Context, roomID string) ([]model.Message, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) RefreshTTL(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func newMessagesRouter(roomRepo *mockRoomRepo, msgRepo *mockMessageRepo, relay *mockPublisher) *chi.Mux {
	roomService := service.NewRoomService(roomRepo, relay, 10*time.Minute)
	messageService := service.NewMessageService(roomRepo, msgRepo, relay)
	h := NewMessagesHandler(messageService)
	membership := middleware.NewMembershipMiddleware(roomService)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(membership.Handler)
		r.Post("/messages", h.Post)
		r.Get("/messages", h.List)
	})
	return r
}

func memberRoom() *model.Room {
	return &model.Room{ID: "room1", Connected: []string{"tokA", "tokB"}}
}

func postMessage(router *chi.Mux, token string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/messages?roomId=room1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionTokenCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMessagesHandler_Post(t *testing.T) {
	t.Run("appends and returns the stored message", func(t *testing.T) {
		roomRepo := new(mockRoomRepo)
		msgRepo := new(mockMessageRepo)
		relay := new(mockPublisher)

		roomRepo.On("Find", mock.Anything, "room1").Return(memberRoom(), nil)
		msgRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
		relay.On("PublishMessage", mock.Anything, "room1").Return(nil)
		msgRepo.On("RefreshTTL", mock.Anything, "room1").Return(int64(500), nil)

		router := newMessagesRouter(roomRepo, msgRepo, relay)
		rec := postMessage(router, "tokA", map[string]string{
			"sender": "alice",
			"text":   "aabbcc:ddeeff",
		})

		assert.Equal(t, http.StatusCreated, rec.Code)

		var msg model.Message
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "room1", msg.RoomID)
	})

	t.Run("oversized text is rejected with validation error", func(t *testing.T) {
		roomRepo := new(mockRoomRepo)
		msgRepo := new(mockMessageRepo)

		roomRepo.On("Find", mock.Anything, "room1").Return(memberRoom(), nil)

		router := newMessagesRouter(roomRepo, msgRepo, new(mockPublisher))
		rec := postMessage(router, "tokA", map[string]string{
			"sender": "alice",
			"text":   strings.Repeat("x", 5001),
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		msgRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		roomRepo := new(mockRoomRepo)
		roomRepo.On("Find", mock.Anything, "room1").Return(memberRoom(), nil)

		router := newMessagesRouter(roomRepo, new(mockMessageRepo), new(mockPublisher))

		req := httptest.NewRequest(http.MethodPost, "/messages?roomId=room1", strings.NewReader("{not json"))
		req.AddCookie(&http.Cookie{Name: middleware.SessionTokenCookie, Value: "tokA"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing room is not found", func(t *testing.T) {
		roomRepo := new(mockRoomRepo)
		roomRepo.On("Find", mock.Anything, "room1").Return(nil, nil)

		router := newMessagesRouter(roomRepo, new(mockMessageRepo), new(mockPublisher))
		rec := postMessage(router, "tokA", map[string]string{"sender": "alice", "text": "blob"})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-member cannot post", func(t *testing.T) {
		roomRepo := new(mockRoomRepo)
		roomRepo.On("Find", mock.Anything, "room1").Return(memberRoom(), nil)

		router := newMessagesRouter(roomRepo, new(mockMessageRepo), new(mockPublisher))
		rec := postMessage(router, "intruder", map[string]string{"sender": "eve", "text": "blob"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMessagesHandler_List(t *testing.T) {
	t.Run("returns log with caller-only tokens", func(t *testing.T) {
		roomRepo := new(mockRoomRepo)
		msgRepo := new(mockMessageRepo)

		roomRepo.On("Find", mock.Anything, "room1").Return(memberRoom(), nil)
		msgRepo.On("List", mock.Anything, "room1").Return([]model.Message{
			{ID: "m1", Sender: "alice", Text: "blob1", RoomID: "room1", AuthorToken: "tokA"},
			{ID: "m2", Sender: "bob", Text: "blob2", RoomID: "room1", AuthorToken: "tokB"},
		}, nil)

		router := newMessagesRouter(roomRepo, msgRepo, new(mockPublisher))

		req := httptest.NewRequest(http.MethodGet, "/messages?roomId=room1", nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionTokenCookie, Value: "tokA"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Messages []model.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "tokA", body.Messages[0].AuthorToken)
		assert.Empty(t, body.Messages[1].AuthorToken)
	})

	t.Run("missing roomId is rejected before any lookup", func(t *testing.T) {
		roomRepo := new(mockRoomRepo)

		router := newMessagesRouter(roomRepo, new(mockMessageRepo), new(mockPublisher))

		req := httptest.NewRequest(http.MethodGet, "/messages", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		roomRepo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
	})
}
