package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/privchat/chat-server-go/internal/errors"
	"github.com/privchat/chat-server-go/internal/model"
)

// Mock room repository
type mockRoomRepo struct {
	mock.Mock
}

func (m *mockRoomRepo) Create(ctx context.Context, roomID string, ttl time.Duration) error {
	args := m.Called(ctx, roomID, ttl)
	return args.Error(0)
}

func (m *mockRoomRepo) Find(ctx context.Context, roomID string) (*model.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Room), args.Error(1)
}

func (m *mockRoomRepo) Admit(ctx context.Context, roomID, candidate, presented string) (model.AdmitOutcome, error) {
	args := m.Called(ctx, roomID, candidate, presented)
	return args.Get(0).(model.AdmitOutcome), args.Error(1)
}

func (m *mockRoomRepo) TTL(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRoomRepo) Delete(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

// Mock relay publisher
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMessage(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *mockPublisher) PublishDestroy(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func TestRoomService_Create(t *testing.T) {
	t.Run("creates room with configured ttl", func(t *testing.T) {
		repo := new(mockRoomRepo)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), 10*time.Minute).Return(nil)

		svc := NewRoomService(repo, new(mockPublisher), 10*time.Minute)
		roomID, err := svc.Create(context.Background())

		require.NoError(t, err)
		assert.NotEmpty(t, roomID)
		repo.AssertExpectations(t)
	})

	t.Run("store failure surfaces as store error", func(t *testing.T) {
		repo := new(mockRoomRepo)
		repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

		svc := NewRoomService(repo, new(mockPublisher), 10*time.Minute)
		_, err := svc.Create(context.Background())

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeStore, apperrors.GetCode(err))
	})
}

func TestRoomService_Admit(t *testing.T) {
	t.Run("fresh admission mints new token", func(t *testing.T) {
		repo := new(mockRoomRepo)
		repo.On("Admit", mock.Anything, "room1", mock.AnythingOfType("string"), "").
			Return(model.AdmitNew, nil)

		svc := NewRoomService(repo, new(mockPublisher), 10*time.Minute)
		result, err := svc.Admit(context.Background(), "room1", "")

		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.False(t, result.ReEntry)
	})

	t.Run("existing member re-enters with same token", func(t *testing.T) {
		repo := new(mockRoomRepo)
		repo.On("Admit", mock.Anything, "room1", mock.AnythingOfType("string"), "tokA").
			Return(model.AdmitMember, nil)

		svc := NewRoomService(repo, new(mockPublisher), 10*time.Minute)
		result, err := svc.Admit(context.Background(), "room1", "tokA")

		require.NoError(t, err)
		assert.Equal(t, "tokA", result.Token)
		assert.True(t, result.ReEntry)
	})

	t.Run("full room is rejected", func(t *testing.T) {
		repo := new(mockRoomRepo)
		repo.On("Admit", mock.Anything, "room1", mock.Anything, mock.Anything).
			Return(model.AdmitFull, nil)

		svc := NewRoomService(repo, new(mockPublisher), 10*time.Minute)
		_, err := svc.Admit(context.Background(), "room1", "")

		assert.Equal(t, apperrors.ErrCodeRoomFull, apperrors.GetCode(err))
	})

	t.Run("missing room is rejected", func(t *testing.T) {
		repo := new(mockRoomRepo)
		repo.On("Admit", mock.Anything, "gone", mock.Anything, mock.Anything).
			Return(model.AdmitNotFound, nil)

		svc := NewRoomService(repo, new(mockPublisher), 10*time.Minute)
		_, err := svc.Admit(context.Background(), "gone", "")

		assert.Equal(t, apperrors.ErrCodeRoomNotFound, apperrors.GetCode(err))
	})
}

func TestRoomService_TTL(t *testing.T) {
	repo := new(mockRoomRepo)
	repo.On("TTL", mock.Anything, "room1").Return(int64(42), nil)

	svc := NewRoomService(repo, new(mockPublisher), 10*time.Minute)
	ttl, err := svc.TTL(context.Background(), "room1")

	require.NoError(t, err)
	assert.Equal(t, int64(42), ttl)
}

func TestRoomService_Destroy(t *testing.T) {
	t.Run("broadcasts then deletes", func(t *testing.T) {
		repo := new(mockRoomRepo)
		relay := new(mockPublisher)

		var order []string
		relay.On("PublishDestroy", mock.Anything, "room1").
			Run(func(mock.Arguments) { order = append(order, "broadcast") }).Return(nil)
		repo.On("Delete", mock.Anything, "room1").
			Run(func(mock.Arguments) { order = append(order, "delete") }).Return(nil)

		svc := NewRoomService(repo, relay, 10*time.Minute)
		require.NoError(t, svc.Destroy(context.Background(), "room1"))

		assert.Equal(t, []string{"broadcast", "delete"}, order)
	})

	t.Run("delete proceeds even if broadcast fails", func(t *testing.T) {
		repo := new(mockRoomRepo)
		relay := new(mockPublisher)
		relay.On("PublishDestroy", mock.Anything, "room1").Return(assert.AnError)
		repo.On("Delete", mock.Anything, "room1").Return(nil)

		svc := NewRoomService(repo, relay, 10*time.Minute)
		assert.NoError(t, svc.Destroy(context.Background(), "room1"))
		repo.AssertExpectations(t)
	})
}
