package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/privchat/chat-server-go/internal/errors"
	"github.com/privchat/chat-server-go/internal/model"
	"github.com/privchat/chat-server-go/internal/repository"
	"github.com/privchat/chat-server-go/internal/util"
)

// Publisher is the relay-side dependency of the services: a cheap signal
// channel, not a durable queue.
type Publisher interface {
	PublishMessage(ctx context.Context, roomID string) error
	PublishDestroy(ctx context.Context, roomID string) error
}

// AdmitResult is what the admission gateway hands back to the transport
// layer: the token to set as the caller's credential and whether it is
// newly minted or a re-entry.
type AdmitResult struct {
	Token   string
	ReEntry bool
}

type RoomService struct {
	roomRepo repository.RoomRepository
	relay    Publisher
	roomTTL  time.Duration
}

func NewRoomService(roomRepo repository.RoomRepository, relay Publisher, roomTTL time.Duration) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		relay:    relay,
		roomTTL:  roomTTL,
	}
}

// Create mints a fresh room with an empty member set and the fixed expiry
// window. The room accumulates no other state until someone is admitted.
func (s *RoomService) Create(ctx context.Context) (string, error) {
	roomID, err := util.GenerateRoomID()
	if err != nil {
		return "", apperrors.Internal("failed to generate room id").WithCause(err)
	}

	if err := s.roomRepo.Create(ctx, roomID, s.roomTTL); err != nil {
		return "", apperrors.Store(err)
	}

	log.Info().
		Str("roomId", roomID).
		Dur("ttl", s.roomTTL).
		Msg("room created")

	return roomID, nil
}

// Admit runs the capacity-checked join protocol. A presented token that is
// already a member re-enters without mutation (page reload); otherwise a
// fresh token is minted and appended if a slot is free. Slots are never
// released: only destruction or expiry resets capacity.
func (s *RoomService) Admit(ctx context.Context, roomID, presentedToken string) (*AdmitResult, error) {
	candidate, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("failed to generate session token").WithCause(err)
	}

	outcome, err := s.roomRepo.Admit(ctx, roomID, candidate, presentedToken)
	if err != nil {
		return nil, apperrors.Store(err)
	}

	switch outcome {
	case model.AdmitNew:
		log.Info().Str("roomId", roomID).Msg("participant admitted")
		return &AdmitResult{Token: candidate}, nil
	case model.AdmitMember:
		return &AdmitResult{Token: presentedToken, ReEntry: true}, nil
	case model.AdmitFull:
		return nil, apperrors.RoomFull()
	case model.AdmitNotFound:
		return nil, apperrors.RoomNotFound()
	default:
		return nil, apperrors.Internal(fmt.Sprintf("unexpected admission outcome %q", outcome))
	}
}

// TTL returns the room's remaining seconds, zero when absent or expired.
func (s *RoomService) TTL(ctx context.Context, roomID string) (int64, error) {
	ttl, err := s.roomRepo.TTL(ctx, roomID)
	if err != nil {
		return 0, apperrors.Store(err)
	}
	return ttl, nil
}

// Destroy broadcasts chat.destroy and then deletes the room's metadata,
// message log and stream key. Broadcast comes first so connected
// participants get a live signal instead of waiting out a silent expiry.
// Destroying an already-gone room is a no-op.
func (s *RoomService) Destroy(ctx context.Context, roomID string) error {
	if err := s.relay.PublishDestroy(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("destroy broadcast failed")
	}

	if err := s.roomRepo.Delete(ctx, roomID); err != nil {
		return apperrors.Store(err)
	}

	log.Info().Str("roomId", roomID).Msg("room destroyed")
	return nil
}

// Find loads room metadata, nil when absent.
func (s *RoomService) Find(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := s.roomRepo.Find(ctx, roomID)
	if err != nil {
		return nil, apperrors.Store(err)
	}
	return room, nil
}
