package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/privchat/chat-server-go/internal/config"
	apperrors "github.com/privchat/chat-server-go/internal/errors"
	"github.com/privchat/chat-server-go/internal/model"
	"github.com/privchat/chat-server-go/internal/repository"
)

type MessageService struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	relay       Publisher
}

func NewMessageService(
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	relay Publisher,
) *MessageService {
	return &MessageService{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		relay:       relay,
	}
}

// Append validates, stores and announces one message. Validation runs
// before any store mutation; the relay signal carries no content; and the
// log's and stream's expiry are re-aligned to the room's remaining TTL
// afterwards so neither can outlive the room.
func (s *MessageService) Append(ctx context.Context, roomID, sender, text, authorToken string) (*model.Message, error) {
	if err := validateMessage(sender, text); err != nil {
		return nil, err
	}

	room, err := s.roomRepo.Find(ctx, roomID)
	if err != nil {
		return nil, apperrors.Store(err)
	}
	if room == nil {
		return nil, apperrors.RoomNotFound()
	}

	msg := model.Message{
		ID:          uuid.NewString(),
		Sender:      sender,
		Text:        text,
		Timestamp:   time.Now().UnixMilli(),
		RoomID:      roomID,
		AuthorToken: authorToken,
	}

	if err := s.messageRepo.Append(ctx, msg); err != nil {
		return nil, apperrors.Store(err)
	}

	if err := s.relay.PublishMessage(ctx, roomID); err != nil {
		// Notify-then-pull tolerates a lost signal: the message is stored
		// and a later signal or manual refresh surfaces it.
		log.Warn().Err(err).Str("roomId", roomID).Msg("message signal failed")
	}

	remaining, err := s.messageRepo.RefreshTTL(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("ttl refresh failed")
	} else if remaining == 0 {
		log.Debug().Str("roomId", roomID).Msg("room expired during append, refresh skipped")
	}

	log.Info().
		Str("roomId", roomID).
		Str("messageId", msg.ID).
		Msg("message appended")

	return &msg, nil
}

// List returns the full log in insertion order. Author tokens survive only
// on the caller's own entries, which lets a client tell "mine" from "not
// mine" without ever learning the other participant's token.
func (s *MessageService) List(ctx context.Context, roomID, callerToken string) ([]model.Message, error) {
	room, err := s.roomRepo.Find(ctx, roomID)
	if err != nil {
		return nil, apperrors.Store(err)
	}
	if room == nil {
		return nil, apperrors.RoomNotFound()
	}

	messages, err := s.messageRepo.List(ctx, roomID)
	if err != nil {
		return nil, apperrors.Store(err)
	}

	for i := range messages {
		messages[i] = messages[i].ForReader(callerToken)
	}
	return messages, nil
}

// Length limits count characters, not bytes, so a multibyte display name
// or message is bounded the same as an ASCII one.
func validateMessage(sender, text string) error {
	if sender == "" {
		return apperrors.MissingRequired("sender")
	}
	if utf8.RuneCountInString(sender) > config.SenderMaxLength {
		return apperrors.ValidationError("sender exceeds maximum length")
	}
	if text == "" {
		return apperrors.MissingRequired("text")
	}
	if utf8.RuneCountInString(text) > config.MessageMaxLength {
		return apperrors.ValidationError("text exceeds maximum length")
	}
	return nil
}
