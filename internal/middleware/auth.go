package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/rs/zerolog/log"

	apperrors "github.com/privchat/chat-server-go/internal/errors"
	"github.com/privchat/chat-server-go/internal/httputil"
	"github.com/privchat/chat-server-go/internal/model"
	"github.com/privchat/chat-server-go/internal/service"
)

const SessionTokenCookie = "x-auth-token"

type contextKey string

const (
	RoomContextKey  contextKey = "room"
	TokenContextKey contextKey = "token"
)

func GetRoom(ctx context.Context) *model.Room {
	if room, ok := ctx.Value(RoomContextKey).(*model.Room); ok {
		return room
	}
	return nil
}

func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(TokenContextKey).(string); ok {
		return token
	}
	return ""
}

// MembershipMiddleware guards every room-scoped operation: the room must
// still exist (it can vanish at any time) and the caller's cookie token
// must be in that room's connected set. A token from another room proves
// nothing here.
type MembershipMiddleware struct {
	rooms *service.RoomService
}

func NewMembershipMiddleware(rooms *service.RoomService) *MembershipMiddleware {
	return &MembershipMiddleware{rooms: rooms}
}

func (m *MembershipMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		if roomID == "" {
			httputil.WriteError(w, apperrors.MissingRequired("roomId"))
			return
		}

		room, err := m.rooms.Find(r.Context(), roomID)
		if err != nil {
			log.Error().Err(err).Str("roomId", roomID).Msg("membership check: store error")
			httputil.WriteError(w, err)
			return
		}
		if room == nil {
			httputil.WriteError(w, apperrors.RoomNotFound())
			return
		}

		token := SessionToken(r)
		if token == "" || !slices.Contains(room.Connected, token) {
			httputil.WriteError(w, apperrors.Unauthorized("Not a member of this room"))
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, RoomContextKey, room)
		ctx = context.WithValue(ctx, TokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionToken extracts the caller's session token, empty if absent.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie stores the admission credential on the caller.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
