package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/privchat/chat-server-go/internal/errors"
	"github.com/privchat/chat-server-go/internal/middleware"
	"github.com/privchat/chat-server-go/internal/service"
)

type RoomsHandler struct {
	rooms        *service.RoomService
	cookieSecure bool
}

func NewRoomsHandler(rooms *service.RoomService, cookieSecure bool) *RoomsHandler {
	return &RoomsHandler{
		rooms:        rooms,
		cookieSecure: cookieSecure,
	}
}

// Create mints a new empty room.
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.rooms.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

// Join is the admission gateway for navigation to a room. Success sets the
// session-token cookie and proceeds; rejection redirects to the landing
// page with a typed error code.
func (h *RoomsHandler) Join(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	presented := middleware.SessionToken(r)

	result, err := h.rooms.Admit(r.Context(), roomID, presented)
	if err != nil {
		switch apperrors.GetCode(err) {
		case apperrors.ErrCodeRoomNotFound:
			h.redirectWithError(w, r, apperrors.RedirectRoomNotFound)
		case apperrors.ErrCodeRoomFull:
			h.redirectWithError(w, r, apperrors.RedirectRoomFull)
		default:
			writeError(w, err)
		}
		return
	}

	if !result.ReEntry {
		middleware.SetSessionCookie(w, result.Token, h.cookieSecure)
	}

	ttl, err := h.rooms.TTL(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roomId": roomID,
		"ttl":    ttl,
	})
}

// TTL reports the room's remaining seconds.
func (h *RoomsHandler) TTL(w http.ResponseWriter, r *http.Request) {
	room := middleware.GetRoom(r.Context())

	ttl, err := h.rooms.TTL(r.Context(), room.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"ttl": ttl})
}

// Destroy tears the room down immediately.
func (h *RoomsHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	room := middleware.GetRoom(r.Context())

	if err := h.rooms.Destroy(r.Context(), room.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomsHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code apperrors.RedirectCode) {
	log.Info().
		Str("path", r.URL.Path).
		Str("code", string(code)).
		Msg("admission rejected")
	http.Redirect(w, r, fmt.Sprintf("/?error=%s", code), http.StatusFound)
}
