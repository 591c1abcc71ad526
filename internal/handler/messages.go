package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/privchat/chat-server-go/internal/errors"
	"github.com/privchat/chat-server-go/internal/middleware"
	"github.com/privchat/chat-server-go/internal/service"
)

type MessagesHandler struct {
	messages *service.MessageService
}

func NewMessagesHandler(messages *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

type postMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Post appends one ciphertext message to the room's log.
func (h *MessagesHandler) Post(w http.ResponseWriter, r *http.Request) {
	room := middleware.GetRoom(r.Context())
	token := middleware.GetToken(r.Context())

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("malformed request body"))
		return
	}

	msg, err := h.messages.Append(r.Context(), room.ID, req.Sender, req.Text, token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// List returns the full log in insertion order, author tokens masked for
// everyone but their owner.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	room := middleware.GetRoom(r.Context())
	token := middleware.GetToken(r.Context())

	messages, err := h.messages.List(r.Context(), room.ID, token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
