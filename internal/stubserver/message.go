package stubserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/fanpulse/pulse/internal/model"
)

// ConversationID derives the stable id for a pair of users, independent of
// who messaged first.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}

	return a + ":" + b
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	data := &messageRequest{}
	if err := render.Bind(r, data); err != nil {
		s.renderErr(w, r, ErrInvalidRequest(err))

		return
	}

	msg := data.Message
	// The sender is whoever holds the token; the posted senderId is not
	// trusted.
	msg.SenderID, _ = r.Context().Value(ctxKeyUserID).(string)

	s.mu.Lock()
	msg.ID = s.nextID()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	render.Status(r, http.StatusCreated)
	s.renderErr(w, r, &dataResponse{Data: msg})
}

// peerMessages lists the conversation between the caller and a peer, in
// arrival order.
func (s *Server) peerMessages(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peerID")
	currentUserID := r.URL.Query().Get("currentUserId")
	if currentUserID == "" {
		currentUserID, _ = r.Context().Value(ctxKeyUserID).(string)
	}

	s.renderErr(w, r, &messagesResponse{Messages: s.conversation(ConversationID(peerID, currentUserID))})
}

func (s *Server) conversationMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if !strings.Contains(conversationID, ":") {
		s.renderErr(w, r, ErrNotFound)

		return
	}

	s.renderErr(w, r, &messagesResponse{Messages: s.conversation(conversationID)})
}

func (s *Server) conversation(conversationID string) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := []*model.Message{}
	for _, m := range s.messages {
		if ConversationID(m.SenderID, m.ReceiverID) == conversationID {
			msgs = append(msgs, m)
		}
	}

	return msgs
}
