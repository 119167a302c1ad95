package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"zenith/internal/ai"
	"zenith/internal/core"
	zlog "zenith/internal/log"
	"zenith/internal/metrics"
)

type suggestResponse struct {
	CategoryID string `json:"category_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Seq        uint64 `json:"seq"`
	Stale      bool   `json:"stale"`
}

// handleSuggest proposes a category for a description being typed. The
// form sends a per-session sequence number; an answer overtaken by a newer
// request comes back with stale=true and must be ignored by the page.
// Failures stay inside the widget and never block saving the form.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	p, err := readBodyFields(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := core.ParseTransactionType(p.Get("type"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	session := p.Get("session")
	if session == "" {
		session = sessionID(w, r)
	}
	seq := p.Uint("seq")

	if !s.sequencer.Begin(session, seq) {
		atomic.AddInt64(&s.appMetrics.staleSuggestions, 1)
		writeJSON(w, http.StatusOK, suggestResponse{Seq: seq, Stale: true})
		return
	}
	if s.suggester == nil {
		writeJSONError(w, http.StatusServiceUnavailable, ai.ErrUnavailable.Error())
		return
	}

	sug, err := s.suggester.Suggest(ctx, p.Get("description"), s.registry.All(), t)
	if !s.sequencer.Current(session, seq) {
		atomic.AddInt64(&s.appMetrics.staleSuggestions, 1)
		writeJSON(w, http.StatusOK, suggestResponse{Seq: seq, Stale: true})
		return
	}
	if err != nil {
		atomic.AddInt64(&s.appMetrics.suggestionErrors, 1)
		switch {
		case errors.Is(err, ai.ErrEmptyDescription):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ai.ErrUnavailable):
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.WarnContext(ctx, "Category suggestion failed", zlog.FieldError, err, zlog.FieldTransactionType, t)
			writeJSONError(w, http.StatusBadGateway, "no suggestion available right now")
		}
		return
	}

	atomic.AddInt64(&s.appMetrics.suggestions, 1)
	writeJSON(w, http.StatusOK, suggestResponse{CategoryID: sug.CategoryID, Name: sug.Name, Seq: seq})
}

type chatData struct {
	History []ai.Turn
	Error   string
	Enabled bool
}

// maxStoredTurns keeps a session's history a little longer than what is
// sent to the model, so the page can still show it.
const maxStoredTurns = 2 * ai.MaxHistory

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	session := sessionID(w, r)
	history, _ := s.chats.Get(session)
	data := chatData{History: history, Enabled: s.assistant != nil}

	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "chat_page", data)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	if r.FormValue("clear") == "yes" {
		s.chats.Delete(session)
		data.History = nil
		s.respondChat(w, r, http.StatusOK, data)
		return
	}

	question := sanitizeInput(r.FormValue("question"))
	atomic.AddInt64(&s.appMetrics.chatQuestions, 1)
	view := metrics.Dashboard(s.store.List(), s.registry.All(), s.now())
	answer, err := s.assistant.Ask(ctx, history, question, view)
	if err != nil {
		status := http.StatusBadGateway
		data.Error = "The assistant could not answer right now. Please try again."
		switch {
		case errors.Is(err, ai.ErrEmptyQuestion):
			status, data.Error = http.StatusUnprocessableEntity, "Type a question first."
		case errors.Is(err, ai.ErrUnavailable):
			status, data.Error = http.StatusServiceUnavailable, "The assistant is not configured."
		default:
			s.logger.WarnContext(ctx, "Chat request failed", zlog.FieldError, err)
		}
		s.respondChat(w, r, status, data)
		return
	}

	next := make([]ai.Turn, 0, len(history)+2)
	next = append(next, history...)
	next = append(next,
		ai.Turn{Role: ai.RoleUser, Text: question},
		ai.Turn{Role: ai.RoleModel, Text: answer})
	if len(next) > maxStoredTurns {
		next = next[len(next)-maxStoredTurns:]
	}
	s.chats.Set(session, next)
	data.History = next
	s.respondChat(w, r, http.StatusOK, data)
}

func (s *Server) respondChat(w http.ResponseWriter, r *http.Request, status int, data chatData) {
	if isHTMX(r) {
		s.render(w, r, status, "chat_messages", data)
		return
	}
	if status == http.StatusOK {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}
	s.render(w, r, status, "chat_page", data)
}
