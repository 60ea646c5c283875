package http

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const (
	invalidAccessCodeMessage = "Invalid access code"
	accessCodeField          = "access_code"
)

type AccessHandler struct {
	access    ports.AccessService
	questions ports.QuestionService
	render    *Renderer
	audit     log.FieldLogger
}

func NewAccessHandler(access ports.AccessService, questions ports.QuestionService, render *Renderer, audit log.FieldLogger) *AccessHandler {
	return &AccessHandler{
		access:    access,
		questions: questions,
		render:    render,
		audit:     audit,
	}
}

func (h *AccessHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	q, ok := h.gated(w, r)
	if !ok {
		return
	}

	p, err := newFormPage(r, q.Text)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "access.html", questionPage{
		page:     p,
		Question: q,
	})
}

func (h *AccessHandler) Submit(w http.ResponseWriter, r *http.Request) {
	q, ok := h.gated(w, r)
	if !ok {
		return
	}

	fields := log.Fields{
		"category":    "access",
		"question_id": q.ID,
		"remote_addr": r.RemoteAddr,
	}

	err := h.access.Unlock(r.Context(), SessionFromContext(r.Context()), q.ID, r.PostFormValue(accessCodeField))
	if err != nil {
		if errors.Is(err, domain.ErrAccessDenied) {
			h.audit.WithFields(fields).Warn("invalid access code")
			h.render.Render(w, r, http.StatusForbidden, "access.html", questionPage{
				page:         newPage(r, q.Text),
				Question:     q,
				ErrorMessage: invalidAccessCodeMessage,
			})
			return
		}
		h.render.QuestionError(w, r, err)
		return
	}

	h.audit.WithFields(fields).Info("access granted")
	http.Redirect(w, r, questionPath(q.ID, ""), http.StatusSeeOther)
}

// gated loads the question and skips the prompt when there is nothing left
// to unlock.
func (h *AccessHandler) gated(w http.ResponseWriter, r *http.Request) (*domain.Question, bool) {
	id, err := questionID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return nil, false
	}

	q, err := h.questions.GetPublished(r.Context(), id)
	if err != nil {
		h.render.QuestionError(w, r, err)
		return nil, false
	}

	if canView(r, q) {
		http.Redirect(w, r, questionPath(q.ID, ""), http.StatusSeeOther)
		return nil, false
	}
	return q, true
}
