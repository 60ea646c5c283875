package http

import (
	"errors"
	"net/http"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const noChoiceMessage = "You didn't select a choice."

type VoteHandler struct {
	votes     ports.VoteService
	questions ports.QuestionService
	render    *Renderer
}

func NewVoteHandler(votes ports.VoteService, questions ports.QuestionService, render *Renderer) *VoteHandler {
	return &VoteHandler{
		votes:     votes,
		questions: questions,
		render:    render,
	}
}

func (h *VoteHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return
	}

	q, err := h.questions.GetPublished(r.Context(), id)
	if err != nil {
		h.render.QuestionError(w, r, err)
		return
	}
	if !canView(r, q) {
		http.Redirect(w, r, questionPath(id, "access/"), http.StatusSeeOther)
		return
	}

	// Only the choice field is read; anything else in the form is ignored.
	input := ports.VoteInput{
		QuestionID: id,
		ChoiceID:   r.PostFormValue("choice"),
	}

	if err := h.votes.Vote(r.Context(), input); err != nil {
		if errors.Is(err, domain.ErrNoChoiceSelected) || errors.Is(err, domain.ErrInvalidChoice) {
			h.render.Render(w, r, http.StatusUnprocessableEntity, "detail.html", questionPage{
				page:         newPage(r, q.Text),
				Question:     q,
				ErrorMessage: noChoiceMessage,
				CanDelete:    PrincipalFromContext(r.Context()).CanDelete(q),
			})
			return
		}
		h.render.QuestionError(w, r, err)
		return
	}

	http.Redirect(w, r, questionPath(id, "results/"), http.StatusSeeOther)
}
