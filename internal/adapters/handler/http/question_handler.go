package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const questionIDParam = "questionID"

// questionID reads the id route parameter. The route pattern already limits
// it to digits; overflow and zero still fail here.
func questionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, questionIDParam), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidQuestionID
	}
	return id, nil
}

func questionPath(id int64, suffix string) string {
	return "/" + strconv.FormatInt(id, 10) + "/" + suffix
}

// canView reports whether the request's session may see a question's
// choices and tallies.
func canView(r *http.Request, q *domain.Question) bool {
	return !q.RequiresAccessCode() || SessionFromContext(r.Context()).HasAccess(q.ID)
}

type indexPage struct {
	page
	Questions []*domain.Question
}

type questionPage struct {
	page
	Question     *domain.Question
	ErrorMessage string
	CanDelete    bool
}

type searchPage struct {
	page
	Query    string
	Searched bool
	Results  []*domain.SearchResult
}

type QuestionHandler struct {
	service ports.QuestionService
	render  *Renderer
	audit   log.FieldLogger
}

func NewQuestionHandler(service ports.QuestionService, render *Renderer, audit log.FieldLogger) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		render:  render,
		audit:   audit,
	}
}

func (h *QuestionHandler) Index(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListRecent(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "index.html", indexPage{
		page:      newPage(r, "Latest polls"),
		Questions: questions,
	})
}

func (h *QuestionHandler) Detail(w http.ResponseWriter, r *http.Request) {
	q, ok := h.viewable(w, r)
	if !ok {
		return
	}

	p, err := newFormPage(r, q.Text)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "detail.html", questionPage{
		page:      p,
		Question:  q,
		CanDelete: PrincipalFromContext(r.Context()).CanDelete(q),
	})
}

func (h *QuestionHandler) Results(w http.ResponseWriter, r *http.Request) {
	q, ok := h.viewable(w, r)
	if !ok {
		return
	}

	h.render.Render(w, r, http.StatusOK, "results.html", questionPage{
		page:     newPage(r, q.Text),
		Question: q,
	})
}

// viewable loads a published question and sends gated ones the session has
// not unlocked to the access prompt.
func (h *QuestionHandler) viewable(w http.ResponseWriter, r *http.Request) (*domain.Question, bool) {
	id, err := questionID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return nil, false
	}

	q, err := h.service.GetPublished(r.Context(), id)
	if err != nil {
		h.render.QuestionError(w, r, err)
		return nil, false
	}

	if !canView(r, q) {
		http.Redirect(w, r, questionPath(q.ID, "access/"), http.StatusFound)
		return nil, false
	}
	return q, true
}

func (h *QuestionHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if looksLikeInjection(query) {
		h.audit.WithFields(log.Fields{
			"category":    "search",
			"remote_addr": r.RemoteAddr,
			"query":       truncate(query, 200),
		}).Warn("possible sql injection attempt in search query")
	}

	results, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "search.html", searchPage{
		page:     newPage(r, "Search"),
		Query:    query,
		Searched: strings.TrimSpace(query) != "",
		Results:  results,
	})
}

func (h *QuestionHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return
	}

	principal := PrincipalFromContext(r.Context())
	q, err := h.service.AuthorizeDelete(r.Context(), principal, id)
	if err != nil {
		h.deleteError(w, r, principal, id, err)
		return
	}

	p, err := newFormPage(r, "Delete poll")
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "delete_confirm.html", questionPage{
		page:     p,
		Question: q,
	})
}

func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		h.render.NotFound(w, r)
		return
	}

	principal := PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.deleteError(w, r, principal, id, err)
		return
	}

	h.audit.WithFields(log.Fields{
		"category":    "delete",
		"account":     principal.Username,
		"question_id": id,
		"remote_addr": r.RemoteAddr,
	}).Info("question deleted")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *QuestionHandler) deleteError(w http.ResponseWriter, r *http.Request, principal *domain.Account, id int64, err error) {
	if errors.Is(err, domain.ErrForbidden) {
		fields := log.Fields{
			"category":    "delete",
			"question_id": id,
			"remote_addr": r.RemoteAddr,
		}
		if principal != nil {
			fields["account"] = principal.Username
		}
		h.audit.WithFields(fields).Warn("unauthorized deletion attempt")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render.QuestionError(w, r, err)
}

var injectionMarkers = []string{"'", "\"", ";", "--", "/*", "*/", " or ", " and ", " union "}

// looksLikeInjection flags input carrying SQL meta-characters. It only
// drives logging; queries are always bound parameters.
func looksLikeInjection(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range injectionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// truncate keeps at most n runes of s, replacing invalid UTF-8 so log
// output stays well formed.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
