package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"index.html",
	"detail.html",
	"results.html",
	"search.html",
	"delete_confirm.html",
	"access.html",
	"login.html",
	"error.html",
}

var templateFuncs = template.FuncMap{
	"plural": func(n int64, singular, plural string) string {
		if n == 1 {
			return singular
		}
		return plural
	},
}

// page is the data every template can rely on.
type page struct {
	Title     string
	Now       time.Time
	CSRFToken string
	Principal *domain.Account
}

func newPage(r *http.Request, title string) page {
	p := page{Title: title, Now: time.Now()}
	if session := SessionFromContext(r.Context()); session != nil {
		p.CSRFToken = session.CSRFToken
	}
	p.Principal = PrincipalFromContext(r.Context())
	return p
}

// newFormPage is newPage for pages that post back, which need a session to
// carry the CSRF token.
func newFormPage(r *http.Request, title string) (page, error) {
	if _, err := EnsureSession(r); err != nil {
		return page{}, err
	}
	return newPage(r, title), nil
}

type errorPage struct {
	page
	Status  int
	Message string
}

type Renderer struct {
	pages  map[string]*template.Template
	logger log.FieldLogger
}

// NewRenderer parses the embedded templates. It panics on a malformed
// template.
func NewRenderer(logger log.FieldLogger) *Renderer {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pages[name] = template.Must(
			template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+name),
		)
	}
	return &Renderer{pages: pages, logger: logger}
}

func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.Error(w, r, errors.New("unknown template "+name))
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusNotFound, "error.html", errorPage{
		page:    newPage(r, "Not found"),
		Status:  http.StatusNotFound,
		Message: "The page you requested does not exist.",
	})
}

// Error logs err with the request id and answers with a plain 500.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	rd.logger.WithFields(log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
	}).WithError(err).Error("request failed")
	http.Error(w, domain.ErrInternal.Error(), http.StatusInternalServerError)
}

// QuestionError maps a question lookup failure to a response.
func (rd *Renderer) QuestionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrQuestionNotFound) || errors.Is(err, domain.ErrInvalidQuestionID) {
		rd.NotFound(w, r)
		return
	}
	rd.Error(w, r, err)
}
