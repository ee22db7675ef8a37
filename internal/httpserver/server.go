// Package httpserver exposes form flows over HTTP: GET renders the current
// step of a route, POST submits it.
package httpserver

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/petrijr/formflow/internal/flow"
	"github.com/petrijr/formflow/pkg/api"
)

// DefaultCookieName is the visitor session cookie used when none is configured.
const DefaultCookieName = "formflow_session"

// FlowController is the subset of *flow.Controller the server needs.
type FlowController interface {
	Show(ctx context.Context, session api.Session, route string) (*flow.Page, error)
	Submit(ctx context.Context, session api.Session, route string, raw map[string]string) (*flow.Outcome, error)
}

// Config describes how to construct a Server.
type Config struct {
	Controller FlowController
	Logger     *slog.Logger

	CookieName   string
	CookieSecure bool

	// Template renders a *flow.Page. The built-in page template is used
	// when nil.
	Template *template.Template
}

// Server is an http.Handler serving every route as a form flow.
type Server struct {
	ctl    FlowController
	logger *slog.Logger
	tmpl   *template.Template

	cookieName   string
	cookieSecure bool

	router *httprouter.Router
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tmpl := cfg.Template
	if tmpl == nil {
		tmpl = defaultTemplate
	}
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}

	s := &Server{
		ctl:          cfg.Controller,
		logger:       logger,
		tmpl:         tmpl,
		cookieName:   name,
		cookieSecure: cfg.CookieSecure,
	}

	s.router = httprouter.New()
	s.router.GET("/*route", s.handleShow)
	s.router.POST("/*route", s.handleSubmit)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.router.ServeHTTP(rec, r)

	s.logger.InfoContext(r.Context(), "http_request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("duration", time.Since(start)),
	)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session := s.session(w, r)

	page, err := s.ctl.Show(r.Context(), session, ps.ByName("route"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if page.Redirect != "" {
		http.Redirect(w, r, page.Redirect, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, page); err != nil {
		s.logger.ErrorContext(r.Context(), "render_failed",
			slog.String("route", page.Route),
			slog.Any("error", err),
		)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session := s.session(w, r)

	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, &api.ValidationError{Reason: "malformed form body"})
		return
	}
	raw := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			raw[k] = vs[0]
		}
	}

	out, err := s.ctl.Submit(r.Context(), session, ps.ByName("route"), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
}

// session returns the visitor session, issuing a new cookie when the
// request has none or an unusable one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) api.Session {
	if c, err := r.Cookie(s.cookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return api.Session{ID: c.Value}
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return api.Session{ID: id}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request_failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

// StatusFor maps an error returned by the flow controller to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case api.IsDefinitionError(err):
		if errors.Is(err, api.ErrDefinitionNotFound) {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	case api.IsValidationError(err):
		return http.StatusBadRequest
	case api.IsUserCreationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
