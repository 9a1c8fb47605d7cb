// Package web provides the HTTP application: routing, session handling and
// HTML rendering over an injected storage layer.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"microblog/web/validator"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	sessionCookie = "microblog_session"
	flashCookie   = "microblog_flash"
)

// App serves the HTML pages and form endpoints of the application.
type App struct {
	Logger   *slog.Logger
	Store    Store
	Sessions Sessions
	Val      *validator.Validator

	once    sync.Once
	handler http.Handler
	tpls    *template.Template
}

func (a *App) setup() {
	a.tpls = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", a.index)
	mux.HandleFunc("POST /{$}", a.createMessage)

	mux.HandleFunc("GET /register", a.registerPage)
	mux.HandleFunc("POST /register", a.register)
	mux.HandleFunc("GET /login", a.loginPage)
	mux.HandleFunc("POST /login", a.login)
	mux.HandleFunc("GET /logout", a.logout)
	mux.HandleFunc("GET /unregister", a.unregister)

	mux.HandleFunc("GET /messages/{messageID}/{$}", a.showThread)
	mux.HandleFunc("POST /messages/{messageID}/{$}", a.createReply)
	mux.HandleFunc("POST /messages/{messageID}/delete", a.deleteMessage)
	mux.HandleFunc("POST /messages/{messageID}/like", a.likeMessage)
	mux.HandleFunc("POST /messages/{messageID}/unlike", a.unlikeMessage)

	a.handler = a.withSession(mux)
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setup)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.handler.ServeHTTP(w, r)
}

// ----------------------------
// Session context
// ----------------------------

type ctxKeySession struct{}

// WithSession returns a context carrying the resolved login session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession{}, s)
}

// SessionFrom reports the login session attached to the context, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKeySession{}).(Session)
	return s, ok
}

// withSession resolves the session cookie and, when it names a live
// session, attaches it to the request context. Anonymous requests pass
// through untouched.
func (a *App) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			s, err := a.Sessions.Get(r.Context(), c.Value)
			switch {
			case err == nil:
				r = r.WithContext(WithSession(r.Context(), s))
			case !errors.Is(err, ErrNoSession):
				a.Logger.Error("Could not resolve session", "error", err.Error())
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser returns the current user id, or redirects to the login page
// with a notice and reports false. Unauthenticated form submissions are
// always rejected this way, never silently dropped.
func (a *App) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		a.flash(w, "please log in first")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return 0, false
	}
	return s.UserID, true
}

func (a *App) setSessionCookie(w http.ResponseWriter, s Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.ExpiresAt,
	})
}

func (a *App) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
	})
}

// ----------------------------
// Flash notices
// ----------------------------

// flash stores a one-shot notice shown on the next rendered page.
func (a *App) flash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:  flashCookie,
		Value: url.QueryEscape(msg),
		Path:  "/",
	})
}

func (a *App) popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:   flashCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// ----------------------------
// Responses
// ----------------------------

func (a *App) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["Flash"] = a.popFlash(w, r)
	if s, ok := SessionFrom(r.Context()); ok {
		data["Logged"] = true
		data["UserID"] = s.UserID
	} else {
		data["Logged"] = false
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.tpls.ExecuteTemplate(w, name, data); err != nil {
		a.Logger.Error("Could not render template", "template", name, "error", err.Error())
	}
}

func (a *App) serverError(w http.ResponseWriter, err error, msg string) {
	a.Logger.Error("Error", "error", err.Error())
	http.Error(w, msg, http.StatusInternalServerError)
}

// flashRedirect surfaces a notice and sends the browser to the given page.
func (a *App) flashRedirect(w http.ResponseWriter, r *http.Request, msg, to string) {
	a.flash(w, msg)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// redirectBack returns to the referring page, or to fallback when the
// request carries no referer.
func (a *App) redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	to := r.Referer()
	if to == "" {
		to = fallback
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
