package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docscope/internal/session"
)

// SessionCookie names the cookie that carries the session id.
const SessionCookie = "docscope_session"

type ctxKey int

const controllerKey ctxKey = iota

// SessionMiddleware attaches the caller's session controller to the request
// context. Nothing is attached when the cookie is missing, malformed or
// expired; handlers then answer as for an idle session.
func SessionMiddleware(sessions *session.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := uuid.Parse(c.Value); err != nil {
				log.Debug("malformed session cookie", "value", c.Value)
				next.ServeHTTP(w, r)
				return
			}
			ctl := sessions.Get(c.Value)
			if ctl == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), controllerKey, ctl)))
		})
	}
}

// CreateSession registers a new session and issues its cookie when
// SessionMiddleware found none. Only routes that store state use it.
func CreateSession(sessions *session.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if controllerFrom(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctl := sessions.New()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    ctl.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			log.Debug("session cookie issued", "session_id", ctl.ID)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), controllerKey, ctl)))
		})
	}
}

// controllerFrom returns the session controller attached to ctx, or nil.
func controllerFrom(ctx context.Context) *session.Controller {
	ctl, _ := ctx.Value(controllerKey).(*session.Controller)
	return ctl
}

// RequestLogger logs incoming requests.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
