package http

import (
	"context"
	"net/http"
	"sync"

	"budgetcal/internal/calendar"
	"budgetcal/internal/log"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *calendar.Session)

// withSession resolves the session cookie to calendar view state and runs h
// under the session lock. Requests for one token are serialized even if the
// cache evicts their session meanwhile. Unauthenticated requests go to the
// login page.
func (s *Server) withSession(h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			s.redirectToLogin(w, r)
			return
		}
		id, err := s.auth.Session(r.Context(), token)
		if err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).DebugContext(r.Context(),
				"Session rejected", log.FieldError, err)
			s.sessions.Delete(token)
			clearSessionCookie(w, r)
			s.redirectToLogin(w, r)
			return
		}

		release := s.sessionLocks.lock(token)
		defer release()

		sess := s.sessions.GetOrCreate(token, func() *calendar.Session {
			return s.calendar.NewSession(id)
		})
		ctx := context.WithValue(r.Context(), log.LoggerContextKey,
			log.FromContext(r.Context()).With(log.FieldUserID, id.UserID, log.FieldRole, string(id.Role)))

		sess.Lock()
		defer sess.Unlock()
		h(w, r.WithContext(ctx), sess)
	})
}

// tokenLocks hands out one mutex per session token. Entries live only while
// a request holds or waits for them.
type tokenLocks struct {
	mu    sync.Mutex
	locks map[string]*tokenLock
}

type tokenLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until token is free and returns the release func.
func (l *tokenLocks) lock(token string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*tokenLock)
	}
	tl, ok := l.locks[token]
	if !ok {
		tl = &tokenLock{}
		l.locks[token] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, token)
		}
		l.mu.Unlock()
	}
}

func (l *tokenLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
