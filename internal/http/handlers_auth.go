package http

import (
	"errors"
	"net/http"

	"budgetcal/internal/auth"
	"budgetcal/internal/log"
)

type loginView struct {
	Email    string
	NeedCode bool
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, r, http.StatusOK, loginView{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	code := sanitizeInput(r.PostForm.Get("code"))

	token, id, err := s.auth.SignIn(r.Context(), email, password, code)
	if err != nil {
		s.appMetrics.signInFailed.Add(1)
		status, msg := errorStatus(err)
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Sign in failed",
			log.FieldOperation, log.OpSignIn, log.FieldStatusCode, status, log.FieldError, err)
		needCode := errors.Is(err, auth.ErrTOTPRequired) || errors.Is(err, auth.ErrInvalidTOTP)
		s.renderLogin(w, r, status, loginView{Email: email, NeedCode: needCode, Error: msg})
		return
	}

	s.appMetrics.signIns.Add(1)
	s.sessions.Set(token, s.calendar.NewSession(id))
	s.setSessionCookie(w, r, token)
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).InfoContext(r.Context(), "Signed in",
		log.FieldOperation, log.OpSignIn, log.FieldUserID, id.UserID, log.FieldRole, string(id.Role))

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).DebugContext(r.Context(), "Sign out of invalid session",
				log.FieldOperation, log.OpSignOut, log.FieldError, err)
		}
		s.sessions.Delete(token)
	}
	clearSessionCookie(w, r)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, v loginView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "login.html", v); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Login template execution failed",
			log.FieldError, err)
	}
}
