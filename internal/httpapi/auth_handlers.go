package httpapi

import (
	"net/http"

	"meal-planner/internal/auth"

	"github.com/julienschmidt/httprouter"
)

const refreshCookie = "refresh_token"

// setRefreshCookie mirrors the refresh token into an HttpOnly cookie scoped
// to the auth routes so browser clients never touch it from script.
func (s *Server) setRefreshCookie(w http.ResponseWriter, token string, maxAge int) {
	c := &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     apiPrefix + "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if s.opts.SecureCookies {
		c.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, c)
}

// refreshToken prefers the cookie and falls back to the JSON body.
func refreshToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decode(r, &body); err != nil {
		return "", err
	}
	return body.RefreshToken, nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in auth.RegisterInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setRefreshCookie(w, sess.Tokens.RefreshToken, s.cookieAge())
	writeData(w, http.StatusCreated, sess)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in auth.LoginInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setRefreshCookie(w, sess.Tokens.RefreshToken, s.cookieAge())
	writeData(w, http.StatusOK, sess)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := refreshToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := s.auth.Refresh(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setRefreshCookie(w, pair.RefreshToken, s.cookieAge())
	writeData(w, http.StatusOK, pair)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := refreshToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.auth.Logout(r.Context(), raw)
	s.setRefreshCookie(w, "", -1)
	writeData(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	u, err := s.auth.Me(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in auth.ProfileUpdate
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.auth.UpdateMe(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

func (s *Server) deleteMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.auth.DeleteMe(r.Context(), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	s.setRefreshCookie(w, "", -1)
	writeNoContent(w)
}

func (s *Server) cookieAge() int {
	return int(s.opts.RefreshTTL.Seconds())
}
