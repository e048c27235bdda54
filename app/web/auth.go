package web

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/cvedit/app/enums"
)

const (
	authCookie = "cvedit-auth"
	authUser   = "cvedit"
)

// loginData is the model of the login page
type loginData struct {
	Error   string
	Theme   enums.Theme
	BaseURL string
}

// handleLoginForm displays the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, http.StatusOK, loginData{Theme: s.getTheme(r), BaseURL: s.baseURL})
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		s.renderLogin(w, http.StatusUnauthorized, loginData{Error: "Password is required", Theme: s.getTheme(r), BaseURL: s.baseURL})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		log.Printf("[WARN] failed login attempt from %s", r.RemoteAddr)
		s.renderLogin(w, http.StatusUnauthorized, loginData{Error: "Invalid password", Theme: s.getTheme(r), BaseURL: s.baseURL})
		return
	}

	token, err := s.generateAuthToken(time.Now())
	if err != nil {
		log.Printf("[ERROR] failed to generate auth token: %v", err)
		http.Error(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     s.cookiePath(),
		MaxAge:   int(s.loginTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleLogout logs the user out by clearing the auth cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	// tell htmx to perform a full page refresh instead of swapping content
	w.Header().Set("HX-Refresh", "true")
	http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, data loginData) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	s.render(w, status, "login", "login.html", data)
}

// authMiddleware checks for auth cookie or falls back to basic auth
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// skip auth for login page and static resources
		if r.URL.Path == "/login" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(authCookie); err == nil {
			if err := s.validateAuthToken(cookie.Value); err == nil {
				next.ServeHTTP(w, r)
				return
			}
			log.Printf("[DEBUG] rejected auth cookie: %v", err)
		}

		// fallback to basic auth for api clients
		username, password, ok := r.BasicAuth()
		if ok && username == authUser {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		if r.Header.Get("HX-Request") == "true" {
			// htmx can't follow a redirect into a full page, ask for a reload instead
			w.Header().Set("HX-Redirect", s.url("/login"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Accept") == "" || strings.Contains(r.Header.Get("Accept"), "text/html") {
			http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="Resume Editor"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// generateAuthToken makes a signed session token valid for loginTTL
func (s *Server) generateAuthToken(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   authUser,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.loginTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.authSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// validateAuthToken checks signature, expiration and subject of the session token
func (s *Server) validateAuthToken(token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.authSecret, nil
	}, jwt.WithSubject(authUser))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}

// makeAuthSecret returns the signing key. Without explicit secret it is derived from the password hash,
// so changing the password invalidates all sessions.
func makeAuthSecret(secret, passwordHash string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	h := sha256.Sum256([]byte(passwordHash + "cvedit-auth-token"))
	return h[:]
}
