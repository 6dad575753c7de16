package auth

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// AdminGuard protects the endpoints that return decrypted signups.
type AdminGuard struct {
	username  string
	hash      string
	passwords *PasswordService
	logger    *slog.Logger
}

// NewAdminGuard creates a guard. With an empty hash the guard is disabled
// and RequireAdmin lets every request through.
func NewAdminGuard(username, hash string, passwords *PasswordService, logger *slog.Logger) *AdminGuard {
	if username == "" {
		username = "admin"
	}
	return &AdminGuard{
		username:  username,
		hash:      hash,
		passwords: passwords,
		logger:    logger,
	}
}

// Enabled reports whether credentials are required.
func (g *AdminGuard) Enabled() bool {
	return g.hash != ""
}

// RequireAdmin is a middleware enforcing HTTP Basic auth against the
// configured username and bcrypt hash.
func (g *AdminGuard) RequireAdmin(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !g.check(user, pass) {
			g.logger.Warn("admin authentication failed",
				slog.String("path", r.URL.Path),
				slog.Bool("credentialsPresent", ok),
			)
			w.Header().Set("WWW-Authenticate", `Basic realm="postcards", charset="UTF-8"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *AdminGuard) check(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passOK := g.passwords.Verify(g.hash, pass) == nil
	return userOK && passOK
}
