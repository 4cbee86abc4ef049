package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// Authenticator resolves a user id from an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (int64, error)
}

// Authenticate validates bearer tokens and injects the user id into the context.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewAuthenticate(authenticator Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, contextManager: contextManager, logger: logger}
}

// Handle rejects the request with 401 unless it carries a valid access token.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "missing authorization token", m.logger)
			return
		}

		userID, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil || userID <= 0 {
			m.logger.Debug("Authenticate: rejected token", "path", r.URL.Path)
			response.Error(w, http.StatusUnauthorized, "invalid authorization token", m.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetUserIDToContext(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
