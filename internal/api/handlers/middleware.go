package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/services"
)

type contextKey string

// ClaimsKey is the context key for verified token claims.
const ClaimsKey = contextKey("claims")

// ClaimsFromContext returns the claims stored by RequireAudience.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

// BearerProtocol is the websocket subprotocol that carries a token.
// Browsers cannot set headers on a websocket handshake, so they offer
// the protocols "bearer" and "<token>" instead.
const BearerProtocol = "bearer"

// RequireAudience creates a middleware that admits only tokens issued for aud.
// With allowProtocol set, a token offered through Sec-WebSocket-Protocol is
// used when the Authorization header is absent.
func RequireAudience(service services.AccountServiceProvider, aud auth.Audience, allowProtocol bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" && allowProtocol {
				token = protocolToken(r)
			}

			claims, err := service.Authenticate(token, aud)
			if err != nil {
				logFailure(r, err).Str("audience", string(aud)).Msg("Rejected token")
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// protocolToken returns the token offered as "bearer, <token>" subprotocols.
func protocolToken(r *http.Request) string {
	protocols := websocket.Subprotocols(r)
	if len(protocols) < 2 || protocols[0] != BearerProtocol {
		return ""
	}
	return protocols[1]
}
