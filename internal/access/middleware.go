// AngelaMos | 2026
// middleware.go

package access

import (
	"context"
	"net/http"

	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/middleware"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

type authContextKey struct{}

func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok && ac != nil
}

func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
}

// Require authorizes the request for caps. It must run after
// middleware.Authenticator, which supplies the identity.
func Require(gate *Gate, caps ...permission.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{UserID: middleware.GetUserID(r.Context())}

			ac, err := gate.Authorize(r.Context(), id, MetaFromRequest(r), caps...)
			if err != nil {
				core.JSONError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
		})
	}
}

func (g *Gate) Require(caps ...permission.Capability) func(http.Handler) http.Handler {
	return Require(g, caps...)
}
