package guard

import (
	"context"
	"net/http"
	"strings"

	"github.com/askgroup/dealerportal/jwt"
)

// TokenCookie is the cookie a browser build keeps the bearer in.
const TokenCookie = "token"

type viewerContextKey struct{}

// ViewerFromContext returns the viewer Middleware resolved for the request.
func ViewerFromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerContextKey{}).(Viewer)
	return v, ok
}

// Resolver derives the viewer for an incoming request.
type Resolver func(*http.Request) Viewer

// Middleware gates page requests with the policy. Redirect decisions become
// 303 responses to Decision.Location; a suspended viewer gets 503.
func Middleware(p *Policy, resolve Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var v Viewer = anonymous{}
			if resolve != nil {
				if resolved := resolve(r); resolved != nil {
					v = resolved
				}
			}

			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}

			d := p.Check(v, target)
			switch d.Outcome {
			case Allow:
				ctx := context.WithValue(r.Context(), viewerContextKey{}, v)
				next.ServeHTTP(w, r.WithContext(ctx))
			case Suspend:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, d.Location(), http.StatusSeeOther)
			}
		})
	}
}

// TokenResolver decodes the bearer from the Authorization header, falling
// back to the token cookie. Missing or undecodable tokens yield a signed-out
// viewer.
func TokenResolver(decoder *jwt.Manager) Resolver {
	return func(r *http.Request) Viewer {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
				token, ok = c.Value, true
			}
		}
		if !ok || decoder == nil {
			return anonymous{}
		}
		claims, err := decoder.Decode(token)
		if err != nil {
			return anonymous{}
		}
		return ClaimsViewer(claims)
	}
}

// ClaimsViewer adapts decoded token claims to a Viewer.
func ClaimsViewer(c *jwt.Claims) Viewer {
	if c == nil {
		return anonymous{}
	}
	return claimsViewer{role: c.Role}
}

type claimsViewer struct {
	role string
}

func (claimsViewer) Loading() bool           { return false }
func (claimsViewer) IsAuthenticated() bool   { return true }
func (v claimsViewer) Role() string          { return v.role }
func (v claimsViewer) HasRole(r string) bool { return strings.EqualFold(v.role, r) }

type anonymous struct{}

func (anonymous) Loading() bool         { return false }
func (anonymous) IsAuthenticated() bool { return false }
func (anonymous) Role() string          { return "" }
func (anonymous) HasRole(string) bool   { return false }

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
