package middleware

import (
	"net/http"

	"github.com/upb/fetchguard/internal/policy"
	"go.uber.org/zap"
)

// PolicySource resolves the process-wide policy for a request path
type PolicySource interface {
	Resolve(requestPath string) (policy.Policy, bool)
}

// PolicyResolver attaches the policy configured for each request's path.
// Paths covered by a disabled route, or by no route while the global policy
// is off, get no policy and pass through Enforce.
func PolicyResolver(source PolicySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if p, ok := source.Resolve(r.URL.Path); ok {
				ctx = WithPolicy(ctx, p)
			} else {
				ctx = WithoutPolicy(ctx)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Override attaches a copy of the request's policy with configure applied.
// When no policy is attached it starts from policy.Default(), which turns
// enforcement on for the wrapped routes. configure is validated against the
// default options here, so a bad override fails at startup. If the inherited
// policy plus configure fails validation at request time, the inherited
// policy is used unchanged.
func Override(configure func(*policy.Options)) (func(http.Handler) http.Handler, error) {
	return OverrideWithLogger(zap.NewNop(), configure)
}

// OverrideWithLogger is like Override and logs, at debug level, each request
// where the override was dropped in favor of the inherited policy.
func OverrideWithLogger(logger *zap.Logger, configure func(*policy.Options)) (func(http.Handler) http.Handler, error) {
	if _, err := policy.Default().With(configure); err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			base, ok := PolicyFromContext(r.Context())
			if !ok {
				base = policy.Default()
			}
			p, err := base.With(configure)
			if err != nil {
				logger.Debug("policy override skipped",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				p = base
			}
			next.ServeHTTP(w, r.WithContext(WithPolicy(r.Context(), p)))
		})
	}, nil
}

// MustOverride is like Override but panics on invalid options
func MustOverride(configure func(*policy.Options)) func(http.Handler) http.Handler {
	mw, err := Override(configure)
	if err != nil {
		panic(err)
	}
	return mw
}

// DisablePolicy exempts every request it wraps from isolation checks
func DisablePolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithoutPolicy(r.Context())))
	})
}
