package auth

import "context"

// RequestSession is what authentication attaches to a request: the stored
// session it was resolved from and the identity that session holds.
type RequestSession struct {
	ID       string
	Identity SessionIdentity
}

type requestSessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s RequestSession) context.Context {
	return context.WithValue(ctx, requestSessionKey{}, s)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (RequestSession, bool) {
	if ctx == nil {
		return RequestSession{}, false
	}
	s, ok := ctx.Value(requestSessionKey{}).(RequestSession)
	return s, ok
}

// WithIdentity replaces the identity of the session in ctx and keeps its id.
// Without a session in ctx it attaches one that has no id.
func WithIdentity(ctx context.Context, id SessionIdentity) context.Context {
	s, _ := SessionFromContext(ctx)
	s.Identity = id
	return WithSession(ctx, s)
}

// IdentityFromContext returns the identity of the session in ctx.
func IdentityFromContext(ctx context.Context) (SessionIdentity, bool) {
	s, ok := SessionFromContext(ctx)
	return s.Identity, ok
}
