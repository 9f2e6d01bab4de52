package domain

import "context"

type requesterKey struct{}

// Requester carries the verified per-request attributes through the request
// context, plus whether the transport asserted administrative rights (JWT
// admin claim; never derivable from SSO headers).
type Requester struct {
	Attrs   AttributeSet
	IsAdmin bool
}

// WithRequester stores a Requester in the context.
func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// RequesterFromContext extracts the Requester from the context.
func RequesterFromContext(ctx context.Context) (Requester, bool) {
	r, ok := ctx.Value(requesterKey{}).(Requester)
	return r, ok
}
