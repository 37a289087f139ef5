package session

import "context"

type sessionContextKey struct{}

// ContextWith stores the resolved session in context.
func ContextWith(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext extracts the session from context, nil when the request carried
// no valid session.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
