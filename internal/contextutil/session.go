package contextutil

import "context"

const sessionTokenKey contextKey = "session_token"

// WithSessionToken returns a context carrying the caller's session token.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey, token)
}

// SessionTokenFromContext extracts the session token set by the session
// middleware. Returns an empty string if none is present.
func SessionTokenFromContext(ctx context.Context) string {
	if v := ctx.Value(sessionTokenKey); v != nil {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}
