package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	ownerIDKey contextKey = "owner_id"
	authLogKey contextKey = "auth_log"
)

func SetOwnerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ownerIDKey, id)
}

func GetOwnerID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(ownerIDKey).(string)
	return id, ok
}

// authLog is a mutable record the Logger middleware seeds before the auth
// middleware runs. Authenticate fills it in, so the one log line written per
// request can attribute the call to its API key even though the inner
// request context is not visible to the outer middleware.
type authLog struct {
	ownerID   string
	keyPrefix string
}

func withAuthLog(ctx context.Context) (context.Context, *authLog) {
	al := &authLog{}
	return context.WithValue(ctx, authLogKey, al), al
}

func markAuthenticated(ctx context.Context, ownerID, keyPrefix string) {
	if al, ok := ctx.Value(authLogKey).(*authLog); ok {
		al.ownerID = ownerID
		al.keyPrefix = keyPrefix
	}
}
