package handler

import (
	"context"
	"net/http"
	"strings"

	customError "github.com/segyhp/loan-tracker/pkg/errors"
	"github.com/segyhp/loan-tracker/pkg/response"
)

// UserHeader identifies the caller. Authentication happens upstream.
const UserHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// UserMiddleware rejects requests without a user id and stores it in the
// request context.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			err := customError.WrapUserNotIdentified()
			response.Unauthorized(w, err.Message, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// UserFromContext returns the id stored by UserMiddleware.
func UserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
