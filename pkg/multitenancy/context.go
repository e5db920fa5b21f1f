package multitenancy

import (
	"context"
	"errors"
	"fmt"
)

type contextKey string

const userIDKey contextKey = "user_id"

// ErrNoUserID is returned when a context carries no user identity.
var ErrNoUserID = errors.New("no user ID found in context")

// WithUserID returns a context carrying the user identity. Every memory
// namespace is scoped to the user carried here.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts the user identity from the context.
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUserID
	}
	return userID, nil
}

// HasUserID reports whether the context carries a user identity.
func HasUserID(ctx context.Context) bool {
	_, err := GetUserID(ctx)
	return err == nil
}

// Namespace derives the deterministic memory namespace for a user and
// profile. An empty profile selects the user's default profile namespace.
func Namespace(userID, profileID string) string {
	if profileID == "" {
		return fmt.Sprintf("user_%s_default", userID)
	}
	return fmt.Sprintf("user_%s_profile_%s", userID, profileID)
}
